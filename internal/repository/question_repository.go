package repository

import (
	"context"
	"sa_assessment_backend/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type QuestionRepository struct {
	Col *mongo.Collection
}

func NewQuestionRepository(db *mongo.Database) *QuestionRepository {
	return &QuestionRepository{Col: db.Collection("questions")}
}

// FindByIDs 按给定 ID 顺序返回题目
func (r *QuestionRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Question, error) {
	cur, err := r.Col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	byID := make(map[string]model.Question, len(ids))
	for cur.Next(ctx) {
		var q model.Question
		if err := cur.Decode(&q); err != nil {
			return nil, err
		}
		byID[q.ID] = q
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	questions := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

func (r *QuestionRepository) UpsertMany(ctx context.Context, questions []model.Question) error {
	for _, q := range questions {
		_, err := r.Col.ReplaceOne(ctx,
			bson.M{"_id": q.ID},
			q,
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			return err
		}
	}
	return nil
}
