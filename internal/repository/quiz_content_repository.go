package repository

import (
	"context"
	"sa_assessment_backend/internal/model"
	"sa_assessment_backend/internal/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type QuizContentRepository struct {
	Col *mongo.Collection
}

func NewQuizContentRepository(db *mongo.Database) *QuizContentRepository {
	return &QuizContentRepository{Col: db.Collection("quiz_content")}
}

func (r *QuizContentRepository) FindByID(ctx context.Context, quizID string) (*model.QuizContent, error) {
	var content model.QuizContent
	err := r.Col.FindOne(ctx, bson.M{"_id": quizID}).Decode(&content)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return &content, nil
}

// Upsert 导入测评配置。同一 ID 整体替换，修订内容应使用新的文档 ID 发布
func (r *QuizContentRepository) Upsert(ctx context.Context, content *model.QuizContent) error {
	_, err := r.Col.ReplaceOne(ctx,
		bson.M{"_id": content.ID},
		content,
		options.Replace().SetUpsert(true),
	)
	return err
}
