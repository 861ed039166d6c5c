package repository

import (
	"context"
	"sa_assessment_backend/internal/model"
	"sa_assessment_backend/internal/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type RecommendationRepository struct {
	Col *mongo.Collection
}

func NewRecommendationRepository(db *mongo.Database) *RecommendationRepository {
	return &RecommendationRepository{Col: db.Collection("recommendations")}
}

func (r *RecommendationRepository) FindByID(ctx context.Context, id string) (*model.RecommendationRecord, error) {
	var rec model.RecommendationRecord
	err := r.Col.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, util.ErrResultNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// FindByAttemptAndDigest 幂等检查：同一尝试、同一提示词摘要只生成一次
func (r *RecommendationRepository) FindByAttemptAndDigest(ctx context.Context, attemptID, digest string) (*model.RecommendationRecord, error) {
	var rec model.RecommendationRecord
	err := r.Col.FindOne(ctx, bson.M{"attempt_id": attemptID, "prompt_digest": digest}).Decode(&rec)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, util.ErrResultNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *RecommendationRepository) Insert(ctx context.Context, rec *model.RecommendationRecord) error {
	_, err := r.Col.InsertOne(ctx, rec)
	return err
}
