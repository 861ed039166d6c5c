package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"sa_assessment_backend/internal/model"
	"sa_assessment_backend/internal/util"
	"sa_assessment_backend/pkg/logger"

	"go.uber.org/zap"
)

// 推荐在结果视图中的呈现状态
const (
	RecommendationStatusPending     = "pending"     // 生成中，稍后再查
	RecommendationStatusReady       = "ready"       // 文本已就绪
	RecommendationStatusUnavailable = "unavailable" // 生成失败或已放弃
	RecommendationStatusNone        = "none"        // 本次尝试不含推荐
)

type RecommendationView struct {
	Status      string     `json:"status"`
	Text        string     `json:"text,omitempty"`
	Model       string     `json:"model,omitempty"`
	GeneratedAt *time.Time `json:"generatedAt,omitempty"`
}

// ResultView 对外返回的完整测评结果：数值部分来自关系库，
// 推荐文本按指针从文档库联取
type ResultView struct {
	AttemptID        string                `json:"attemptId"`
	QuizID           string                `json:"quizId"`
	Status           model.AttemptStatus   `json:"status"`
	Score            *float64              `json:"score"`
	Level            string                `json:"level"`
	Passed           bool                  `json:"passed"`
	CategoryScores   []model.CategoryScore `json:"categoryScores"`
	Strengths        []string              `json:"strengths"`
	Weaknesses       []string              `json:"weaknesses"`
	TimeSpentSeconds int                   `json:"timeSpentSeconds"`
	StartedAt        time.Time             `json:"startedAt"`
	CompletedAt      *time.Time            `json:"completedAt,omitempty"`
	Recommendation   RecommendationView    `json:"recommendation"`
}

type ResultService struct {
	Attempts    *AttemptService
	Store       RecommendationStore
	Recommender *RecommendationService
}

func NewResultService(attempts *AttemptService, store RecommendationStore, recommender *RecommendationService) *ResultService {
	return &ResultService{Attempts: attempts, Store: store, Recommender: recommender}
}

// GetResult 返回尝试的结果视图。已过期的尝试返回 score 为 null 的
// 空结果视图，未提交的尝试才算结果不存在
func (s *ResultService) GetResult(ctx context.Context, attemptID, userID string) (*ResultView, error) {
	attempt, err := s.Attempts.Get(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.Score == nil {
		if attempt.Status == model.AttemptExpired {
			return &ResultView{
				AttemptID:      attempt.ID,
				QuizID:         attempt.QuizID,
				Status:         attempt.Status,
				StartedAt:      attempt.StartedAt,
				Recommendation: RecommendationView{Status: RecommendationStatusNone},
			}, nil
		}
		return nil, util.ErrResultNotFound
	}

	view := &ResultView{
		AttemptID:        attempt.ID,
		QuizID:           attempt.QuizID,
		Status:           attempt.Status,
		Score:            attempt.Score,
		TimeSpentSeconds: attempt.TimeSpentSeconds,
		StartedAt:        attempt.StartedAt,
		CompletedAt:      attempt.CompletedAt,
	}
	if attempt.Level != nil {
		view.Level = *attempt.Level
	}
	if attempt.Passed != nil {
		view.Passed = *attempt.Passed
	}
	if len(attempt.CategoryScores) > 0 {
		if err := json.Unmarshal(attempt.CategoryScores, &view.CategoryScores); err != nil {
			return nil, err
		}
	}
	if len(attempt.Strengths) > 0 {
		if err := json.Unmarshal(attempt.Strengths, &view.Strengths); err != nil {
			return nil, err
		}
	}
	if len(attempt.Weaknesses) > 0 {
		if err := json.Unmarshal(attempt.Weaknesses, &view.Weaknesses); err != nil {
			return nil, err
		}
	}

	view.Recommendation = s.recommendationView(ctx, attempt)
	return view, nil
}

// RetryRecommendation 对失败的推荐重新排队
func (s *ResultService) RetryRecommendation(ctx context.Context, attemptID, userID string) (*model.QuizAttempt, error) {
	if s.Recommender == nil {
		return nil, util.ErrInvalidStateTransition
	}
	return s.Recommender.Retry(ctx, attemptID, userID)
}

// recommendationView 把尝试状态与文档指针折算成视图状态。
// 指针存在但文档读不到时降级为 unavailable，数值结果不受影响
func (s *ResultService) recommendationView(ctx context.Context, attempt *model.QuizAttempt) RecommendationView {
	if attempt.ResultContentID != nil && *attempt.ResultContentID != "" {
		rec, err := s.Store.FindByID(ctx, *attempt.ResultContentID)
		if err != nil {
			if !errors.Is(err, util.ErrResultNotFound) {
				logger.Log.Error("读取建议文档失败",
					zap.String("attemptId", attempt.ID),
					zap.String("recommendationId", *attempt.ResultContentID),
					zap.Error(err))
			}
			return RecommendationView{Status: RecommendationStatusUnavailable}
		}
		generatedAt := rec.GeneratedAt
		return RecommendationView{
			Status:      RecommendationStatusReady,
			Text:        rec.Text,
			Model:       rec.Model,
			GeneratedAt: &generatedAt,
		}
	}

	switch attempt.Status {
	case model.AttemptScored, model.AttemptRecommendationPending:
		if s.Recommender != nil && s.Recommender.Cfg.Recommendation.Enabled {
			return RecommendationView{Status: RecommendationStatusPending}
		}
		return RecommendationView{Status: RecommendationStatusNone}
	case model.AttemptRecommendationFailed:
		return RecommendationView{Status: RecommendationStatusUnavailable}
	case model.AttemptCompleted:
		// 无指针的 completed：推荐被禁用（none）或失败后放弃（unavailable）
		if s.Recommender == nil || !s.Recommender.Cfg.Recommendation.Enabled {
			return RecommendationView{Status: RecommendationStatusNone}
		}
		return RecommendationView{Status: RecommendationStatusUnavailable}
	default:
		return RecommendationView{Status: RecommendationStatusNone}
	}
}
