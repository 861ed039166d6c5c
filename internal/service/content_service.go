package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sa_assessment_backend/internal/config"
	"sa_assessment_backend/internal/model"
	"sa_assessment_backend/internal/repository"
	"sa_assessment_backend/pkg/logger"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ContentService 测评配置与题库的只读查询，带 Redis 缓存；
// 同时承担配置包导入（发布）
type ContentService struct {
	Quizzes   *repository.QuizContentRepository
	Questions *repository.QuestionRepository
	Redis     *redis.Client
	TTL       time.Duration
}

func NewContentService(quizzes *repository.QuizContentRepository, questions *repository.QuestionRepository, rdb *redis.Client, cfg *config.Config) *ContentService {
	return &ContentService{
		Quizzes:   quizzes,
		Questions: questions,
		Redis:     rdb,
		TTL:       time.Duration(cfg.Redis.CatalogTTLSeconds) * time.Second,
	}
}

// NormalizeQuizID 补全 "quiz:" 前缀
func NormalizeQuizID(quizID string) string {
	if strings.HasPrefix(quizID, "quiz:") {
		return quizID
	}
	return "quiz:" + quizID
}

func (s *ContentService) GetQuiz(ctx context.Context, quizID string) (*model.QuizContent, error) {
	quizID = NormalizeQuizID(quizID)
	cacheKey := "quiz_content:" + quizID

	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, cacheKey).Result(); err == nil {
			var content model.QuizContent
			if err := json.Unmarshal([]byte(raw), &content); err == nil {
				return &content, nil
			}
		}
	}

	content, err := s.Quizzes.FindByID(ctx, quizID)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if raw, err := json.Marshal(content); err == nil {
			s.Redis.Set(ctx, cacheKey, raw, s.TTL)
		}
	}
	return content, nil
}

// GetQuestions 按配置中的顺序返回题目；题库缺题视为内容损坏
func (s *ContentService) GetQuestions(ctx context.Context, content *model.QuizContent) ([]model.Question, error) {
	cacheKey := "quiz_questions:" + content.ID

	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, cacheKey).Result(); err == nil {
			var questions []model.Question
			if err := json.Unmarshal([]byte(raw), &questions); err == nil && len(questions) == len(content.QuestionIDs) {
				return questions, nil
			}
		}
	}

	questions, err := s.Questions.FindByIDs(ctx, content.QuestionIDs)
	if err != nil {
		return nil, err
	}
	if len(questions) != len(content.QuestionIDs) {
		found := make(map[string]bool, len(questions))
		for _, q := range questions {
			found[q.ID] = true
		}
		missing := []string{}
		for _, id := range content.QuestionIDs {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("questions not found for quiz %s: %v", content.ID, missing)
	}

	if s.Redis != nil {
		if raw, err := json.Marshal(questions); err == nil {
			s.Redis.Set(ctx, cacheKey, raw, s.TTL)
		}
	}
	return questions, nil
}

// QuizBundle 一次发布的完整内容包：配置 + 全部题目
type QuizBundle struct {
	Quiz      model.QuizContent `json:"quiz"`
	Questions []model.Question  `json:"questions"`
}

// ImportBundle 导入内容包并失效缓存。配置与题目整体校验后写入，
// 修订应使用新的文档 ID，已有尝试继续引用旧版本
func (s *ContentService) ImportBundle(ctx context.Context, r io.Reader) (*model.QuizContent, error) {
	var bundle QuizBundle
	if err := json.NewDecoder(r).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}

	if err := validateBundle(&bundle); err != nil {
		return nil, err
	}

	bundle.Quiz.ID = NormalizeQuizID(bundle.Quiz.ID)
	if bundle.Quiz.PublishedAt.IsZero() {
		bundle.Quiz.PublishedAt = time.Now()
	}

	if err := s.Questions.UpsertMany(ctx, bundle.Questions); err != nil {
		return nil, err
	}
	if err := s.Quizzes.Upsert(ctx, &bundle.Quiz); err != nil {
		return nil, err
	}

	if s.Redis != nil {
		s.Redis.Del(ctx, "quiz_content:"+bundle.Quiz.ID, "quiz_questions:"+bundle.Quiz.ID)
	}

	logger.Log.Info("quiz bundle imported",
		zap.String("quiz", bundle.Quiz.ID),
		zap.Int("questions", len(bundle.Questions)))

	return &bundle.Quiz, nil
}

func validateBundle(bundle *QuizBundle) error {
	if bundle.Quiz.ID == "" {
		return fmt.Errorf("invalid bundle: quiz id is required")
	}
	if len(bundle.Quiz.Categories) == 0 {
		return fmt.Errorf("invalid bundle: quiz has no categories")
	}
	for cat, cfg := range bundle.Quiz.Categories {
		if cfg.Weight <= 0 {
			return fmt.Errorf("invalid bundle: category %q has non-positive weight", cat)
		}
	}
	if len(bundle.Quiz.Levels) == 0 {
		return fmt.Errorf("invalid bundle: quiz has no levels")
	}

	byID := make(map[string]*model.Question, len(bundle.Questions))
	for i := range bundle.Questions {
		q := &bundle.Questions[i]
		if q.ID == "" {
			return fmt.Errorf("invalid bundle: question without id")
		}
		if q.Weight <= 0 {
			return fmt.Errorf("invalid bundle: question %q has non-positive weight", q.ID)
		}
		if _, ok := bundle.Quiz.Categories[q.Category]; !ok {
			return fmt.Errorf("invalid bundle: question %q references unknown category %q", q.ID, q.Category)
		}
		byID[q.ID] = q
	}

	if len(bundle.Quiz.QuestionIDs) == 0 {
		return fmt.Errorf("invalid bundle: quiz has no questions")
	}
	for _, id := range bundle.Quiz.QuestionIDs {
		if _, ok := byID[id]; !ok {
			return fmt.Errorf("invalid bundle: quiz references missing question %q", id)
		}
	}
	return nil
}
