package service

import (
	"context"
	"encoding/json"
	"time"

	"sa_assessment_backend/internal/config"
	"sa_assessment_backend/internal/model"
	"sa_assessment_backend/internal/repository"
	"sa_assessment_backend/internal/util"
	"sa_assessment_backend/pkg/logger"
	"sa_assessment_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// ContentProvider 供测评流程读取题库内容（带缓存实现见 ContentService）
type ContentProvider interface {
	GetQuiz(ctx context.Context, quizID string) (*model.QuizContent, error)
	GetQuestions(ctx context.Context, content *model.QuizContent) ([]model.Question, error)
}

// RecommendationScheduler 在评分完成后异步触发建议生成
type RecommendationScheduler interface {
	Schedule(attempt *model.QuizAttempt)
}

// AttemptService 维护测评尝试的状态机：创建、作答、提交评分与过期处理
type AttemptService struct {
	Attempts    *repository.AttemptRepository
	Content     ContentProvider
	Scoring     *ScoringService
	Recommender RecommendationScheduler
	Cfg         *config.Config
}

func NewAttemptService(attempts *repository.AttemptRepository, content ContentProvider, scoring *ScoringService, recommender RecommendationScheduler, cfg *config.Config) *AttemptService {
	return &AttemptService{
		Attempts:    attempts,
		Content:     content,
		Scoring:     scoring,
		Recommender: recommender,
		Cfg:         cfg,
	}
}

// Start 创建一次新的测评尝试，受测评配置的次数上限约束
func (s *AttemptService) Start(ctx context.Context, userID, quizID string) (*model.QuizAttempt, error) {
	content, err := s.Content.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	if content.Settings.MaxAttempts > 0 {
		count, err := s.Attempts.CountByUserAndQuiz(userID, content.ID)
		if err != nil {
			return nil, err
		}
		if count >= int64(content.Settings.MaxAttempts) {
			return nil, util.ErrMaxAttempts
		}
	}

	attempt := &model.QuizAttempt{
		UserID:    userID,
		QuizID:    content.ID,
		Status:    model.AttemptCreated,
		StartedAt: time.Now(),
	}
	if err := withStoreRetry(func() error { return s.Attempts.Create(attempt) }); err != nil {
		return nil, err
	}
	return attempt, nil
}

// Begin 进入作答阶段并返回脱敏后的题目列表。首次调用把尝试从
// created 推进到 in_progress，重复调用幂等
func (s *AttemptService) Begin(ctx context.Context, attemptID, userID string) (*model.QuizAttempt, *model.QuizContent, []model.QuestionView, error) {
	attempt, content, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return nil, nil, nil, err
	}

	expired, err := s.ExpireIfNeeded(attempt, content)
	if err != nil {
		return nil, nil, nil, err
	}
	if expired {
		return nil, nil, nil, util.ErrInvalidStateTransition
	}

	switch attempt.Status {
	case model.AttemptCreated:
		err := s.Attempts.Transition(attempt.ID, model.AttemptCreated, model.AttemptInProgress, nil)
		if err != nil {
			// 并发 Begin 时条件更新可能已被对方完成，重读确认即可
			fresh, ferr := s.Attempts.FindByID(attempt.ID)
			if ferr != nil || fresh.Status != model.AttemptInProgress {
				return nil, nil, nil, err
			}
		}
		attempt.Status = model.AttemptInProgress
	case model.AttemptInProgress:
		// 已在作答中，直接返回题目
	default:
		return nil, nil, nil, util.ErrInvalidStateTransition
	}

	questions, err := s.Content.GetQuestions(ctx, content)
	if err != nil {
		return nil, nil, nil, err
	}
	views := make([]model.QuestionView, 0, len(questions))
	for i := range questions {
		views = append(views, questions[i].View())
	}
	return attempt, content, views, nil
}

// Submit 接收答卷并完成评分。校验与计分先于任何状态变更，之后用
// 条件更新抢占 in_progress→submitted 并同时落盘成绩，保证同一
// 尝试只会被评分一次，且不会出现无成绩的 submitted 行
func (s *AttemptService) Submit(ctx context.Context, attemptID, userID string, answers []model.SubmittedAnswer) (*model.QuizAttempt, *model.ScoredResult, error) {
	attempt, content, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return nil, nil, err
	}

	expired, err := s.ExpireIfNeeded(attempt, content)
	if err != nil {
		return nil, nil, err
	}
	if expired {
		return nil, nil, util.ErrInvalidStateTransition
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, nil, util.ErrInvalidStateTransition
	}

	questions, err := s.Content.GetQuestions(ctx, content)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.Scoring.Score(answers, questions, content)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	categoryJSON, _ := json.Marshal(result.CategoryScores)
	strengthsJSON, _ := json.Marshal(result.Strengths)
	weaknessesJSON, _ := json.Marshal(result.Weaknesses)
	payload := map[string]interface{}{
		"score":              result.Overall,
		"level":              result.Level,
		"passed":             result.Passed,
		"time_spent_seconds": int(now.Sub(attempt.StartedAt).Seconds()),
		"category_scores":    categoryJSON,
		"strengths":          strengthsJSON,
		"weaknesses":         weaknessesJSON,
	}

	// 抢占提交资格并在同一次条件更新中落盘成绩：并发重复提交在
	// 这里被拒绝，抢占成功则成绩必然已持久化
	if err := s.Attempts.Transition(attempt.ID, model.AttemptInProgress, model.AttemptSubmitted, payload); err != nil {
		return nil, nil, err
	}
	attempt.Status = model.AttemptSubmitted

	if err := withStoreRetry(func() error {
		return s.Attempts.Transition(attempt.ID, model.AttemptSubmitted, model.AttemptScored, nil)
	}); err != nil {
		// 成绩已随抢占落盘，翻转留给后台扫描补完
		logger.Log.Warn("评分状态翻转失败，留待后台扫描",
			zap.String("attemptId", attempt.ID),
			zap.Error(err))
		s.applyResult(attempt, result, now, categoryJSON, strengthsJSON, weaknessesJSON)
		return attempt, result, nil
	}

	attempt.Status = model.AttemptScored
	s.applyResult(attempt, result, now, categoryJSON, strengthsJSON, weaknessesJSON)

	monitoring.AttemptsScored.WithLabelValues(attempt.QuizID, passedLabel(result.Passed)).Inc()

	if s.Recommender == nil || !s.Cfg.Recommendation.Enabled {
		completedAt := time.Now()
		if err := s.Attempts.Transition(attempt.ID, model.AttemptScored, model.AttemptCompleted,
			map[string]interface{}{"completed_at": completedAt}); err == nil {
			attempt.Status = model.AttemptCompleted
			attempt.CompletedAt = &completedAt
		}
		return attempt, result, nil
	}

	if err := s.Attempts.Transition(attempt.ID, model.AttemptScored, model.AttemptRecommendationPending, nil); err != nil {
		logger.Log.Warn("建议排队转换失败，留待后台扫描",
			zap.String("attemptId", attempt.ID),
			zap.Error(err))
		return attempt, result, nil
	}
	attempt.Status = model.AttemptRecommendationPending

	scheduled := *attempt
	s.Recommender.Schedule(&scheduled)
	return attempt, result, nil
}

// List 返回某用户在指定测评下的全部尝试，quizID 为空时返回全部
func (s *AttemptService) List(ctx context.Context, userID, quizID string) ([]model.QuizAttempt, error) {
	if quizID != "" {
		quizID = NormalizeQuizID(quizID)
	}
	return s.Attempts.ListByUserAndQuiz(userID, quizID)
}

// Get 校验归属后返回单个尝试，并做惰性过期
func (s *AttemptService) Get(ctx context.Context, attemptID, userID string) (*model.QuizAttempt, error) {
	attempt, content, err := s.loadOwned(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ExpireIfNeeded(attempt, content); err != nil {
		return nil, err
	}
	return attempt, nil
}

// ExpireIfNeeded 惰性过期：超过时限的活跃尝试在被读到时转入 expired
func (s *AttemptService) ExpireIfNeeded(attempt *model.QuizAttempt, content *model.QuizContent) (bool, error) {
	if content.Settings.TimeLimitSeconds <= 0 {
		return false, nil
	}
	if attempt.Status != model.AttemptCreated && attempt.Status != model.AttemptInProgress {
		return false, nil
	}
	if !attempt.ExpiredAt(content.Settings.TimeLimitSeconds, time.Now()) {
		return false, nil
	}
	if err := s.Attempts.Transition(attempt.ID, attempt.Status, model.AttemptExpired, nil); err != nil {
		// 状态已被并发改写，以最新行为准
		fresh, ferr := s.Attempts.FindByID(attempt.ID)
		if ferr != nil {
			return false, ferr
		}
		*attempt = *fresh
		return attempt.Status == model.AttemptExpired, nil
	}
	attempt.Status = model.AttemptExpired
	return true, nil
}

func (s *AttemptService) loadOwned(ctx context.Context, attemptID, userID string) (*model.QuizAttempt, *model.QuizContent, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt.UserID != userID {
		return nil, nil, util.ErrAttemptNotFound
	}
	content, err := s.Content.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, content, nil
}

// applyResult 把已落盘的评分结果回填到内存中的尝试
func (s *AttemptService) applyResult(attempt *model.QuizAttempt, result *model.ScoredResult, now time.Time, categoryJSON, strengthsJSON, weaknessesJSON []byte) {
	attempt.Score = &result.Overall
	attempt.Level = &result.Level
	attempt.Passed = &result.Passed
	attempt.TimeSpentSeconds = int(now.Sub(attempt.StartedAt).Seconds())
	attempt.CategoryScores = categoryJSON
	attempt.Strengths = strengthsJSON
	attempt.Weaknesses = weaknessesJSON
}

func passedLabel(passed bool) string {
	if passed {
		return "true"
	}
	return "false"
}
