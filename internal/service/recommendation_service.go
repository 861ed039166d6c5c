package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"sa_assessment_backend/internal/config"
	"sa_assessment_backend/internal/model"
	"sa_assessment_backend/internal/repository"
	"sa_assessment_backend/internal/util"
	"sa_assessment_backend/pkg/logger"
	"sa_assessment_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// RecommendationStore 推荐文档的持久化接口，生产实现为 MongoDB 集合
type RecommendationStore interface {
	FindByID(ctx context.Context, id string) (*model.RecommendationRecord, error)
	FindByAttemptAndDigest(ctx context.Context, attemptID, digest string) (*model.RecommendationRecord, error)
	Insert(ctx context.Context, rec *model.RecommendationRecord) error
}

// RecommendationService 编排推荐生成：构造提示词、调用外部模型、
// 按先写文档库再写指针的顺序提交，失败时有限重试后转入 failed
type RecommendationService struct {
	Attempts *repository.AttemptRepository
	Users    *repository.UserRepository
	Store    RecommendationStore
	Model    ModelClient
	Cfg      *config.Config

	workerDone chan struct{}
}

func NewRecommendationService(attempts *repository.AttemptRepository, users *repository.UserRepository, store RecommendationStore, modelClient ModelClient, cfg *config.Config) *RecommendationService {
	return &RecommendationService{
		Attempts: attempts,
		Users:    users,
		Store:    store,
		Model:    modelClient,
		Cfg:      cfg,
	}
}

// Schedule 在后台启动生成，最多内联等待 inline_wait，超时后生成继续、
// 调用方先行返回。提交接口靠它在快速路径上直接带回建议
func (s *RecommendationService) Schedule(attempt *model.QuizAttempt) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Generate(context.Background(), attempt)
	}()

	select {
	case <-done:
	case <-time.After(s.Cfg.Recommendation.InlineWait):
	}
}

// Generate 为处于 recommendation_pending 的尝试生成建议。
// 任何失败都终结于状态机（ready 或 failed），不向调用方传播
func (s *RecommendationService) Generate(ctx context.Context, attempt *model.QuizAttempt) {
	input, err := s.buildPromptInput(attempt)
	if err != nil {
		logger.Log.Error("构造提示词输入失败",
			zap.String("attemptId", attempt.ID),
			zap.Error(err))
		s.markFailed(attempt.ID)
		return
	}
	digest := PromptDigest(*input)

	// 幂等短路：同尝试同摘要已生成过则直接复用，不再调用外部模型
	if existing, err := s.Store.FindByAttemptAndDigest(ctx, attempt.ID, digest); err == nil {
		logger.Log.Info("命中既有建议，跳过生成",
			zap.String("attemptId", attempt.ID),
			zap.String("recommendationId", existing.ID))
		s.finalize(attempt.ID, existing.ID)
		monitoring.RecommendationOutcomes.WithLabelValues("short_circuit").Inc()
		return
	} else if !errors.Is(err, util.ErrResultNotFound) {
		logger.Log.Error("幂等检查失败", zap.String("attemptId", attempt.ID), zap.Error(err))
		s.markFailed(attempt.ID)
		return
	}

	system, user := BuildPrompt(*input)
	req := ModelRequest{
		System:          system,
		Prompt:          user,
		MaxTokens:       s.Cfg.AI.MaxTokens,
		ReasoningEffort: s.Cfg.AI.ReasoningEffort,
	}

	var resp *ModelResponse
	var lastErr error
	for i := 0; i < s.Cfg.Recommendation.MaxAttempts; i++ {
		if i > 0 {
			select {
			case <-time.After(s.backoff(i)):
			case <-ctx.Done():
				s.markFailed(attempt.ID)
				return
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.Cfg.Recommendation.RequestTimeout)
		start := time.Now()
		resp, lastErr = s.Model.Generate(callCtx, req)
		cancel()
		monitoring.ModelCallDuration.Observe(time.Since(start).Seconds())

		if lastErr == nil {
			break
		}
		if errors.Is(lastErr, util.ErrModelFatal) || errors.Is(lastErr, context.Canceled) {
			break
		}
		logger.Log.Warn("模型调用失败，准备重试",
			zap.String("attemptId", attempt.ID),
			zap.Int("attempt", i+1),
			zap.Error(lastErr))
	}

	if lastErr != nil {
		logger.Log.Error("建议生成失败",
			zap.String("attemptId", attempt.ID),
			zap.Error(lastErr))
		s.markFailed(attempt.ID)
		return
	}

	rec := &model.RecommendationRecord{
		ID:           model.GenerateUUID(),
		AttemptID:    attempt.ID,
		PromptDigest: digest,
		Text:         resp.Text,
		Model:        resp.Model,
		GeneratedAt:  time.Now(),
	}
	// 先落文档库，再推进关系库指针；反序会产生悬空引用
	if err := withStoreRetry(func() error { return s.Store.Insert(ctx, rec) }); err != nil {
		logger.Log.Error("建议文档写入失败",
			zap.String("attemptId", attempt.ID),
			zap.Error(err))
		s.markFailed(attempt.ID)
		return
	}

	s.finalize(attempt.ID, rec.ID)
	monitoring.RecommendationOutcomes.WithLabelValues("ready").Inc()
}

// Retry 手动重试：仅允许 failed 状态的本人尝试重新排队
func (s *RecommendationService) Retry(ctx context.Context, attemptID, userID string) (*model.QuizAttempt, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrAttemptNotFound
	}
	if err := s.Attempts.Transition(attempt.ID, model.AttemptRecommendationFailed, model.AttemptRecommendationPending, nil); err != nil {
		return nil, err
	}
	attempt.Status = model.AttemptRecommendationPending

	queued := *attempt
	go s.Generate(context.Background(), &queued)
	return attempt, nil
}

// StartWorker 后台扫描：重捡停滞在 submitted/scored/pending 的尝试
//（进程崩溃或落盘失败遗留），并把超过保留期的 failed 收敛到 completed
func (s *RecommendationService) StartWorker(ctx context.Context) {
	s.workerDone = make(chan struct{})
	go func() {
		defer close(s.workerDone)
		ticker := time.NewTicker(s.Cfg.Recommendation.RescanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.rescan(ctx)
			}
		}
	}()
}

// WaitWorker 等待后台扫描退出，用于优雅关停
func (s *RecommendationService) WaitWorker() {
	if s.workerDone != nil {
		<-s.workerDone
	}
}

func (s *RecommendationService) rescan(ctx context.Context) {
	// 成绩已落盘但评分翻转中断的行，补完翻转并续走推荐流程
	submittedStuck, err := s.Attempts.FindStuck(model.AttemptSubmitted, s.Cfg.Recommendation.PendingStuckThreshold, 20)
	if err != nil {
		logger.Log.Error("扫描停滞提交失败", zap.Error(err))
	} else {
		for i := range submittedStuck {
			s.recoverSubmitted(ctx, &submittedStuck[i])
			if ctx.Err() != nil {
				return
			}
		}
	}

	// 评分完成但排队转换中断的行重新排队
	scoredStuck, err := s.Attempts.FindStuck(model.AttemptScored, s.Cfg.Recommendation.PendingStuckThreshold, 20)
	if err != nil {
		logger.Log.Error("扫描停滞评分失败", zap.Error(err))
	} else {
		for i := range scoredStuck {
			s.advanceScored(ctx, &scoredStuck[i])
			if ctx.Err() != nil {
				return
			}
		}
	}

	stuck, err := s.Attempts.FindStuck(model.AttemptRecommendationPending, s.Cfg.Recommendation.PendingStuckThreshold, 20)
	if err != nil {
		logger.Log.Error("扫描停滞尝试失败", zap.Error(err))
	} else {
		for i := range stuck {
			logger.Log.Info("重捡停滞的待生成尝试", zap.String("attemptId", stuck[i].ID))
			s.Generate(ctx, &stuck[i])
			if ctx.Err() != nil {
				return
			}
		}
	}

	// 指针已写入但收尾中断的行直接补一次 completed
	readyStuck, err := s.Attempts.FindStuck(model.AttemptRecommendationReady, s.Cfg.Recommendation.PendingStuckThreshold, 50)
	if err != nil {
		logger.Log.Error("扫描待收尾尝试失败", zap.Error(err))
	} else {
		for i := range readyStuck {
			err := s.Attempts.Transition(readyStuck[i].ID, model.AttemptRecommendationReady, model.AttemptCompleted,
				map[string]interface{}{"completed_at": time.Now()})
			if err != nil && !errors.Is(err, util.ErrInvalidStateTransition) {
				logger.Log.Error("收敛待收尾尝试出错", zap.String("attemptId", readyStuck[i].ID), zap.Error(err))
			}
		}
	}

	// 失败保留期满后结束流程，结果保持可读但不再自动重试
	expiredFailed, err := s.Attempts.FindStuck(model.AttemptRecommendationFailed, s.Cfg.Recommendation.FailedGiveUpAfter, 50)
	if err != nil {
		logger.Log.Error("扫描过期失败尝试失败", zap.Error(err))
		return
	}
	for i := range expiredFailed {
		err := s.Attempts.Transition(expiredFailed[i].ID, model.AttemptRecommendationFailed, model.AttemptCompleted,
			map[string]interface{}{"completed_at": time.Now()})
		if err != nil && !errors.Is(err, util.ErrInvalidStateTransition) {
			logger.Log.Error("收敛失败尝试出错", zap.String("attemptId", expiredFailed[i].ID), zap.Error(err))
		}
	}
}

// recoverSubmitted 把停滞在 submitted 的尝试推进到 scored 并重新排队
// 推荐生成。提交抢占与成绩落盘是同一次条件更新，这里的行必然带成绩
func (s *RecommendationService) recoverSubmitted(ctx context.Context, attempt *model.QuizAttempt) {
	if attempt.Score == nil {
		logger.Log.Error("停滞提交缺少成绩，跳过", zap.String("attemptId", attempt.ID))
		return
	}
	logger.Log.Info("重捡停滞的已提交尝试", zap.String("attemptId", attempt.ID))

	if err := s.Attempts.Transition(attempt.ID, model.AttemptSubmitted, model.AttemptScored, nil); err != nil {
		if !errors.Is(err, util.ErrInvalidStateTransition) {
			logger.Log.Error("补完评分翻转失败", zap.String("attemptId", attempt.ID), zap.Error(err))
		}
		return
	}
	s.advanceScored(ctx, attempt)
}

// advanceScored 把 scored 状态的尝试排队生成推荐，推荐禁用时直接收尾
func (s *RecommendationService) advanceScored(ctx context.Context, attempt *model.QuizAttempt) {
	if !s.Cfg.Recommendation.Enabled {
		err := s.Attempts.Transition(attempt.ID, model.AttemptScored, model.AttemptCompleted,
			map[string]interface{}{"completed_at": time.Now()})
		if err != nil && !errors.Is(err, util.ErrInvalidStateTransition) {
			logger.Log.Error("收敛已评分尝试出错", zap.String("attemptId", attempt.ID), zap.Error(err))
		}
		return
	}

	if err := s.Attempts.Transition(attempt.ID, model.AttemptScored, model.AttemptRecommendationPending, nil); err != nil {
		if !errors.Is(err, util.ErrInvalidStateTransition) {
			logger.Log.Error("建议排队转换失败", zap.String("attemptId", attempt.ID), zap.Error(err))
		}
		return
	}
	attempt.Status = model.AttemptRecommendationPending
	s.Generate(ctx, attempt)
}

// buildPromptInput 只用尝试行中的持久字段，保证重启后重试得到相同摘要
func (s *RecommendationService) buildPromptInput(attempt *model.QuizAttempt) (*PromptInput, error) {
	if attempt.Score == nil || attempt.Level == nil {
		return nil, errors.New("attempt has no scored result")
	}

	var categories []model.CategoryScore
	if len(attempt.CategoryScores) > 0 {
		if err := json.Unmarshal(attempt.CategoryScores, &categories); err != nil {
			return nil, err
		}
	}
	scores := make(map[string]float64, len(categories))
	for _, c := range categories {
		name := c.Name
		if name == "" {
			name = c.Category
		}
		scores[name] = c.Score
	}

	var strengths, weaknesses []string
	if len(attempt.Strengths) > 0 {
		if err := json.Unmarshal(attempt.Strengths, &strengths); err != nil {
			return nil, err
		}
	}
	if len(attempt.Weaknesses) > 0 {
		if err := json.Unmarshal(attempt.Weaknesses, &weaknesses); err != nil {
			return nil, err
		}
	}

	input := &PromptInput{
		Level:          *attempt.Level,
		Overall:        *attempt.Score,
		CategoryScores: scores,
		Strengths:      strengths,
		Weaknesses:     weaknesses,
	}

	user, err := s.Users.FindByID(attempt.UserID)
	if err != nil {
		return nil, err
	}
	input.UserName = user.Name
	input.Experience = user.Experience
	return input, nil
}

// finalize 推进 pending→ready 并写入文档指针，随后收尾到 completed。
// 指针已被并发写入时视为已完成，不报错
func (s *RecommendationService) finalize(attemptID, recommendationID string) {
	err := withStoreRetry(func() error {
		return s.Attempts.Transition(attemptID, model.AttemptRecommendationPending, model.AttemptRecommendationReady,
			map[string]interface{}{"result_content_id": recommendationID})
	})
	if err != nil {
		if errors.Is(err, util.ErrInvalidStateTransition) {
			logger.Log.Info("尝试已被并发推进", zap.String("attemptId", attemptID))
			return
		}
		logger.Log.Error("写入建议指针失败",
			zap.String("attemptId", attemptID),
			zap.Error(err))
		return
	}

	err = withStoreRetry(func() error {
		return s.Attempts.Transition(attemptID, model.AttemptRecommendationReady, model.AttemptCompleted,
			map[string]interface{}{"completed_at": time.Now()})
	})
	if err != nil && !errors.Is(err, util.ErrInvalidStateTransition) {
		// 指针已落盘，收尾失败由后台扫描兜底
		logger.Log.Warn("完成态转换失败",
			zap.String("attemptId", attemptID),
			zap.Error(err))
	}
}

func (s *RecommendationService) markFailed(attemptID string) {
	err := withStoreRetry(func() error {
		return s.Attempts.Transition(attemptID, model.AttemptRecommendationPending, model.AttemptRecommendationFailed, nil)
	})
	if err != nil && !errors.Is(err, util.ErrInvalidStateTransition) {
		logger.Log.Error("标记失败状态出错",
			zap.String("attemptId", attemptID),
			zap.Error(err))
	}
	monitoring.RecommendationOutcomes.WithLabelValues("failed").Inc()
}

// backoff 指数退避加 ±20% 抖动，i 从 1 起计
func (s *RecommendationService) backoff(i int) time.Duration {
	d := s.Cfg.Recommendation.InitialBackoff
	for j := 1; j < i; j++ {
		d *= 2
		if d >= s.Cfg.Recommendation.MaxBackoff {
			d = s.Cfg.Recommendation.MaxBackoff
			break
		}
	}
	jitter := 1 + (rand.Float64()*0.4 - 0.2)
	return time.Duration(float64(d) * jitter)
}
