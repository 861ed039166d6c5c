package service

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"sa_assessment_backend/internal/config"
	"sa_assessment_backend/internal/model"
	"sa_assessment_backend/internal/repository"
	"sa_assessment_backend/internal/util"
	"sa_assessment_backend/pkg/logger"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.QuizAttempt{}))

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Recommendation: config.RecommendationConfig{
			Enabled:               true,
			MaxAttempts:           3,
			InitialBackoff:        time.Millisecond,
			MaxBackoff:            5 * time.Millisecond,
			RequestTimeout:        time.Second,
			InlineWait:            50 * time.Millisecond,
			RescanInterval:        time.Minute,
			FailedGiveUpAfter:     24 * time.Hour,
			PendingStuckThreshold: 5 * time.Minute,
		},
		Scoring: config.ScoringConfig{TopN: 1, UnansweredPolicy: "zero"},
		AI:      config.AIConfig{MaxTokens: 1000, ReasoningEffort: "low"},
	}
}

// fakeContent 以固定测评内容实现 ContentProvider
type fakeContent struct {
	content   *model.QuizContent
	questions []model.Question
}

func (f *fakeContent) GetQuiz(ctx context.Context, quizID string) (*model.QuizContent, error) {
	return f.content, nil
}

func (f *fakeContent) GetQuestions(ctx context.Context, content *model.QuizContent) ([]model.Question, error) {
	return f.questions, nil
}

// fakeScheduler 记录被排队的尝试
type fakeScheduler struct {
	scheduled []*model.QuizAttempt
}

func (f *fakeScheduler) Schedule(attempt *model.QuizAttempt) {
	f.scheduled = append(f.scheduled, attempt)
}

// fakeModel 按预置脚本依次返回响应或错误
type fakeModel struct {
	calls     int
	responses []fakeModelStep
}

type fakeModelStep struct {
	resp *ModelResponse
	err  error
}

func (f *fakeModel) Generate(ctx context.Context, req ModelRequest) (*ModelResponse, error) {
	step := f.responses[len(f.responses)-1]
	if f.calls < len(f.responses) {
		step = f.responses[f.calls]
	}
	f.calls++
	if step.err != nil {
		return nil, step.err
	}
	return step.resp, nil
}

// memStore 内存版 RecommendationStore
type memStore struct {
	records []*model.RecommendationRecord
	insErr  error
}

func (m *memStore) FindByID(ctx context.Context, id string) (*model.RecommendationRecord, error) {
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, util.ErrResultNotFound
}

func (m *memStore) FindByAttemptAndDigest(ctx context.Context, attemptID, digest string) (*model.RecommendationRecord, error) {
	for _, r := range m.records {
		if r.AttemptID == attemptID && r.PromptDigest == digest {
			return r, nil
		}
	}
	return nil, util.ErrResultNotFound
}

func (m *memStore) Insert(ctx context.Context, rec *model.RecommendationRecord) error {
	if m.insErr != nil {
		return m.insErr
	}
	m.records = append(m.records, rec)
	return nil
}

func newScoredAttempt(t *testing.T, repo *repository.AttemptRepository, users *repository.UserRepository) *model.QuizAttempt {
	t.Helper()

	user := &model.User{Name: "李雷", Email: fmt.Sprintf("%s@test.local", t.Name()), Password: "x", Experience: "3 年"}
	require.NoError(t, users.Create(user))

	score := 75.0
	level := "Junior"
	passed := true
	attempt := &model.QuizAttempt{
		UserID:         user.ID,
		QuizID:         "quiz:sa-basic",
		Status:         model.AttemptRecommendationPending,
		StartedAt:      time.Now(),
		Score:          &score,
		Level:          &level,
		Passed:         &passed,
		CategoryScores: []byte(`[{"category":"requirements","name":"需求分析","weight":2,"score":100},{"category":"modeling","name":"建模","weight":1,"score":25}]`),
		Strengths:      []byte(`["requirements"]`),
		Weaknesses:     []byte(`["modeling"]`),
	}
	require.NoError(t, repo.Create(attempt))
	return attempt
}
