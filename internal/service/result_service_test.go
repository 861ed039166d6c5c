package service

import (
	"context"
	"testing"
	"time"

	"sa_assessment_backend/internal/model"
	"sa_assessment_backend/internal/repository"
	"sa_assessment_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newResultService(t *testing.T, db *gorm.DB, store RecommendationStore) (*ResultService, *repository.AttemptRepository, *repository.UserRepository) {
	t.Helper()
	content, questions := scoringFixture()
	attempts := repository.NewAttemptRepository(db)
	users := repository.NewUserRepository(db)
	cfg := testConfig()

	attemptSvc := NewAttemptService(attempts, &fakeContent{content: content, questions: questions}, NewScoringService(cfg.Scoring), nil, cfg)
	recommender := NewRecommendationService(attempts, users, store, &fakeModel{responses: []fakeModelStep{{resp: &ModelResponse{Text: "x"}}}}, cfg)
	return NewResultService(attemptSvc, store, recommender), attempts, users
}

func TestGetResult_PendingRecommendation(t *testing.T) {
	db := newTestDB(t)
	svc, attempts, users := newResultService(t, db, &memStore{})
	attempt := newScoredAttempt(t, attempts, users)

	view, err := svc.GetResult(context.Background(), attempt.ID, attempt.UserID)
	require.NoError(t, err)

	require.NotNil(t, view.Score)
	assert.InDelta(t, 75.0, *view.Score, 0.001)
	assert.Equal(t, "Junior", view.Level)
	assert.True(t, view.Passed)
	require.Len(t, view.CategoryScores, 2)
	assert.Equal(t, []string{"modeling"}, view.Weaknesses)
	assert.Equal(t, RecommendationStatusPending, view.Recommendation.Status)
	assert.Empty(t, view.Recommendation.Text)
}

func TestGetResult_ReadyRecommendation(t *testing.T) {
	db := newTestDB(t)
	store := &memStore{}
	svc, attempts, users := newResultService(t, db, store)
	attempt := newScoredAttempt(t, attempts, users)

	rec := &model.RecommendationRecord{
		ID:           model.GenerateUUID(),
		AttemptID:    attempt.ID,
		PromptDigest: "digest",
		Text:         "建模需要补课。",
		Model:        "gpt-test",
		GeneratedAt:  time.Now(),
	}
	require.NoError(t, store.Insert(context.Background(), rec))
	require.NoError(t, attempts.Transition(attempt.ID, model.AttemptRecommendationPending, model.AttemptRecommendationReady,
		map[string]interface{}{"result_content_id": rec.ID}))

	view, err := svc.GetResult(context.Background(), attempt.ID, attempt.UserID)
	require.NoError(t, err)
	assert.Equal(t, RecommendationStatusReady, view.Recommendation.Status)
	assert.Equal(t, "建模需要补课。", view.Recommendation.Text)
	assert.Equal(t, "gpt-test", view.Recommendation.Model)
	require.NotNil(t, view.Recommendation.GeneratedAt)
}

func TestGetResult_FailedRecommendationUnavailable(t *testing.T) {
	db := newTestDB(t)
	svc, attempts, users := newResultService(t, db, &memStore{})
	attempt := newScoredAttempt(t, attempts, users)

	require.NoError(t, attempts.Transition(attempt.ID, model.AttemptRecommendationPending, model.AttemptRecommendationFailed, nil))

	view, err := svc.GetResult(context.Background(), attempt.ID, attempt.UserID)
	require.NoError(t, err)
	// 数值结果完整可读，只有推荐降级
	require.NotNil(t, view.Score)
	assert.InDelta(t, 75.0, *view.Score, 0.001)
	assert.Equal(t, RecommendationStatusUnavailable, view.Recommendation.Status)
}

func TestGetResult_DanglingPointerDegrades(t *testing.T) {
	db := newTestDB(t)
	svc, attempts, users := newResultService(t, db, &memStore{})
	attempt := newScoredAttempt(t, attempts, users)

	require.NoError(t, attempts.Transition(attempt.ID, model.AttemptRecommendationPending, model.AttemptRecommendationReady,
		map[string]interface{}{"result_content_id": "missing-doc"}))

	view, err := svc.GetResult(context.Background(), attempt.ID, attempt.UserID)
	require.NoError(t, err)
	assert.Equal(t, RecommendationStatusUnavailable, view.Recommendation.Status)
}

func TestGetResult_NoResultBeforeScoring(t *testing.T) {
	db := newTestDB(t)
	svc, attempts, users := newResultService(t, db, &memStore{})

	user := &model.User{Name: "韩梅梅", Email: "hmm@test.local", Password: "x"}
	require.NoError(t, users.Create(user))
	attempt := &model.QuizAttempt{UserID: user.ID, QuizID: "quiz:sa-basic", Status: model.AttemptInProgress, StartedAt: time.Now()}
	require.NoError(t, attempts.Create(attempt))

	_, err := svc.GetResult(context.Background(), attempt.ID, user.ID)
	assert.ErrorIs(t, err, util.ErrResultNotFound)
}

func TestGetResult_ExpiredAttemptReturnsEmptyView(t *testing.T) {
	db := newTestDB(t)
	svc, attempts, _ := newResultService(t, db, &memStore{})
	svc.Attempts.Content.(*fakeContent).content.Settings.TimeLimitSeconds = 60

	created, err := svc.Attempts.Start(context.Background(), "user-1", "sa-basic")
	require.NoError(t, err)
	_, _, _, err = svc.Attempts.Begin(context.Background(), created.ID, "user-1")
	require.NoError(t, err)

	// 把开始时间拨回到时限之前，读取时触发惰性过期
	stale := time.Now().Add(-2 * time.Minute)
	require.NoError(t, attempts.DB.Model(&model.QuizAttempt{}).
		Where("id = ?", created.ID).
		Update("started_at", stale).Error)

	view, err := svc.GetResult(context.Background(), created.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.AttemptExpired, view.Status)
	assert.Nil(t, view.Score)
	assert.Empty(t, view.Level)
	assert.Equal(t, RecommendationStatusNone, view.Recommendation.Status)
}

func TestGetResult_OwnershipEnforced(t *testing.T) {
	db := newTestDB(t)
	svc, attempts, users := newResultService(t, db, &memStore{})
	attempt := newScoredAttempt(t, attempts, users)

	_, err := svc.GetResult(context.Background(), attempt.ID, "intruder")
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)
}
