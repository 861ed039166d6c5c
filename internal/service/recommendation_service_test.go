package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"sa_assessment_backend/internal/model"
	"sa_assessment_backend/internal/repository"
	"sa_assessment_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newRecommendationService(t *testing.T, db *gorm.DB, store RecommendationStore, modelClient ModelClient) (*RecommendationService, *repository.AttemptRepository, *repository.UserRepository) {
	t.Helper()
	attempts := repository.NewAttemptRepository(db)
	users := repository.NewUserRepository(db)
	svc := NewRecommendationService(attempts, users, store, modelClient, testConfig())
	return svc, attempts, users
}

func TestGenerate_Success(t *testing.T) {
	db := newTestDB(t)
	store := &memStore{}
	client := &fakeModel{responses: []fakeModelStep{
		{resp: &ModelResponse{Text: "多练建模。", Model: "gpt-test"}},
	}}
	svc, attempts, users := newRecommendationService(t, db, store, client)
	attempt := newScoredAttempt(t, attempts, users)

	svc.Generate(context.Background(), attempt)

	assert.Equal(t, 1, client.calls)
	require.Len(t, store.records, 1)
	assert.Equal(t, attempt.ID, store.records[0].AttemptID)
	assert.Equal(t, "多练建模。", store.records[0].Text)
	assert.NotEmpty(t, store.records[0].PromptDigest)

	fresh, err := attempts.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, fresh.Status)
	require.NotNil(t, fresh.ResultContentID)
	assert.Equal(t, store.records[0].ID, *fresh.ResultContentID)
	assert.NotNil(t, fresh.CompletedAt)
}

func TestGenerate_TransientThenSuccess(t *testing.T) {
	db := newTestDB(t)
	store := &memStore{}
	client := &fakeModel{responses: []fakeModelStep{
		{err: fmt.Errorf("%w: 503", util.ErrModelTransient)},
		{err: fmt.Errorf("%w: 429", util.ErrModelTransient)},
		{resp: &ModelResponse{Text: "继续努力。", Model: "gpt-test"}},
	}}
	svc, attempts, users := newRecommendationService(t, db, store, client)
	attempt := newScoredAttempt(t, attempts, users)

	svc.Generate(context.Background(), attempt)

	assert.Equal(t, 3, client.calls)
	require.Len(t, store.records, 1)

	fresh, err := attempts.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, fresh.Status)
}

func TestGenerate_ExhaustsRetriesThenFails(t *testing.T) {
	db := newTestDB(t)
	store := &memStore{}
	client := &fakeModel{responses: []fakeModelStep{
		{err: fmt.Errorf("%w: down", util.ErrModelTransient)},
	}}
	svc, attempts, users := newRecommendationService(t, db, store, client)
	attempt := newScoredAttempt(t, attempts, users)

	svc.Generate(context.Background(), attempt)

	// 重试次数上限之内的调用全部用尽，之后不再调用
	assert.Equal(t, svc.Cfg.Recommendation.MaxAttempts, client.calls)
	assert.Empty(t, store.records)

	fresh, err := attempts.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptRecommendationFailed, fresh.Status)
	assert.Nil(t, fresh.ResultContentID)
}

func TestGenerate_FatalErrorSkipsRetries(t *testing.T) {
	db := newTestDB(t)
	store := &memStore{}
	client := &fakeModel{responses: []fakeModelStep{
		{err: fmt.Errorf("%w: 401", util.ErrModelFatal)},
	}}
	svc, attempts, users := newRecommendationService(t, db, store, client)
	attempt := newScoredAttempt(t, attempts, users)

	svc.Generate(context.Background(), attempt)

	assert.Equal(t, 1, client.calls)

	fresh, err := attempts.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptRecommendationFailed, fresh.Status)
}

func TestGenerate_DigestShortCircuit(t *testing.T) {
	db := newTestDB(t)
	store := &memStore{}
	client := &fakeModel{responses: []fakeModelStep{
		{resp: &ModelResponse{Text: "第一次。", Model: "gpt-test"}},
	}}
	svc, attempts, users := newRecommendationService(t, db, store, client)
	attempt := newScoredAttempt(t, attempts, users)

	svc.Generate(context.Background(), attempt)
	require.Len(t, store.records, 1)
	require.Equal(t, 1, client.calls)

	// 人为把状态拨回 pending，模拟崩溃后的重捡
	require.NoError(t, db.Model(&model.QuizAttempt{}).
		Where("id = ?", attempt.ID).
		Updates(map[string]interface{}{"status": model.AttemptRecommendationPending, "result_content_id": nil}).Error)

	svc.Generate(context.Background(), attempt)

	// 摘要命中，不再调用外部模型，也不会写入第二份文档
	assert.Equal(t, 1, client.calls)
	assert.Len(t, store.records, 1)

	fresh, err := attempts.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, fresh.Status)
	require.NotNil(t, fresh.ResultContentID)
	assert.Equal(t, store.records[0].ID, *fresh.ResultContentID)
}

func TestGenerate_DocWriteFailureMarksFailed(t *testing.T) {
	db := newTestDB(t)
	store := &memStore{insErr: fmt.Errorf("mongo down")}
	client := &fakeModel{responses: []fakeModelStep{
		{resp: &ModelResponse{Text: "内容。", Model: "gpt-test"}},
	}}
	svc, attempts, users := newRecommendationService(t, db, store, client)
	attempt := newScoredAttempt(t, attempts, users)

	svc.Generate(context.Background(), attempt)

	fresh, err := attempts.FindByID(attempt.ID)
	require.NoError(t, err)
	// 文档写入失败时不得留下悬空指针
	assert.Equal(t, model.AttemptRecommendationFailed, fresh.Status)
	assert.Nil(t, fresh.ResultContentID)
}

func TestRetry_RequeuesFailedAttempt(t *testing.T) {
	db := newTestDB(t)
	store := &memStore{}
	client := &fakeModel{responses: []fakeModelStep{
		{resp: &ModelResponse{Text: "重试成功。", Model: "gpt-test"}},
	}}
	svc, attempts, users := newRecommendationService(t, db, store, client)
	attempt := newScoredAttempt(t, attempts, users)

	require.NoError(t, attempts.Transition(attempt.ID, model.AttemptRecommendationPending, model.AttemptRecommendationFailed, nil))

	requeued, err := svc.Retry(context.Background(), attempt.ID, attempt.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptRecommendationPending, requeued.Status)
}

func TestRetry_RejectsNonFailedAndForeign(t *testing.T) {
	db := newTestDB(t)
	svc, attempts, users := newRecommendationService(t, db, &memStore{}, &fakeModel{responses: []fakeModelStep{{resp: &ModelResponse{Text: "x"}}}})
	attempt := newScoredAttempt(t, attempts, users)

	_, err := svc.Retry(context.Background(), attempt.ID, attempt.UserID)
	assert.ErrorIs(t, err, util.ErrInvalidStateTransition)

	_, err = svc.Retry(context.Background(), attempt.ID, "someone-else")
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)
}

func TestRescan_RecoversStuckSubmitted(t *testing.T) {
	db := newTestDB(t)
	store := &memStore{}
	client := &fakeModel{responses: []fakeModelStep{
		{resp: &ModelResponse{Text: "补完流程。", Model: "gpt-test"}},
	}}
	svc, attempts, users := newRecommendationService(t, db, store, client)
	attempt := newScoredAttempt(t, attempts, users)

	// 模拟评分翻转中断：成绩已落盘但状态停在 submitted
	stale := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&model.QuizAttempt{}).
		Where("id = ?", attempt.ID).
		Updates(map[string]interface{}{"status": model.AttemptSubmitted, "updated_at": stale}).Error)

	svc.rescan(context.Background())

	assert.Equal(t, 1, client.calls)
	require.Len(t, store.records, 1)

	fresh, err := attempts.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, fresh.Status)
	require.NotNil(t, fresh.ResultContentID)
	assert.Equal(t, store.records[0].ID, *fresh.ResultContentID)
}

func TestRescan_CompletesStuckSubmittedWhenDisabled(t *testing.T) {
	db := newTestDB(t)
	store := &memStore{}
	client := &fakeModel{responses: []fakeModelStep{{resp: &ModelResponse{Text: "x"}}}}
	svc, attempts, users := newRecommendationService(t, db, store, client)
	svc.Cfg.Recommendation.Enabled = false
	attempt := newScoredAttempt(t, attempts, users)

	stale := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&model.QuizAttempt{}).
		Where("id = ?", attempt.ID).
		Updates(map[string]interface{}{"status": model.AttemptSubmitted, "updated_at": stale}).Error)

	svc.rescan(context.Background())

	// 推荐禁用时不调用模型，直接收尾
	assert.Equal(t, 0, client.calls)
	assert.Empty(t, store.records)

	fresh, err := attempts.FindByID(attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptCompleted, fresh.Status)
	assert.NotNil(t, fresh.CompletedAt)
}

func TestBackoff_GrowsWithinBounds(t *testing.T) {
	svc := &RecommendationService{Cfg: testConfig()}
	for i := 1; i < 6; i++ {
		d := svc.backoff(i)
		assert.Greater(t, d.Nanoseconds(), int64(0))
		// MaxBackoff 加 20% 抖动的上界
		assert.LessOrEqual(t, float64(d), float64(svc.Cfg.Recommendation.MaxBackoff)*1.2+1)
	}
}
