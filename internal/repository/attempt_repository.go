package repository

import (
	"sa_assessment_backend/internal/model"
	"sa_assessment_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(attempt *model.QuizAttempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) FindByID(id string) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	if err := r.DB.First(&a, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) CountByUserAndQuiz(userID, quizID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Count(&count).Error
	return count, err
}

// ListByUserAndQuiz 列出用户的尝试，quizID 为空时不按测评过滤
func (r *AttemptRepository) ListByUserAndQuiz(userID, quizID string) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	query := r.DB.Where("user_id = ?", userID)
	if quizID != "" {
		query = query.Where("quiz_id = ?", quizID)
	}
	err := query.Order("started_at DESC").Find(&attempts).Error
	return attempts, err
}

// Transition 条件状态更新：仅当行仍处于 from 状态时提交 updates。
// 这是每个尝试的互斥保护，同一行并发提交最多只有一个会生效；
// 行不在 from 状态时返回 ErrInvalidStateTransition。
func (r *AttemptRepository) Transition(id string, from, to model.AttemptStatus, updates map[string]interface{}) error {
	if !model.CanTransition(from, to) {
		return util.ErrInvalidStateTransition
	}

	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to

	res := r.DB.Model(&model.QuizAttempt{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrInvalidStateTransition
	}
	return nil
}

// FindStuck 返回在给定状态停留超过 age 的尝试，供后台扫描重试
func (r *AttemptRepository) FindStuck(status model.AttemptStatus, age time.Duration, limit int) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	cutoff := time.Now().Add(-age)
	err := r.DB.Where("status = ? AND updated_at < ?", status, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}
