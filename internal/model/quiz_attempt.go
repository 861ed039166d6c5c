package model

import (
	"encoding/json"
	"time"
)

type AttemptStatus string

const (
	AttemptCreated               AttemptStatus = "created"
	AttemptInProgress            AttemptStatus = "in_progress"
	AttemptSubmitted             AttemptStatus = "submitted"
	AttemptScored                AttemptStatus = "scored"
	AttemptRecommendationPending AttemptStatus = "recommendation_pending"
	AttemptRecommendationReady   AttemptStatus = "recommendation_ready"
	AttemptRecommendationFailed  AttemptStatus = "recommendation_failed"
	AttemptCompleted             AttemptStatus = "completed"
	AttemptExpired               AttemptStatus = "expired"
)

// 状态机允许的转换，提交与评分由条件更新保证只发生一次
var attemptTransitions = map[AttemptStatus][]AttemptStatus{
	AttemptCreated:               {AttemptInProgress, AttemptExpired},
	AttemptInProgress:            {AttemptSubmitted, AttemptExpired},
	AttemptSubmitted:             {AttemptScored},
	AttemptScored:                {AttemptRecommendationPending, AttemptCompleted},
	AttemptRecommendationPending: {AttemptRecommendationReady, AttemptRecommendationFailed},
	AttemptRecommendationReady:   {AttemptCompleted},
	AttemptRecommendationFailed:  {AttemptRecommendationPending, AttemptCompleted},
}

func CanTransition(from, to AttemptStatus) bool {
	for _, s := range attemptTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s AttemptStatus) Terminal() bool {
	return s == AttemptCompleted || s == AttemptExpired
}

// swagger:model QuizAttempt
type QuizAttempt struct {
	UUIDBase
	UserID           string          `gorm:"index;type:varchar(36);not null" json:"userId"`
	QuizID           string          `gorm:"index;size:255;not null" json:"quizId"`
	Status           AttemptStatus   `gorm:"index;size:50;default:'created'" json:"status"`
	Score            *float64        `json:"score"`
	Level            *string         `gorm:"size:50" json:"level"`
	Passed           *bool           `json:"passed"`
	StartedAt        time.Time       `json:"startedAt"`
	CompletedAt      *time.Time      `json:"completedAt,omitempty"`
	TimeSpentSeconds int             `json:"timeSpentSeconds"`
	CategoryScores   json.RawMessage `gorm:"type:json" json:"categoryScores,omitempty"`
	Strengths        json.RawMessage `gorm:"type:json" json:"strengths,omitempty"`
	Weaknesses       json.RawMessage `gorm:"type:json" json:"weaknesses,omitempty"`
	// 指向文档库中推荐文本的弱引用，仅在 recommendation_ready / completed 时非空
	ResultContentID *string `gorm:"size:255" json:"resultContentId,omitempty"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// ExpiredAt 判断未提交的尝试在 now 时刻是否已超时（timeLimitSeconds <= 0 表示不限时）
func (a *QuizAttempt) ExpiredAt(timeLimitSeconds int, now time.Time) bool {
	if timeLimitSeconds <= 0 {
		return false
	}
	if a.Status != AttemptCreated && a.Status != AttemptInProgress {
		return false
	}
	return now.Sub(a.StartedAt) > time.Duration(timeLimitSeconds)*time.Second
}
