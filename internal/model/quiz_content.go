package model

import "time"

// QuizContent 文档库中的测评配置，发布后不可变；修订测评即发布新文档
type QuizContent struct {
	ID          string                    `bson:"_id" json:"id"`
	Title       string                    `bson:"title" json:"title"`
	Description string                    `bson:"description" json:"description"`
	Slug        string                    `bson:"slug" json:"slug"`
	Categories  map[string]CategoryConfig `bson:"categories" json:"categories"`
	// 按 min_score 升序排列，分数落在同一阈值时取更高一级
	Levels      []LevelThreshold `bson:"levels" json:"levels"`
	QuestionIDs []string         `bson:"question_ids" json:"questionIds"`
	Settings    QuizSettings     `bson:"settings" json:"settings"`
	PublishedAt time.Time        `bson:"published_at" json:"publishedAt"`
}

type CategoryConfig struct {
	Name   string  `bson:"name" json:"name"`
	Weight float64 `bson:"weight" json:"weight"`
	// 声明顺序，用于并列时的确定性排序
	Order int `bson:"order" json:"order"`
}

type LevelThreshold struct {
	MinScore float64 `bson:"min_score" json:"minScore"`
	Label    string  `bson:"label" json:"label"`
}

type QuizSettings struct {
	PassThreshold    float64 `bson:"pass_threshold" json:"passThreshold"`
	TimeLimitSeconds int     `bson:"time_limit_seconds" json:"timeLimitSeconds"`
	MaxAttempts      int     `bson:"max_attempts" json:"maxAttempts"`
}
