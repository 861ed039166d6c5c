package model

import "time"

// RecommendationRecord 文档库中的推荐文本，每次成功生成只写入一次；
// PromptDigest 相同的重试直接复用已有记录
type RecommendationRecord struct {
	ID           string    `bson:"_id" json:"id"`
	AttemptID    string    `bson:"attempt_id" json:"attemptId"`
	PromptDigest string    `bson:"prompt_digest" json:"promptDigest"`
	Text         string    `bson:"text" json:"text"`
	Model        string    `bson:"model" json:"model"`
	GeneratedAt  time.Time `bson:"generated_at" json:"generatedAt"`
}
