package model

// SubmittedAnswer 一道题的作答。single-choice / scale 用 Value，multi-choice 用 Values
type SubmittedAnswer struct {
	QuestionID string   `json:"questionId" binding:"required"`
	Value      string   `json:"value,omitempty"`
	Values     []string `json:"values,omitempty"`
}

type CategoryScore struct {
	Category string  `json:"category"`
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Score    float64 `json:"score"` // 0-100
}

// QuestionDetail 单题得分明细，随提交响应返回给作答者
type QuestionDetail struct {
	QuestionID    string  `json:"questionId"`
	Category      string  `json:"category"`
	QuestionText  string  `json:"questionText"`
	UserAnswer    string  `json:"userAnswer"`
	CorrectAnswer string  `json:"correctAnswer"`
	Credit        float64 `json:"credit"` // 0-1
	Weight        float64 `json:"weight"`
}

// ScoredResult 评分引擎的输出，纯值类型
type ScoredResult struct {
	Overall         float64          `json:"overallScore"`
	Level           string           `json:"level"`
	Passed          bool             `json:"passed"`
	CategoryScores  []CategoryScore  `json:"categoryScores"`
	Strengths       []string         `json:"strengths"`
	Weaknesses      []string         `json:"weaknesses"`
	QuestionDetails []QuestionDetail `json:"questionDetails"`
}

func (r *ScoredResult) CategoryScoreMap() map[string]float64 {
	m := make(map[string]float64, len(r.CategoryScores))
	for _, cs := range r.CategoryScores {
		m[cs.Category] = cs.Score
	}
	return m
}
