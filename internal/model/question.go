package model

type QuestionType string

const (
	SingleChoice QuestionType = "single-choice"
	MultiChoice  QuestionType = "multi-choice"
	Scale        QuestionType = "scale"
)

type Option struct {
	Value string `bson:"value" json:"value"`
	Text  string `bson:"text" json:"text"`
}

// AnswerKey 评分规范，按题型使用不同字段：
// single-choice 用 Correct，multi-choice 用 CorrectSet，scale 用 Credit（选项值 → 分值）
type AnswerKey struct {
	Correct    string             `bson:"correct,omitempty" json:"correct,omitempty"`
	CorrectSet []string           `bson:"correct_set,omitempty" json:"correctSet,omitempty"`
	Credit     map[string]float64 `bson:"credit,omitempty" json:"credit,omitempty"`
}

// Question 文档库中的题目，创建后不可变。
// 对外接口一律通过 View() 输出，避免答案键泄露
type Question struct {
	ID       string       `bson:"_id" json:"id"`
	Category string       `bson:"category" json:"category"`
	Type     QuestionType `bson:"type" json:"type"`
	Text     string       `bson:"text" json:"text"`
	Options  []Option     `bson:"options" json:"options"`
	Weight   float64      `bson:"weight" json:"weight"`
	Key      AnswerKey    `bson:"answer_key" json:"answerKey,omitempty"`
}

// QuestionView 不带答案键的对外视图
type QuestionView struct {
	ID       string       `json:"id"`
	Category string       `json:"category"`
	Type     QuestionType `json:"type"`
	Text     string       `json:"text"`
	Options  []Option     `json:"options"`
	Weight   float64      `json:"weight"`
}

func (q *Question) View() QuestionView {
	return QuestionView{
		ID:       q.ID,
		Category: q.Category,
		Type:     q.Type,
		Text:     q.Text,
		Options:  q.Options,
		Weight:   q.Weight,
	}
}

// OptionText 返回选项值对应的文案，找不到时原样返回
func (q *Question) OptionText(value string) string {
	for _, opt := range q.Options {
		if opt.Value == value {
			return opt.Text
		}
	}
	return value
}

// MaxCredit scale 题的满分分值，其余题型为 1
func (q *Question) MaxCredit() float64 {
	if q.Type != Scale {
		return 1
	}
	max := 0.0
	for _, pts := range q.Key.Credit {
		if pts > max {
			max = pts
		}
	}
	return max
}
