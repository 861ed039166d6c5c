package service

import (
	"testing"

	"sa_assessment_backend/internal/config"
	"sa_assessment_backend/internal/model"
	"sa_assessment_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoringFixture() (*model.QuizContent, []model.Question) {
	content := &model.QuizContent{
		ID:    "quiz:sa-basic",
		Title: "系统分析基础测评",
		Categories: map[string]model.CategoryConfig{
			"requirements": {Name: "需求分析", Weight: 2, Order: 1},
			"modeling":     {Name: "建模", Weight: 1, Order: 2},
		},
		Levels: []model.LevelThreshold{
			{MinScore: 0, Label: "Novice"},
			{MinScore: 50, Label: "Junior"},
			{MinScore: 80, Label: "Mid"},
			{MinScore: 95, Label: "Senior"},
		},
		QuestionIDs: []string{"q1", "q2", "q3", "q4"},
		Settings:    model.QuizSettings{PassThreshold: 70},
	}

	questions := []model.Question{
		{
			ID: "q1", Category: "requirements", Type: model.SingleChoice, Weight: 1,
			Text:    "需求获取的首选方式是？",
			Options: []model.Option{{Value: "a", Text: "访谈"}, {Value: "b", Text: "猜测"}},
			Key:     model.AnswerKey{Correct: "a"},
		},
		{
			ID: "q2", Category: "requirements", Type: model.Scale, Weight: 1,
			Text:    "你会与干系人确认需求变更吗？",
			Options: []model.Option{{Value: "never", Text: "从不"}, {Value: "sometimes", Text: "偶尔"}, {Value: "always", Text: "总是"}},
			Key:     model.AnswerKey{Credit: map[string]float64{"never": 0, "sometimes": 4, "always": 5}},
		},
		{
			ID: "q3", Category: "modeling", Type: model.MultiChoice, Weight: 1,
			Text:    "以下哪些属于结构化建模工具？",
			Options: []model.Option{{Value: "uml", Text: "UML"}, {Value: "er", Text: "ER 图"}, {Value: "gantt", Text: "甘特图"}},
			Key:     model.AnswerKey{CorrectSet: []string{"uml", "er"}},
		},
		{
			ID: "q4", Category: "modeling", Type: model.SingleChoice, Weight: 1,
			Text:    "描述数据在系统中的流动应使用？",
			Options: []model.Option{{Value: "x", Text: "数据流图"}, {Value: "y", Text: "鱼骨图"}},
			Key:     model.AnswerKey{Correct: "x"},
		},
	}
	return content, questions
}

func TestScore_WeightedOverallAndLevel(t *testing.T) {
	content, questions := scoringFixture()
	svc := NewScoringService(config.ScoringConfig{TopN: 1})

	// requirements: q1 对 + q2 满分 = 100%；modeling: q3 半对(uml) + q4 错 ≈ 25%
	// 加权总分 (100*2 + 25*1) / 3 = 75 → Junior，过线
	answers := []model.SubmittedAnswer{
		{QuestionID: "q1", Value: "a"},
		{QuestionID: "q2", Value: "always"},
		{QuestionID: "q3", Values: []string{"uml"}},
		{QuestionID: "q4", Value: "y"},
	}

	result, err := svc.Score(answers, questions, content)
	require.NoError(t, err)

	assert.InDelta(t, 75.0, result.Overall, 0.001)
	assert.Equal(t, "Junior", result.Level)
	assert.True(t, result.Passed)

	require.Len(t, result.CategoryScores, 2)
	assert.Equal(t, "requirements", result.CategoryScores[0].Category)
	assert.InDelta(t, 100.0, result.CategoryScores[0].Score, 0.001)
	assert.InDelta(t, 25.0, result.CategoryScores[1].Score, 0.001)

	assert.Equal(t, []string{"requirements"}, result.Strengths)
	assert.Equal(t, []string{"modeling"}, result.Weaknesses)
	assert.Len(t, result.QuestionDetails, 4)
}

func TestScore_LevelBoundaryResolvesUpward(t *testing.T) {
	content, questions := scoringFixture()
	svc := NewScoringService(config.ScoringConfig{TopN: 1})

	// 全对：requirements 100%，modeling 100% → 总分 100 → Senior
	answers := []model.SubmittedAnswer{
		{QuestionID: "q1", Value: "a"},
		{QuestionID: "q2", Value: "always"},
		{QuestionID: "q3", Values: []string{"uml", "er"}},
		{QuestionID: "q4", Value: "x"},
	}

	result, err := svc.Score(answers, questions, content)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, result.Overall, 0.001)
	assert.Equal(t, "Senior", result.Level)
	assert.True(t, result.Passed)
}

func TestScore_Deterministic(t *testing.T) {
	content, questions := scoringFixture()
	svc := NewScoringService(config.ScoringConfig{TopN: 2})

	answers := []model.SubmittedAnswer{
		{QuestionID: "q1", Value: "b"},
		{QuestionID: "q2", Value: "sometimes"},
		{QuestionID: "q3", Values: []string{"uml", "gantt"}},
		{QuestionID: "q4", Value: "x"},
	}

	first, err := svc.Score(answers, questions, content)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := svc.Score(answers, questions, content)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScore_MalformedSubmissions(t *testing.T) {
	content, questions := scoringFixture()
	svc := NewScoringService(config.ScoringConfig{})

	cases := []struct {
		name    string
		answers []model.SubmittedAnswer
	}{
		{"未知题目", []model.SubmittedAnswer{{QuestionID: "ghost", Value: "a"}}},
		{"重复作答", []model.SubmittedAnswer{{QuestionID: "q1", Value: "a"}, {QuestionID: "q1", Value: "b"}}},
		{"单选给了多值", []model.SubmittedAnswer{{QuestionID: "q1", Values: []string{"a", "b"}}}},
		{"多选给了单值", []model.SubmittedAnswer{{QuestionID: "q3", Value: "uml"}}},
		{"未知选项", []model.SubmittedAnswer{{QuestionID: "q1", Value: "zzz"}}},
		{"多选含重复选项", []model.SubmittedAnswer{{QuestionID: "q3", Values: []string{"uml", "uml"}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Score(tc.answers, questions, content)
			assert.ErrorIs(t, err, util.ErrMalformedSubmission)
		})
	}
}

func TestScore_UnansweredPolicies(t *testing.T) {
	content, questions := scoringFixture()
	answers := []model.SubmittedAnswer{
		{QuestionID: "q1", Value: "a"},
		{QuestionID: "q2", Value: "always"},
		{QuestionID: "q4", Value: "x"},
	}

	strict := NewScoringService(config.ScoringConfig{UnansweredPolicy: "strict"})
	_, err := strict.Score(answers, questions, content)
	assert.ErrorIs(t, err, util.ErrIncompleteSubmission)

	lenient := NewScoringService(config.ScoringConfig{UnansweredPolicy: "zero"})
	result, err := lenient.Score(answers, questions, content)
	require.NoError(t, err)
	// modeling: q3 记 0，q4 满分 → 50%
	assert.InDelta(t, 50.0, result.CategoryScores[1].Score, 0.001)
}

func TestScore_MultiChoiceCredit(t *testing.T) {
	content, questions := scoringFixture()

	cases := []struct {
		name   string
		values []string
		strict bool
		credit float64
	}{
		{"全对", []string{"uml", "er"}, false, 1},
		{"半对", []string{"uml"}, false, 0.5},
		{"对一错一抵消", []string{"uml", "gantt"}, false, 0},
		{"全选不满分", []string{"uml", "er", "gantt"}, false, 0.5},
		{"严格模式全对", []string{"uml", "er"}, true, 1},
		{"严格模式半对记零", []string{"uml"}, true, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewScoringService(config.ScoringConfig{StrictMultiChoice: tc.strict})
			answers := []model.SubmittedAnswer{{QuestionID: "q3", Values: tc.values}}
			result, err := svc.Score(answers, questions, content)
			require.NoError(t, err)
			require.Len(t, result.QuestionDetails, 1)
			assert.InDelta(t, tc.credit, result.QuestionDetails[0].Credit, 0.001)
		})
	}
}

func TestResolveLevel_EmptyAndBelowFloor(t *testing.T) {
	levels := []model.LevelThreshold{
		{MinScore: 20, Label: "Junior"},
		{MinScore: 60, Label: "Mid"},
	}
	assert.Equal(t, "Junior", resolveLevel(levels, 5))
	assert.Equal(t, "Mid", resolveLevel(levels, 60))
	assert.Equal(t, "", resolveLevel(nil, 50))
}
