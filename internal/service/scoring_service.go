package service

import (
	"fmt"
	"sa_assessment_backend/internal/config"
	"sa_assessment_backend/internal/model"
	"sa_assessment_backend/internal/util"
	"sort"
	"strings"
)

// ScoringService 纯评分引擎：无 I/O，相同输入必得相同输出。
// 评分使用尝试创建时锁定的测评配置，内容改版不影响历史成绩。
type ScoringService struct {
	Cfg config.ScoringConfig
}

func NewScoringService(cfg config.ScoringConfig) *ScoringService {
	return &ScoringService{Cfg: cfg}
}

// Score 计算分类得分、总分、等级、通过与否以及强弱项
func (s *ScoringService) Score(answers []model.SubmittedAnswer, questions []model.Question, content *model.QuizContent) (*model.ScoredResult, error) {
	catalog := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		catalog[q.ID] = q
	}

	answered := make(map[string]model.SubmittedAnswer, len(answers))
	for _, a := range answers {
		if _, ok := catalog[a.QuestionID]; !ok {
			return nil, fmt.Errorf("%w: unknown question %q", util.ErrMalformedSubmission, a.QuestionID)
		}
		if _, dup := answered[a.QuestionID]; dup {
			return nil, fmt.Errorf("%w: duplicate answer for question %q", util.ErrMalformedSubmission, a.QuestionID)
		}
		answered[a.QuestionID] = a
	}

	type categoryAccum struct {
		earned float64
		max    float64
	}
	accum := make(map[string]*categoryAccum, len(content.Categories))
	for cat := range content.Categories {
		accum[cat] = &categoryAccum{}
	}

	details := make([]model.QuestionDetail, 0, len(answers))

	for _, qid := range content.QuestionIDs {
		q, ok := catalog[qid]
		if !ok {
			// 配置引用了题库中不存在的题目
			return nil, fmt.Errorf("%w: question %q missing from catalog", util.ErrMalformedSubmission, qid)
		}

		acc := accum[q.Category]
		if acc == nil {
			acc = &categoryAccum{}
			accum[q.Category] = acc
		}
		acc.max += q.Weight

		a, ok := answered[qid]
		if !ok {
			if s.Cfg.UnansweredPolicy == "strict" {
				return nil, fmt.Errorf("%w: question %q unanswered", util.ErrIncompleteSubmission, qid)
			}
			// zero 策略：未作答计 0 分
			continue
		}

		credit, err := s.credit(&q, a)
		if err != nil {
			return nil, err
		}
		acc.earned += credit * q.Weight

		details = append(details, model.QuestionDetail{
			QuestionID:    q.ID,
			Category:      q.Category,
			QuestionText:  q.Text,
			UserAnswer:    submittedText(&q, a),
			CorrectAnswer: correctText(&q),
			Credit:        credit,
			Weight:        q.Weight,
		})
	}

	scores := make([]model.CategoryScore, 0, len(content.Categories))
	for cat, cfg := range content.Categories {
		acc := accum[cat]
		percent := 0.0
		if acc != nil && acc.max > 0 {
			percent = acc.earned / acc.max * 100
		}
		scores = append(scores, model.CategoryScore{
			Category: cat,
			Name:     cfg.Name,
			Weight:   cfg.Weight,
			Score:    percent,
		})
	}
	// 声明顺序兜底按分类标识排序，保证确定性
	sort.SliceStable(scores, func(i, j int) bool {
		oi, oj := content.Categories[scores[i].Category].Order, content.Categories[scores[j].Category].Order
		if oi != oj {
			return oi < oj
		}
		return scores[i].Category < scores[j].Category
	})

	var weightedSum, totalWeight float64
	for _, cs := range scores {
		weightedSum += cs.Score * cs.Weight
		totalWeight += cs.Weight
	}
	overall := 0.0
	if totalWeight > 0 {
		overall = weightedSum / totalWeight
	}

	result := &model.ScoredResult{
		Overall:         overall,
		Level:           resolveLevel(content.Levels, overall),
		Passed:          overall >= content.Settings.PassThreshold,
		CategoryScores:  scores,
		QuestionDetails: details,
	}
	result.Strengths, result.Weaknesses = s.splitTopBottom(scores)

	return result, nil
}

// credit 单题得分（0-1），答案形态与题型不符时返回 MalformedSubmission
func (s *ScoringService) credit(q *model.Question, a model.SubmittedAnswer) (float64, error) {
	switch q.Type {
	case model.SingleChoice:
		if a.Value == "" || len(a.Values) > 0 {
			return 0, shapeError(q, "expected a single value")
		}
		if !hasOption(q, a.Value) {
			return 0, shapeError(q, fmt.Sprintf("unknown option %q", a.Value))
		}
		if a.Value == q.Key.Correct {
			return 1, nil
		}
		return 0, nil

	case model.Scale:
		if a.Value == "" || len(a.Values) > 0 {
			return 0, shapeError(q, "expected a single value")
		}
		if !hasOption(q, a.Value) {
			return 0, shapeError(q, fmt.Sprintf("unknown option %q", a.Value))
		}
		max := q.MaxCredit()
		if max <= 0 {
			return 0, nil
		}
		return q.Key.Credit[a.Value] / max, nil

	case model.MultiChoice:
		if a.Value != "" || len(a.Values) == 0 {
			return 0, shapeError(q, "expected a list of values")
		}
		chosen := make(map[string]bool, len(a.Values))
		for _, v := range a.Values {
			if !hasOption(q, v) {
				return 0, shapeError(q, fmt.Sprintf("unknown option %q", v))
			}
			if chosen[v] {
				return 0, shapeError(q, fmt.Sprintf("duplicate option %q", v))
			}
			chosen[v] = true
		}
		correct := make(map[string]bool, len(q.Key.CorrectSet))
		for _, v := range q.Key.CorrectSet {
			correct[v] = true
		}
		if len(correct) == 0 {
			return 0, nil
		}

		var right, wrong int
		for v := range chosen {
			if correct[v] {
				right++
			} else {
				wrong++
			}
		}

		if s.Cfg.StrictMultiChoice {
			if wrong == 0 && right == len(correct) {
				return 1, nil
			}
			return 0, nil
		}

		credit := float64(right-wrong) / float64(len(correct))
		if credit < 0 {
			credit = 0
		}
		if credit > 1 {
			credit = 1
		}
		return credit, nil

	default:
		return 0, fmt.Errorf("%w: question %q has unsupported type %q", util.ErrMalformedSubmission, q.ID, q.Type)
	}
}

// splitTopBottom 取得分最高/最低的前 N 个分类，并列按声明顺序
func (s *ScoringService) splitTopBottom(scores []model.CategoryScore) (strengths, weaknesses []string) {
	n := s.Cfg.TopN
	if n <= 0 {
		n = 3
	}

	byScoreDesc := make([]model.CategoryScore, len(scores))
	copy(byScoreDesc, scores)
	sort.SliceStable(byScoreDesc, func(i, j int) bool {
		return byScoreDesc[i].Score > byScoreDesc[j].Score
	})

	for i := 0; i < len(byScoreDesc) && i < n; i++ {
		strengths = append(strengths, byScoreDesc[i].Category)
	}

	byScoreAsc := make([]model.CategoryScore, len(scores))
	copy(byScoreAsc, scores)
	sort.SliceStable(byScoreAsc, func(i, j int) bool {
		return byScoreAsc[i].Score < byScoreAsc[j].Score
	})

	for i := 0; i < len(byScoreAsc) && i < n; i++ {
		weaknesses = append(weaknesses, byScoreAsc[i].Category)
	}
	return strengths, weaknesses
}

// resolveLevel 等级阈值按 minScore 升序，取不超过总分的最高一档；
// 阈值恰好等于总分时归入更高一级
func resolveLevel(levels []model.LevelThreshold, overall float64) string {
	sorted := make([]model.LevelThreshold, len(levels))
	copy(sorted, levels)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinScore < sorted[j].MinScore
	})

	label := ""
	for _, lvl := range sorted {
		if overall >= lvl.MinScore {
			label = lvl.Label
		}
	}
	if label == "" && len(sorted) > 0 {
		label = sorted[0].Label
	}
	return label
}

func hasOption(q *model.Question, value string) bool {
	for _, opt := range q.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

func shapeError(q *model.Question, detail string) error {
	return fmt.Errorf("%w: question %q (%s): %s", util.ErrMalformedSubmission, q.ID, q.Type, detail)
}

func submittedText(q *model.Question, a model.SubmittedAnswer) string {
	if len(a.Values) > 0 {
		texts := make([]string, 0, len(a.Values))
		for _, v := range a.Values {
			texts = append(texts, q.OptionText(v))
		}
		return strings.Join(texts, ", ")
	}
	return q.OptionText(a.Value)
}

func correctText(q *model.Question) string {
	switch q.Type {
	case model.SingleChoice:
		return q.OptionText(q.Key.Correct)
	case model.MultiChoice:
		texts := make([]string, 0, len(q.Key.CorrectSet))
		for _, v := range q.Key.CorrectSet {
			texts = append(texts, q.OptionText(v))
		}
		return strings.Join(texts, ", ")
	case model.Scale:
		best, bestPts := "", -1.0
		for _, opt := range q.Options {
			if pts, ok := q.Key.Credit[opt.Value]; ok && pts > bestPts {
				best, bestPts = opt.Value, pts
			}
		}
		return q.OptionText(best)
	}
	return ""
}
