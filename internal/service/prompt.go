package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// PromptInput 推荐提示词的全部输入。只含已评分尝试行中可重建的字段，
// 内联生成与后台重试据此得到相同的摘要
type PromptInput struct {
	UserName       string             `json:"userName"`
	Experience     string             `json:"experience"`
	Level          string             `json:"level"`
	Overall        float64            `json:"overall"`
	CategoryScores map[string]float64 `json:"categoryScores"`
	Strengths      []string           `json:"strengths"`
	Weaknesses     []string           `json:"weaknesses"`
}

const recommendationSystemPrompt = `You are a supportive, experienced mentor for systems analysts.
Given a candidate's assessment results, write a personal development plan in Markdown.
Be concrete and encouraging; avoid generic advice.`

// BuildPrompt 由已评分结果构造用户提示词，纯函数，便于离线测试
func BuildPrompt(in PromptInput) (system, user string) {
	var b strings.Builder

	fmt.Fprintf(&b, "## Candidate\n")
	fmt.Fprintf(&b, "Name: %s\n", in.UserName)
	if in.Experience != "" {
		fmt.Fprintf(&b, "Experience: %s\n", in.Experience)
	}
	fmt.Fprintf(&b, "Current level: %s (%.0f%%)\n\n", in.Level, in.Overall)

	fmt.Fprintf(&b, "## Category scores\n")
	for _, cat := range sortedKeys(in.CategoryScores) {
		fmt.Fprintf(&b, "- %s: %.0f%%\n", cat, in.CategoryScores[cat])
	}

	fmt.Fprintf(&b, "\nStrengths: %s\n", joinOrNone(in.Strengths))
	fmt.Fprintf(&b, "Growth areas: %s\n\n", joinOrNone(in.Weaknesses))

	fmt.Fprintf(&b, "## Task\n")
	fmt.Fprintf(&b, "1. Explain what the weak categories mean in day-to-day analyst work.\n")
	fmt.Fprintf(&b, "2. Give a focused three-month development plan built around the growth areas.\n")
	fmt.Fprintf(&b, "3. Suggest specific study resources for each weak category.\n")
	fmt.Fprintf(&b, "4. Close with an encouraging note referencing the candidate's strengths.\n")

	return recommendationSystemPrompt, b.String()
}

// PromptDigest 输入的规范化哈希。同一已评分状态重复生成时摘要不变，
// 用于跳过重复的外部调用
func PromptDigest(in PromptInput) string {
	// map 序列化按键排序，json.Marshal 对相同输入产出相同字节
	raw, _ := json.Marshal(in)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none identified"
	}
	return strings.Join(items, ", ")
}
