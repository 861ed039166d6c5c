package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promptFixture() PromptInput {
	return PromptInput{
		UserName:   "李雷",
		Experience: "3 年业务分析",
		Level:      "Junior",
		Overall:    75,
		CategoryScores: map[string]float64{
			"需求分析": 100,
			"建模":   25,
		},
		Strengths:  []string{"requirements"},
		Weaknesses: []string{"modeling"},
	}
}

func TestBuildPrompt_ContainsScoresAndTask(t *testing.T) {
	system, user := BuildPrompt(promptFixture())

	assert.Contains(t, system, "mentor")
	assert.Contains(t, user, "李雷")
	assert.Contains(t, user, "Junior")
	assert.Contains(t, user, "需求分析: 100%")
	assert.Contains(t, user, "建模: 25%")
	assert.Contains(t, user, "modeling")
	assert.Contains(t, user, "three-month development plan")
}

func TestBuildPrompt_CategoryOrderIsStable(t *testing.T) {
	_, first := BuildPrompt(promptFixture())
	for i := 0; i < 20; i++ {
		_, again := BuildPrompt(promptFixture())
		require.Equal(t, first, again)
	}
}

func TestBuildPrompt_EmptyStrengths(t *testing.T) {
	in := promptFixture()
	in.Strengths = nil
	_, user := BuildPrompt(in)
	assert.Contains(t, user, "Strengths: none identified")
}

func TestPromptDigest_StableAndSensitive(t *testing.T) {
	d1 := PromptDigest(promptFixture())
	d2 := PromptDigest(promptFixture())
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)
	assert.Equal(t, strings.ToLower(d1), d1)

	changed := promptFixture()
	changed.Overall = 76
	assert.NotEqual(t, d1, PromptDigest(changed))

	relabeled := promptFixture()
	relabeled.Level = "Mid"
	assert.NotEqual(t, d1, PromptDigest(relabeled))
}
