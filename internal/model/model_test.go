package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStagesOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Stage{
		StageSpec, StageTOC, StagePlan, StageDraft, StageImages, StageAssemble,
	}, Stages())
}

func TestWordsNeeded(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3500, WordsNeeded(10, 350))
	assert.Equal(t, 350, WordsNeeded(1, 350))

	// Floor keeps tiny budgets workable.
	assert.Equal(t, 100, WordsNeeded(0, 350))
	assert.Equal(t, 100, WordsNeeded(1, 50))
}

func TestTokenUsageAdd(t *testing.T) {
	t.Parallel()

	u := TokenUsage{InputTokens: 10, OutputTokens: 20}
	u.Add(TokenUsage{InputTokens: 5, OutputTokens: 7})
	assert.Equal(t, TokenUsage{InputTokens: 15, OutputTokens: 27}, u)
}
