package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_FencedBlock(t *testing.T) {
	t.Parallel()

	raw := "Here is your spec:\n```json\n{\"title\": \"Go Deep\"}\n```\nLet me know if you need changes!"
	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"title": "Go Deep"}`, got)
}

func TestExtract_FencedBlockCaseInsensitive(t *testing.T) {
	t.Parallel()

	raw := "```JSON\n[1, 2, 3]\n```"
	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, "[1, 2, 3]", got)
}

func TestExtract_BalancedSpanWithTrailingProse(t *testing.T) {
	t.Parallel()

	raw := `Sure! {"a": 1, "b": {"c": 2}} Hope that helps!`
	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1, "b": {"c": 2}}`, got)
}

func TestExtract_BracesInsideStringsIgnored(t *testing.T) {
	t.Parallel()

	raw := `{"text": "use } and { freely", "n": 1} trailing`
	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"text": "use } and { freely", "n": 1}`, got)
}

func TestExtract_ArraySpan(t *testing.T) {
	t.Parallel()

	raw := "The chapters are: [{\"number\": 1}] as requested."
	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, `[{"number": 1}]`, got)
}

func TestExtract_NoJSON(t *testing.T) {
	t.Parallel()

	_, err := Extract("no structured data here, sorry")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestDecodeFirst_TrailingGarbage(t *testing.T) {
	t.Parallel()

	v, err := DecodeFirst(`{"x": 1} and then some commentary`)
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), m["x"])
}

func TestDecodeFirst_LeadingNoise(t *testing.T) {
	t.Parallel()

	v, err := DecodeFirst(`Answer: [3, 4]`)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(3), float64(4)}, v)
}

func TestDecodeFirst_Empty(t *testing.T) {
	t.Parallel()

	_, err := DecodeFirst("")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestExtractAndDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"fenced", "```json\n{\"k\": \"v\"}\n```", true},
		{"prose wrapped", `Sure! Here's the JSON: {"goals_outcomes": ["x"]} Hope that helps!`, true},
		{"unterminated", `{"k": "v"`, false},
		{"prose only", "chapter one is about birds", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v, err := ExtractAndDecode(tt.raw)
			if tt.ok {
				require.NoError(t, err)
				assert.NotNil(t, v)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
