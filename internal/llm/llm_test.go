package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bookgen/internal/model"
)

type namedCompleter struct{ name string }

func (n *namedCompleter) Name() string { return n.name }

func (n *namedCompleter) Complete(context.Context, Request) (*Response, error) {
	return &Response{Text: n.name}, nil
}

func TestRouter_ForStage(t *testing.T) {
	t.Parallel()

	structured := &namedCompleter{name: "structured"}
	heavy := &namedCompleter{name: "heavy"}
	r := NewRouter(structured, heavy)

	tests := []struct {
		stage    model.Stage
		backend  string
		tempWant float64
	}{
		{model.StageSpec, "structured", 0.6},
		{model.StageTOC, "structured", 0.6},
		{model.StageImages, "structured", 0.6},
		{model.StagePlan, "heavy", 0.7},
		{model.StageDraft, "heavy", 0.7},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.stage), func(t *testing.T) {
			t.Parallel()
			backend, temp := r.ForStage(tt.stage)
			assert.Equal(t, tt.backend, backend.Name())
			require.NotNil(t, temp)
			assert.InDelta(t, tt.tempWant, *temp, 1e-9)
		})
	}
}

func TestRouter_ForRepair(t *testing.T) {
	t.Parallel()

	structured := &namedCompleter{name: "structured"}
	r := NewRouter(structured, &namedCompleter{name: "heavy"})

	backend, temp := r.ForRepair()
	assert.Equal(t, "structured", backend.Name())
	require.NotNil(t, temp)
	assert.Zero(t, *temp)
}
