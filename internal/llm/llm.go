// Package llm abstracts generation backends behind a single Completer
// interface and routes each pipeline stage to a backend.
package llm

import (
	"context"

	"github.com/sells-group/bookgen/internal/model"
)

// Request is a single generation request.
type Request struct {
	System      string
	User        string
	MaxTokens   int64
	Temperature *float64
}

// Response is the raw backend reply plus its token usage.
type Response struct {
	Text  string
	Usage model.TokenUsage
}

// Completer is the one capability the pipeline depends on: turn a prompt
// into raw text. Backends wrap their SDK clients behind it.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// Role identifies the kind of generation a stage needs, which decides the
// backend and temperature it is routed to.
type Role string

const (
	// RoleStructured covers stages that must return JSON records.
	RoleStructured Role = "structured"
	// RoleHeavy covers long free-text generation.
	RoleHeavy Role = "heavy"
	// RoleRepair is the strict-JSON conversion request for malformed output.
	RoleRepair Role = "repair"
)

// roleForStage is the static stage→role table.
var roleForStage = map[model.Stage]Role{
	model.StageSpec:   RoleStructured,
	model.StageTOC:    RoleStructured,
	model.StageImages: RoleStructured,
	model.StagePlan:   RoleHeavy,
	model.StageDraft:  RoleHeavy,
}

// Router routes stages to backends by role. Structured stages and repair
// requests go to the structured backend; heavy free-text stages go to the
// heavy backend.
type Router struct {
	structured Completer
	heavy      Completer
}

// NewRouter builds a Router over the two backends.
func NewRouter(structured, heavy Completer) *Router {
	return &Router{structured: structured, heavy: heavy}
}

// ForStage returns the backend and temperature for a pipeline stage.
func (r *Router) ForStage(stage model.Stage) (Completer, *float64) {
	if roleForStage[stage] == RoleHeavy {
		return r.heavy, temp(0.7)
	}
	return r.structured, temp(0.6)
}

// ForRepair returns the backend used for strict-JSON repair requests.
// Repair always goes to the structured backend with a low temperature.
func (r *Router) ForRepair() (Completer, *float64) {
	return r.structured, temp(0.0)
}

func temp(v float64) *float64 {
	return &v
}
