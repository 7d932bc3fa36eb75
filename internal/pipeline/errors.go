package pipeline

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bookgen/internal/model"
)

// ErrRepairExhausted reports that a model reply could not be parsed as JSON
// even after the one permitted repair call.
var ErrRepairExhausted = eris.New("pipeline: JSON repair exhausted")

// StageError wraps a stage-fatal failure with the stage that produced it.
// The TOC stage never raises one; its fallback ladder always yields a result.
type StageError struct {
	Stage model.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ValidationError reports a strict-mode schema violation for a stage record.
type ValidationError struct {
	Stage model.Stage
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate %s: %v", e.Stage, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
