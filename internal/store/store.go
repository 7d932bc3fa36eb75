// Package store persists run history so past generations can be listed and
// inspected. It is a ledger, not the checkpoint store: stage artifacts live
// in the run's output directory.
package store

import (
	"context"

	"github.com/sells-group/bookgen/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the run ledger.
type Store interface {
	CreateRun(ctx context.Context, problem string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	RecordStage(ctx context.Context, rec model.StageRecord) error
	ListStages(ctx context.Context, runID string) ([]model.StageRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}
