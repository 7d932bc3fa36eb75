package model

import "time"

// RunStatus tracks a run through the ledger.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
	RunStatusDryRun    RunStatus = "dry_run"
)

// Run is one recorded pipeline execution.
type Run struct {
	ID        string     `json:"id"`
	Problem   string     `json:"problem"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult summarizes a finished run.
type RunResult struct {
	Chapters      int           `json:"chapters"`
	DraftedOK     int           `json:"drafted_ok"`
	DraftsFailed  int           `json:"drafts_failed"`
	ImagePrompts  int           `json:"image_prompts"`
	InputTokens   int           `json:"input_tokens"`
	OutputTokens  int           `json:"output_tokens"`
	OutputPath    string        `json:"output_path,omitempty"`
	Stages        []StageRecord `json:"stages,omitempty"`
	FailedStage   string        `json:"failed_stage,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
}

// StageStatus is the outcome of one stage execution within a run.
type StageStatus string

const (
	StageStatusRunning  StageStatus = "running"
	StageStatusComplete StageStatus = "complete"
	StageStatusResumed  StageStatus = "resumed"
	StageStatusSkipped  StageStatus = "skipped"
	StageStatusFailed   StageStatus = "failed"
)

// StageRecord is the ledger entry for one stage of a run.
type StageRecord struct {
	ID         string      `json:"id"`
	RunID      string      `json:"run_id"`
	Stage      Stage       `json:"stage"`
	Status     StageStatus `json:"status"`
	DurationMS int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
}

// TokenUsage accumulates token consumption across generation calls.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}
