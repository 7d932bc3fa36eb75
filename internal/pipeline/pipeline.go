// Package pipeline implements the staged book-generation state machine:
// SPEC -> TOC -> PLAN -> DRAFT -> IMAGES -> ASSEMBLE, with per-stage
// checkpointing, resume, and fault-tolerant structured-output handling.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bookgen/internal/checkpoint"
	"github.com/sells-group/bookgen/internal/config"
	"github.com/sells-group/bookgen/internal/llm"
	"github.com/sells-group/bookgen/internal/model"
	"github.com/sells-group/bookgen/internal/prompt"
	"github.com/sells-group/bookgen/internal/resilience"
	"github.com/sells-group/bookgen/internal/store"
)

// Pipeline orchestrates one book-generation run end to end. Configuration is
// immutable for the lifetime of the run; all mutable state lives in the
// RunState threaded through the stages.
type Pipeline struct {
	cfg     config.BookConfig
	retry   resilience.RetryConfig
	router  *llm.Router
	ckpt    checkpoint.Store
	ledger  store.Store
	prompts prompt.Set
	val     *validator
}

// New builds a pipeline. The ledger may be nil, in which case stage history
// is not recorded.
func New(cfg config.BookConfig, retry resilience.RetryConfig, router *llm.Router, ckpt checkpoint.Store, ledger store.Store, prompts prompt.Set) (*Pipeline, error) {
	val, err := newValidator(cfg.StrictJSON)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:     cfg,
		retry:   retry,
		router:  router,
		ckpt:    ckpt,
		ledger:  ledger,
		prompts: prompts,
		val:     val,
	}, nil
}

// assembleRecord is the ASSEMBLE stage checkpoint payload.
type assembleRecord struct {
	OutputPath string `json:"output_path"`
	Markdown   string `json:"book_markdown"`
}

// Run executes the state machine for one problem statement. On a stage-fatal
// failure the returned error is a *StageError, the already-written
// checkpoints are left intact, and the result names the failing stage.
func (p *Pipeline) Run(ctx context.Context, runID, problem string) (*model.RunState, *model.RunResult, error) {
	state := &model.RunState{
		Problem:      problem,
		PagesTotal:   p.cfg.PagesTotal,
		WordsPerPage: p.cfg.WordsPerPage,
	}
	result := &model.RunResult{}

	// Resume walks checkpoints in pipeline order; the first absent or
	// invalid one becomes the resume point and everything after it is
	// recomputed, even if later artifacts exist.
	resumable := p.cfg.Resume

	var outputPath string
	for _, stage := range model.Stages() {
		started := time.Now()

		if p.cfg.DryRun && (stage == model.StageDraft || stage == model.StageAssemble) {
			zap.L().Info("dry run, skipping stage", zap.String("stage", string(stage)))
			p.recordStage(ctx, runID, result, stage, model.StageStatusSkipped, started, nil)
			continue
		}

		if resumable {
			if err := p.loadCheckpoint(stage, state); err == nil {
				zap.L().Info("stage resumed from checkpoint", zap.String("stage", string(stage)))
				if stage == model.StageAssemble {
					outputPath = p.resumedOutputPath(state)
				}
				p.recordStage(ctx, runID, result, stage, model.StageStatusResumed, started, nil)
				continue
			} else if !eris.Is(err, checkpoint.ErrAbsent) {
				// A present-but-unusable artifact must not shadow the
				// recomputed one.
				zap.L().Warn("discarding invalid checkpoint",
					zap.String("stage", string(stage)),
					zap.Error(err),
				)
				if rmErr := p.ckpt.Remove(stage); rmErr != nil {
					zap.L().Warn("removing invalid checkpoint failed", zap.Error(rmErr))
				}
			}
			resumable = false
		}

		zap.L().Info("stage started", zap.String("stage", string(stage)))
		usage, path, err := p.runStage(ctx, stage, state)
		result.InputTokens += usage.InputTokens
		result.OutputTokens += usage.OutputTokens
		if err != nil {
			stageErr := &StageError{Stage: stage, Err: err}
			result.FailedStage = string(stage)
			result.FailureReason = err.Error()
			p.recordStage(ctx, runID, result, stage, model.StageStatusFailed, started, err)
			zap.L().Error("stage failed",
				zap.String("stage", string(stage)),
				zap.Duration("elapsed", time.Since(started)),
				zap.Error(err),
			)
			return state, result, stageErr
		}
		if path != "" {
			outputPath = path
		}

		if err := p.saveCheckpoint(stage, state, outputPath); err != nil {
			zap.L().Warn("checkpoint save failed",
				zap.String("stage", string(stage)),
				zap.Error(err),
			)
		}
		p.recordStage(ctx, runID, result, stage, model.StageStatusComplete, started, nil)
		zap.L().Info("stage complete",
			zap.String("stage", string(stage)),
			zap.Duration("elapsed", time.Since(started)),
		)
	}

	result.Chapters = len(state.TOC)
	result.ImagePrompts = len(state.ImagePrompts)
	result.OutputPath = outputPath
	for _, d := range state.Drafts {
		switch d.Status {
		case model.DraftDone:
			result.DraftedOK++
		case model.DraftFailed:
			result.DraftsFailed++
		}
	}
	return state, result, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage model.Stage, state *model.RunState) (model.TokenUsage, string, error) {
	var usage model.TokenUsage
	var err error
	var path string

	switch stage {
	case model.StageSpec:
		usage, err = p.runSpec(ctx, state)
	case model.StageTOC:
		usage, err = p.runTOC(ctx, state)
	case model.StagePlan:
		usage, err = p.runPlan(ctx, state)
	case model.StageDraft:
		usage, err = p.runDraft(ctx, state)
	case model.StageImages:
		p.runImages(state)
	case model.StageAssemble:
		path, err = p.runAssemble(state)
	}
	return usage, path, err
}

// loadCheckpoint restores a stage's output into state. Persisted records go
// through the same normalization as fresh model output, since hand-edited or
// partially-written artifacts are a supported recovery path. Any error other
// than checkpoint.ErrAbsent means the artifact exists but is unusable.
func (p *Pipeline) loadCheckpoint(stage model.Stage, state *model.RunState) error {
	switch stage {
	case model.StageSpec:
		var raw any
		if err := p.ckpt.Load(stage, &raw); err != nil {
			return err
		}
		spec := normalizeSpec(raw)
		if spec.Title == "" {
			return eris.New("pipeline: spec checkpoint has no title")
		}
		state.Spec = &spec
		return nil

	case model.StageTOC:
		var raw any
		if err := p.ckpt.Load(stage, &raw); err != nil {
			return err
		}
		entries := tocEntriesFromAny(raw, p.cfg.DefaultChapterPages)
		if len(entries) == 0 {
			return eris.New("pipeline: toc checkpoint has no entries")
		}
		entries = renumberEntries(entries)
		state.TOC = rebalancePages(entries, state.PagesTotal)
		return nil

	case model.StagePlan:
		var raw []any
		if err := p.ckpt.Load(stage, &raw); err != nil {
			return err
		}
		if len(raw) != len(state.TOC) {
			return eris.Errorf("pipeline: plan checkpoint has %d entries for %d chapters", len(raw), len(state.TOC))
		}
		plans := make([]model.ChapterPlan, len(raw))
		for i, item := range raw {
			plans[i] = normalizePlan(item, state.TOC[i])
		}
		state.Plans = plans
		return nil

	case model.StageDraft:
		var drafts []model.Draft
		if err := p.ckpt.Load(stage, &drafts); err != nil {
			return err
		}
		if len(drafts) == 0 {
			return eris.New("pipeline: draft checkpoint is empty")
		}
		state.Drafts = drafts
		return nil

	case model.StageImages:
		var prompts []model.ImagePrompt
		if err := p.ckpt.Load(stage, &prompts); err != nil {
			return err
		}
		state.ImagePrompts = prompts
		return nil

	case model.StageAssemble:
		var rec assembleRecord
		if err := p.ckpt.Load(stage, &rec); err != nil {
			return err
		}
		if rec.Markdown == "" {
			return eris.New("pipeline: assemble checkpoint has no content")
		}
		state.BookMarkdown = rec.Markdown
		return nil
	}
	return checkpoint.ErrAbsent
}

func (p *Pipeline) saveCheckpoint(stage model.Stage, state *model.RunState, outputPath string) error {
	switch stage {
	case model.StageSpec:
		return p.ckpt.Save(stage, state.Spec)
	case model.StageTOC:
		return p.ckpt.Save(stage, state.TOC)
	case model.StagePlan:
		return p.ckpt.Save(stage, state.Plans)
	case model.StageDraft:
		return p.ckpt.Save(stage, state.Drafts)
	case model.StageImages:
		return p.ckpt.Save(stage, state.ImagePrompts)
	case model.StageAssemble:
		return p.ckpt.Save(stage, assembleRecord{OutputPath: outputPath, Markdown: state.BookMarkdown})
	}
	return nil
}

func (p *Pipeline) resumedOutputPath(state *model.RunState) string {
	var rec assembleRecord
	if err := p.ckpt.Load(model.StageAssemble, &rec); err != nil {
		return ""
	}
	return rec.OutputPath
}

func (p *Pipeline) recordStage(ctx context.Context, runID string, result *model.RunResult, stage model.Stage, status model.StageStatus, started time.Time, stageErr error) {
	rec := model.StageRecord{
		RunID:      runID,
		Stage:      stage,
		Status:     status,
		DurationMS: time.Since(started).Milliseconds(),
		StartedAt:  started,
	}
	if stageErr != nil {
		rec.Error = stageErr.Error()
	}
	result.Stages = append(result.Stages, rec)

	if p.ledger == nil {
		return
	}
	if err := p.ledger.RecordStage(ctx, rec); err != nil {
		zap.L().Warn("recording stage in ledger failed",
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
	}
}
