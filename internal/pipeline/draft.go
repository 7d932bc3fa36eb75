package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bookgen/internal/llm"
	"github.com/sells-group/bookgen/internal/model"
	"github.com/sells-group/bookgen/internal/resilience"
)

// fallbackDraftWords is the word budget for a chapter whose TOC entry
// carries no usable page target.
const fallbackDraftWords = 1200

// runDraft fans chapter drafting out over a bounded worker pool. Workers
// write into ordinal-indexed slots they exclusively own, so no locking is
// needed, and completion order never affects the final ordering. A chapter
// that exhausts its retries becomes a failed placeholder draft; it never
// blocks or cancels its siblings and never fails the stage.
func (p *Pipeline) runDraft(ctx context.Context, state *model.RunState) (model.TokenUsage, error) {
	chapters := state.TOC
	limit := len(chapters)
	if p.cfg.SampleChapters > 0 && p.cfg.SampleChapters < limit {
		limit = p.cfg.SampleChapters
	}

	planByNumber := make(map[int]model.ChapterPlan, len(state.Plans))
	for _, plan := range state.Plans {
		planByNumber[plan.Number] = plan
	}

	drafts := make([]model.Draft, len(chapters))
	usages := make([]model.TokenUsage, len(chapters))
	for i, ch := range chapters {
		drafts[i] = model.Draft{Number: ch.Number, Title: ch.Title, Status: model.DraftPending}
	}

	workers := p.cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < limit; i++ {
		i := i
		g.Go(func() error {
			drafts[i], usages[i] = p.draftOne(ctx, state, chapters[i], planByNumber[chapters[i].Number])
			return nil
		})
	}
	_ = g.Wait()

	var usage model.TokenUsage
	for i := range usages {
		usage.Add(usages[i])
	}
	state.Drafts = drafts
	return usage, nil
}

func (p *Pipeline) draftOne(ctx context.Context, state *model.RunState, entry model.TocEntry, plan model.ChapterPlan) (model.Draft, model.TokenUsage) {
	draft := model.Draft{Number: entry.Number, Title: entry.Title, Status: model.DraftInProgress}
	var usage model.TokenUsage

	targetWords := fallbackDraftWords
	if entry.TargetPages > 0 {
		targetWords = model.WordsNeeded(entry.TargetPages, state.WordsPerPage)
	}

	tmpl := p.prompts.ForStage(model.StageDraft)
	user := fmt.Sprintf(tmpl.User, mustJSON(state.Spec), mustJSON(plan), targetWords)
	backend, temperature := p.router.ForStage(model.StageDraft)

	cfg := p.retry
	cfg.OnRetry = resilience.RetryLogger(backend.Name(), fmt.Sprintf("draft chapter %d", entry.Number))

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*llm.Response, error) {
		draft.Attempts++
		return backend.Complete(ctx, llm.Request{
			System:      tmpl.System,
			User:        user,
			Temperature: temperature,
		})
	})
	if err != nil {
		zap.L().Warn("chapter draft failed",
			zap.Int("chapter", entry.Number),
			zap.Int("attempts", draft.Attempts),
			zap.Error(err),
		)
		draft.Status = model.DraftFailed
		draft.Error = err.Error()
		draft.Body = fmt.Sprintf(
			"> **Draft unavailable.** Generation for this chapter failed after %d attempts.",
			draft.Attempts,
		)
		return draft, usage
	}

	usage.Add(resp.Usage)
	draft.Status = model.DraftDone
	draft.Body = resp.Text
	return draft, usage
}
