package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/bookgen/internal/model"
	"github.com/sells-group/bookgen/internal/prompt"
)

// Shape hints handed to the repair pass so the converter knows what the
// stage expects.
const (
	specShapeHint = `{"title": str, "subtitle": str, "audience": [str], "goals": [str], "constraints": [str], "tone": str}`
	tocShapeHint  = `[{"number": int, "title": str, "target_pages": int}]`
	planShapeHint = `{"number": int, "title": str, "objectives": [str], "key_ideas": [str], "image_prompts": [{"purpose": str, "prompt": str}]}`
)

func (p *Pipeline) runSpec(ctx context.Context, state *model.RunState) (model.TokenUsage, error) {
	tmpl := p.prompts.ForStage(model.StageSpec)
	user := fmt.Sprintf(tmpl.User, state.Problem, state.PagesTotal, state.WordsPerPage)

	v, usage, err := p.completeJSON(ctx, model.StageSpec, tmpl.System, user, specShapeHint)
	if err != nil {
		return usage, err
	}

	spec := normalizeSpec(v)
	if spec.Title == "" {
		spec.Title = state.Problem
	}
	if err := p.val.checkRecord(model.StageSpec, spec); err != nil {
		return usage, err
	}
	state.Spec = &spec
	return usage, nil
}

// runTOC walks the fallback ladder: structured parse, heuristic line scrape
// of the raw reply, a numbered-lines reprompt, then local synthesis. It never
// fails the run; whatever rung succeeds, the result is padded, renumbered and
// rebalanced to the requested page total.
func (p *Pipeline) runTOC(ctx context.Context, state *model.RunState) (model.TokenUsage, error) {
	var usage model.TokenUsage

	tmpl := p.prompts.ForStage(model.StageTOC)
	user := fmt.Sprintf(tmpl.User, mustJSON(state.Spec), state.PagesTotal)

	var entries []model.TocEntry
	raw, u, err := p.completeText(ctx, model.StageTOC, tmpl.System, user)
	usage.Add(u)
	if err != nil {
		zap.L().Warn("toc generation failed, falling back", zap.Error(err))
	} else {
		v, ru, derr := p.decodeLenient(ctx, model.StageTOC, raw, tocShapeHint)
		usage.Add(ru)
		if derr == nil {
			entries = tocEntriesFromAny(v, p.cfg.DefaultChapterPages)
		}
		if len(entries) == 0 {
			entries = heuristicTOC(raw, p.cfg.DefaultChapterPages)
		}
	}

	if len(entries) == 0 {
		// Reprompt for plain numbered lines, which even weak models manage.
		lines := p.prompts[prompt.KeyTOCLines]
		relisted, lu, lerr := p.completeText(ctx, model.StageTOC, lines.System, fmt.Sprintf(lines.User, mustJSON(state.Spec), state.PagesTotal))
		usage.Add(lu)
		if lerr == nil {
			entries = heuristicTOC(relisted, p.cfg.DefaultChapterPages)
		}
	}

	if len(entries) == 0 {
		zap.L().Warn("toc fallbacks exhausted, synthesizing",
			zap.Int("chapters", p.cfg.DefaultChapters))
		entries = synthesizeTOC(state.Problem, p.cfg.DefaultChapters, p.cfg.DefaultChapterPages)
	}

	entries = padEntries(entries, p.cfg.MinChapters, p.cfg.DefaultChapterPages)
	entries = renumberEntries(entries)
	entries = rebalancePages(entries, state.PagesTotal)

	if err := p.val.checkRecord(model.StageTOC, entries); err != nil {
		// The ladder guarantees a result; a schema miss here is reported,
		// not fatal.
		zap.L().Warn("toc failed strict validation", zap.Error(err))
	}
	state.TOC = entries
	return usage, nil
}

func (p *Pipeline) runPlan(ctx context.Context, state *model.RunState) (model.TokenUsage, error) {
	var usage model.TokenUsage

	tmpl := p.prompts.ForStage(model.StagePlan)
	specJSON := mustJSON(state.Spec)

	plans := make([]model.ChapterPlan, 0, len(state.TOC))
	for _, entry := range state.TOC {
		user := fmt.Sprintf(tmpl.User, specJSON, mustJSON(entry), state.WordsPerPage)
		v, u, err := p.completeJSON(ctx, model.StagePlan, tmpl.System, user, planShapeHint)
		usage.Add(u)
		if err != nil {
			return usage, err
		}
		plan := normalizePlan(v, entry)
		if err := p.val.checkRecord(model.StagePlan, plan); err != nil {
			return usage, err
		}
		plans = append(plans, plan)
	}
	state.Plans = plans
	return usage, nil
}

// runImages consolidates the per-chapter image prompts into one flat,
// chapter-tagged list. Pure aggregation, no generation call.
func (p *Pipeline) runImages(state *model.RunState) {
	prompts := []model.ImagePrompt{}
	for _, plan := range state.Plans {
		for _, ip := range plan.ImagePrompts {
			if ip.Purpose == "" || ip.Prompt == "" {
				continue
			}
			prompts = append(prompts, model.ImagePrompt{
				Chapter: plan.Number,
				Purpose: ip.Purpose,
				Prompt:  ip.Prompt,
			})
		}
	}
	state.ImagePrompts = prompts
}

// mustJSON renders a value for prompt embedding. The domain records always
// marshal; a failure here is a programming error.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
