package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bookgen/internal/checkpoint"
	"github.com/sells-group/bookgen/internal/config"
	"github.com/sells-group/bookgen/internal/llm"
	"github.com/sells-group/bookgen/internal/model"
	"github.com/sells-group/bookgen/internal/prompt"
	"github.com/sells-group/bookgen/internal/resilience"
)

// fakeCompleter scripts backend behavior per request.
type fakeCompleter struct {
	name  string
	calls atomic.Int64
	fn    func(req llm.Request) (*llm.Response, error)
}

func (f *fakeCompleter) Name() string { return f.name }

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.calls.Add(1)
	return f.fn(req)
}

func quickRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func testBookConfig(t *testing.T) config.BookConfig {
	t.Helper()
	return config.BookConfig{
		OutDir:              t.TempDir(),
		PagesTotal:          60,
		WordsPerPage:        350,
		MaxWorkers:          2,
		MinChapters:         1,
		DefaultChapters:     10,
		DefaultChapterPages: 10,
	}
}

func stubRouter() *llm.Router {
	return llm.NewRouter(
		llm.NewAnthropic(&StubAnthropicClient{}, config.AnthropicConfig{Model: "stub-model"}),
		llm.NewOpenAI(&StubOpenAIClient{}, config.OpenAIConfig{Model: "stub-model"}),
	)
}

func newTestPipeline(t *testing.T, cfg config.BookConfig, router *llm.Router) *Pipeline {
	t.Helper()
	ckpt, err := checkpoint.NewFileStore(cfg.OutDir)
	require.NoError(t, err)
	p, err := New(cfg, quickRetry(), router, ckpt, nil, prompt.Defaults())
	require.NoError(t, err)
	return p
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	cfg := testBookConfig(t)
	p := newTestPipeline(t, cfg, stubRouter())

	state, result, err := p.Run(context.Background(), "run-1", "learn woodworking")
	require.NoError(t, err)

	require.NotNil(t, state.Spec)
	assert.NotEmpty(t, state.Spec.Title)

	// The stub TOC has six chapters; page targets must sum to the request.
	require.Len(t, state.TOC, 6)
	sum := 0
	for i, e := range state.TOC {
		assert.Equal(t, i+1, e.Number)
		sum += e.TargetPages
	}
	assert.Equal(t, cfg.PagesTotal, sum)

	require.Len(t, state.Plans, 6)
	require.Len(t, state.Drafts, 6)
	for _, d := range state.Drafts {
		assert.Equal(t, model.DraftDone, d.Status)
		assert.NotEmpty(t, d.Body)
	}

	assert.Equal(t, 6, result.Chapters)
	assert.Equal(t, 6, result.DraftedOK)
	assert.Zero(t, result.DraftsFailed)
	assert.Len(t, state.ImagePrompts, 6)
	assert.Positive(t, result.InputTokens)

	// Artifacts on disk: one checkpoint per stage plus the book files.
	for _, stage := range model.Stages() {
		_, err := os.Stat(filepath.Join(cfg.OutDir, string(stage)+".json"))
		assert.NoError(t, err, "missing checkpoint for %s", stage)
	}
	assert.Equal(t, filepath.Join(cfg.OutDir, "book.md"), result.OutputPath)
	_, err = os.Stat(filepath.Join(cfg.OutDir, "book.html"))
	assert.NoError(t, err)

	md, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "## Table of Contents")
	assert.Contains(t, string(md), `<a id="ch1"></a>`)
}

func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	cfg := testBookConfig(t)
	cfg.DryRun = true
	p := newTestPipeline(t, cfg, stubRouter())

	state, result, err := p.Run(context.Background(), "run-1", "learn woodworking")
	require.NoError(t, err)

	assert.Empty(t, state.Drafts)
	assert.Empty(t, result.OutputPath)
	assert.NotEmpty(t, state.ImagePrompts)

	// PLAN is checkpointed; DRAFT and ASSEMBLE are not.
	_, err = os.Stat(filepath.Join(cfg.OutDir, "plan.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.OutDir, "draft.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(cfg.OutDir, "assemble.json"))
	assert.True(t, os.IsNotExist(err))

	statuses := map[model.Stage]model.StageStatus{}
	for _, rec := range result.Stages {
		statuses[rec.Stage] = rec.Status
	}
	assert.Equal(t, model.StageStatusSkipped, statuses[model.StageDraft])
	assert.Equal(t, model.StageStatusSkipped, statuses[model.StageAssemble])
	assert.Equal(t, model.StageStatusComplete, statuses[model.StagePlan])
}

func TestRun_SampleChapters(t *testing.T) {
	t.Parallel()

	cfg := testBookConfig(t)
	cfg.SampleChapters = 2
	p := newTestPipeline(t, cfg, stubRouter())

	state, result, err := p.Run(context.Background(), "run-1", "learn woodworking")
	require.NoError(t, err)

	require.Len(t, state.Drafts, 6)
	assert.Equal(t, model.DraftDone, state.Drafts[0].Status)
	assert.Equal(t, model.DraftDone, state.Drafts[1].Status)
	for _, d := range state.Drafts[2:] {
		assert.Equal(t, model.DraftPending, d.Status)
	}
	assert.Equal(t, 2, result.DraftedOK)

	// Pending chapters stay out of the assembled book.
	assert.Contains(t, state.BookMarkdown, `<a id="ch1"></a>`)
	assert.Contains(t, state.BookMarkdown, `<a id="ch2"></a>`)
	assert.NotContains(t, state.BookMarkdown, `<a id="ch3"></a>`)
}

func TestRun_ResumeSkipsCompletedStages(t *testing.T) {
	t.Parallel()

	cfg := testBookConfig(t)
	p := newTestPipeline(t, cfg, stubRouter())
	_, _, err := p.Run(context.Background(), "run-1", "learn woodworking")
	require.NoError(t, err)

	// Second run resumes everything; the backend must never be called.
	dead := &fakeCompleter{name: "dead", fn: func(llm.Request) (*llm.Response, error) {
		return nil, errors.New("backend must not be called on full resume")
	}}
	cfg.Resume = true
	p2 := newTestPipeline(t, cfg, llm.NewRouter(dead, dead))

	state, result, err := p2.Run(context.Background(), "run-2", "learn woodworking")
	require.NoError(t, err)
	assert.Zero(t, dead.calls.Load())
	assert.Len(t, state.TOC, 6)
	assert.NotEmpty(t, state.BookMarkdown)
	for _, rec := range result.Stages {
		assert.Equal(t, model.StageStatusResumed, rec.Status)
	}
}

func TestRun_ResumeRecomputesFromFirstMissingCheckpoint(t *testing.T) {
	t.Parallel()

	cfg := testBookConfig(t)
	p := newTestPipeline(t, cfg, stubRouter())
	_, _, err := p.Run(context.Background(), "run-1", "learn woodworking")
	require.NoError(t, err)

	// Knock out PLAN: it and every later stage must be recomputed, even
	// though their artifacts still exist.
	require.NoError(t, os.Remove(filepath.Join(cfg.OutDir, "plan.json")))

	cfg.Resume = true
	p2 := newTestPipeline(t, cfg, stubRouter())
	_, result, err := p2.Run(context.Background(), "run-2", "learn woodworking")
	require.NoError(t, err)

	statuses := map[model.Stage]model.StageStatus{}
	for _, rec := range result.Stages {
		statuses[rec.Stage] = rec.Status
	}
	assert.Equal(t, model.StageStatusResumed, statuses[model.StageSpec])
	assert.Equal(t, model.StageStatusResumed, statuses[model.StageTOC])
	assert.Equal(t, model.StageStatusComplete, statuses[model.StagePlan])
	assert.Equal(t, model.StageStatusComplete, statuses[model.StageDraft])
	assert.Equal(t, model.StageStatusComplete, statuses[model.StageAssemble])
}

func TestRun_InvalidCheckpointRecomputed(t *testing.T) {
	t.Parallel()

	cfg := testBookConfig(t)
	p := newTestPipeline(t, cfg, stubRouter())
	_, _, err := p.Run(context.Background(), "run-1", "learn woodworking")
	require.NoError(t, err)

	// A hand-mangled spec artifact is treated as absent and replaced.
	specPath := filepath.Join(cfg.OutDir, "spec.json")
	require.NoError(t, os.WriteFile(specPath, []byte(`{"nonsense": true}`), 0o644))

	cfg.Resume = true
	p2 := newTestPipeline(t, cfg, stubRouter())
	state, result, err := p2.Run(context.Background(), "run-2", "learn woodworking")
	require.NoError(t, err)
	require.NotNil(t, state.Spec)
	assert.NotEmpty(t, state.Spec.Title)

	for _, rec := range result.Stages {
		assert.Equal(t, model.StageStatusComplete, rec.Status)
	}
}

func TestRun_StageFatalNamesStage(t *testing.T) {
	t.Parallel()

	// Structured backend only ever produces prose, so SPEC exhausts its one
	// repair attempt and the run aborts naming the stage.
	prose := &fakeCompleter{name: "prose", fn: func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: "I am sorry, I cannot produce JSON today."}, nil
	}}
	heavy := &fakeCompleter{name: "heavy", fn: func(llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: "irrelevant"}, nil
	}}

	cfg := testBookConfig(t)
	p := newTestPipeline(t, cfg, llm.NewRouter(prose, heavy))

	_, result, err := p.Run(context.Background(), "run-1", "learn woodworking")
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, model.StageSpec, stageErr.Stage)
	assert.ErrorIs(t, err, ErrRepairExhausted)
	assert.Equal(t, "spec", result.FailedStage)

	// No checkpoint for the failed stage.
	_, statErr := os.Stat(filepath.Join(cfg.OutDir, "spec.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_TOCNeverFatal(t *testing.T) {
	t.Parallel()

	// Structured backend answers SPEC correctly, then collapses into prose
	// with no usable lines. The ladder must synthesize a TOC rather than
	// fail the stage.
	structured := &fakeCompleter{name: "structured", fn: func(req llm.Request) (*llm.Response, error) {
		if strings.Contains(req.System, "book specification") {
			return &llm.Response{Text: `{"title": "Fallback Book"}`}, nil
		}
		return &llm.Response{Text: "chapters, chapters everywhere, none of them numbered"}, nil
	}}

	cfg := testBookConfig(t)
	p := newTestPipeline(t, cfg, llm.NewRouter(structured, llm.NewOpenAI(&StubOpenAIClient{}, config.OpenAIConfig{Model: "stub"})))

	state, _, err := p.Run(context.Background(), "run-1", "learn woodworking")
	require.NoError(t, err)

	require.Len(t, state.TOC, cfg.DefaultChapters)
	sum := 0
	for _, e := range state.TOC {
		sum += e.TargetPages
	}
	assert.Equal(t, cfg.PagesTotal, sum)
}

func TestRunDraft_FailureIsolation(t *testing.T) {
	t.Parallel()

	// One chapter fails every attempt; its siblings must complete and the
	// ordinal ordering must survive.
	heavy := &fakeCompleter{name: "heavy", fn: func(req llm.Request) (*llm.Response, error) {
		if strings.Contains(req.User, "Beta") {
			return nil, resilience.NewRecoverableError(errors.New("overloaded"), 503)
		}
		return &llm.Response{Text: "chapter prose"}, nil
	}}

	cfg := testBookConfig(t)
	p := newTestPipeline(t, cfg, llm.NewRouter(stubStructured(), heavy))

	state := &model.RunState{
		Problem:      "x",
		PagesTotal:   30,
		WordsPerPage: 350,
		Spec:         &model.BookSpec{Title: "T", Audience: []string{}, Goals: []string{}, Constraints: []string{}},
		TOC: []model.TocEntry{
			{Number: 1, Title: "Alpha", TargetPages: 10},
			{Number: 2, Title: "Beta", TargetPages: 10},
			{Number: 3, Title: "Gamma", TargetPages: 10},
		},
	}
	for _, e := range state.TOC {
		state.Plans = append(state.Plans, model.ChapterPlan{
			Number: e.Number, Title: e.Title,
			Objectives: []string{}, KeyIdeas: []string{}, ImagePrompts: []model.ImagePrompt{},
		})
	}

	_, err := p.runDraft(context.Background(), state)
	require.NoError(t, err)
	require.Len(t, state.Drafts, 3)

	assert.Equal(t, model.DraftDone, state.Drafts[0].Status)
	assert.Equal(t, model.DraftFailed, state.Drafts[1].Status)
	assert.Equal(t, model.DraftDone, state.Drafts[2].Status)

	assert.Equal(t, 2, state.Drafts[1].Attempts)
	assert.Contains(t, state.Drafts[1].Body, "Draft unavailable")
	assert.NotEmpty(t, state.Drafts[1].Error)

	for i, d := range state.Drafts {
		assert.Equal(t, i+1, d.Number)
	}

	// Assembly keeps the failed chapter, visibly marked.
	md := assembleMarkdown(state)
	assert.Contains(t, md, `<a id="ch2"></a>`)
	assert.Contains(t, md, "Draft unavailable")
}

func stubStructured() llm.Completer {
	return llm.NewAnthropic(&StubAnthropicClient{}, config.AnthropicConfig{Model: "stub"})
}
