package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bookgen/internal/checkpoint"
	"github.com/sells-group/bookgen/internal/config"
	"github.com/sells-group/bookgen/internal/llm"
	"github.com/sells-group/bookgen/internal/pipeline"
	"github.com/sells-group/bookgen/internal/prompt"
	"github.com/sells-group/bookgen/internal/resilience"
	"github.com/sells-group/bookgen/internal/store"
	anthropicpkg "github.com/sells-group/bookgen/pkg/anthropic"
	"github.com/sells-group/bookgen/pkg/openaichat"
)

// pipelineEnv bundles the wired pipeline with the resources it owns.
type pipelineEnv struct {
	Store    *store.SQLiteStore
	Pipeline *pipeline.Pipeline
}

func (e *pipelineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	dsn := cfg.Store.Path
	if dsn == "" {
		dsn = "bookgen.db"
	}
	st, err := store.NewSQLite(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "init sqlite store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func retryConfig() resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	if cfg.Retry.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialBackoffMS > 0 {
		rc.InitialBackoff = time.Duration(cfg.Retry.InitialBackoffMS) * time.Millisecond
	}
	if cfg.Retry.MaxBackoffMS > 0 {
		rc.MaxBackoff = time.Duration(cfg.Retry.MaxBackoffMS) * time.Millisecond
	}
	if cfg.Retry.Multiplier > 0 {
		rc.Multiplier = cfg.Retry.Multiplier
	}
	return rc
}

// buildRouter wires the two generation backends. With offline set, or when
// a backend's API key is missing, the corresponding stub client is used so
// the pipeline stays runnable end to end without credentials.
func buildRouter(offline bool) *llm.Router {
	var anthropicClient anthropicpkg.Client
	if offline || cfg.Anthropic.Key == "" {
		if !offline {
			zap.L().Warn("anthropic key missing, using stub client")
		}
		anthropicClient = &pipeline.StubAnthropicClient{}
	} else {
		anthropicClient = anthropicpkg.NewClient(cfg.Anthropic.Key)
	}

	var openaiClient openaichat.Client
	if offline || cfg.OpenAI.Key == "" {
		if !offline {
			zap.L().Warn("openai key missing, using stub client")
		}
		openaiClient = &pipeline.StubOpenAIClient{}
	} else {
		openaiClient = openaichat.NewClient(cfg.OpenAI.Key, openaichat.WithBaseURL(cfg.OpenAI.BaseURL))
	}

	return llm.NewRouter(
		llm.NewAnthropic(anthropicClient, cfg.Anthropic),
		llm.NewOpenAI(openaiClient, cfg.OpenAI),
	)
}

func initPipeline(ctx context.Context, book config.BookConfig, offline bool) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	prompts, err := prompt.Load(book.PromptsFile)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	ckpt, err := checkpoint.NewFileStore(book.OutDir)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	p, err := pipeline.New(book, retryConfig(), buildRouter(offline), ckpt, st, prompts)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}
