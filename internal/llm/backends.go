package llm

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/bookgen/internal/config"
	"github.com/sells-group/bookgen/internal/model"
	"github.com/sells-group/bookgen/pkg/anthropic"
	"github.com/sells-group/bookgen/pkg/openaichat"
)

// anthropicBackend adapts pkg/anthropic to the Completer interface.
type anthropicBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// NewAnthropic wraps an Anthropic client as a Completer with request rate
// limiting.
func NewAnthropic(client anthropic.Client, cfg config.AnthropicConfig) Completer {
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &anthropicBackend{
		client:    client,
		model:     cfg.Model,
		maxTokens: maxTokens,
		limiter:   newLimiter(cfg.RPS),
	}
}

func (b *anthropicBackend) Name() string { return "anthropic" }

func (b *anthropicBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "anthropic backend: rate limit wait")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = b.maxTokens
	}

	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       b.model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.User}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}
	return &Response{
		Text: resp.Text,
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// openaiBackend adapts pkg/openaichat to the Completer interface.
type openaiBackend struct {
	client  openaichat.Client
	model   string
	limiter *rate.Limiter
}

// NewOpenAI wraps an OpenAI chat client as a Completer with request rate
// limiting.
func NewOpenAI(client openaichat.Client, cfg config.OpenAIConfig) Completer {
	return &openaiBackend{
		client:  client,
		model:   cfg.Model,
		limiter: newLimiter(cfg.RPS),
	}
}

func (b *openaiBackend) Name() string { return "openai" }

func (b *openaiBackend) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "openai backend: rate limit wait")
	}

	resp, err := b.client.CreateChatCompletion(ctx, openaichat.ChatRequest{
		Model:       b.model,
		System:      req.System,
		User:        req.User,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	return &Response{
		Text: resp.Text,
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}
