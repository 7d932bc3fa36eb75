// Package openaichat wraps the official openai-go chat completions API
// behind the small surface the pipeline needs.
package openaichat

import (
	"context"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rotisserie/eris"
)

// Client defines the OpenAI chat operations used by the pipeline.
type Client interface {
	CreateChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is our own request type for CreateChatCompletion.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature *float64
	MaxTokens   int64
}

// ChatResponse is our own response type.
type ChatResponse struct {
	Text  string
	Usage TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// sdkClient implements Client using the official openai-go SDK.
type sdkClient struct {
	client openai.Client
}

// Option customizes the client.
type Option func(*[]option.RequestOption)

// WithBaseURL overrides the API endpoint, e.g. for a local inference server.
func WithBaseURL(baseURL string) Option {
	return func(opts *[]option.RequestOption) {
		if baseURL != "" {
			*opts = append(*opts, option.WithBaseURL(baseURL))
		}
	}
}

// NewClient creates a new OpenAI chat client backed by the SDK.
func NewClient(apiKey string, opts ...Option) Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, o := range opts {
		o(&reqOpts)
	}
	return &sdkClient{client: openai.NewClient(reqOpts...)}
}

func (c *sdkClient) CreateChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msgs := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: msgs,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "openaichat: create completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openaichat: empty choices")
	}

	return &ChatResponse{
		Text: resp.Choices[0].Message.Content,
		Usage: TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
