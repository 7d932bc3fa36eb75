package pipeline

import (
	"context"
	"strings"

	"github.com/sells-group/bookgen/pkg/anthropic"
	"github.com/sells-group/bookgen/pkg/openaichat"
)

// Compile-time interface checks.
var (
	_ anthropic.Client  = (*StubAnthropicClient)(nil)
	_ openaichat.Client = (*StubOpenAIClient)(nil)
)

// StubAnthropicClient implements anthropic.Client with canned structured
// responses, keyed off the prompt content. Used for offline runs and tests.
type StubAnthropicClient struct{}

// CreateMessage implements anthropic.Client.
func (s *StubAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	content := strings.ToLower(req.System)
	for _, m := range req.Messages {
		content += " " + strings.ToLower(m.Content)
	}

	var text string
	switch {
	case strings.Contains(content, "json converter"):
		text = `{"title": "Converted Output"}`
	case strings.Contains(content, "table of contents"):
		text = `[
  {"number": 1, "title": "Getting Oriented", "target_pages": 20},
  {"number": 2, "title": "Foundations", "target_pages": 25},
  {"number": 3, "title": "Core Techniques", "target_pages": 30},
  {"number": 4, "title": "Worked Examples", "target_pages": 30},
  {"number": 5, "title": "Common Mistakes", "target_pages": 25},
  {"number": 6, "title": "Going Further", "target_pages": 20}
]`
	default:
		text = `{
  "title": "A Practical Guide",
  "subtitle": "From First Principles to Fluent Practice",
  "audience": ["curious practitioners"],
  "goals": ["build durable understanding", "apply techniques immediately"],
  "constraints": ["no prior experience assumed"],
  "tone": "clear and direct"
}`
	}

	return &anthropic.MessageResponse{
		ID:         "stub-msg-001",
		Model:      req.Model,
		Text:       text,
		StopReason: "end_turn",
		Usage: anthropic.TokenUsage{
			InputTokens:  150,
			OutputTokens: 80,
		},
	}, nil
}

// StubOpenAIClient implements openaichat.Client with canned heavy-generation
// responses.
type StubOpenAIClient struct{}

// CreateChatCompletion implements openaichat.Client.
func (s *StubOpenAIClient) CreateChatCompletion(_ context.Context, req openaichat.ChatRequest) (*openaichat.ChatResponse, error) {
	content := strings.ToLower(req.System + " " + req.User)

	var text string
	if strings.Contains(content, "chapter plan") {
		text = `{
  "objectives": ["understand the landscape", "set up a working environment"],
  "key_ideas": ["start small", "iterate quickly"],
  "image_prompts": [{"purpose": "diagram", "prompt": "a simple overview map of the topic"}]
}`
	} else {
		text = "This chapter walks through the topic step by step, building from " +
			"first principles toward fluent practice. Each section introduces one " +
			"idea, demonstrates it with a concrete example, and closes with a short " +
			"exercise the reader can attempt immediately."
	}

	return &openaichat.ChatResponse{
		Text: text,
		Usage: openaichat.TokenUsage{
			InputTokens:  200,
			OutputTokens: 120,
		},
	}, nil
}
