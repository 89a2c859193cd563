package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type ClaudeCompleter struct {
	model  string
	client anthropic.Client
}

// NewClaudeCompleter creates a Claude completer. An empty apiKey falls back
// to ANTHROPIC_API_KEY.
func NewClaudeCompleter(apiKey, model string, opts ...option.RequestOption) *ClaudeCompleter {
	if apiKey != "" {
		opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	}
	if model == "" {
		model = DefaultModel("claude")
	}
	return &ClaudeCompleter{model: model, client: anthropic.NewClient(opts...)}
}

func (c *ClaudeCompleter) Complete(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens(req)),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API error: %w", err)
	}

	text := strings.TrimSpace(claudeText(message))
	if text == "" {
		return "", fmt.Errorf("Claude: %w", ErrEmptyResponse)
	}
	return text, nil
}

func claudeText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "")
}
