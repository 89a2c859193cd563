package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAICompleter struct {
	model  string
	client *openai.Client
}

// NewOpenAICompleter creates a chat completer. A nil client uses the public
// endpoint with apiKey.
func NewOpenAICompleter(apiKey, model string, client *openai.Client) *OpenAICompleter {
	if client == nil {
		client = openai.NewClient(apiKey)
	}
	if model == "" {
		model = DefaultModel("openai")
	}
	return &OpenAICompleter{model: model, client: client}
}

func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   maxTokens(req),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI chat error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI: %w", ErrEmptyResponse)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("OpenAI: %w", ErrEmptyResponse)
	}
	return text, nil
}
