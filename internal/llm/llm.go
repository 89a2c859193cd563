package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when a model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Request is one system + user exchange.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer sends a single chat request and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

const defaultMaxTokens = 2048

var providerModels = map[string]string{
	"openai": "gpt-4o-mini",
	"claude": "claude-haiku-4-5-20251001",
	"gemini": "gemini-2.5-flash",
	"nova":   "us.amazon.nova-2-lite-v1:0",
}

// ProviderNames returns the supported chat providers.
func ProviderNames() []string {
	return []string{"openai", "claude", "gemini", "nova"}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	return providerModels[provider]
}

// Config selects and authenticates a chat provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	Region   string
}

// New creates a Completer for cfg.Provider.
func New(ctx context.Context, cfg Config) (Completer, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel(cfg.Provider)
	}
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAICompleter(cfg.APIKey, model, nil), nil
	case "claude":
		return NewClaudeCompleter(cfg.APIKey, model), nil
	case "gemini":
		return NewGeminiCompleter(cfg.APIKey, model, nil), nil
	case "nova":
		return NewNovaCompleter(ctx, cfg.Region, model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q (supported: %s)", cfg.Provider, strings.Join(ProviderNames(), ", "))
	}
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}
