package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/voice"
)

// Provider synthesizes one clip of speech for a catalog voice.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string, v voice.ID, format audio.Format) ([]byte, error)
	Voices() []VoiceInfo
	Close() error
}

// VoiceInfo describes how a catalog voice is rendered by a provider.
type VoiceInfo struct {
	Voice       voice.ID `json:"voice"`
	ProviderID  string   `json:"provider_id"`
	Description string   `json:"description"`
}

// Options configures NewProvider. Zero values select provider defaults.
type Options struct {
	APIKey     string
	Model      string
	Region     string
	Retries    int
	HTTPClient *http.Client
	Transcoder audio.Transcoder
}

// ProviderNames returns the supported providers.
func ProviderNames() []string {
	return []string{"openai", "elevenlabs", "google", "gemini", "polly"}
}

// NewProvider creates a TTS provider by name. Retries above one wrap the
// provider in WithRetry.
func NewProvider(ctx context.Context, name string, opts Options) (Provider, error) {
	if opts.Transcoder == nil {
		opts.Transcoder = audio.NewFFmpegTranscoder()
	}

	var (
		p   Provider
		err error
	)
	switch strings.ToLower(name) {
	case "openai":
		p = NewOpenAIProvider(opts.APIKey, opts.Model, nil)
	case "elevenlabs":
		p = NewElevenLabsProvider(opts.APIKey, opts.Model, opts.HTTPClient, opts.Transcoder)
	case "google":
		p, err = NewGoogleProvider(ctx, opts.Transcoder)
	case "gemini":
		p = NewGeminiProvider(opts.APIKey, opts.Model, opts.HTTPClient, opts.Transcoder)
	case "polly":
		p, err = NewPollyProvider(ctx, opts.Region, opts.Transcoder)
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose %s", name, strings.Join(ProviderNames(), ", "))
	}
	if err != nil {
		return nil, err
	}
	if opts.Retries > 1 {
		p = Retrying(p, opts.Retries)
	}
	return p, nil
}

// AvailableVoices returns how each catalog voice maps onto provider without
// creating a client, so no credentials are needed.
func AvailableVoices(provider string) ([]VoiceInfo, error) {
	switch strings.ToLower(provider) {
	case "openai":
		return (&OpenAIProvider{}).Voices(), nil
	case "elevenlabs":
		return (&ElevenLabsProvider{}).Voices(), nil
	case "google":
		return (&GoogleProvider{}).Voices(), nil
	case "gemini":
		return (&GeminiProvider{}).Voices(), nil
	case "polly":
		return (&PollyProvider{}).Voices(), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose %s", provider, strings.Join(ProviderNames(), ", "))
	}
}

func voiceInfos(ids map[voice.ID]string, describe func(voice.Info, string) string) []VoiceInfo {
	infos := voice.Default().Infos()
	out := make([]VoiceInfo, 0, len(infos))
	for _, info := range infos {
		pid := ids[info.ID]
		out = append(out, VoiceInfo{Voice: info.ID, ProviderID: pid, Description: describe(info, pid)})
	}
	return out
}

// Retry constants shared by all providers.
const (
	defaultInitialBackoff = 1 * time.Second
	defaultBackoffMulti   = 2
	defaultMaxBackoff     = 10 * time.Second
)

// RetryableError signals that the operation can be retried.
type RetryableError struct {
	StatusCode int
	Body       string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// WithRetry executes fn up to attempts times with exponential backoff on
// RetryableError. Other errors return immediately.
func WithRetry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	backoff := defaultInitialBackoff

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var re *RetryableError
		if !errors.As(err, &re) {
			return err
		}
		lastErr = err

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= time.Duration(defaultBackoffMulti)
			if backoff > defaultMaxBackoff {
				backoff = defaultMaxBackoff
			}
		}
	}

	return lastErr
}

type retryingProvider struct {
	Provider
	attempts int
}

// Retrying retries p's transient failures up to attempts times.
func Retrying(p Provider, attempts int) Provider {
	return &retryingProvider{Provider: p, attempts: attempts}
}

func (r *retryingProvider) Synthesize(ctx context.Context, text string, v voice.ID, format audio.Format) ([]byte, error) {
	var data []byte
	err := WithRetry(ctx, r.attempts, func() error {
		var err error
		data, err = r.Provider.Synthesize(ctx, text, v, format)
		return err
	})
	return data, err
}

// statusError turns a non-200 response into a RetryableError for 429 and
// 5xx, and a plain error otherwise.
func statusError(provider string, status int, body []byte) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return &RetryableError{StatusCode: status, Body: string(body)}
	}
	return fmt.Errorf("%s API error (status %d): %s", provider, status, string(body))
}
