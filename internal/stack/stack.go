// Package stack builds the studio from a loaded config. The CLI and the MCP
// server share it so both run the same collaborators.
package stack

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"

	"github.com/apresai/voicestudio/internal/config"
	"github.com/apresai/voicestudio/internal/ingest"
	"github.com/apresai/voicestudio/internal/llm"
	"github.com/apresai/voicestudio/internal/observability"
	"github.com/apresai/voicestudio/internal/storage"
	"github.com/apresai/voicestudio/internal/studio"
	"github.com/apresai/voicestudio/internal/tts"
	"github.com/apresai/voicestudio/internal/voice"
)

// Options tunes Build.
type Options struct {
	// LLM builds the chat collaborators (classifier, translator, summarizer).
	LLM    bool
	Logger *slog.Logger

	// Provider and Store replace the configured ones when set.
	Provider tts.Provider
	Store    studio.Store
}

// Stack is a wired studio.
type Stack struct {
	Rules        *voice.RuleRecommender
	Provider     tts.Provider
	Orchestrator *studio.Orchestrator
	Briefer      *studio.Briefer
	Extractor    *ingest.Extractor
	// Classify is nil unless Options.LLM was set.
	Classify voice.ClassifierFunc
}

// Build wires a studio for cfg.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Stack, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rules, err := LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	rr, err := voice.NewRuleRecommender(voice.Default(), rules)
	if err != nil {
		return nil, err
	}

	provider := opts.Provider
	if provider == nil {
		provider, err = tts.NewProvider(ctx, cfg.TTSProvider, cfg.TTSOptions())
		if err != nil {
			return nil, fmt.Errorf("create TTS provider: %w", err)
		}
	}

	store := opts.Store
	if store == nil {
		store, err = NewStore(ctx, cfg)
		if err != nil {
			provider.Close()
			return nil, err
		}
	}

	s := &Stack{Rules: rr, Provider: provider, Extractor: ingest.NewExtractor(nil)}
	sc := studio.Config{
		Rules:       rr,
		Synthesizer: provider,
		Store:       store,
		Logger:      logger,
	}
	var summarizer studio.Summarizer
	if opts.LLM {
		completer, err := llm.New(ctx, cfg.LLMConfig())
		if err != nil {
			provider.Close()
			return nil, fmt.Errorf("create llm client: %w", err)
		}
		classifier := llm.NewClassifier(completer)
		sc.Classifier = classifier
		sc.Translator = llm.NewTranslator(completer)
		summarizer = llm.NewSummarizer(completer)
		s.Classify = classifier.Classify
	}

	orch, err := studio.New(sc)
	if err != nil {
		provider.Close()
		return nil, err
	}
	s.Orchestrator = orch
	s.Briefer = studio.NewBriefer(orch, s.Extractor, summarizer)

	logger.Info("Studio ready",
		"tts_provider", provider.Name(),
		"llm_provider", cfg.LLMProvider,
		"storage", cfg.Storage,
		"llm", opts.LLM,
	)
	return s, nil
}

// LoadRules reads a rules file, or returns the built-in rules for "".
func LoadRules(path string) ([]voice.Rule, error) {
	if path == "" {
		return voice.DefaultRules(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()
	return voice.LoadRules(f)
}

// NewStore opens the configured clip store.
func NewStore(ctx context.Context, cfg *config.Config) (studio.Store, error) {
	if cfg.Storage != config.StorageS3 {
		return storage.NewFileStore(cfg.OutputDir), nil
	}
	awsCfg, err := observability.LoadAWSConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	return storage.NewS3Store(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.CDNBaseURL, func() string { return ulid.Make().String() }), nil
}

// Close releases the TTS provider.
func (s *Stack) Close() error {
	if s.Provider == nil {
		return nil
	}
	return s.Provider.Close()
}
