package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/apresai/voicestudio/internal/config"
	"github.com/apresai/voicestudio/internal/ingest"
	"github.com/apresai/voicestudio/internal/observability"
	"github.com/apresai/voicestudio/internal/stack"
	"github.com/apresai/voicestudio/internal/studio"
	"github.com/apresai/voicestudio/internal/tts"
	"github.com/apresai/voicestudio/internal/voice"
)

// app is the wiring behind one command run.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	provider tts.Provider
	orch     *studio.Orchestrator
	briefer  *studio.Briefer
	classify voice.ClassifierFunc
	shutdown observability.ShutdownFunc
	// extractor fetches URL sources for briefs.
	extractor *ingest.Extractor
}

type appOptions struct {
	// needLLM builds the chat collaborators and requires their key.
	needLLM bool
	// logTo receives logs; nil means stderr when verbose and discard
	// otherwise.
	logTo io.Writer
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.Options{
		EnvFile:    flagEnvFile,
		ConfigFile: flagConfig,
		Flags:      cmd.Flags(),
	})
}

func newApp(ctx context.Context, cmd *cobra.Command, opts appOptions) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckKeys(opts.needLLM); err != nil {
		return nil, err
	}

	level, _ := observability.ParseLevel(cfg.LogLevel)
	w := opts.logTo
	if w == nil {
		w = io.Discard
		if flagVerbose {
			w = os.Stderr
		}
	}
	logger := observability.InitLogger(w, level)
	slog.SetDefault(logger)

	shutdown, err := observability.InitTracer(ctx, "voicestudio", Version)
	if err != nil {
		logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
		shutdown = func(context.Context) error { return nil }
	}

	a := &app{cfg: cfg, log: logger, shutdown: shutdown}
	if err := a.wire(ctx, opts); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, opts appOptions) error {
	st, err := stack.Build(ctx, a.cfg, stack.Options{LLM: opts.needLLM, Logger: a.log})
	if err != nil {
		return err
	}
	a.provider = st.Provider
	a.orch = st.Orchestrator
	a.briefer = st.Briefer
	a.extractor = st.Extractor
	a.classify = st.Classify
	return nil
}

func (a *app) close() {
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.log.Warn("Closing TTS provider failed", "error", err)
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil {
			a.log.Error("Tracer shutdown error", "error", err)
		}
	}
}
