package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/mark3labs/mcp-go/server"

	"github.com/apresai/voicestudio/internal/config"
	"github.com/apresai/voicestudio/internal/observability"
	"github.com/apresai/voicestudio/internal/stack"
)

const endpointPath = "/mcp"

// Server is the MCP server exposing the studio as tools.
type Server struct {
	cfg      *config.Config
	mcp      *server.MCPServer
	http     *server.StreamableHTTPServer
	handlers *Handlers
	sessions *Sessions
	store    *Store
	stack    *stack.Stack
	log      *slog.Logger
}

// SecretsAPI is the Secrets Manager call used for provider keys.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// New creates and configures the MCP server. Provider keys missing from cfg
// are looked up under cfg.SecretPrefix first.
func New(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*Server, error) {
	var awsCfg aws.Config
	if cfg.SecretPrefix != "" || cfg.AuthTable != "" {
		var err error
		awsCfg, err = observability.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
	}

	if cfg.SecretPrefix != "" {
		n := loadSecrets(ctx, secretsmanager.NewFromConfig(awsCfg), cfg, logger)
		logger.Info("Secrets loaded", "prefix", cfg.SecretPrefix, "count", n)
	}
	if err := cfg.CheckKeys(false); err != nil {
		return nil, err
	}

	llmReady := cfg.LLMReady()
	if !llmReady {
		logger.Warn("Chat model key missing; llm mode, translation and briefs are disabled",
			"llm_provider", cfg.LLMProvider)
	}
	st, err := stack.Build(ctx, cfg, stack.Options{LLM: llmReady, Logger: logger})
	if err != nil {
		return nil, err
	}

	var store *Store
	if cfg.AuthTable != "" {
		store = NewStore(dynamodb.NewFromConfig(awsCfg), cfg.AuthTable)
	}

	sessions := NewSessions()
	handlers := NewHandlers(HandlerDeps{
		Orchestrator: st.Orchestrator,
		Briefer:      st.Briefer,
		Rules:        st.Rules,
		Classify:     st.Classify,
		Fetch:        st.Extractor.Ingest,
		Sessions:     sessions,
		Store:        store,
		RequireAuth:  store != nil,
		Provider:     cfg.TTSProvider,
		MaxTasks:     cfg.MCPMaxTasks,
		Logger:       logger,
	})

	mcpServer := server.NewMCPServer(
		"voicestudio",
		version,
		server.WithToolCapabilities(true),
		server.WithHooks(sessions.Hooks()),
	)
	handlers.Register(mcpServer)

	return &Server{
		cfg:      cfg,
		mcp:      mcpServer,
		handlers: handlers,
		sessions: sessions,
		store:    store,
		stack:    st,
		log:      logger,
	}, nil
}

// Register adds every tool in ToolDefs to s.
func (h *Handlers) Register(s *server.MCPServer) {
	handlers := map[string]server.ToolHandlerFunc{
		"generate_clip":   h.HandleGenerateClip,
		"brief_report":    h.HandleBriefReport,
		"recommend_voice": h.HandleRecommendVoice,
		"list_voices":     h.HandleListVoices,
		"clip_history":    h.HandleClipHistory,
		"list_clips":      h.HandleListClips,
	}
	for _, tool := range ToolDefs() {
		s.AddTool(tool, handlers[tool.Name])
	}
}

// Start serves MCP over streamable HTTP until ctx is cancelled. Sessions are
// stateful so each client keeps its own clip history.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.MCPPort)
	httpServer := &http.Server{Addr: addr}
	opts := []server.StreamableHTTPOption{
		server.WithEndpointPath(endpointPath),
		server.WithStreamableHTTPServer(httpServer),
	}
	if s.store != nil {
		opts = append(opts, server.WithHTTPContextFunc(s.store.HTTPContext))
	}
	s.http = server.NewStreamableHTTPServer(s.mcp, opts...)
	mux := http.NewServeMux()
	mux.Handle(endpointPath, s.sessions.Handler(s.http))
	httpServer.Handler = mux
	s.log.Info("Starting MCP server", "addr", addr, "auth", s.store != nil)

	errc := make(chan error, 1)
	go func() { errc <- s.http.Start(addr) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("Shutdown signal received, draining requests...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// Close releases the TTS provider.
func (s *Server) Close() error {
	return s.stack.Close()
}

// Store returns the DynamoDB store, or nil when auth_table is unset.
func (s *Server) Store() *Store { return s.store }

// loadSecrets fills provider keys missing from cfg with values from
// Secrets Manager at prefix+ENV_NAME and returns how many it found.
func loadSecrets(ctx context.Context, client SecretsAPI, cfg *config.Config, logger *slog.Logger) int {
	loaded := 0
	for _, env := range config.KeyEnvVars() {
		if cfg.Key(env) != "" {
			continue
		}
		secretID := cfg.SecretPrefix + env
		result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: &secretID,
		})
		if err != nil {
			logger.Info("Secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if result.SecretString != nil && *result.SecretString != "" {
			cfg.SetKey(env, *result.SecretString)
			loaded++
			logger.Info("Loaded secret", "secret_id", secretID)
		}
	}
	return loaded
}
