package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"github.com/apresai/voicestudio/internal/config"
	"github.com/apresai/voicestudio/internal/mcpserver"
	"github.com/apresai/voicestudio/internal/observability"
)

var version = "dev"

var (
	flagConfig  string
	flagEnvFile string
	flagName    string
	flagEmail   string
	flagMonth   string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "voicestudio-mcp",
		Short:         "Serve the voice studio over MCP streamable HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "Config file (default ./voicestudio.yaml)")
	pf.StringVar(&flagEnvFile, "env-file", ".env", "Environment file loaded before the config")
	pf.Int("mcp-port", 8000, "Port to listen on")
	pf.String("auth-table", "", "DynamoDB table holding API keys and the clip log (empty disables auth)")

	users := &cobra.Command{Use: "users", Short: "Manage API users"}
	createUser := &cobra.Command{
		Use:   "create <user-id>",
		Short: "Create a pending user",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, s *mcpserver.Store, cmd *cobra.Command, args []string) error {
			if err := s.CreateUser(ctx, args[0], flagEmail, flagName); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (pending approval)\n", args[0])
			return nil
		}),
	}
	createUser.Flags().StringVar(&flagEmail, "email", "", "Contact email")
	createUser.Flags().StringVar(&flagName, "name", "", "Display name")
	users.AddCommand(createUser,
		&cobra.Command{
			Use:   "approve <user-id>",
			Short: "Activate a user",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(ctx context.Context, s *mcpserver.Store, cmd *cobra.Command, args []string) error {
				return s.ApproveUser(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "suspend <user-id>",
			Short: "Suspend a user",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(ctx context.Context, s *mcpserver.Store, cmd *cobra.Command, args []string) error {
				return s.SuspendUser(ctx, args[0])
			}),
		},
	)

	keys := &cobra.Command{Use: "keys", Short: "Manage API keys"}
	createKey := &cobra.Command{
		Use:   "create <user-id>",
		Short: "Issue an API key; the key is printed once",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, s *mcpserver.Store, cmd *cobra.Command, args []string) error {
			key, prefix, err := s.CreateAPIKey(ctx, args[0], flagName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key %s for %s:\n%s\n", prefix, args[0], key)
			return nil
		}),
	}
	createKey.Flags().StringVar(&flagName, "name", "", "Label for the key")
	keys.AddCommand(createKey, &cobra.Command{
		Use:   "revoke <prefix>",
		Short: "Revoke an API key by its prefix",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, s *mcpserver.Store, cmd *cobra.Command, args []string) error {
			return s.RevokeAPIKey(ctx, args[0])
		}),
	})

	usage := &cobra.Command{
		Use:   "usage <user-id>",
		Short: "Show a user's monthly clip usage",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(ctx context.Context, s *mcpserver.Store, cmd *cobra.Command, args []string) error {
			month := flagMonth
			if month == "" {
				month = time.Now().UTC().Format("2006-01")
			}
			u, err := s.GetMonthlyUsage(ctx, args[0], month)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d clips, %d characters\n", args[0], month, u.ClipCount, u.TTSChars)
			return nil
		}),
	}
	usage.Flags().StringVar(&flagMonth, "month", "", "Month as YYYY-MM (default current)")

	root.AddCommand(users, keys, usage)
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.Options{
		EnvFile:    flagEnvFile,
		ConfigFile: flagConfig,
		Flags:      cmd.Flags(),
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	level, _ := observability.ParseLevel(cfg.LogLevel)
	logger := observability.InitLogger(os.Stderr, level)
	slog.SetDefault(logger)
	logger.Info("Voice studio MCP server starting...", "version", version)

	shutdown, err := observability.InitTracer(ctx, "voicestudio-mcp", version)
	if err != nil {
		logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("Tracer shutdown error", "error", err)
			}
		}()
	}

	srv, err := mcpserver.New(ctx, cfg, version, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer srv.Close()

	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

type storeFunc func(ctx context.Context, s *mcpserver.Store, cmd *cobra.Command, args []string) error

func withStore(fn storeFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.AuthTable == "" {
			return errors.New("auth_table is not set (use --auth-table or VOICESTUDIO_AUTH_TABLE)")
		}
		awsCfg, err := observability.LoadAWSConfig(cmd.Context(), cfg.AWSRegion)
		if err != nil {
			return err
		}
		return fn(cmd.Context(), mcpserver.NewStore(dynamodb.NewFromConfig(awsCfg), cfg.AuthTable), cmd, args)
	}
}
