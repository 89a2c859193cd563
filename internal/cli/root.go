package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/llm"
	"github.com/apresai/voicestudio/internal/studio"
	"github.com/apresai/voicestudio/internal/tts"
	"github.com/apresai/voicestudio/internal/voice"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "voicestudio",
	Short:         "Turn scripts and reports into speech with recommended voices",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSession,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "voicestudio %s\n", Version)
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Open the interactive studio (default)",
	RunE:  runSession,
}

var (
	flagConfig      string
	flagEnvFile     string
	flagVerbose     bool
	flagTTSProvider string
	flagTTSModel    string
	flagLLMProvider string
	flagLLMModel    string
	flagOutputDir   string
	flagStorage     string
	flagLogLevel    string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "Config file (default ./voicestudio.yaml)")
	pf.StringVar(&flagEnvFile, "env-file", ".env", "Environment file loaded before the config")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Log to stderr instead of showing a progress bar")
	pf.StringVarP(&flagTTSProvider, "tts-provider", "T", "openai", "TTS provider: "+strings.Join(tts.ProviderNames(), ", "))
	pf.StringVar(&flagTTSModel, "tts-model", "", "TTS model ID (provider default when empty)")
	pf.StringVar(&flagLLMProvider, "llm-provider", "openai", "Chat model provider for translation, summaries and llm mode: "+strings.Join(llm.ProviderNames(), ", "))
	pf.StringVar(&flagLLMModel, "llm-model", "", "Chat model ID (provider default when empty)")
	pf.StringVarP(&flagOutputDir, "output-dir", "o", "output_audio", "Directory for generated clips")
	pf.StringVar(&flagStorage, "storage", "file", "Where clips are stored: file or s3")
	pf.StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(briefCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(listVoicesCmd)
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// describe prefixes err with the message shown to users.
func describe(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s\n  (%w)", studio.Describe(err), err)
}

func modeHelp() string {
	return strings.Join(studio.ModeNames(), ", ")
}

func voiceHelp() string {
	ids := voice.Default().All()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}

func formatHelp() string {
	return strings.Join(audio.FormatNames(), ", ")
}
