package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apresai/voicestudio/internal/stack"
	"github.com/apresai/voicestudio/internal/studio"
	"github.com/apresai/voicestudio/internal/tts"
	"github.com/apresai/voicestudio/internal/voice"
)

var listVoicesCmd = &cobra.Command{
	Use:   "list-voices",
	Short: "List catalog voices and how each TTS provider renders them",
	RunE:  runListVoices,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend [text]",
	Short: "Print the voice a mode would pick, without synthesizing",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRecommend,
}

var (
	flagListProvider string
	flagRecInput     string
	flagRecMode      string
)

func init() {
	listVoicesCmd.Flags().StringVarP(&flagListProvider, "provider", "p", "", "Only show this provider (default all)")
	recommendCmd.Flags().StringVarP(&flagRecInput, "input", "i", "", "Read the text from a file (- for stdin)")
	recommendCmd.Flags().StringVarP(&flagRecMode, "mode", "m", "rule", "rule or llm")
}

func runListVoices(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cat := voice.Default()

	fmt.Fprintln(out, "\nCatalog voices:")
	fmt.Fprintf(out, "  %s\n", strings.Repeat("─", 50))
	for _, info := range cat.Infos() {
		def := ""
		if info.ID == cat.Default() {
			def = " (default)"
		}
		fmt.Fprintf(out, "  %-10s %s%s\n", info.ID, info.Description, def)
	}

	providers := tts.ProviderNames()
	if flagListProvider != "" {
		providers = []string{flagListProvider}
	}
	for _, name := range providers {
		infos, err := tts.AvailableVoices(name)
		if err != nil {
			return err
		}
		printProviderVoices(out, name, infos)
	}
	fmt.Fprintln(out)
	return nil
}

func printProviderVoices(w io.Writer, provider string, infos []tts.VoiceInfo) {
	fmt.Fprintf(w, "\n  %s\n", strings.ToUpper(provider))
	fmt.Fprintf(w, "  %s\n", strings.Repeat("─", 50))
	fmt.Fprintf(w, "  %-10s %-28s %s\n", "VOICE", "PROVIDER ID", "DESCRIPTION")
	for _, v := range infos {
		fmt.Fprintf(w, "  %-10s %-28s %s\n", v.Voice, v.ProviderID, v.Description)
	}
}

func runRecommend(cmd *cobra.Command, args []string) error {
	text, err := readScript(cmd.InOrStdin(), flagRecInput, args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return describe(studio.ErrEmptyText)
	}
	mode, err := studio.ParseMode(flagRecMode, "")
	if err != nil {
		return err
	}
	if mode.Kind == studio.ModeManual {
		return fmt.Errorf("recommend takes rule or llm, not %s", mode)
	}

	// Rules need no provider keys.
	if mode.Kind == studio.ModeRuleBased {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		rules, err := stack.LoadRules(cfg.RulesFile)
		if err != nil {
			return err
		}
		rr, err := voice.NewRuleRecommender(voice.Default(), rules)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rr.Recommend(text))
		return nil
	}

	a, err := newApp(cmd.Context(), cmd, appOptions{needLLM: true})
	if err != nil {
		return err
	}
	defer a.close()

	v, err := voice.NewLLMRecommender(a.orch.Catalog()).Recommend(cmd.Context(), text, a.classify)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}
