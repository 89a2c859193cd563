package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/history"
	"github.com/apresai/voicestudio/internal/llm"
	"github.com/apresai/voicestudio/internal/progress"
	"github.com/apresai/voicestudio/internal/studio"
)

var generateCmd = &cobra.Command{
	Use:   "generate [text]",
	Short: "Synthesize one clip from a script",
	Example: `  voicestudio generate "포기하지 않는 간절한 꿈은 꼭 이루어집니다."
  voicestudio generate -i script.txt --mode manual --voice onyx -f wav
  echo "Hello" | voicestudio generate -i - --translate 일본어`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

var (
	flagInput     string
	flagMode      string
	flagVoice     string
	flagTranslate string
	flagFormat    string
)

func init() {
	generateCmd.Flags().StringVarP(&flagInput, "input", "i", "", "Read the script from a file (- for stdin)")
	generateCmd.Flags().StringVarP(&flagMode, "mode", "m", "rule", "Voice selection mode: "+modeHelp())
	generateCmd.Flags().StringVar(&flagVoice, "voice", "alloy", "Voice for manual mode: "+voiceHelp())
	generateCmd.Flags().StringVarP(&flagTranslate, "translate", "l", "", "Translate before synthesis (e.g. English, 일본어)")
	generateCmd.Flags().StringVarP(&flagFormat, "format", "f", "mp3", "Audio format: "+formatHelp())
}

func runGenerate(cmd *cobra.Command, args []string) error {
	text, err := readScript(cmd.InOrStdin(), flagInput, args)
	if err != nil {
		return err
	}
	mode, err := studio.ParseMode(flagMode, flagVoice)
	if err != nil {
		return err
	}
	format, err := audio.ParseFormat(flagFormat)
	if err != nil {
		return describe(err)
	}

	a, err := newApp(cmd.Context(), cmd, appOptions{needLLM: mode.Kind == studio.ModeLLMBased || flagTranslate != ""})
	if err != nil {
		return err
	}
	defer a.close()
	if needsFFmpeg(a.cfg.TTSProvider, format) {
		if err := audio.CheckFFmpeg(); err != nil {
			return err
		}
	}

	req := studio.Request{
		Text:        text,
		Mode:        mode,
		TranslateTo: llm.LanguageName(flagTranslate),
		Format:      format,
		Source:      history.SourceText,
	}
	if !flagVerbose {
		r := progress.NewBarRenderer(cmd.OutOrStdout())
		defer r.Finish()
		req.Progress = r.Handle
	}

	rec, err := a.orch.Generate(cmd.Context(), req)
	if err != nil {
		return describe(err)
	}
	if flagVerbose {
		printRecord(cmd.OutOrStdout(), rec)
	}
	return nil
}

// needsFFmpeg reports whether provider has to transcode to produce format.
func needsFFmpeg(provider string, format audio.Format) bool {
	switch {
	case provider == "gemini":
		return format != audio.FormatWAV
	case format == audio.FormatMP3 || format == audio.FormatWAV:
		return false
	case provider == "openai":
		return false
	case provider == "google":
		return format != audio.FormatOpus
	default:
		return true
	}
}

// readScript takes the script from the positional argument, a file, or
// stdin when the file is "-".
func readScript(stdin io.Reader, input string, args []string) (string, error) {
	switch {
	case len(args) == 1 && input != "":
		return "", errors.New("pass the script as an argument or with --input, not both")
	case len(args) == 1:
		return args[0], nil
	case input == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case input != "":
		data, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("read script: %w", err)
		}
		return string(data), nil
	default:
		return "", describe(studio.ErrEmptyText)
	}
}

func printRecord(w io.Writer, rec history.ClipRecord) {
	fmt.Fprintf(w, "%s\n", rec.Path)
	fmt.Fprintf(w, "  id:     %s\n", rec.ID)
	fmt.Fprintf(w, "  voice:  %s\n", rec.Voice)
	fmt.Fprintf(w, "  format: %s\n", rec.Format)
	fmt.Fprintf(w, "  source: %s\n", rec.Source.Label())
	fmt.Fprintf(w, "  text:   %s\n", strings.ReplaceAll(rec.TextPreview, "\n", " "))
}
