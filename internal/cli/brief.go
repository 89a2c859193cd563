package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/ingest"
	"github.com/apresai/voicestudio/internal/progress"
	"github.com/apresai/voicestudio/internal/studio"
)

var briefCmd = &cobra.Command{
	Use:   "brief <report.pdf|report.docx|notes.txt|URL>",
	Short: "Summarize a report in Korean and read the summary aloud",
	Args:  cobra.ExactArgs(1),
	RunE:  runBrief,
}

var (
	flagInstructions     string
	flagInstructionsFile string
	flagBriefMode        string
	flagBriefVoice       string
	flagBriefFormat      string
	flagSummaryOut       string
)

func init() {
	briefCmd.Flags().StringVar(&flagInstructions, "instructions", "", "Summary instructions (default: executive summary in Korean)")
	briefCmd.Flags().StringVar(&flagInstructionsFile, "instructions-file", "", "Read summary instructions from a file")
	briefCmd.Flags().StringVarP(&flagBriefMode, "mode", "m", "manual", "Voice selection mode: "+modeHelp())
	briefCmd.Flags().StringVar(&flagBriefVoice, "voice", string(studio.BriefVoice), "Voice for manual mode: "+voiceHelp())
	briefCmd.Flags().StringVarP(&flagBriefFormat, "format", "f", "mp3", "Audio format: "+formatHelp())
	briefCmd.Flags().StringVar(&flagSummaryOut, "summary-out", "", "Also write the summary text to this file")
}

func runBrief(cmd *cobra.Command, args []string) error {
	source := args[0]
	kind, err := ingest.DetectSource(source)
	if err != nil {
		return describe(err)
	}
	mode, err := studio.ParseMode(flagBriefMode, flagBriefVoice)
	if err != nil {
		return err
	}
	format, err := audio.ParseFormat(flagBriefFormat)
	if err != nil {
		return describe(err)
	}
	instructions := flagInstructions
	if flagInstructionsFile != "" {
		if instructions != "" {
			return errors.New("--instructions and --instructions-file are mutually exclusive")
		}
		data, err := os.ReadFile(flagInstructionsFile)
		if err != nil {
			return fmt.Errorf("read instructions: %w", err)
		}
		instructions = string(data)
	}

	a, err := newApp(cmd.Context(), cmd, appOptions{needLLM: true})
	if err != nil {
		return err
	}
	defer a.close()
	if needsFFmpeg(a.cfg.TTSProvider, format) {
		if err := audio.CheckFFmpeg(); err != nil {
			return err
		}
	}

	req := studio.BriefRequest{
		FileName:     filepath.Base(source),
		Kind:         kind,
		Mode:         &mode,
		Format:       format,
		Instructions: instructions,
	}
	if kind == ingest.KindURL {
		content, err := a.extractor.Ingest(cmd.Context(), source)
		if err != nil {
			return describe(err)
		}
		req.Content = content
		req.FileName = source
	} else {
		data, err := os.ReadFile(source)
		if err != nil {
			return describe(fmt.Errorf("%w: %w", ingest.ErrExtractionFailed, err))
		}
		req.Data = data
	}

	out := cmd.OutOrStdout()
	var r *progress.BarRenderer
	if !flagVerbose {
		r = progress.NewBarRenderer(out)
		req.Progress = r.Handle
	}

	res, err := a.briefer.Brief(cmd.Context(), req)
	if r != nil {
		r.Finish()
	}
	if err != nil {
		return describe(err)
	}

	fmt.Fprintf(out, "\n%d characters extracted from %s\n", res.CharCount, req.FileName)
	if res.Warning != nil {
		fmt.Fprintln(out, studio.Describe(res.Warning))
		return nil
	}
	printSummary(out, res.Summary)
	if flagSummaryOut != "" {
		if err := os.WriteFile(flagSummaryOut, []byte(res.Summary+"\n"), 0o644); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	if flagVerbose && res.Record != nil {
		printRecord(out, *res.Record)
	}
	return nil
}

func printSummary(w io.Writer, summary string) {
	fmt.Fprintln(w, "\n핵심 요약")
	fmt.Fprintln(w, "────────")
	fmt.Fprintln(w, summary)
}
