package studio

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/history"
	"github.com/apresai/voicestudio/internal/ingest"
	"github.com/apresai/voicestudio/internal/progress"
	"github.com/apresai/voicestudio/internal/voice"
)

const (
	// SummaryInputLimit is how many characters of a document are sent to the
	// summarizer.
	SummaryInputLimit = 12000

	// BriefPrefix names stored briefing clips.
	BriefPrefix = "summary_brief"

	// DefaultSummaryInstructions asks for a short Korean executive summary.
	DefaultSummaryInstructions = `아래는 컨설팅 보고서 본문 일부입니다.
핵심 경영 인사이트, 시사점, 권고사항 중심으로
20줄 이내의 한국어 핵심 요약문을 작성해주세요.
불필요한 전문용어나 영어 표현은 지양하고,
경영진이 이해하기 쉽게 간결한 문체로 정리해주세요.`
)

// BriefVoice reads briefings unless the request picks another mode.
const BriefVoice = voice.Nova

type Summarizer interface {
	Summarize(ctx context.Context, text, instructions string) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, data []byte, kind ingest.Kind) (*ingest.Content, error)
}

// BriefRequest is a document to summarize and read aloud. Either Content
// (already extracted) or Data must be set; Kind falls back to the FileName
// extension.
type BriefRequest struct {
	Data     []byte
	FileName string
	Kind     ingest.Kind
	Content  *ingest.Content

	// Mode defaults to Manual(BriefVoice).
	Mode         *Mode
	Format       audio.Format
	Instructions string
	Progress     progress.Callback
}

// BriefResult carries the outcome of a briefing. When Warning is set
// (ErrContentTooShort) nothing was summarized and Record is nil.
type BriefResult struct {
	Content   *ingest.Content
	CharCount int
	Summary   string
	Record    *history.ClipRecord
	Warning   error
}

// Briefer turns uploaded reports into spoken summaries.
type Briefer struct {
	orchestrator *Orchestrator
	extractor    Extractor
	summarizer   Summarizer
}

func NewBriefer(o *Orchestrator, ex Extractor, sum Summarizer) *Briefer {
	return &Briefer{orchestrator: o, extractor: ex, summarizer: sum}
}

func (b *Briefer) Brief(ctx context.Context, req BriefRequest) (BriefResult, error) {
	start := time.Now()
	emit := req.Progress
	if emit == nil {
		emit = progress.NopCallback
	}

	ctx, span := tracer.Start(ctx, "studio.brief")
	defer span.End()
	span.SetAttributes(attribute.String("file_name", req.FileName))

	fail := func(err error) (BriefResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return BriefResult{}, err
	}

	content := req.Content
	if content == nil {
		emit(progress.NewEvent(progress.StageExtract, "Extracting text from "+displayName(req.FileName), 0.05, start))
		var err error
		content, err = b.extract(ctx, req)
		if err != nil {
			return fail(err)
		}
	}

	result := BriefResult{Content: content, CharCount: content.CharCount()}
	span.SetAttributes(attribute.Int("chars", result.CharCount), attribute.Int("skipped", content.Skipped))
	b.orchestrator.log.InfoContext(ctx, "Document extracted",
		"kind", content.Kind, "chars", result.CharCount, "skipped", content.Skipped)

	if content.TooShort() {
		result.Warning = ingest.ErrContentTooShort
		span.SetAttributes(attribute.Bool("too_short", true))
		return result, nil
	}

	emit(progress.NewEvent(progress.StageSummarize, "Summarizing report", 0.15, start))
	summary, err := b.summarize(ctx, content.Text, req.Instructions)
	if err != nil {
		return fail(err)
	}
	result.Summary = summary

	mode := Manual(string(BriefVoice))
	if req.Mode != nil {
		mode = *req.Mode
	}
	rec, err := b.orchestrator.Generate(ctx, Request{
		Text:     summary,
		Mode:     mode,
		Format:   req.Format,
		Source:   history.SourceReport,
		Prefix:   BriefPrefix,
		Progress: req.Progress,
	})
	if err != nil {
		return fail(err)
	}
	result.Record = &rec
	return result, nil
}

func (b *Briefer) extract(ctx context.Context, req BriefRequest) (*ingest.Content, error) {
	ctx, span := tracer.Start(ctx, "studio.extract")
	defer span.End()

	if b.extractor == nil {
		return nil, stepErr(StepExtract, errors.New("no extractor configured"))
	}
	kind := req.Kind
	if kind == "" {
		k, err := ingest.KindFromName(req.FileName)
		if err != nil {
			return nil, stepErr(StepExtract, err)
		}
		kind = k
	}
	span.SetAttributes(attribute.String("kind", string(kind)))

	content, err := b.extractor.Extract(ctx, req.Data, kind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return nil, stepErr(StepExtract, err)
	}
	if content.Source == "" {
		content.Source = req.FileName
	}
	return content, nil
}

func (b *Briefer) summarize(ctx context.Context, text, instructions string) (string, error) {
	ctx, span := tracer.Start(ctx, "studio.summarize")
	defer span.End()

	if b.summarizer == nil {
		return "", stepErr(StepSummarize, errors.New("no summarizer configured"))
	}
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultSummaryInstructions
	}
	if runes := []rune(text); len(runes) > SummaryInputLimit {
		text = string(runes[:SummaryInputLimit])
	}

	summary, err := b.summarizer.Summarize(ctx, text, instructions)
	if err == nil {
		summary = strings.TrimSpace(summary)
		if summary == "" {
			err = errors.New("summarizer returned empty text")
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "summarization failed")
		return "", stepErr(StepSummarize, err)
	}
	span.SetAttributes(attribute.Int("summary_chars", len([]rune(summary))))
	return summary, nil
}

func displayName(name string) string {
	if name == "" {
		return "document"
	}
	return name
}
