package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/history"
	"github.com/apresai/voicestudio/internal/progress"
	"github.com/apresai/voicestudio/internal/voice"
)

var tracer = otel.Tracer("voicestudio/studio")

type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

type Classifier interface {
	Classify(ctx context.Context, systemInstruction, text string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, v voice.ID, format audio.Format) ([]byte, error)
}

// Store persists audio and returns an opaque handle (a path or URL).
type Store interface {
	Store(ctx context.Context, data []byte, v voice.ID, format audio.Format, prefix string) (string, error)
}

// Config wires an Orchestrator. Synthesizer and Store are required; the
// rest default or are only needed by the modes that use them.
type Config struct {
	Catalog     *voice.Catalog
	Rules       *voice.RuleRecommender
	Classifier  Classifier
	Translator  Translator
	Synthesizer Synthesizer
	Store       Store
	Logger      *slog.Logger
	Now         func() time.Time
	NewID       func() string
}

// Request is one clip to generate.
type Request struct {
	Text string
	Mode Mode
	// TranslateTo is a language name; empty skips translation.
	TranslateTo string
	Format      audio.Format
	Source      history.Source
	// Prefix names the stored file; empty means "tts".
	Prefix   string
	Progress progress.Callback
}

// Orchestrator runs voice selection, optional translation, synthesis and
// storage for one request at a time. It holds only read-only collaborators
// and is safe for concurrent use.
type Orchestrator struct {
	catalog     *voice.Catalog
	rules       *voice.RuleRecommender
	llm         *voice.LLMRecommender
	classifier  Classifier
	translator  Translator
	synthesizer Synthesizer
	store       Store
	log         *slog.Logger
	now         func() time.Time
	newID       func() string
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Synthesizer == nil {
		return nil, errors.New("studio: a synthesizer is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("studio: a store is required")
	}

	o := &Orchestrator{
		catalog:     cfg.Catalog,
		rules:       cfg.Rules,
		classifier:  cfg.Classifier,
		translator:  cfg.Translator,
		synthesizer: cfg.Synthesizer,
		store:       cfg.Store,
		log:         cfg.Logger,
		now:         cfg.Now,
		newID:       cfg.NewID,
	}
	if o.catalog == nil {
		o.catalog = voice.Default()
	}
	if o.rules == nil {
		rules, err := voice.NewRuleRecommender(o.catalog, voice.DefaultRules())
		if err != nil {
			return nil, fmt.Errorf("studio: default rules: %w", err)
		}
		o.rules = rules
	}
	o.llm = voice.NewLLMRecommender(o.catalog)
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = func() string { return ulid.Make().String() }
	}
	return o, nil
}

// Catalog returns the voice catalog requests are validated against.
func (o *Orchestrator) Catalog() *voice.Catalog { return o.catalog }

// Generate produces one clip. It does not touch any history; the caller
// appends the returned record to its own.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (history.ClipRecord, error) {
	start := time.Now()
	emit := req.Progress
	if emit == nil {
		emit = progress.NopCallback
	}

	if strings.TrimSpace(req.Text) == "" {
		return history.ClipRecord{}, ErrEmptyText
	}
	format := req.Format
	if format == "" {
		format = audio.FormatMP3
	}
	format, err := audio.ParseFormat(string(format))
	if err != nil {
		return history.ClipRecord{}, err
	}
	source := req.Source
	if source == "" {
		source = history.SourceText
	}

	ctx, span := tracer.Start(ctx, "studio.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("mode", req.Mode.String()),
		attribute.String("format", string(format)),
		attribute.String("source", string(source)),
		attribute.Bool("translate", req.TranslateTo != ""),
		attribute.Int("text_chars", len([]rune(req.Text))),
	)

	fail := func(err error) (history.ClipRecord, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		emit(progress.Event{Stage: progress.StageComplete, Message: "Generation failed", Error: err, Elapsed: time.Since(start)})
		return history.ClipRecord{}, err
	}

	// 1. Voice
	emit(progress.NewEvent(progress.StageVoice, "Choosing a voice ("+req.Mode.String()+")", 0.1, start))
	v, err := o.resolveVoice(ctx, req.Mode, req.Text)
	if err != nil {
		return fail(err)
	}
	span.SetAttributes(attribute.String("voice", string(v)))
	o.log.InfoContext(ctx, "Voice resolved", "voice", v, "mode", req.Mode.String())

	// 2. Translation
	text := req.Text
	if req.TranslateTo != "" {
		emit(progress.NewEvent(progress.StageTranslate, "Translating to "+req.TranslateTo, 0.3, start))
		text, err = o.translate(ctx, text, req.TranslateTo)
		if err != nil {
			return fail(err)
		}
	}

	// 3. Synthesis
	emit(progress.NewEvent(progress.StageSynthesize, fmt.Sprintf("Synthesizing speech (voice=%s, %s)", v, format), 0.5, start))
	data, err := o.synthesize(ctx, text, v, format)
	if err != nil {
		return fail(err)
	}

	// 4. Storage
	prefix := req.Prefix
	if prefix == "" {
		prefix = "tts"
	}
	emit(progress.NewEvent(progress.StageStore, "Saving audio", 0.8, start))
	path, err := o.persist(ctx, data, v, format, prefix)
	if err != nil {
		return fail(err)
	}

	rec := history.ClipRecord{
		ID:          o.newID(),
		Path:        path,
		Voice:       v,
		Format:      format,
		Timestamp:   o.now(),
		TextPreview: history.Preview(text),
		Source:      source,
	}
	span.SetAttributes(attribute.String("clip_id", rec.ID), attribute.String("path", path))
	o.log.InfoContext(ctx, "Clip generated",
		"clip_id", rec.ID,
		"voice", v,
		"format", format,
		"path", path,
		"bytes", len(data),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)

	done := progress.NewEvent(progress.StageComplete, "Clip generated", 1.0, start)
	done.Voice = string(v)
	done.OutputPath = path
	done.SizeKB = float64(len(data)) / 1024
	emit(done)
	return rec, nil
}

func (o *Orchestrator) resolveVoice(ctx context.Context, mode Mode, text string) (voice.ID, error) {
	ctx, span := tracer.Start(ctx, "studio.voice")
	defer span.End()

	var (
		v   voice.ID
		err error
	)
	switch mode.Kind {
	case ModeManual:
		v, err = o.catalog.Parse(mode.Voice)
	case ModeLLMBased:
		if o.classifier == nil {
			err = errors.New("no classifier configured for llm mode")
			break
		}
		v, err = o.llm.Recommend(ctx, text, o.classifier.Classify)
	default:
		v = o.rules.Recommend(text)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "voice resolution failed")
		return "", stepErr(StepVoice, err)
	}
	span.SetAttributes(attribute.String("voice", string(v)))
	return v, nil
}

func (o *Orchestrator) translate(ctx context.Context, text, target string) (string, error) {
	ctx, span := tracer.Start(ctx, "studio.translate")
	defer span.End()
	span.SetAttributes(attribute.String("target_language", target))

	if o.translator == nil {
		return "", stepErr(StepTranslate, errors.New("no translator configured"))
	}
	out, err := o.translator.Translate(ctx, text, target)
	if err == nil && strings.TrimSpace(out) == "" {
		err = errors.New("translator returned empty text")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "translation failed")
		return "", stepErr(StepTranslate, err)
	}
	return out, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, text string, v voice.ID, format audio.Format) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "studio.synthesize")
	defer span.End()

	data, err := o.synthesizer.Synthesize(ctx, text, v, format)
	if err == nil && len(data) == 0 {
		err = errors.New("synthesizer returned no audio")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		o.log.ErrorContext(ctx, "Synthesis failed", "voice", v, "format", format, "error", err)
		return nil, stepErr(StepSynthesize, err)
	}
	span.SetAttributes(attribute.Int("bytes", len(data)))
	return data, nil
}

func (o *Orchestrator) persist(ctx context.Context, data []byte, v voice.ID, format audio.Format, prefix string) (string, error) {
	ctx, span := tracer.Start(ctx, "studio.store")
	defer span.End()

	path, err := o.store.Store(ctx, data, v, format, prefix)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		o.log.ErrorContext(ctx, "Storing clip failed", "voice", v, "format", format, "error", err)
		return "", stepErr(StepStore, err)
	}
	return path, nil
}
