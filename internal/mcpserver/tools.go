package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/history"
	"github.com/apresai/voicestudio/internal/ingest"
	"github.com/apresai/voicestudio/internal/studio"
	"github.com/apresai/voicestudio/internal/tts"
	"github.com/apresai/voicestudio/internal/voice"
)

var tracer = otel.Tracer("voicestudio-mcp")

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func enumProp(desc, def string, values []string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values, "default": def}
}

func voiceNames() []string {
	ids := voice.Default().All()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "generate_clip",
			Description: "Synthesize speech for a script. The voice is picked manually, by keyword rules, or by a chat model; the text can be translated first. Returns the stored clip.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"text":         stringProp("Script to read aloud"),
					"mode":         enumProp("How the voice is chosen", "rule", studio.ModeNames()),
					"voice":        enumProp("Voice for manual mode", string(voice.Alloy), voiceNames()),
					"translate_to": stringProp("Translate the script into this language before synthesis (e.g. English, Japanese)"),
					"format":       enumProp("Audio format", string(audio.FormatMP3), audio.FormatNames()),
				},
				Required: []string{"text"},
			},
		},
		{
			Name:        "brief_report",
			Description: "Summarize a report in Korean and read the summary aloud. Pass a URL, raw text, or a base64 document with its file name (pdf, docx, txt).",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"url":             stringProp("Article or report URL"),
					"text":            stringProp("Report body as plain text"),
					"document_base64": stringProp("Report file contents, base64 encoded"),
					"file_name":       stringProp("File name used to detect the document type"),
					"instructions":    stringProp("Override the summary instructions"),
					"mode":            enumProp("How the voice is chosen", "manual", studio.ModeNames()),
					"voice":           enumProp("Voice for manual mode", string(studio.BriefVoice), voiceNames()),
					"format":          enumProp("Audio format", string(audio.FormatMP3), audio.FormatNames()),
				},
			},
		},
		{
			Name:        "recommend_voice",
			Description: "Return the voice a mode would pick for a text, without synthesizing.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"text": stringProp("Text to classify"),
					"mode": enumProp("rule or llm", "rule", []string{"rule", "llm"}),
				},
				Required: []string{"text"},
			},
		},
		{
			Name:        "list_voices",
			Description: "List catalog voices and how each TTS provider renders them.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"provider": map[string]any{
						"type":        "string",
						"description": "Only show this provider (default all)",
						"enum":        tts.ProviderNames(),
					},
				},
			},
		},
		{
			Name:        "clip_history",
			Description: "List clips generated in this session, newest first.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results (default 20)",
						"default":     20,
					},
				},
			},
		},
		{
			Name:        "list_clips",
			Description: "List every clip generated with your API key across sessions, newest first.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results (default 20)",
						"default":     20,
					},
					"cursor": stringProp("Pagination cursor from a previous list_clips call"),
				},
			},
		},
	}
}

// HandlerDeps wires Handlers. Orchestrator, Briefer, Rules and Sessions are
// required; Store enables the clip log and, with RequireAuth, API keys.
type HandlerDeps struct {
	Orchestrator *studio.Orchestrator
	Briefer      *studio.Briefer
	Rules        *voice.RuleRecommender
	Classify     voice.ClassifierFunc
	// Fetch reads URL sources for brief_report.
	Fetch       func(ctx context.Context, url string) (*ingest.Content, error)
	Sessions    *Sessions
	Store       *Store
	RequireAuth bool
	Provider    string
	MaxTasks    int
	Logger      *slog.Logger
}

// Handlers contains tool handler implementations.
type Handlers struct {
	orch        *studio.Orchestrator
	briefer     *studio.Briefer
	rules       *voice.RuleRecommender
	classify    voice.ClassifierFunc
	fetch       func(ctx context.Context, url string) (*ingest.Content, error)
	sessions    *Sessions
	store       *Store
	requireAuth bool
	provider    string
	slots       *slots
	log         *slog.Logger
	sessionID   func(context.Context) string
}

// NewHandlers creates tool handlers.
func NewHandlers(d HandlerDeps) *Handlers {
	h := &Handlers{
		orch:        d.Orchestrator,
		briefer:     d.Briefer,
		rules:       d.Rules,
		classify:    d.Classify,
		fetch:       d.Fetch,
		sessions:    d.Sessions,
		store:       d.Store,
		requireAuth: d.RequireAuth && d.Store != nil,
		provider:    d.Provider,
		slots:       newSlots(d.MaxTasks),
		log:         d.Logger,
		sessionID:   sessionID,
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	return h
}

func fail(span trace.Span, msg string, err error) (*mcp.CallToolResult, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return mcp.NewToolResultError(fmt.Sprintf("%s (%v)", studio.Describe(err), err)), nil
}

// caller returns the user a call runs for.
func (h *Handlers) caller(ctx context.Context) (string, error) {
	auth := AuthFromContext(ctx)
	if auth.Authenticated {
		return auth.UserID, nil
	}
	if !h.requireAuth {
		return "anonymous", nil
	}
	if auth.Error != nil {
		return "", auth.Error
	}
	return "", ErrUnauthorized
}

// keep appends rec to the session history and the clip log. Clip log
// failures are logged; the clip itself already exists.
func (h *Handlers) keep(ctx context.Context, owner, session string, rec history.ClipRecord, chars int) {
	if !h.sessions.Append(session, rec) {
		h.log.InfoContext(ctx, "Session closed before clip finished", "clip_id", rec.ID, "session", session)
	}
	if h.store == nil {
		return
	}
	if err := h.store.PutClip(ctx, owner, session, h.provider, rec); err != nil {
		h.log.WarnContext(ctx, "Clip log write failed", "clip_id", rec.ID, "error", err)
	}
	if err := h.store.RecordUsage(ctx, owner, chars); err != nil {
		h.log.WarnContext(ctx, "Usage rollup failed", "user_id", owner, "error", err)
	}
}

func clipResult(rec history.ClipRecord) map[string]any {
	return map[string]any{
		"clip_id":    rec.ID,
		"path":       rec.Path,
		"voice":      rec.Voice,
		"format":     rec.Format,
		"source":     rec.Source,
		"text":       rec.TextPreview,
		"created_at": rec.Timestamp.UTC().Format(time.RFC3339),
	}
}

// HandleGenerateClip synthesizes one clip.
func (h *Handlers) HandleGenerateClip(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.generate_clip")
	defer span.End()

	owner, err := h.caller(ctx)
	if err != nil {
		return fail(span, "unauthorized", err)
	}

	text := mcp.ParseString(req, "text", "")
	modeName := mcp.ParseString(req, "mode", "rule")
	voiceName := mcp.ParseString(req, "voice", string(voice.Alloy))
	translateTo := mcp.ParseString(req, "translate_to", "")
	formatName := mcp.ParseString(req, "format", string(audio.FormatMP3))

	span.SetAttributes(
		attribute.String("mode", modeName),
		attribute.String("format", formatName),
		attribute.String("translate_to", translateTo),
		attribute.Int("chars", utf8.RuneCountInString(text)),
	)

	mode, err := studio.ParseMode(modeName, voiceName)
	if err != nil {
		span.SetStatus(codes.Error, "invalid mode")
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := audio.ParseFormat(formatName)
	if err != nil {
		return fail(span, "invalid format", err)
	}

	if err := h.slots.acquire(); err != nil {
		return fail(span, "busy", err)
	}
	defer h.slots.release()

	rec, err := h.orch.Generate(ctx, studio.Request{
		Text:        text,
		Mode:        mode,
		TranslateTo: translateTo,
		Format:      format,
		Source:      history.SourceText,
	})
	if err != nil {
		return fail(span, "generate failed", err)
	}

	session := h.sessionID(ctx)
	h.keep(ctx, owner, session, rec, utf8.RuneCountInString(text))
	span.SetAttributes(attribute.String("clip_id", rec.ID), attribute.String("voice", string(rec.Voice)))
	h.log.InfoContext(ctx, "Clip generated", "clip_id", rec.ID, "voice", rec.Voice, "path", rec.Path, "session", session)

	result := clipResult(rec)
	result["message"] = fmt.Sprintf("Generated %s with voice %s.", rec.Path, rec.Voice)
	return jsonResult(result)
}

func (h *Handlers) briefRequest(ctx context.Context, req mcp.CallToolRequest) (studio.BriefRequest, error) {
	var br studio.BriefRequest
	url := mcp.ParseString(req, "url", "")
	text := mcp.ParseString(req, "text", "")
	doc := mcp.ParseString(req, "document_base64", "")
	name := mcp.ParseString(req, "file_name", "")

	given := 0
	for _, s := range []string{url, text, doc} {
		if s != "" {
			given++
		}
	}
	if given != 1 {
		return br, errors.New("exactly one of url, text or document_base64 is required")
	}

	switch {
	case url != "":
		if kind, err := ingest.DetectSource(url); err != nil || kind != ingest.KindURL {
			return br, fmt.Errorf("url must start with http:// or https://")
		}
		if h.fetch == nil {
			return br, errors.New("url sources are not enabled")
		}
		content, err := h.fetch(ctx, url)
		if err != nil {
			return br, err
		}
		br.Content = content
		br.FileName = url
	case text != "":
		br.Data = []byte(text)
		br.Kind = ingest.KindText
		br.FileName = name
		if br.FileName == "" {
			br.FileName = "report.txt"
		}
	default:
		if name == "" {
			return br, errors.New("file_name is required with document_base64")
		}
		data, err := base64.StdEncoding.DecodeString(doc)
		if err != nil {
			return br, fmt.Errorf("%w: document_base64: %w", ingest.ErrExtractionFailed, err)
		}
		br.Data = data
		br.FileName = name
	}
	return br, nil
}

// HandleBriefReport summarizes a report and reads the summary aloud.
func (h *Handlers) HandleBriefReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.brief_report")
	defer span.End()

	owner, err := h.caller(ctx)
	if err != nil {
		return fail(span, "unauthorized", err)
	}

	mode, err := studio.ParseMode(mcp.ParseString(req, "mode", "manual"), mcp.ParseString(req, "voice", string(studio.BriefVoice)))
	if err != nil {
		span.SetStatus(codes.Error, "invalid mode")
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := audio.ParseFormat(mcp.ParseString(req, "format", string(audio.FormatMP3)))
	if err != nil {
		return fail(span, "invalid format", err)
	}

	if err := h.slots.acquire(); err != nil {
		return fail(span, "busy", err)
	}
	defer h.slots.release()

	br, err := h.briefRequest(ctx, req)
	if err != nil {
		return fail(span, "invalid source", err)
	}
	br.Mode = &mode
	br.Format = format
	br.Instructions = mcp.ParseString(req, "instructions", "")
	span.SetAttributes(attribute.String("file_name", br.FileName))

	res, err := h.briefer.Brief(ctx, br)
	if err != nil {
		return fail(span, "brief failed", err)
	}

	result := map[string]any{
		"file_name":  br.FileName,
		"char_count": res.CharCount,
	}
	if res.Warning != nil {
		result["warning"] = studio.Describe(res.Warning)
		return jsonResult(result)
	}

	session := h.sessionID(ctx)
	h.keep(ctx, owner, session, *res.Record, utf8.RuneCountInString(res.Summary))
	h.log.InfoContext(ctx, "Report briefed", "clip_id", res.Record.ID, "chars", res.CharCount, "session", session)

	result["summary"] = res.Summary
	result["clip"] = clipResult(*res.Record)
	return jsonResult(result)
}

// HandleRecommendVoice runs a recommender without synthesizing.
func (h *Handlers) HandleRecommendVoice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.recommend_voice")
	defer span.End()

	if _, err := h.caller(ctx); err != nil {
		return fail(span, "unauthorized", err)
	}

	text := mcp.ParseString(req, "text", "")
	modeName := mcp.ParseString(req, "mode", "rule")
	span.SetAttributes(attribute.String("mode", modeName))

	if text == "" {
		return fail(span, "missing text", studio.ErrEmptyText)
	}

	var v voice.ID
	switch modeName {
	case "rule":
		v = h.rules.Recommend(text)
	case "llm":
		if h.classify == nil {
			span.SetStatus(codes.Error, "llm unavailable")
			return mcp.NewToolResultError("llm mode is not configured on this server"), nil
		}
		var err error
		v, err = voice.NewLLMRecommender(h.orch.Catalog()).Recommend(ctx, text, h.classify)
		if err != nil {
			return fail(span, "recommend failed", err)
		}
	default:
		span.SetStatus(codes.Error, "invalid mode")
		return mcp.NewToolResultError(fmt.Sprintf("mode must be rule or llm, not %q", modeName)), nil
	}

	span.SetAttributes(attribute.String("voice", string(v)))
	return jsonResult(map[string]any{"voice": v, "mode": modeName})
}

// HandleListVoices returns the catalog and provider voice tables.
func (h *Handlers) HandleListVoices(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.list_voices")
	defer span.End()

	cat := h.orch.Catalog()
	catalog := make([]map[string]any, 0, len(cat.Infos()))
	for _, info := range cat.Infos() {
		catalog = append(catalog, map[string]any{
			"voice":       info.ID,
			"description": info.Description,
			"default":     info.ID == cat.Default(),
		})
	}

	providers := tts.ProviderNames()
	if p := mcp.ParseString(req, "provider", ""); p != "" {
		providers = []string{p}
	}
	byProvider := map[string][]tts.VoiceInfo{}
	for _, name := range providers {
		infos, err := tts.AvailableVoices(name)
		if err != nil {
			return fail(span, "unknown provider", err)
		}
		byProvider[name] = infos
	}

	return jsonResult(map[string]any{
		"catalog":   catalog,
		"providers": byProvider,
		"active":    h.provider,
	})
}

// HandleClipHistory lists this session's clips, newest first.
func (h *Handlers) HandleClipHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.clip_history")
	defer span.End()

	limit := parseIntParam(req, "limit", 20)
	if limit <= 0 {
		limit = 20
	}
	session := h.sessionID(ctx)
	span.SetAttributes(attribute.Int("limit", limit))

	clips := make([]map[string]any, 0)
	total := 0
	if hist, ok := h.sessions.Peek(session); ok {
		total = hist.Len()
		for rec := range hist.Recent() {
			if len(clips) == limit {
				break
			}
			clips = append(clips, clipResult(rec))
		}
	}

	result := map[string]any{
		"clips": clips,
		"count": len(clips),
		"total": total,
	}
	if total == 0 {
		result["message"] = "No clips generated in this session yet."
	}
	return jsonResult(result)
}

// HandleListClips pages through the caller's clip log.
func (h *Handlers) HandleListClips(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.list_clips")
	defer span.End()

	if h.store == nil {
		span.SetStatus(codes.Error, "clip log disabled")
		return mcp.NewToolResultError("the clip log is not configured on this server"), nil
	}
	owner, err := h.caller(ctx)
	if err != nil {
		return fail(span, "unauthorized", err)
	}

	limit := parseIntParam(req, "limit", 20)
	cursor := mcp.ParseString(req, "cursor", "")
	span.SetAttributes(attribute.Int("limit", limit), attribute.String("cursor", cursor))

	items, next, err := h.store.ListClips(ctx, owner, limit, cursor)
	if err != nil {
		return fail(span, "list clips failed", err)
	}
	span.SetAttributes(attribute.Int("result_count", len(items)))

	clips := make([]map[string]any, 0, len(items))
	for _, item := range items {
		clips = append(clips, map[string]any{
			"clip_id":    item.ClipID,
			"path":       item.Path,
			"voice":      item.Voice,
			"format":     item.Format,
			"source":     item.Source,
			"text":       item.TextPreview,
			"created_at": item.CreatedAt,
		})
	}
	result := map[string]any{
		"clips": clips,
		"count": len(clips),
	}
	if next != "" {
		result["next_cursor"] = next
	}
	return jsonResult(result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseIntParam(req mcp.CallToolRequest, key string, defaultVal int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	raw, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}
