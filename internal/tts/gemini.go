package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/voice"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiModel   = "gemini-2.5-flash-preview-tts"
	// Gemini returns 16-bit mono PCM at 24 kHz.
	geminiPCMRate = 24000
)

var geminiVoices = map[voice.ID]string{
	voice.Alloy:   "Orus",
	voice.Ash:     "Puck",
	voice.Coral:   "Aoede",
	voice.Echo:    "Charon",
	voice.Fable:   "Leda",
	voice.Onyx:    "Fenrir",
	voice.Nova:    "Zephyr",
	voice.Sage:    "Kore",
	voice.Shimmer: "Achernar",
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded PCM
}

type geminiGenConfig struct {
	ResponseModalities []string           `json:"responseModalities"`
	SpeechConfig       geminiSpeechConfig `json:"speechConfig"`
}

type geminiSpeechConfig struct {
	VoiceConfig geminiVoiceConfig `json:"voiceConfig"`
}

type geminiVoiceConfig struct {
	PrebuiltVoiceConfig geminiPrebuiltVoice `json:"prebuiltVoiceConfig"`
}

type geminiPrebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiProvider implements Provider using Gemini's native TTS model.
type GeminiProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	transcoder audio.Transcoder
}

func NewGeminiProvider(apiKey, model string, httpClient *http.Client, tc audio.Transcoder) *GeminiProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 300 * time.Second}
	}
	if model == "" {
		model = geminiModel
	}
	return &GeminiProvider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    geminiBaseURL,
		httpClient: httpClient,
		transcoder: tc,
	}
}

// WithBaseURL points the provider at another endpoint.
func (p *GeminiProvider) WithBaseURL(u string) *GeminiProvider {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Synthesize(ctx context.Context, text string, v voice.ID, format audio.Format) ([]byte, error) {
	name, ok := geminiVoices[v]
	if !ok {
		return nil, fmt.Errorf("Gemini TTS: %w %q", voice.ErrInvalidVoice, v)
	}

	pcm, err := p.doRequest(ctx, geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: text}}},
		},
		GenerationConfig: geminiGenConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: geminiSpeechConfig{
				VoiceConfig: geminiVoiceConfig{
					PrebuiltVoiceConfig: geminiPrebuiltVoice{VoiceName: name},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return deliver(ctx, p.transcoder, pcm, audio.FormatPCM, geminiPCMRate, format)
}

func (p *GeminiProvider) doRequest(ctx context.Context, reqBody geminiRequest) ([]byte, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal Gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send Gemini request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(res.Body)
		return nil, statusError("Gemini", res.StatusCode, errBody)
	}

	var resp geminiResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parse Gemini response: %w", err)
	}

	if len(resp.Candidates) == 0 ||
		len(resp.Candidates[0].Content.Parts) == 0 ||
		resp.Candidates[0].Content.Parts[0].InlineData == nil {
		return nil, fmt.Errorf("Gemini response contained no audio data")
	}

	audioBytes, err := base64.StdEncoding.DecodeString(resp.Candidates[0].Content.Parts[0].InlineData.Data)
	if err != nil {
		return nil, fmt.Errorf("decode Gemini audio base64: %w", err)
	}
	return audioBytes, nil
}

func (p *GeminiProvider) Voices() []VoiceInfo {
	return voiceInfos(geminiVoices, func(info voice.Info, pid string) string {
		return fmt.Sprintf("%s (%s)", pid, info.Description)
	})
}

func (p *GeminiProvider) Close() error { return nil }
