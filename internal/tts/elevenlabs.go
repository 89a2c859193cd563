package tts

import (
	"bytes"
	"context"
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
	elevenLabsBaseURL      = "https://api.elevenlabs.io/v1/text-to-speech"
	elevenLabsModelID      = "eleven_multilingual_v2"
	elevenLabsPCMRate      = 24000
	elevenLabsMP3Format    = "mp3_44100_128"
	elevenLabsPCMFormatFmt = "pcm_%d"
)

var elevenLabsVoices = map[voice.ID]string{
	voice.Alloy:   "pNInz6obpgDQGcFmaJgB", // Adam
	voice.Ash:     "TxGEqnHWrfWFTfGW9XjX", // Josh
	voice.Coral:   "XB0fDUnXU5powFXDhCwa", // Charlotte
	voice.Echo:    "onwK4e9ZLuTAKqWW03F9", // Daniel
	voice.Fable:   "pFZP5JQG7iQjIQuC4Bku", // Lily
	voice.Onyx:    "VR6AewLTigWG4xSOukaG", // Arnold
	voice.Nova:    "MF3mGyEYCl7XYWbV9V6O", // Elli
	voice.Sage:    "JBFqnCBsd6RMkjVDRZzb", // George
	voice.Shimmer: "EXAVITQu4vr4xnSDxMaL", // Sarah
}

var elevenLabsNames = map[string]string{
	"pNInz6obpgDQGcFmaJgB": "Adam",
	"TxGEqnHWrfWFTfGW9XjX": "Josh",
	"XB0fDUnXU5powFXDhCwa": "Charlotte",
	"onwK4e9ZLuTAKqWW03F9": "Daniel",
	"pFZP5JQG7iQjIQuC4Bku": "Lily",
	"VR6AewLTigWG4xSOukaG": "Arnold",
	"MF3mGyEYCl7XYWbV9V6O": "Elli",
	"JBFqnCBsd6RMkjVDRZzb": "George",
	"EXAVITQu4vr4xnSDxMaL": "Sarah",
}

type elevenLabsRequest struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	VoiceSettings *elevenLabsVoiceParams `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceParams struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed"`
}

// ElevenLabsProvider implements Provider using the ElevenLabs TTS API.
type ElevenLabsProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	transcoder audio.Transcoder
}

func NewElevenLabsProvider(apiKey, model string, httpClient *http.Client, tc audio.Transcoder) *ElevenLabsProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if model == "" {
		model = elevenLabsModelID
	}
	return &ElevenLabsProvider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    elevenLabsBaseURL,
		httpClient: httpClient,
		transcoder: tc,
	}
}

// WithBaseURL points the provider at another endpoint.
func (p *ElevenLabsProvider) WithBaseURL(u string) *ElevenLabsProvider {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string, v voice.ID, format audio.Format) ([]byte, error) {
	voiceID, ok := elevenLabsVoices[v]
	if !ok {
		return nil, fmt.Errorf("ElevenLabs: %w %q", voice.ErrInvalidVoice, v)
	}

	// WAV is assembled locally from PCM; everything else starts from MP3.
	native, outputFormat := audio.FormatMP3, elevenLabsMP3Format
	if format == audio.FormatWAV {
		native, outputFormat = audio.FormatPCM, fmt.Sprintf(elevenLabsPCMFormatFmt, elevenLabsPCMRate)
	}

	bodyBytes, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: p.model,
		VoiceSettings: &elevenLabsVoiceParams{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			UseSpeakerBoost: true,
			Speed:           1.0,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s?output_format=%s", p.baseURL, voiceID, outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(res.Body)
		return nil, statusError("ElevenLabs", res.StatusCode, errBody)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return deliver(ctx, p.transcoder, data, native, elevenLabsPCMRate, format)
}

func (p *ElevenLabsProvider) Voices() []VoiceInfo {
	return voiceInfos(elevenLabsVoices, func(info voice.Info, pid string) string {
		return fmt.Sprintf("%s (%s)", elevenLabsNames[pid], info.Description)
	})
}

func (p *ElevenLabsProvider) Close() error { return nil }
