package tts

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/voice"
)

const googleLanguage = "ko-KR"

var googleVoices = map[voice.ID]string{
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

var googleEncodings = map[audio.Format]texttospeechpb.AudioEncoding{
	audio.FormatMP3:  texttospeechpb.AudioEncoding_MP3,
	audio.FormatWAV:  texttospeechpb.AudioEncoding_LINEAR16,
	audio.FormatOpus: texttospeechpb.AudioEncoding_OGG_OPUS,
}

// SpeechSynthesizer is the subset of the Cloud TTS client used here.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// GoogleProvider implements Provider using Google Cloud TTS (Chirp 3 HD).
type GoogleProvider struct {
	client     SpeechSynthesizer
	language   string
	transcoder audio.Transcoder
}

func NewGoogleProvider(ctx context.Context, tc audio.Transcoder) (*GoogleProvider, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create Google TTS client: %w", err)
	}
	return NewGoogleProviderWithClient(client, tc), nil
}

func NewGoogleProviderWithClient(client SpeechSynthesizer, tc audio.Transcoder) *GoogleProvider {
	return &GoogleProvider{client: client, language: googleLanguage, transcoder: tc}
}

func (p *GoogleProvider) Name() string { return "google" }

func googleVoiceName(language, name string) string {
	return fmt.Sprintf("%s-Chirp3-HD-%s", language, name)
}

func (p *GoogleProvider) Synthesize(ctx context.Context, text string, v voice.ID, format audio.Format) ([]byte, error) {
	name, ok := googleVoices[v]
	if !ok {
		return nil, fmt.Errorf("Google TTS: %w %q", voice.ErrInvalidVoice, v)
	}

	native := format
	encoding, ok := googleEncodings[format]
	if !ok {
		native, encoding = audio.FormatMP3, texttospeechpb.AudioEncoding_MP3
	}

	resp, err := p.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: p.language,
			Name:         googleVoiceName(p.language, name),
		},
		AudioConfig: &texttospeechpb.AudioConfig{AudioEncoding: encoding},
	})
	if err != nil {
		return nil, fmt.Errorf("Google TTS synthesize: %w", err)
	}
	// LINEAR16 responses already carry a WAV header.
	return deliver(ctx, p.transcoder, resp.AudioContent, native, 0, format)
}

func (p *GoogleProvider) Voices() []VoiceInfo {
	ids := make(map[voice.ID]string, len(googleVoices))
	for id, name := range googleVoices {
		ids[id] = googleVoiceName(googleLanguage, name)
	}
	return voiceInfos(ids, func(info voice.Info, pid string) string {
		return fmt.Sprintf("%s (%s)", pid[strings.LastIndex(pid, "-")+1:], info.Description)
	})
}

func (p *GoogleProvider) Close() error { return p.client.Close() }
