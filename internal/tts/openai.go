package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/voice"
)

var openAIFormats = map[audio.Format]openai.SpeechResponseFormat{
	audio.FormatMP3:  openai.SpeechResponseFormatMp3,
	audio.FormatWAV:  openai.SpeechResponseFormatWav,
	audio.FormatOpus: openai.SpeechResponseFormatOpus,
	audio.FormatAAC:  openai.SpeechResponseFormatAac,
	audio.FormatFLAC: openai.SpeechResponseFormatFlac,
}

// OpenAIProvider implements Provider using the OpenAI speech endpoint. The
// catalog voices are OpenAI's own, so no mapping is needed.
type OpenAIProvider struct {
	model  openai.SpeechModel
	client *openai.Client
}

// NewOpenAIProvider creates the provider. A nil client uses the public
// endpoint with apiKey.
func NewOpenAIProvider(apiKey, model string, client *openai.Client) *OpenAIProvider {
	if client == nil {
		client = openai.NewClient(apiKey)
	}
	m := openai.TTSModel1
	if model != "" {
		m = openai.SpeechModel(model)
	}
	return &OpenAIProvider{model: m, client: client}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Synthesize(ctx context.Context, text string, v voice.ID, format audio.Format) ([]byte, error) {
	rf, ok := openAIFormats[format]
	if !ok {
		return nil, fmt.Errorf("OpenAI: %w %q", audio.ErrInvalidFormat, format)
	}

	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          p.model,
		Input:          text,
		Voice:          openai.SpeechVoice(v),
		ResponseFormat: rf,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read OpenAI audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("OpenAI returned no audio")
	}
	return data, nil
}

func (p *OpenAIProvider) Voices() []VoiceInfo {
	ids := make(map[voice.ID]string)
	for _, id := range voice.Default().All() {
		ids[id] = string(id)
	}
	return voiceInfos(ids, func(info voice.Info, _ string) string { return info.Description })
}

func (p *OpenAIProvider) Close() error { return nil }
