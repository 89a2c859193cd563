package tts

import (
	"context"
	"fmt"
	"io"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/observability"
	"github.com/apresai/voicestudio/internal/voice"
)

const (
	pollyPCMRate     = 16000
	pollyKoreanVoice = types.VoiceIdSeoyeon
)

var pollyVoices = map[voice.ID]types.VoiceId{
	voice.Alloy:   types.VoiceIdMatthew,
	voice.Ash:     types.VoiceIdStephen,
	voice.Coral:   types.VoiceIdRuth,
	voice.Echo:    types.VoiceIdGregory,
	voice.Fable:   types.VoiceIdAmy,
	voice.Onyx:    types.VoiceIdKevin,
	voice.Nova:    types.VoiceIdDanielle,
	voice.Sage:    types.VoiceIdJoanna,
	voice.Shimmer: types.VoiceIdOlivia,
}

// PollyAPI is the subset of the Polly client used here.
type PollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyProvider implements Provider using AWS Polly (neural engine). Polly
// has a single Korean voice, so Hangul text is always read by Seoyeon.
type PollyProvider struct {
	client     PollyAPI
	transcoder audio.Transcoder
}

func NewPollyProvider(ctx context.Context, region string, tc audio.Transcoder) (*PollyProvider, error) {
	cfg, err := observability.LoadAWSConfig(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("Polly: %w", err)
	}
	return NewPollyProviderWithClient(polly.NewFromConfig(cfg), tc), nil
}

func NewPollyProviderWithClient(client PollyAPI, tc audio.Transcoder) *PollyProvider {
	return &PollyProvider{client: client, transcoder: tc}
}

func (p *PollyProvider) Name() string { return "polly" }

func (p *PollyProvider) Synthesize(ctx context.Context, text string, v voice.ID, format audio.Format) ([]byte, error) {
	voiceID, ok := pollyVoices[v]
	if !ok {
		return nil, fmt.Errorf("Polly: %w %q", voice.ErrInvalidVoice, v)
	}
	if containsHangul(text) {
		voiceID = pollyKoreanVoice
	}

	native, outputFormat, rate := audio.FormatMP3, types.OutputFormatMp3, "24000"
	if format == audio.FormatWAV {
		native, outputFormat, rate = audio.FormatPCM, types.OutputFormatPcm, fmt.Sprint(pollyPCMRate)
	}

	resp, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       types.EngineNeural,
		OutputFormat: outputFormat,
		SampleRate:   aws.String(rate),
		Text:         aws.String(text),
		TextType:     types.TextTypeText,
		VoiceId:      voiceID,
	})
	if err != nil {
		return nil, fmt.Errorf("Polly synthesize: %w", err)
	}
	defer resp.AudioStream.Close()

	data, err := io.ReadAll(resp.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("Polly read audio: %w", err)
	}
	return deliver(ctx, p.transcoder, data, native, pollyPCMRate, format)
}

func containsHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

func (p *PollyProvider) Voices() []VoiceInfo {
	ids := make(map[voice.ID]string, len(pollyVoices))
	for id, v := range pollyVoices {
		ids[id] = string(v)
	}
	return voiceInfos(ids, func(info voice.Info, pid string) string {
		return fmt.Sprintf("%s neural; Korean text uses Seoyeon (%s)", pid, info.Description)
	})
}

func (p *PollyProvider) Close() error { return nil }
