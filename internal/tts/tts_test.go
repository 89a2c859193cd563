package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/googleapis/gax-go/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/voice"
)

type mockTranscoder struct {
	mock.Mock
}

func (m *mockTranscoder) Transcode(ctx context.Context, data []byte, from audio.Format, sampleRate int, to audio.Format) ([]byte, error) {
	args := m.Called(ctx, data, from, sampleRate, to)
	out, _ := args.Get(0).([]byte)
	return out, args.Error(1)
}

func TestEveryProviderMapsTheWholeCatalog(t *testing.T) {
	maps := map[string]int{
		"elevenlabs": len(elevenLabsVoices),
		"google":     len(googleVoices),
		"gemini":     len(geminiVoices),
		"polly":      len(pollyVoices),
	}
	for name, n := range maps {
		assert.Equal(t, len(voice.Default().All()), n, name)
	}
	for _, id := range voice.Default().All() {
		assert.Contains(t, elevenLabsNames, elevenLabsVoices[id])
	}
}

func TestOpenAIProvider(t *testing.T) {
	var got openai.CreateSpeechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFF-data"))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("k")
	cfg.BaseURL = srv.URL
	p := NewOpenAIProvider("", "", openai.NewClientWithConfig(cfg))

	data, err := p.Synthesize(context.Background(), "안녕", voice.Coral, audio.FormatWAV)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF-data"), data)
	assert.Equal(t, openai.TTSModel1, got.Model)
	assert.Equal(t, openai.SpeechVoice("coral"), got.Voice)
	assert.Equal(t, openai.SpeechResponseFormatWav, got.ResponseFormat)
	assert.Equal(t, "안녕", got.Input)

	_, err = p.Synthesize(context.Background(), "x", voice.Coral, audio.FormatPCM)
	assert.ErrorIs(t, err, audio.ErrInvalidFormat)
}

func TestElevenLabsMP3(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+elevenLabsVoices[voice.Onyx], r.URL.Path)
		assert.Equal(t, elevenLabsMP3Format, r.URL.Query().Get("output_format"))
		assert.Equal(t, "key", r.Header.Get("xi-api-key"))
		w.Write([]byte("ID3mp3"))
	}))
	defer srv.Close()

	p := NewElevenLabsProvider("key", "", srv.Client(), nil).WithBaseURL(srv.URL)
	data, err := p.Synthesize(context.Background(), "위기", voice.Onyx, audio.FormatMP3)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3mp3"), data)
}

func TestElevenLabsWAVFromPCM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pcm_24000", r.URL.Query().Get("output_format"))
		w.Write([]byte{0x01, 0x00, 0xff, 0x7f})
	}))
	defer srv.Close()

	p := NewElevenLabsProvider("key", "", srv.Client(), nil).WithBaseURL(srv.URL)
	data, err := p.Synthesize(context.Background(), "x", voice.Nova, audio.FormatWAV)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("RIFF")))
}

func TestElevenLabsTranscodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	tc := &mockTranscoder{}
	tc.On("Transcode", mock.Anything, []byte("mp3"), audio.FormatMP3, elevenLabsPCMRate, audio.FormatFLAC).Return([]byte("flac"), nil)

	p := NewElevenLabsProvider("key", "", srv.Client(), tc).WithBaseURL(srv.URL)
	data, err := p.Synthesize(context.Background(), "x", voice.Sage, audio.FormatFLAC)
	require.NoError(t, err)
	assert.Equal(t, []byte("flac"), data)
	tc.AssertExpectations(t)
}

func TestElevenLabsStatusErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", status)
	}))
	defer srv.Close()

	p := NewElevenLabsProvider("key", "", srv.Client(), nil).WithBaseURL(srv.URL)
	_, err := p.Synthesize(context.Background(), "x", voice.Alloy, audio.FormatMP3)
	var re *RetryableError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusTooManyRequests, re.StatusCode)

	status = http.StatusUnauthorized
	_, err = p.Synthesize(context.Background(), "x", voice.Alloy, audio.FormatMP3)
	require.Error(t, err)
	assert.False(t, errors.As(err, &re))
	assert.Contains(t, err.Error(), "status 401")
}

func TestGeminiProviderWAV(t *testing.T) {
	pcm := []byte{0x00, 0x01, 0x00, 0x02}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/"+geminiModel+":generateContent", r.URL.Path)
		var req geminiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Zephyr", req.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
		assert.Equal(t, []string{"AUDIO"}, req.GenerationConfig.ResponseModalities)

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{
					"inlineData": map[string]any{"mimeType": "audio/L16;rate=24000", "data": base64.StdEncoding.EncodeToString(pcm)},
				}}},
			}},
		})
	}))
	defer srv.Close()

	p := NewGeminiProvider("k", "", srv.Client(), nil).WithBaseURL(srv.URL)
	data, err := p.Synthesize(context.Background(), "꿈", voice.Nova, audio.FormatWAV)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("RIFF")))
	assert.True(t, bytes.HasSuffix(data, pcm))
}

func TestGeminiProviderNoAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider("k", "", srv.Client(), nil).WithBaseURL(srv.URL)
	_, err := p.Synthesize(context.Background(), "x", voice.Nova, audio.FormatWAV)
	assert.ErrorContains(t, err, "no audio")
}

func TestGeminiMP3NeedsTranscoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16","data":"AAE="}}]}}]}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider("k", "", srv.Client(), nil).WithBaseURL(srv.URL)
	_, err := p.Synthesize(context.Background(), "x", voice.Nova, audio.FormatMP3)
	assert.ErrorContains(t, err, "requires FFmpeg")
}

type fakeGoogle struct {
	req *texttospeechpb.SynthesizeSpeechRequest
}

func (f *fakeGoogle) SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	f.req = req
	return &texttospeechpb.SynthesizeSpeechResponse{AudioContent: []byte("audio")}, nil
}

func (f *fakeGoogle) Close() error { return nil }

func TestGoogleProvider(t *testing.T) {
	fake := &fakeGoogle{}
	p := NewGoogleProviderWithClient(fake, nil)

	data, err := p.Synthesize(context.Background(), "공지", voice.Sage, audio.FormatWAV)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), data)
	assert.Equal(t, "ko-KR-Chirp3-HD-Kore", fake.req.Voice.Name)
	assert.Equal(t, texttospeechpb.AudioEncoding_LINEAR16, fake.req.AudioConfig.AudioEncoding)

	tc := &mockTranscoder{}
	tc.On("Transcode", mock.Anything, []byte("audio"), audio.FormatMP3, 0, audio.FormatAAC).Return([]byte("aac"), nil)
	p = NewGoogleProviderWithClient(fake, tc)
	data, err = p.Synthesize(context.Background(), "공지", voice.Sage, audio.FormatAAC)
	require.NoError(t, err)
	assert.Equal(t, []byte("aac"), data)
	assert.Equal(t, texttospeechpb.AudioEncoding_MP3, fake.req.AudioConfig.AudioEncoding)
}

type fakePolly struct {
	input *polly.SynthesizeSpeechInput
}

func (f *fakePolly) SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.input = params
	return &polly.SynthesizeSpeechOutput{AudioStream: io.NopCloser(strings.NewReader("mp3"))}, nil
}

func TestPollyProvider(t *testing.T) {
	fake := &fakePolly{}
	p := NewPollyProviderWithClient(fake, nil)

	data, err := p.Synthesize(context.Background(), "hello there", voice.Echo, audio.FormatMP3)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), data)
	assert.Equal(t, pollytypes.VoiceIdGregory, fake.input.VoiceId)
	assert.Equal(t, pollytypes.OutputFormatMp3, fake.input.OutputFormat)

	_, err = p.Synthesize(context.Background(), "안녕하세요", voice.Echo, audio.FormatMP3)
	require.NoError(t, err)
	assert.Equal(t, pollytypes.VoiceIdSeoyeon, fake.input.VoiceId)
}

func TestInvalidVoiceRejected(t *testing.T) {
	p := NewPollyProviderWithClient(&fakePolly{}, nil)
	_, err := p.Synthesize(context.Background(), "x", voice.ID("nobody"), audio.FormatMP3)
	assert.ErrorIs(t, err, voice.ErrInvalidVoice)
}

func TestWithRetry(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, func() error {
		calls++
		return errors.New("bad request")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls, "non-retryable errors are not retried")

	calls = 0
	err = WithRetry(context.Background(), 1, func() error {
		calls++
		return &RetryableError{StatusCode: 503}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = WithRetry(context.Background(), 2, func() error {
		calls++
		if calls == 1 {
			return &RetryableError{StatusCode: 429}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithRetry(ctx, 3, func() error { return &RetryableError{StatusCode: 500} })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(context.Background(), "espeak", Options{})
	assert.ErrorContains(t, err, "unknown TTS provider")

	p, err := NewProvider(context.Background(), "elevenlabs", Options{APIKey: "k", Retries: 3})
	require.NoError(t, err)
	assert.Equal(t, "elevenlabs", p.Name())
	assert.Len(t, p.Voices(), 9)
}

func TestAvailableVoicesWithoutCredentials(t *testing.T) {
	for _, name := range ProviderNames() {
		infos, err := AvailableVoices(name)
		require.NoError(t, err, name)
		assert.Len(t, infos, 9, name)
	}
	_, err := AvailableVoices("espeak")
	assert.Error(t, err)
}
