package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/voice"
)

var fixed = time.Unix(1700000000, 0)

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "summary_brief_nova_1.mp3", SafeFilename("summary_brief_nova_1.mp3"))
	assert.Equal(t, "a_b_.wav", SafeFilename("a b/가나.wav"))
	assert.Equal(t, "tts_alloy_1700000000.mp3", FileName("", voice.Alloy, audio.FormatMP3, fixed))
	assert.Equal(t, "my_clip_echo_1700000000.wav", FileName("my clip", voice.Echo, audio.FormatWAV, fixed))
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := NewFileStore(dir)
	s.now = func() time.Time { return fixed }

	p1, err := s.Store(context.Background(), []byte("one"), voice.Nova, audio.FormatMP3, "tts")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tts_nova_1700000000.mp3"), p1)

	p2, err := s.Store(context.Background(), []byte("two"), voice.Nova, audio.FormatMP3, "tts")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tts_nova_1700000000_1.mp3"), p2)

	data, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestFileStoreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileStore(t.TempDir()).Store(ctx, []byte("x"), voice.Nova, audio.FormatMP3, "")
	assert.ErrorIs(t, err, context.Canceled)
}

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	return &s3.PutObjectOutput{}, args.Error(0)
}

func TestS3Store(t *testing.T) {
	client := &mockS3{}
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return *in.Bucket == "clips" &&
			*in.Key == "audio/summary_brief_nova_1700000000_01ABC.mp3" &&
			*in.ContentType == "audio/mpeg" &&
			*in.ContentLength == 3 &&
			string(body) == "mp3"
	})).Return(nil)

	s := NewS3Store(client, "clips", "https://cdn.example.com/", func() string { return "01ABC" })
	s.now = func() time.Time { return fixed }

	url, err := s.Store(context.Background(), []byte("mp3"), voice.Nova, audio.FormatMP3, "summary_brief")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/audio/summary_brief_nova_1700000000_01ABC.mp3", url)
	client.AssertExpectations(t)
}

func TestS3StoreWithoutCDN(t *testing.T) {
	client := &mockS3{}
	client.On("PutObject", mock.Anything, mock.Anything).Return(nil)

	s := NewS3Store(client, "clips", "", nil)
	s.now = func() time.Time { return fixed }

	url, err := s.Store(context.Background(), []byte("x"), voice.Sage, audio.FormatWAV, "")
	require.NoError(t, err)
	assert.Equal(t, "s3://clips/audio/tts_sage_1700000000.wav", url)
}
