package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Audio quality constants for consistent output across all FFmpeg operations.
const (
	AudioBitrate    = "192k"
	AudioSampleRate = "44100"
	AudioResampler  = "aresample=resampler=soxr"
)

// CheckFFmpeg reports whether ffmpeg is on PATH.
func CheckFFmpeg() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("FFmpeg not found: install it to convert provider audio (e.g. brew install ffmpeg)")
	}
	return nil
}

// Transcoder converts between containers. The FFmpeg implementation is the
// only one; providers take the interface so tests can avoid the binary.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte, from Format, sampleRate int, to Format) ([]byte, error)
}

type FFmpegTranscoder struct{}

func NewFFmpegTranscoder() *FFmpegTranscoder {
	return &FFmpegTranscoder{}
}

// Transcode converts data to the target format. sampleRate is only used when
// from is raw PCM.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, data []byte, from Format, sampleRate int, to Format) ([]byte, error) {
	if from == to {
		return data, nil
	}

	tmpDir, err := os.MkdirTemp("", "voicestudio-ffmpeg-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	input := filepath.Join(tmpDir, "input."+string(from))
	output := filepath.Join(tmpDir, "output."+string(to))
	if err := os.WriteFile(input, data, 0o644); err != nil {
		return nil, fmt.Errorf("write ffmpeg input: %w", err)
	}

	args, err := transcodeArgs(input, from, sampleRate, to, output)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = nil

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg conversion (%s → %s) failed: %w\n%s", from, to, err, stderr.String())
	}

	out, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("output file not created: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("output file is empty")
	}
	return out, nil
}

func transcodeArgs(input string, from Format, sampleRate int, to Format, output string) ([]string, error) {
	var args []string
	switch from {
	case FormatPCM:
		if sampleRate <= 0 {
			return nil, fmt.Errorf("raw PCM input needs a sample rate")
		}
		args = append(args, "-f", "s16le", "-ar", strconv.Itoa(sampleRate), "-ac", "1", "-i", input)
	case FormatMP3, FormatWAV, FormatOpus, FormatAAC, FormatFLAC:
		args = append(args, "-i", input)
	default:
		return nil, fmt.Errorf("unsupported audio format for conversion: %s", from)
	}

	args = append(args, "-af", AudioResampler)
	switch to {
	case FormatMP3:
		args = append(args, "-c:a", "libmp3lame", "-b:a", AudioBitrate, "-ar", AudioSampleRate)
	case FormatWAV:
		args = append(args, "-c:a", "pcm_s16le")
	case FormatOpus:
		args = append(args, "-c:a", "libopus", "-b:a", "96k")
	case FormatAAC:
		args = append(args, "-c:a", "aac", "-b:a", AudioBitrate)
	case FormatFLAC:
		args = append(args, "-c:a", "flac")
	default:
		return nil, fmt.Errorf("unsupported target format: %s", to)
	}
	return append(args, "-y", output), nil
}
