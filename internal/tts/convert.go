package tts

import (
	"context"
	"fmt"

	"github.com/apresai/voicestudio/internal/audio"
)

// deliver converts provider output into the requested format. Raw PCM to
// WAV is done in-process; every other conversion needs a transcoder.
func deliver(ctx context.Context, tc audio.Transcoder, data []byte, got audio.Format, sampleRate int, want audio.Format) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("provider returned no audio")
	}
	if got == want {
		return data, nil
	}
	if got == audio.FormatPCM && want == audio.FormatWAV {
		return audio.PCMToWAV(data, sampleRate)
	}
	if tc == nil {
		return nil, fmt.Errorf("converting %s to %s requires FFmpeg", got, want)
	}
	return tc.Transcode(ctx, data, got, sampleRate, want)
}
