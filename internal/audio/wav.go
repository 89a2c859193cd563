package audio

import (
	"encoding/binary"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

const (
	pcmBitDepth    = 16
	pcmChannels    = 1
	wavFormatPCM   = 1
	pcmSampleBytes = pcmBitDepth / 8
)

// PCMToWAV wraps raw 16-bit signed little-endian mono PCM in a WAV container.
func PCMToWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("no PCM data")
	}
	if len(pcm)%pcmSampleBytes != 0 {
		return nil, fmt.Errorf("PCM data has odd length %d", len(pcm))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	samples := make([]int, len(pcm)/pcmSampleBytes)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*pcmSampleBytes:])))
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: pcmChannels,
			SampleRate:  sampleRate,
		},
		Data:           samples,
		SourceBitDepth: pcmBitDepth,
	}

	ws := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, pcmBitDepth, pcmChannels, wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}

	data, err := io.ReadAll(ws.Reader())
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	return data, nil
}
