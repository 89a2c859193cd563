package audio

import (
	"errors"
	"fmt"
	"strings"
)

// Format is an audio container requested by callers or returned by a provider.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatOpus Format = "opus"
	FormatAAC  Format = "aac"
	FormatFLAC Format = "flac"
	FormatPCM  Format = "pcm" // raw 16-bit signed little-endian mono, provider-internal
)

// ErrInvalidFormat is returned for formats outside the output set.
var ErrInvalidFormat = errors.New("invalid audio format")

var outputFormats = []Format{FormatMP3, FormatWAV, FormatOpus, FormatAAC, FormatFLAC}

// ParseFormat validates an output format name. Matching ignores case and
// surrounding space.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, of := range outputFormats {
		if f == of {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q: must be one of %s", ErrInvalidFormat, s, strings.Join(FormatNames(), ", "))
}

// FormatNames lists the accepted output formats.
func FormatNames() []string {
	names := make([]string, len(outputFormats))
	for i, f := range outputFormats {
		names[i] = string(f)
	}
	return names
}

func (f Format) String() string { return string(f) }

// MIMEType is used for uploads and downloads.
func (f Format) MIMEType() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return "audio/wav"
	case FormatOpus:
		return "audio/ogg"
	case FormatAAC:
		return "audio/aac"
	case FormatFLAC:
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
