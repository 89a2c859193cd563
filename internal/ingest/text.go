package ingest

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func extractText(data []byte) (*Content, error) {
	// Strip a UTF-8 BOM and decode UTF-16 files that carry one; anything else
	// passes through and must already be UTF-8.
	decoded, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode text: %w", ErrExtractionFailed, err)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrExtractionFailed)
	}
	if !utf8.Valid(decoded) {
		return nil, fmt.Errorf("%w: text file is not valid UTF-8", ErrExtractionFailed)
	}
	return &Content{Text: string(decoded)}, nil
}
