package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

func extractPDF(data []byte) (c *Content, err error) {
	// The parser panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("%w: could not read PDF: %v", ErrExtractionFailed, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: could not read PDF: %w", ErrExtractionFailed, err)
	}

	var sb strings.Builder
	skipped := 0
	numPages := r.NumPage()

	for i := 1; i <= numPages; i++ {
		text, ok := pageText(r, i)
		if !ok || strings.TrimSpace(text) == "" {
			skipped++
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	// Scanned or image-only PDFs come back empty; callers see a too-short warning.
	return &Content{Text: sb.String(), Skipped: skipped}, nil
}

// pageText extracts one page, reporting false for pages that fail.
func pageText(r *pdf.Reader, i int) (text string, ok bool) {
	defer func() {
		if recover() != nil {
			text, ok = "", false
		}
	}()
	page := r.Page(i)
	if page.V.IsNull() {
		return "", false
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", false
	}
	return text, true
}
