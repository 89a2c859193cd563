package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Kind is the document type of an upload.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindDOCX Kind = "docx"
	KindText Kind = "txt"
	KindHTML Kind = "html"
	KindURL  Kind = "url"

	// maxInputSize is the maximum allowed size for input content (25 MB).
	maxInputSize = 25 * 1024 * 1024

	// MinUsableChars is the length below which extracted text is flagged as
	// probably unusable.
	MinUsableChars = 100
)

func (k Kind) String() string {
	return string(k)
}

var (
	// ErrExtractionFailed means the document could not be parsed at all.
	ErrExtractionFailed = errors.New("document extraction failed")
	// ErrContentTooShort is a warning: text was extracted but is shorter than
	// MinUsableChars.
	ErrContentTooShort = errors.New("extracted content is too short")
)

type Content struct {
	Text      string
	Title     string
	Source    string
	Kind      Kind
	WordCount int
	// Skipped counts pages or paragraphs that produced no text.
	Skipped int
}

// CharCount is the text length in characters.
func (c *Content) CharCount() int {
	return utf8.RuneCountInString(c.Text)
}

// TooShort reports whether the text is below MinUsableChars.
func (c *Content) TooShort() bool {
	return c.CharCount() < MinUsableChars
}

// Extractor turns document bytes into plain text.
type Extractor struct {
	httpClient *http.Client
}

func NewExtractor(httpClient *http.Client) *Extractor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Extractor{httpClient: httpClient}
}

// Extract parses data as kind. Pages or paragraphs without text are skipped;
// a document that cannot be opened returns ErrExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, data []byte, kind Kind) (*Content, error) {
	if len(data) > maxInputSize {
		return nil, fmt.Errorf("%w: input is too large (%d MB, max %d MB)", ErrExtractionFailed, len(data)/(1024*1024), maxInputSize/(1024*1024))
	}

	var (
		c   *Content
		err error
	)
	switch kind {
	case KindPDF:
		c, err = extractPDF(data)
	case KindDOCX:
		c, err = extractDOCX(data)
	case KindText:
		c, err = extractText(data)
	case KindHTML:
		c, err = extractHTML(data, nil)
	default:
		return nil, fmt.Errorf("%w: unsupported document type %q", ErrExtractionFailed, kind)
	}
	if err != nil {
		return nil, err
	}
	c.Kind = kind
	finish(c)
	return c, nil
}

// Ingest reads source as a URL or a local file, choosing the parser from the
// URL scheme or file extension.
func (e *Extractor) Ingest(ctx context.Context, source string) (*Content, error) {
	kind, err := DetectSource(source)
	if err != nil {
		return nil, err
	}
	if kind == KindURL {
		c, err := e.fetchURL(ctx, source)
		if err != nil {
			return nil, err
		}
		c.Kind = KindURL
		finish(c)
		return c, nil
	}

	if err := validateFile(source); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read file %s: %w", ErrExtractionFailed, source, err)
	}
	c, err := e.Extract(ctx, data, kind)
	if err != nil {
		return nil, err
	}
	c.Source = filepath.Base(source)
	return c, nil
}

// DetectSource maps a URL or file name to a Kind.
func DetectSource(input string) (Kind, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return KindURL, nil
	}
	return KindFromName(input)
}

// KindFromName maps a file extension to a Kind.
func KindFromName(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "pdf":
		return KindPDF, nil
	case "docx":
		return KindDOCX, nil
	case "txt", "text", "md":
		return KindText, nil
	case "html", "htm":
		return KindHTML, nil
	default:
		return "", fmt.Errorf("%w: unsupported file type %q (pdf, docx, txt)", ErrExtractionFailed, filepath.Ext(name))
	}
}

func finish(c *Content) {
	c.Text = norm.NFC.String(strings.TrimSpace(c.Text))
	if c.Title == "" {
		c.Title = titleFromText(c.Text, 80)
	}
	c.WordCount = wordCount(c.Text)
}

func wordCount(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inWord = false
		} else if !inWord {
			inWord = true
			count++
		}
	}
	return count
}

func titleFromText(text string, maxLen int) string {
	line := text
	if idx := strings.IndexByte(text, '\n'); idx > 0 {
		line = text[:idx]
	}
	line = strings.TrimSpace(line)
	if runes := []rune(line); len(runes) > maxLen {
		line = string(runes[:maxLen]) + "..."
	}
	if line == "" {
		return "Untitled"
	}
	return line
}

func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	if info.Size() > maxInputSize {
		return fmt.Errorf("%s is too large (%d MB, max %d MB)", path, info.Size()/(1024*1024), maxInputSize/(1024*1024))
	}
	return nil
}
