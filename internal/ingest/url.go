package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	readability "github.com/go-shiori/go-readability"
)

func (e *Extractor) fetchURL(ctx context.Context, source string) (*Content, error) {
	parsed, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL %s: %w", ErrExtractionFailed, source, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrExtractionFailed, err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: could not fetch URL %s: %w", ErrExtractionFailed, source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: could not fetch URL %s: HTTP %d", ErrExtractionFailed, source, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxInputSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrExtractionFailed, source, err)
	}

	c, err := extractHTML(data, parsed)
	if err != nil {
		return nil, err
	}
	c.Source = source
	return c, nil
}

func extractHTML(data []byte, pageURL *url.URL) (*Content, error) {
	if pageURL == nil {
		pageURL = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: could not extract article: %w", ErrExtractionFailed, err)
	}
	if len(article.TextContent) == 0 {
		return nil, fmt.Errorf("%w: no readable content extracted", ErrExtractionFailed)
	}
	return &Content{Text: article.TextContent, Title: article.Title}, nil
}
