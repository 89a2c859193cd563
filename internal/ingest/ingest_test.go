package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"
)

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractText(t *testing.T) {
	e := NewExtractor(nil)
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(norm.NFD.String("  보고서 본문입니다.\n두 번째 줄  "))...)

	c, err := e.Extract(context.Background(), data, KindText)
	require.NoError(t, err)
	assert.Equal(t, "보고서 본문입니다.\n두 번째 줄", c.Text)
	assert.Equal(t, "보고서 본문입니다.", c.Title)
	assert.Equal(t, KindText, c.Kind)
	assert.Equal(t, 5, c.WordCount)
	assert.True(t, c.TooShort())
}

func TestExtractTextUTF16(t *testing.T) {
	// "hi" as UTF-16LE with BOM
	data := []byte{0xFF, 0xFE, 'h', 0, 'i', 0}
	c, err := NewExtractor(nil).Extract(context.Background(), data, KindText)
	require.NoError(t, err)
	assert.Equal(t, "hi", c.Text)
}

func TestExtractTextRejectsInvalid(t *testing.T) {
	e := NewExtractor(nil)
	_, err := e.Extract(context.Background(), []byte{0xfd, 0x00, 0x01}, KindText)
	assert.ErrorIs(t, err, ErrExtractionFailed)

	_, err = e.Extract(context.Background(), nil, KindText)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtractDOCX(t *testing.T) {
	body := `<w:p><w:r><w:t>첫 문단</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve"> 이어짐</w:t></w:r></w:p>` +
		`<w:p></w:p>` +
		`<w:p><w:r><w:t>둘째</w:t><w:br/><w:t>문단</w:t></w:r></w:p>`

	c, err := NewExtractor(nil).Extract(context.Background(), buildDOCX(t, body), KindDOCX)
	require.NoError(t, err)
	assert.Equal(t, "첫 문단\t 이어짐\n둘째\n문단", c.Text)
	assert.Equal(t, 1, c.Skipped)
}

func TestExtractDOCXFailures(t *testing.T) {
	e := NewExtractor(nil)

	_, err := e.Extract(context.Background(), []byte("not a zip"), KindDOCX)
	assert.ErrorIs(t, err, ErrExtractionFailed)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err = zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	_, err = e.Extract(context.Background(), buf.Bytes(), KindDOCX)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

// blankPDF builds a one-page PDF whose page has no content stream.
func blankPDF() []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestExtractEmptyDocumentsAreTooShort(t *testing.T) {
	e := NewExtractor(nil)

	c, err := e.Extract(context.Background(), buildDOCX(t, `<w:p></w:p><w:p><w:r><w:t>  </w:t></w:r></w:p>`), KindDOCX)
	require.NoError(t, err)
	assert.Equal(t, "", c.Text)
	assert.Equal(t, 2, c.Skipped)
	assert.True(t, c.TooShort())

	c, err = e.Extract(context.Background(), blankPDF(), KindPDF)
	require.NoError(t, err)
	assert.Equal(t, "", c.Text)
	assert.Equal(t, 1, c.Skipped)
	assert.True(t, c.TooShort())
}

func TestExtractPDFInvalid(t *testing.T) {
	_, err := NewExtractor(nil).Extract(context.Background(), []byte("%PDF-1.4 garbage"), KindPDF)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtractUnsupportedKind(t *testing.T) {
	_, err := NewExtractor(nil).Extract(context.Background(), []byte("x"), Kind("pptx"))
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestKindFromName(t *testing.T) {
	tests := map[string]Kind{
		"report.PDF":  KindPDF,
		"memo.docx":   KindDOCX,
		"notes.txt":   KindText,
		"page.html":   KindHTML,
		"dir/a.b.txt": KindText,
	}
	for name, want := range tests {
		got, err := KindFromName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := KindFromName("slides.pptx")
	assert.ErrorIs(t, err, ErrExtractionFailed)

	kind, err := DetectSource("https://example.com/post")
	require.NoError(t, err)
	assert.Equal(t, KindURL, kind)
}

func TestTooShortThreshold(t *testing.T) {
	c := &Content{Text: strings.Repeat("가", MinUsableChars-1)}
	assert.True(t, c.TooShort())
	c.Text += "나"
	assert.False(t, c.TooShort())
}

func TestIngestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "brief.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("경영 인사이트 ", 30)), 0o644))

	c, err := NewExtractor(nil).Ingest(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "brief.txt", c.Source)
	assert.False(t, c.TooShort())

	_, err = NewExtractor(nil).Ingest(context.Background(), filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestIngestURL(t *testing.T) {
	paragraph := strings.Repeat("The quarterly report shows steady growth across every region. ", 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Quarterly Report</title></head><body><article><h1>Quarterly Report</h1><p>` +
			paragraph + `</p><p>` + paragraph + `</p></article></body></html>`))
	}))
	defer srv.Close()

	e := NewExtractor(srv.Client())
	c, err := e.Ingest(context.Background(), srv.URL+"/report")
	require.NoError(t, err)
	assert.Equal(t, KindURL, c.Kind)
	assert.Contains(t, c.Text, "steady growth")
	assert.Equal(t, srv.URL+"/report", c.Source)

	_, err = e.Ingest(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}
