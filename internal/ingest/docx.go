package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const wordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

func extractDOCX(data []byte) (*Content, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: could not open DOCX: %w", ErrExtractionFailed, err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: DOCX has no word/document.xml", ErrExtractionFailed)
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open document.xml: %w", ErrExtractionFailed, err)
	}
	defer rc.Close()

	paragraphs, skipped, err := docxParagraphs(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: parse document.xml: %w", ErrExtractionFailed, err)
	}
	return &Content{Text: strings.Join(paragraphs, "\n"), Skipped: skipped}, nil
}

// docxParagraphs walks WordprocessingML and returns the text of each
// non-empty <w:p>.
func docxParagraphs(r io.Reader) (paragraphs []string, skipped int, err error) {
	dec := xml.NewDecoder(r)
	var (
		cur    strings.Builder
		inPara bool
		inText bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNamespace {
				continue
			}
			switch t.Name.Local {
			case "p":
				inPara = true
				cur.Reset()
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordNamespace {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if !inPara {
					continue
				}
				inPara = false
				if text := strings.TrimSpace(cur.String()); text != "" {
					paragraphs = append(paragraphs, text)
				} else {
					skipped++
				}
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	return paragraphs, skipped, nil
}
