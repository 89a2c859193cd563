package history

import (
	"iter"
	"sync"
	"time"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/voice"
)

// PreviewLimit is the number of characters kept in ClipRecord.TextPreview.
const PreviewLimit = 120

const ellipsis = "..."

// Source tags where a clip came from. The set is open; unknown tags are kept
// as-is.
type Source string

const (
	SourceText   Source = "text"
	SourceReport Source = "report"
)

// Label renders the tag for display.
func (s Source) Label() string {
	switch s {
	case SourceText:
		return "텍스트"
	case SourceReport:
		return "보고서"
	case "":
		return "unknown"
	default:
		return string(s)
	}
}

// ClipRecord is one completed generation. Records are immutable once built.
type ClipRecord struct {
	ID          string       `json:"id"`
	Path        string       `json:"path"`
	Voice       voice.ID     `json:"voice"`
	Format      audio.Format `json:"format"`
	Timestamp   time.Time    `json:"timestamp"`
	TextPreview string       `json:"text"`
	Source      Source       `json:"source"`
}

// Unix returns the creation time in seconds since epoch.
func (r ClipRecord) Unix() int64 { return r.Timestamp.Unix() }

// Preview truncates text to PreviewLimit characters, appending an ellipsis
// when anything was cut.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLimit {
		return text
	}
	return string(runes[:PreviewLimit]) + ellipsis
}

// History is an append-only list of clips for one session.
type History struct {
	mu      sync.RWMutex
	records []ClipRecord
}

func New() *History {
	return &History{}
}

// Append records a clip.
func (h *History) Append(r ClipRecord) {
	h.mu.Lock()
	h.records = append(h.records, r)
	h.mu.Unlock()
}

// Recent yields clips newest first. Each call traverses the records present
// when iteration starts.
func (h *History) Recent() iter.Seq[ClipRecord] {
	return func(yield func(ClipRecord) bool) {
		h.mu.RLock()
		snapshot := h.records[:len(h.records):len(h.records)]
		h.mu.RUnlock()

		for i := len(snapshot) - 1; i >= 0; i-- {
			if !yield(snapshot[i]) {
				return
			}
		}
	}
}

func (h *History) IsEmpty() bool {
	return h.Len() == 0
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
