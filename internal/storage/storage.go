package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/apresai/voicestudio/internal/audio"
	"github.com/apresai/voicestudio/internal/voice"
)

// DefaultDir is where FileStore writes when no directory is configured.
const DefaultDir = "output_audio"

// DefaultPrefix names clips generated from typed text.
const DefaultPrefix = "tts"

var unsafeChars = regexp.MustCompile(`[^0-9a-zA-Z._-]+`)

// SafeFilename replaces every run of characters outside [0-9a-zA-Z._-]
// with a single underscore.
func SafeFilename(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// FileName builds "{prefix}_{voice}_{unix}.{format}".
func FileName(prefix string, v voice.ID, f audio.Format, ts time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return SafeFilename(fmt.Sprintf("%s_%s_%d.%s", prefix, v, ts.Unix(), f))
}

// FileStore writes clips into a local directory and returns their path.
type FileStore struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &FileStore{dir: dir, now: time.Now}
}

// Dir returns the output directory.
func (s *FileStore) Dir() string { return s.dir }

// Store writes data to a new file. Names that already exist get a numeric
// suffix so clips created in the same second never overwrite each other.
func (s *FileStore) Store(ctx context.Context, data []byte, v voice.ID, f audio.Format, prefix string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", s.dir, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := FileName(prefix, v, f, s.now())
	base := strings.TrimSuffix(name, filepath.Ext(name))
	for i := 1; ; i++ {
		path := filepath.Join(s.dir, name)
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			name = fmt.Sprintf("%s_%d.%s", base, i, f)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := file.Write(data); err != nil {
			file.Close()
			os.Remove(path)
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := file.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("close %s: %w", path, err)
		}
		return path, nil
	}
}
