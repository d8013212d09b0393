package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Artifact describes one persisted recording. It is created only after a
// successful decode and encode, and never mutated afterwards.
type Artifact struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
	Index int    `json:"index"`
}

// Store writes artifacts into a recordings directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on the
// first save, not here, so a store can be constructed before the device is
// ever seen.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("recordings directory cannot be empty")
	}
	return &Store{dir: dir}, nil
}

// Dir returns the recordings directory.
func (s *Store) Dir() string {
	return s.dir
}

// Filename derives the artifact name from the capture timestamp and the
// recording index.
func Filename(capturedAt time.Time, index int) string {
	return fmt.Sprintf("recording_%s_%d.mp3", capturedAt.Format("20060102_150405"), index)
}

// Save persists one encoded recording and returns its artifact record.
func (s *Store) Save(capturedAt time.Time, index int, data []byte) (Artifact, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("failed to create recordings directory %s: %w", s.dir, err)
	}

	path := filepath.Join(s.dir, Filename(capturedAt, index))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("failed to write artifact %s: %w", path, err)
	}

	return Artifact{
		Path:  path,
		Bytes: len(data),
		Index: index,
	}, nil
}

// SaveTranscript writes the transcript next to its audio artifact,
// replacing the extension with .txt, and returns the transcript path.
func (s *Store) SaveTranscript(a Artifact, text string) (string, error) {
	path := strings.TrimSuffix(a.Path, filepath.Ext(a.Path)) + ".txt"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("failed to write transcript %s: %w", path, err)
	}
	return path, nil
}
