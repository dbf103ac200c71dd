package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Store persists synthesized audio artifacts on disk.
//
// Artifacts are named <provider>_<unix-millis>.<ext> so successive turns
// never collide. The store only writes; playback reads an artifact right
// after creation and nothing here cleans up or indexes old files.
type Store struct {
	dir string

	// seq disambiguates two writes within the same millisecond.
	seq atomic.Int64
}

// NewStore creates an artifact store rooted at dir, creating the
// directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "vaani-audio")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tts: create artifact dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes one audio artifact and returns its path.
func (s *Store) Save(provider string, ext string, audio []byte) (string, error) {
	millis := time.Now().UnixMilli()
	name := fmt.Sprintf("%s_%d.%s", provider, millis, ext)
	path := filepath.Join(s.dir, name)

	// Two writes within the same millisecond would collide.
	if _, err := os.Stat(path); err == nil {
		name = fmt.Sprintf("%s_%d_%d.%s", provider, millis, s.seq.Add(1), ext)
		path = filepath.Join(s.dir, name)
	}

	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("tts: write artifact: %w", err)
	}
	return path, nil
}
