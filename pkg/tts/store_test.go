package tts

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func TestStoreSaveNaming(t *testing.T) {
	store := newTestStore(t)

	path, err := store.Save("elevenlabs", "mp3", []byte("audio-bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	name := filepath.Base(path)
	pattern := regexp.MustCompile(`^elevenlabs_\d+(_\d+)?\.mp3$`)
	if !pattern.MatchString(name) {
		t.Errorf("artifact name = %q, want provider_millis.ext", name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Errorf("artifact content = %q", data)
	}
}

func TestStoreSaveCollision(t *testing.T) {
	store := newTestStore(t)

	// Rapid saves within the same millisecond must not overwrite.
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		path, err := store.Save("google", "mp3", []byte{byte(i)})
		if err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
		if seen[path] {
			t.Errorf("duplicate artifact path %q", path)
		}
		seen[path] = true
	}
}

func TestStoreDefaultDir(t *testing.T) {
	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.Dir() == "" {
		t.Error("default dir empty")
	}
	if _, err := os.Stat(store.Dir()); err != nil {
		t.Errorf("default dir not created: %v", err)
	}
}
