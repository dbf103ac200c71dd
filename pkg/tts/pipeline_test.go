package tts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vaani-labs/go-vaani/pkg/language"
	"github.com/vaani-labs/go-vaani/pkg/provider"
)

type stubPlayer struct {
	paths []string
	err   error
}

func (s *stubPlayer) Play(_ context.Context, path string) error {
	s.paths = append(s.paths, path)
	return s.err
}

func newTestRegistry(t *testing.T, providers ...*Mock) *provider.Registry[Provider] {
	t.Helper()
	reg := provider.NewRegistry[Provider](provider.KindTTS, nil)
	for i, m := range providers {
		reg.Register(m.Name(), i, true, Provider(m))
	}
	return reg
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestPipelineFallbackOrder(t *testing.T) {
	failing := MockWithError("google", errors.New("quota exceeded"))
	working := NewMock("elevenlabs")
	player := &stubPlayer{}

	p := NewPipeline(newTestRegistry(t, failing, working), newTestStore(t), player, nil)

	res, err := p.SynthesizeAndPlay(context.Background(), "hello there", language.English)
	if err != nil {
		t.Fatalf("SynthesizeAndPlay: %v", err)
	}
	if !res.Played {
		t.Error("Played = false, want true")
	}
	if res.Provider != "elevenlabs" {
		t.Errorf("Provider = %q, want elevenlabs", res.Provider)
	}
	if !strings.Contains(res.ArtifactPath, "elevenlabs_") {
		t.Errorf("ArtifactPath = %q, want elevenlabs artifact", res.ArtifactPath)
	}
	if failing.CallCount() != 1 {
		t.Errorf("failing provider calls = %d, want 1", failing.CallCount())
	}
	if working.CallCount() != 1 {
		t.Errorf("working provider calls = %d, want 1", working.CallCount())
	}
	if len(player.paths) != 1 || player.paths[0] != res.ArtifactPath {
		t.Errorf("played paths = %v, want [%s]", player.paths, res.ArtifactPath)
	}
}

func TestPipelineAllProvidersFail(t *testing.T) {
	a := MockWithError("google", errors.New("quota exceeded"))
	b := MockWithError("elevenlabs", errors.New("unauthorized"))
	player := &stubPlayer{}

	p := NewPipeline(newTestRegistry(t, a, b), newTestStore(t), player, nil)

	res, err := p.SynthesizeAndPlay(context.Background(), "namaste", language.Hindi)
	if err == nil {
		t.Fatal("expected error when all providers fail")
	}
	var exhausted *provider.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %T, want *provider.ExhaustedError", err)
	}
	if exhausted.Text != "namaste" {
		t.Errorf("exhausted.Text = %q, want original text", exhausted.Text)
	}
	if res.Played {
		t.Error("Played = true, want false")
	}
	if res.Text != "namaste" {
		t.Errorf("res.Text = %q, want original text", res.Text)
	}
	if len(player.paths) != 0 {
		t.Errorf("player invoked %d times, want 0", len(player.paths))
	}
}

func TestPipelinePlaybackFailureDegradesToText(t *testing.T) {
	working := NewMock("openai")
	player := &stubPlayer{err: errors.New("no playback mechanism")}

	p := NewPipeline(newTestRegistry(t, working), newTestStore(t), player, nil)

	res, err := p.SynthesizeAndPlay(context.Background(), "hello", language.English)
	if err == nil {
		t.Fatal("expected playback error")
	}
	if res.Played {
		t.Error("Played = true, want false")
	}
	if res.ArtifactPath == "" {
		t.Error("ArtifactPath empty, want stored artifact")
	}
	if res.Text != "hello" {
		t.Errorf("res.Text = %q, want original text", res.Text)
	}
}

func TestPipelineAutoLanguage(t *testing.T) {
	working := NewMock("google")
	player := &stubPlayer{}

	p := NewPipeline(newTestRegistry(t, working), newTestStore(t), player, nil)

	res, err := p.SynthesizeAndPlay(context.Background(), "मुझे कल याद दिलाना", language.Auto)
	if err != nil {
		t.Fatalf("SynthesizeAndPlay: %v", err)
	}
	if res.Language != language.Hindi {
		t.Errorf("Language = %q, want hi", res.Language)
	}
	last := working.LastCall()
	if last == nil || last.Tag != language.Hindi {
		t.Errorf("provider saw tag %v, want hi", last)
	}
}
