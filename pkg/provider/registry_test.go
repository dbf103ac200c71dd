package provider_test

import (
	"errors"
	"testing"

	"github.com/vaani-labs/go-vaani/pkg/provider"
)

func TestRegistryResolveOrder(t *testing.T) {
	r := provider.NewRegistry[string](provider.KindTTS, nil)
	r.Register("slow", 3, true, "c")
	r.Register("fast", 1, true, "a")
	r.Register("medium", 2, true, "b")

	got := r.Names()
	want := []string{"fast", "medium", "slow"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryFiltersUnavailable(t *testing.T) {
	r := provider.NewRegistry[string](provider.KindLLM, nil)
	r.Register("primary", 1, false, "missing creds")
	r.Register("backup", 2, true, "ok")

	entries := r.Resolve()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Name != "backup" {
		t.Errorf("got %q, want backup", entries[0].Name)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistryStableTieBreak(t *testing.T) {
	r := provider.NewRegistry[int](provider.KindSTT, nil)
	r.Register("first", 1, true, 1)
	r.Register("second", 1, true, 2)

	got := r.Names()
	if got[0] != "first" || got[1] != "second" {
		t.Errorf("equal priorities should keep registration order, got %v", got)
	}
}

func TestHasCredentials(t *testing.T) {
	t.Setenv("VAANI_TEST_KEY", "secret")

	if !provider.HasCredentials("VAANI_TEST_KEY") {
		t.Error("expected credentials present")
	}
	if provider.HasCredentials("VAANI_TEST_KEY", "VAANI_TEST_MISSING") {
		t.Error("one missing var should fail the probe")
	}
	if provider.HasCredentials() {
		t.Error("zero required vars means nothing was probed")
	}
}

func TestExhaustedError(t *testing.T) {
	inner := errors.New("boom")
	err := &provider.ExhaustedError{
		Kind:   provider.KindTTS,
		Text:   "hello",
		Errors: []error{errors.New("first"), inner},
	}

	if !errors.Is(err, inner) {
		t.Error("Unwrap should expose the last provider error")
	}
	if err.Text != "hello" {
		t.Error("original text must survive exhaustion")
	}

	var exhausted *provider.ExhaustedError
	if !errors.As(error(err), &exhausted) {
		t.Error("errors.As should match ExhaustedError")
	}
}
