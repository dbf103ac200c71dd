// Package provider ranks capability implementations and filters them by
// credential availability.
//
// A Registry holds an ordered set of provider entries for one capability
// kind (STT, TTS or LLM). Availability is decided once, at construction,
// from environment credential presence; nothing here ever performs a
// network probe. After construction a Registry is read-only and safe to
// share across calls.
package provider

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// Kind identifies a capability implemented by interchangeable providers.
type Kind string

const (
	KindSTT Kind = "stt"
	KindTTS Kind = "tts"
	KindLLM Kind = "llm"
)

// Entry is one provider implementation with its rank and availability.
type Entry[T any] struct {
	// Name identifies the provider (e.g. "elevenlabs", "google").
	Name string

	// Priority ranks the provider; lower values are tried first.
	Priority int

	// Available is false when required credentials were missing at
	// construction. Unavailable providers are never attempted.
	Available bool

	// Impl is the provider implementation.
	Impl T
}

// Registry is an ordered, credential-filtered set of providers for one
// capability kind. Register all entries up front, then treat it as
// immutable.
type Registry[T any] struct {
	kind    Kind
	entries []Entry[T]
	logger  *slog.Logger
}

// NewRegistry creates an empty registry for the given capability kind.
func NewRegistry[T any](kind Kind, logger *slog.Logger) *Registry[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry[T]{
		kind:   kind,
		logger: logger.With("component", "provider.registry", "kind", string(kind)),
	}
}

// Register adds a provider entry. Call only during construction.
func (r *Registry[T]) Register(name string, priority int, available bool, impl T) {
	r.entries = append(r.entries, Entry[T]{
		Name:      name,
		Priority:  priority,
		Available: available,
		Impl:      impl,
	})
	if !available {
		r.logger.Info("provider registered without credentials, skipping at runtime",
			"provider", name,
			"priority", priority,
		)
	}
}

// Resolve returns the available entries in ascending priority order.
// Registration order breaks priority ties.
func (r *Registry[T]) Resolve() []Entry[T] {
	out := make([]Entry[T], 0, len(r.entries))
	for _, e := range r.entries {
		if e.Available {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// Names returns the names of all available providers in attempt order.
func (r *Registry[T]) Names() []string {
	entries := r.Resolve()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of available providers.
func (r *Registry[T]) Len() int {
	return len(r.Resolve())
}

// Kind returns the capability kind this registry serves.
func (r *Registry[T]) Kind() Kind {
	return r.kind
}

// HasCredentials reports whether every named environment variable is set
// and non-empty. Used to compute Entry.Available at construction.
func HasCredentials(envVars ...string) bool {
	for _, v := range envVars {
		if os.Getenv(v) == "" {
			return false
		}
	}
	return len(envVars) > 0
}

// ExhaustedError is returned when every available provider for a
// capability has been attempted and failed. It carries the original
// request text so callers can degrade to a text-only outcome.
type ExhaustedError struct {
	Kind   Kind
	Text   string
	Errors []error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%s: no providers available", e.Kind)
	}
	return fmt.Sprintf("%s: all %d providers failed, last error: %v",
		e.Kind, len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last provider error.
func (e *ExhaustedError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}
