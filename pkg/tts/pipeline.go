package tts

import (
	"context"
	"log/slog"
	"time"

	"github.com/vaani-labs/go-vaani/pkg/language"
	"github.com/vaani-labs/go-vaani/pkg/provider"
)

// Player plays a stored audio artifact. Implemented by audio.Player.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Result describes the outcome of a synthesize-and-play cycle. Text is
// always populated so callers can fall back to delivering the reply as
// text when Played is false.
type Result struct {
	Played       bool
	Provider     string
	ArtifactPath string
	Encoding     Encoding
	Text         string
	Language     language.Tag
	LatencyMs    int64
}

// Pipeline runs text through the provider chain, stores the resulting
// artifact, and plays it. Provider order comes from the registry;
// synthesis failures advance to the next provider, playback failures
// degrade to text.
type Pipeline struct {
	registry *provider.Registry[Provider]
	store    *Store
	player   Player
	logger   *slog.Logger
}

// NewPipeline creates a synthesis pipeline.
func NewPipeline(registry *provider.Registry[Provider], store *Store, player Player, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		registry: registry,
		store:    store,
		player:   player,
		logger:   logger.With("component", "tts.pipeline"),
	}
}

// Synthesize converts text to a stored audio artifact without playing
// it. When tag is Auto the language is classified from the text itself.
//
// The returned Result always carries the original text; on provider
// exhaustion it is returned alongside the error so the caller can
// deliver the turn as text.
func (p *Pipeline) Synthesize(ctx context.Context, text string, tag language.Tag) (*Result, error) {
	start := time.Now()

	if language.IsAuto(string(tag)) {
		tag = language.Classify(text)
	}

	result := &Result{Text: text, Language: tag}

	var errs []error
	for _, entry := range p.registry.Resolve() {
		audio, err := entry.Impl.Synthesize(ctx, text, tag)
		if err != nil {
			p.logger.Warn("synthesis failed, trying next provider",
				"provider", entry.Name, "error", err)
			errs = append(errs, WrapError(entry.Name, err))
			continue
		}

		path, err := p.store.Save(entry.Name, audio.Format.Encoding.Ext(), audio.Audio)
		if err != nil {
			errs = append(errs, WrapError(entry.Name, err))
			continue
		}

		result.Provider = entry.Name
		result.ArtifactPath = path
		result.Encoding = audio.Format.Encoding
		result.LatencyMs = time.Since(start).Milliseconds()
		p.logger.Debug("synthesized reply",
			"provider", entry.Name,
			"language", tag,
			"chars", audio.CharCount,
			"latency_ms", result.LatencyMs,
		)
		return result, nil
	}

	result.LatencyMs = time.Since(start).Milliseconds()
	return result, &provider.ExhaustedError{
		Kind:   provider.KindTTS,
		Text:   text,
		Errors: errs,
	}
}

// Play plays a synthesized artifact and marks the result as spoken.
// A playback failure leaves Played false; the text is still usable.
func (p *Pipeline) Play(ctx context.Context, result *Result) error {
	if result.ArtifactPath == "" {
		return ErrEmptyAudio
	}
	if err := p.player.Play(ctx, result.ArtifactPath); err != nil {
		p.logger.Warn("playback failed, degrading to text",
			"provider", result.Provider, "path", result.ArtifactPath, "error", err)
		return err
	}
	result.Played = true
	return nil
}

// SynthesizeAndPlay converts text to speech and plays it locally. The
// two stages fall back independently: synthesis walks the provider
// chain, playback walks the local mechanism chain, and both degrade to
// text rather than failing the turn.
func (p *Pipeline) SynthesizeAndPlay(ctx context.Context, text string, tag language.Tag) (*Result, error) {
	result, err := p.Synthesize(ctx, text, tag)
	if err != nil {
		return result, err
	}
	if err := p.Play(ctx, result); err != nil {
		return result, err
	}
	p.logger.Info("spoke reply",
		"provider", result.Provider,
		"language", result.Language,
		"latency_ms", result.LatencyMs,
	)
	return result, nil
}

// Close closes every registered provider.
func (p *Pipeline) Close() error {
	var first error
	for _, entry := range p.registry.Resolve() {
		if err := entry.Impl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
