// This file contains the whisper.cpp backed recognizer. The whisper.cpp
// static library (libwhisper.a) and headers (whisper.h) must be
// available at link time via LIBRARY_PATH and C_INCLUDE_PATH.

package stt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/vaani-labs/go-vaani/pkg/language"
)

// Whisper implements Recognizer using the whisper.cpp CGO bindings. The
// model is loaded once and shared; each Transcribe call creates its own
// whisper context because contexts are not thread-safe.
type Whisper struct {
	mu     sync.Mutex
	model  whisperlib.Model
	closed bool
	logger *slog.Logger
}

// WhisperOption configures a Whisper recognizer.
type WhisperOption func(*Whisper)

// WithWhisperLogger sets the logger.
func WithWhisperLogger(logger *slog.Logger) WhisperOption {
	return func(w *Whisper) { w.logger = logger }
}

// NewWhisper loads a whisper.cpp model from modelPath.
func NewWhisper(modelPath string, opts ...WhisperOption) (*Whisper, error) {
	if modelPath == "" {
		return nil, ErrNoModel
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("stt: load model %q: %w", modelPath, err)
	}

	w := &Whisper{
		model:  model,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	w.logger = w.logger.With("component", "stt.whisper")
	return w, nil
}

// Name returns the recognizer tag.
func (w *Whisper) Name() string {
	return "whisper"
}

// SupportsHint reports that whisper honors a language constraint.
func (w *Whisper) SupportsHint() bool {
	return true
}

// Transcribe runs whisper inference over one utterance of PCM16 mono
// audio. A Hindi or English tag constrains the decode; Auto and Mixed
// run with whisper's own language detection.
func (w *Whisper) Transcribe(ctx context.Context, pcm []byte, tag language.Tag) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	model := w.model
	w.mu.Unlock()

	samples := pcmToFloat32(pcm)
	if len(samples) == 0 {
		return nil, nil
	}

	wctx, err := model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("stt: create context: %w", err)
	}

	if code := whisperCode(tag); code != "" {
		if err := wctx.SetLanguage(code); err != nil {
			w.logger.Warn("failed to set language, using detection",
				"language", code, "error", err)
		}
	}

	start := time.Now()
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("stt: process audio: %w", err)
	}

	var segments []Segment
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stt: read segment: %w", err)
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Text:  text,
			Start: seg.Start,
			End:   seg.End,
		})
	}

	w.logger.Debug("transcribed utterance",
		"samples", len(samples),
		"segments", len(segments),
		"hint", string(tag),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return segments, nil
}

// Close releases the whisper model.
func (w *Whisper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.model.Close()
}

// whisperCode maps a language tag to a whisper language code. Mixed and
// Auto return "" so whisper runs its own detection.
func whisperCode(tag language.Tag) string {
	switch tag {
	case language.English:
		return "en"
	case language.Hindi:
		return "hi"
	default:
		return ""
	}
}

// pcmToFloat32 converts 16-bit signed little-endian PCM to float32
// samples normalized to [-1.0, 1.0]. A trailing odd byte is ignored.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// Verify Whisper implements Recognizer at compile time.
var _ Recognizer = (*Whisper)(nil)
