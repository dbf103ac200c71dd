// Package stt turns captured call audio into text.
//
// A Recognizer transcribes one utterance of PCM16 audio. The Pipeline
// layers bilingual handling on top: utterances are transcribed without
// a language constraint first, classified, and re-run constrained when
// the recognizer supports a language hint.
package stt

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vaani-labs/go-vaani/pkg/language"
)

// Audio capture format. All recognizers receive 16-bit signed
// little-endian mono PCM at this rate.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
)

var (
	// ErrNoModel is returned when the model path is missing.
	ErrNoModel = errors.New("stt: model path required")

	// ErrClosed is returned when transcribing through a closed recognizer.
	ErrClosed = errors.New("stt: recognizer closed")
)

// Segment is one contiguous piece of recognized speech.
type Segment struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// Recognizer transcribes a complete utterance. Implementations are safe
// for sequential use from a single call loop; concurrent calls need
// external coordination.
type Recognizer interface {
	// Transcribe converts one utterance of PCM16 audio to segments.
	// A non-auto tag constrains recognition to that language when the
	// recognizer supports hints; recognizers without hint support
	// ignore the tag.
	Transcribe(ctx context.Context, pcm []byte, tag language.Tag) ([]Segment, error)

	// SupportsHint reports whether Transcribe honors a language tag.
	SupportsHint() bool

	// Name identifies the recognizer (e.g. "whisper").
	Name() string

	// Close releases model resources.
	Close() error
}

// JoinSegments trims each segment and joins them with single spaces.
// Empty segments are dropped.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
