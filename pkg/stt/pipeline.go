package stt

import (
	"context"
	"log/slog"

	"github.com/vaani-labs/go-vaani/pkg/language"
)

// Pipeline layers bilingual language handling over a Recognizer.
//
// With an explicit language the utterance is transcribed once under
// that constraint. With Auto, a first unconstrained pass produces text
// for classification; when the classifier lands on a single language
// and the recognizer supports hints, a second constrained pass refines
// the transcript. Mixed utterances keep the unconstrained result.
type Pipeline struct {
	recognizer Recognizer
	logger     *slog.Logger
}

// NewPipeline creates a transcription pipeline.
func NewPipeline(recognizer Recognizer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		recognizer: recognizer,
		logger:     logger.With("component", "stt.pipeline"),
	}
}

// Recognize transcribes one utterance and returns the text and the
// language it was spoken in. An empty transcript reports English so
// downstream prompts stay deterministic; callers skip empty turns.
func (p *Pipeline) Recognize(ctx context.Context, pcm []byte, tag language.Tag) (string, language.Tag, error) {
	if !language.IsAuto(string(tag)) {
		segments, err := p.recognizer.Transcribe(ctx, pcm, tag)
		if err != nil {
			return "", tag, err
		}
		return JoinSegments(segments), tag, nil
	}

	segments, err := p.recognizer.Transcribe(ctx, pcm, language.Auto)
	if err != nil {
		return "", language.English, err
	}
	text := JoinSegments(segments)
	if text == "" {
		return "", language.English, nil
	}

	detected := language.Classify(text)
	if detected == language.Mixed || !p.recognizer.SupportsHint() {
		return text, detected, nil
	}

	refined, err := p.recognizer.Transcribe(ctx, pcm, detected)
	if err != nil {
		// The first pass already produced usable text.
		p.logger.Warn("constrained pass failed, keeping detection pass",
			"language", detected, "error", err)
		return text, detected, nil
	}
	if refinedText := JoinSegments(refined); refinedText != "" {
		text = refinedText
	}
	return text, detected, nil
}

// Close releases the underlying recognizer.
func (p *Pipeline) Close() error {
	return p.recognizer.Close()
}
