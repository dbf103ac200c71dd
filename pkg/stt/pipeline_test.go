package stt

import (
	"context"
	"errors"
	"testing"

	"github.com/vaani-labs/go-vaani/pkg/language"
)

func TestRecognizeExplicitLanguage(t *testing.T) {
	m := NewMock("hello there")

	p := NewPipeline(m, nil)
	text, tag, err := p.Recognize(context.Background(), []byte{1, 2, 3, 4}, language.English)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "hello there" {
		t.Errorf("text = %q", text)
	}
	if tag != language.English {
		t.Errorf("tag = %q, want en", tag)
	}
	if m.CallCount() != 1 {
		t.Errorf("calls = %d, want 1 for explicit language", m.CallCount())
	}
	if m.LastCall().Tag != language.English {
		t.Errorf("recognizer saw tag %q, want en", m.LastCall().Tag)
	}
}

func TestRecognizeAutoRunsConstrainedSecondPass(t *testing.T) {
	m := &Mock{SupportsHints: true}
	m.TranscribeFunc = func(_ context.Context, _ []byte, tag language.Tag) ([]Segment, error) {
		if tag == language.Auto {
			return []Segment{{Text: "नमस्ते कैसे"}, {Text: "हैं"}}, nil
		}
		return []Segment{{Text: "नमस्ते कैसे हैं"}}, nil
	}

	p := NewPipeline(m, nil)
	text, tag, err := p.Recognize(context.Background(), []byte{1, 2}, language.Auto)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if m.CallCount() != 2 {
		t.Fatalf("calls = %d, want 2 (detect then constrain)", m.CallCount())
	}
	calls := m.Calls()
	if calls[0].Tag != language.Auto {
		t.Errorf("first pass tag = %q, want auto", calls[0].Tag)
	}
	if calls[1].Tag != tag {
		t.Errorf("second pass tag = %q, want %q", calls[1].Tag, tag)
	}
	if text != "नमस्ते कैसे हैं" {
		t.Errorf("text = %q, want constrained pass result", text)
	}
}

func TestRecognizeEmptyTranscript(t *testing.T) {
	m := &Mock{SupportsHints: true}
	m.TranscribeFunc = func(context.Context, []byte, language.Tag) ([]Segment, error) {
		return []Segment{{Text: "  "}}, nil
	}

	p := NewPipeline(m, nil)
	text, tag, err := p.Recognize(context.Background(), []byte{1, 2}, language.Auto)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
	if tag != language.English {
		t.Errorf("tag = %q, want en for empty transcript", tag)
	}
	if m.CallCount() != 1 {
		t.Errorf("calls = %d, want 1 (no second pass for empty)", m.CallCount())
	}
}

func TestRecognizeMixedSkipsSecondPass(t *testing.T) {
	m := &Mock{SupportsHints: true}
	m.TranscribeFunc = func(context.Context, []byte, language.Tag) ([]Segment, error) {
		// Latin majority with Hinglish markers classifies as mixed.
		return []Segment{{Text: "haan bhai please set the reminder kal"}}, nil
	}

	p := NewPipeline(m, nil)
	text, tag, err := p.Recognize(context.Background(), []byte{1, 2}, language.Auto)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if tag != language.Mixed {
		t.Fatalf("tag = %q, want mixed", tag)
	}
	if m.CallCount() != 1 {
		t.Errorf("calls = %d, want 1 (mixed keeps detection pass)", m.CallCount())
	}
	if text == "" {
		t.Error("text empty")
	}
}

func TestRecognizeNoHintSupport(t *testing.T) {
	m := &Mock{SupportsHints: false}
	m.TranscribeFunc = func(context.Context, []byte, language.Tag) ([]Segment, error) {
		return []Segment{{Text: "hello how are you today"}}, nil
	}

	p := NewPipeline(m, nil)
	_, tag, err := p.Recognize(context.Background(), []byte{1, 2}, language.Auto)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if tag != language.English {
		t.Errorf("tag = %q, want en", tag)
	}
	if m.CallCount() != 1 {
		t.Errorf("calls = %d, want 1 when hints unsupported", m.CallCount())
	}
}

func TestRecognizeConstrainedFailureKeepsFirstPass(t *testing.T) {
	m := &Mock{SupportsHints: true}
	m.TranscribeFunc = func(_ context.Context, _ []byte, tag language.Tag) ([]Segment, error) {
		if tag == language.Auto {
			return []Segment{{Text: "hello how are you today"}}, nil
		}
		return nil, errors.New("model busy")
	}

	p := NewPipeline(m, nil)
	text, tag, err := p.Recognize(context.Background(), []byte{1, 2}, language.Auto)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "hello how are you today" {
		t.Errorf("text = %q, want first pass result", text)
	}
	if tag != language.English {
		t.Errorf("tag = %q, want en", tag)
	}
}

func TestJoinSegments(t *testing.T) {
	got := JoinSegments([]Segment{
		{Text: "  hello "},
		{Text: ""},
		{Text: "world"},
		{Text: "   "},
	})
	if got != "hello world" {
		t.Errorf("JoinSegments = %q, want %q", got, "hello world")
	}
}
