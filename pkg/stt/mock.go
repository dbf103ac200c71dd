package stt

import (
	"context"
	"sync"
	"time"

	"github.com/vaani-labs/go-vaani/pkg/language"
)

// Mock implements Recognizer for testing. Behavior is controlled
// through function fields.
type Mock struct {
	mu    sync.Mutex
	calls []MockCall

	MockName       string
	SupportsHints  bool
	TranscribeFunc func(ctx context.Context, pcm []byte, tag language.Tag) ([]Segment, error)
	CloseFunc      func() error
}

// MockCall records one call made to the mock.
type MockCall struct {
	Method string
	Bytes  int
	Tag    language.Tag
	Time   time.Time
}

// NewMock creates a mock that recognizes every utterance as text.
func NewMock(text string) *Mock {
	return &Mock{
		MockName:      "mock",
		SupportsHints: true,
		TranscribeFunc: func(context.Context, []byte, language.Tag) ([]Segment, error) {
			return []Segment{{Text: text}}, nil
		},
	}
}

// MockWithError creates a mock whose Transcribe always fails with err.
func MockWithError(err error) *Mock {
	return &Mock{
		MockName: "mock",
		TranscribeFunc: func(context.Context, []byte, language.Tag) ([]Segment, error) {
			return nil, err
		},
	}
}

func (m *Mock) Name() string {
	if m.MockName != "" {
		return m.MockName
	}
	return "mock"
}

func (m *Mock) SupportsHint() bool {
	return m.SupportsHints
}

func (m *Mock) Transcribe(ctx context.Context, pcm []byte, tag language.Tag) ([]Segment, error) {
	m.record(MockCall{Method: "Transcribe", Bytes: len(pcm), Tag: tag, Time: time.Now()})
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, pcm, tag)
	}
	return nil, nil
}

func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *Mock) record(c MockCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Calls returns a copy of all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of recorded calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall returns the most recent call, or nil if none were made.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	c := m.calls[len(m.calls)-1]
	return &c
}

// Verify Mock implements Recognizer at compile time.
var _ Recognizer = (*Mock)(nil)
