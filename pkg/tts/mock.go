package tts

import (
	"context"
	"sync"
	"time"

	"github.com/vaani-labs/go-vaani/pkg/language"
)

// Mock implements Provider for testing. Behavior is controlled through
// function fields; unset fields fall back to benign defaults.
type Mock struct {
	mu    sync.Mutex
	calls []MockCall

	MockName       string
	SynthesizeFunc func(ctx context.Context, text string, tag language.Tag) (*AudioResult, error)
	HealthFunc     func(ctx context.Context) error
	CloseFunc      func() error
}

// MockCall records a single call made to the mock.
type MockCall struct {
	Method string
	Text   string
	Tag    language.Tag
	Time   time.Time
}

// NewMock creates a mock that returns a small MP3 payload for any input.
func NewMock(name string) *Mock {
	return &Mock{
		MockName: name,
		SynthesizeFunc: func(_ context.Context, text string, _ language.Tag) (*AudioResult, error) {
			return &AudioResult{
				Audio:     []byte("mock-audio"),
				Format:    AudioFormat{Encoding: EncodingMP3, SampleRate: 44100, Channels: 1},
				CharCount: len(text),
				Duration:  estimateDuration(len(text)),
			}, nil
		},
	}
}

// MockWithError creates a mock whose Synthesize always fails with err.
func MockWithError(name string, err error) *Mock {
	return &Mock{
		MockName: name,
		SynthesizeFunc: func(context.Context, string, language.Tag) (*AudioResult, error) {
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

func (m *Mock) Synthesize(ctx context.Context, text string, tag language.Tag) (*AudioResult, error) {
	m.record(MockCall{Method: "Synthesize", Text: text, Tag: tag, Time: time.Now()})
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, tag)
	}
	return nil, ErrProviderUnavailable
}

func (m *Mock) Health(ctx context.Context) error {
	m.record(MockCall{Method: "Health", Time: time.Now()})
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
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

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
