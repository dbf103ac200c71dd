package telephony

import (
	"context"
	"sync"
)

// MockClient implements Client for testing. Behavior is controlled
// through function fields; by default Register succeeds and Dial and
// Accept return a fresh MockSession.
type MockClient struct {
	mu    sync.Mutex
	calls []string

	RegisterFunc func(ctx context.Context, user, pass string) error
	DialFunc     func(ctx context.Context, target string) (Session, error)
	AcceptFunc   func(ctx context.Context) (Session, error)
	CloseFunc    func() error
}

func (m *MockClient) Register(ctx context.Context, user, pass string) error {
	m.record("Register")
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, user, pass)
	}
	return nil
}

func (m *MockClient) Dial(ctx context.Context, target string) (Session, error) {
	m.record("Dial")
	if m.DialFunc != nil {
		return m.DialFunc(ctx, target)
	}
	return NewMockSession(target), nil
}

func (m *MockClient) Accept(ctx context.Context) (Session, error) {
	m.record("Accept")
	if m.AcceptFunc != nil {
		return m.AcceptFunc(ctx)
	}
	return NewMockSession("caller"), nil
}

func (m *MockClient) Close() error {
	m.record("Close")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockClient) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
}

// Calls returns the recorded method names in call order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockSession implements Session for testing. Feed inbound audio with
// Inject; outbound frames accumulate in Played.
type MockSession struct {
	remote  string
	capture chan []byte
	done    chan struct{}
	once    sync.Once

	mu     sync.Mutex
	played [][]byte
}

// NewMockSession creates an established mock session.
func NewMockSession(remote string) *MockSession {
	return &MockSession{
		remote:  remote,
		capture: make(chan []byte, QueueDepth),
		done:    make(chan struct{}),
	}
}

func (s *MockSession) Remote() string         { return s.remote }
func (s *MockSession) Capture() <-chan []byte { return s.capture }
func (s *MockSession) Done() <-chan struct{}  { return s.done }

func (s *MockSession) Playback(frame []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, frame)
	return nil
}

func (s *MockSession) Hangup() error {
	s.once.Do(func() {
		close(s.done)
		close(s.capture)
	})
	return nil
}

// Inject queues one inbound frame as if captured from the remote
// party. Returns false after hang-up.
func (s *MockSession) Inject(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.capture <- frame:
		return true
	default:
		return false
	}
}

// Played returns all frames queued for playback.
func (s *MockSession) Played() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.played))
	copy(out, s.played)
	return out
}

// Verify interfaces at compile time.
var (
	_ Client  = (*MockClient)(nil)
	_ Session = (*MockSession)(nil)
)
