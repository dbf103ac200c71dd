package call

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vaani-labs/go-vaani/pkg/language"
	"github.com/vaani-labs/go-vaani/pkg/stt"
	"github.com/vaani-labs/go-vaani/pkg/telephony"
	"github.com/vaani-labs/go-vaani/pkg/tts"
)

// speechFrame is a 20ms frame loud enough to count as speech.
func speechFrame() []byte {
	frame := make([]byte, telephony.FrameBytes)
	for i := 0; i < len(frame); i += 2 {
		frame[i] = 0xD0
		frame[i+1] = 0x07 // 2000 little-endian
	}
	return frame
}

func silenceFrame() []byte {
	return make([]byte, telephony.FrameBytes)
}

// speakUtterance injects speech followed by enough silence to close
// the voice activity window.
func speakUtterance(s *telephony.MockSession) {
	for i := 0; i < 10; i++ {
		s.Inject(speechFrame())
	}
	for i := 0; i <= stt.DefaultSilenceMs/telephony.FrameMs; i++ {
		s.Inject(silenceFrame())
	}
}

type stubTranscriber struct {
	mu    sync.Mutex
	texts []string
	calls int
	err   error
}

func (s *stubTranscriber) Recognize(_ context.Context, _ []byte, _ language.Tag) (string, language.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", language.English, s.err
	}
	if len(s.texts) == 0 {
		return "", language.English, nil
	}
	text := s.texts[0]
	s.texts = s.texts[1:]
	return text, language.English, nil
}

type stubResponder struct {
	mu      sync.Mutex
	replies []string
	closed  bool
}

func (s *stubResponder) Reply(_ context.Context, userText string, _ language.Tag) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, userText)
	return "reply to " + userText
}

func (s *stubResponder) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubResponder) replyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

type stubSynth struct {
	mu     sync.Mutex
	texts  []string
	played []string
	err    error
}

func (s *stubSynth) Synthesize(_ context.Context, text string, tag language.Tag) (*tts.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	if s.err != nil {
		return &tts.Result{Text: text, Language: tag}, s.err
	}
	return &tts.Result{Text: text, Language: tag, ArtifactPath: "/tmp/" + text + ".mp3"}, nil
}

func (s *stubSynth) Play(_ context.Context, res *tts.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, res.ArtifactPath)
	res.Played = true
	return nil
}

func (s *stubSynth) playedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.played)
}

// fileSynth writes real PCM artifacts so the playback worker has
// something to frame toward the caller.
type fileSynth struct {
	stubSynth
	dir      string
	pcm      []byte
	encoding tts.Encoding
	n        atomic.Int32
}

func (s *fileSynth) Synthesize(_ context.Context, text string, tag language.Tag) (*tts.Result, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("reply-%d.pcm", s.n.Add(1)))
	if err := os.WriteFile(path, s.pcm, 0o644); err != nil {
		return &tts.Result{Text: text, Language: tag}, err
	}
	return &tts.Result{Text: text, Language: tag, ArtifactPath: path, Encoding: s.encoding}, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

func (l *eventLog) texts(kind EventKind) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, ev := range l.events {
		if ev.Kind == kind {
			out = append(out, ev.Text)
		}
	}
	return out
}

func newTestController(t *testing.T, sess *telephony.MockSession, tr *stubTranscriber, synth *stubSynth, log *eventLog) (*Controller, *stubResponder) {
	t.Helper()

	responder := &stubResponder{}
	client := &telephony.MockClient{
		DialFunc: func(_ context.Context, _ string) (telephony.Session, error) {
			return sess, nil
		},
		AcceptFunc: func(_ context.Context) (telephony.Session, error) {
			return sess, nil
		},
	}

	opts := []Option{
		WithCredentials("agent", "secret"),
		WithTurnBackoff(10 * time.Millisecond),
	}
	if log != nil {
		opts = append(opts, WithOnEvent(log.add))
	}
	c := NewController(client, tr, synth, func() Responder { return responder }, opts...)
	return c, responder
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestStartRegistrationFailureIsFatal(t *testing.T) {
	client := &telephony.MockClient{
		RegisterFunc: func(context.Context, string, string) error {
			return errors.New("bad credentials")
		},
	}
	c := NewController(client, &stubTranscriber{}, &stubSynth{}, func() Responder { return &stubResponder{} })

	if err := c.Start(context.Background()); !errors.Is(err, ErrRegistration) {
		t.Fatalf("Start = %v, want ErrRegistration", err)
	}
	if state, _ := c.Status(); state != StateIdle {
		t.Errorf("state = %q, want idle after fatal registration", state)
	}
	if err := c.Dial(context.Background(), "+91"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Dial = %v, want ErrNotRegistered", err)
	}
}

func TestDialBeforeRegister(t *testing.T) {
	c, _ := newTestController(t, telephony.NewMockSession("+91"), &stubTranscriber{}, &stubSynth{}, nil)
	if err := c.Dial(context.Background(), "+91"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Dial = %v, want ErrNotRegistered", err)
	}
}

func TestCallLifecycle(t *testing.T) {
	sess := telephony.NewMockSession("+911234567890")
	tr := &stubTranscriber{texts: []string{"hello"}}
	synth := &stubSynth{}
	log := &eventLog{}
	c, responder := newTestController(t, sess, tr, synth, log)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state, _ := c.Status(); state != StateRegistered {
		t.Fatalf("state = %q, want registered", state)
	}

	if err := c.Dial(context.Background(), "+911234567890"); err != nil {
		t.Fatalf("Dial: %v", err)
	}
	state, call := c.Status()
	if state != StateActive {
		t.Fatalf("state = %q, want active", state)
	}
	if call == nil || call.Remote != "+911234567890" || call.ID == "" {
		t.Fatalf("call = %+v", call)
	}

	// The greeting goes out before any caller audio.
	waitFor(t, 2*time.Second, func() bool { return synth.playedCount() >= 1 })

	speakUtterance(sess)
	waitFor(t, 2*time.Second, func() bool { return responder.replyCount() == 1 })
	waitFor(t, 2*time.Second, func() bool { return synth.playedCount() >= 2 })

	if err := c.Hangup(); err != nil {
		t.Fatalf("Hangup: %v", err)
	}
	state, call = c.Status()
	if state != StateRegistered {
		t.Errorf("state after hangup = %q, want registered", state)
	}
	if call != nil {
		t.Errorf("call after hangup = %+v, want nil", call)
	}
	if !responder.closed {
		t.Error("responder not closed after hangup")
	}

	got := log.texts(EventTranscript)
	if len(got) != 1 || got[0] != "hello" {
		t.Errorf("transcript events = %v", got)
	}
}

func TestHangupStopsWorkersWithinOneIteration(t *testing.T) {
	sess := telephony.NewMockSession("+91")
	c, _ := newTestController(t, sess, &stubTranscriber{}, &stubSynth{}, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Dial(context.Background(), "+91"); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	done := make(chan struct{})
	go func() {
		c.Hangup()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop after hangup")
	}

	if err := c.Hangup(); !errors.Is(err, ErrNoActiveCall) {
		t.Errorf("second Hangup = %v, want ErrNoActiveCall", err)
	}
}

func TestEmptyTranscriptSkipsResponder(t *testing.T) {
	sess := telephony.NewMockSession("+91")
	tr := &stubTranscriber{} // always empty
	synth := &stubSynth{}
	c, responder := newTestController(t, sess, tr, synth, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Dial(context.Background(), "+91"); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	speakUtterance(sess)
	waitFor(t, 2*time.Second, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.calls >= 1
	})

	if responder.replyCount() != 0 {
		t.Errorf("responder invoked %d times on silence, want 0", responder.replyCount())
	}
	c.Hangup()
}

func TestSynthesisExhaustionDegradesToText(t *testing.T) {
	sess := telephony.NewMockSession("+91")
	tr := &stubTranscriber{texts: []string{"hello"}}
	synth := &stubSynth{err: errors.New("all providers failed")}
	log := &eventLog{}
	c, _ := newTestController(t, sess, tr, synth, log)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Dial(context.Background(), "+91"); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	speakUtterance(sess)
	waitFor(t, 2*time.Second, func() bool {
		return len(log.texts(EventTextOnly)) >= 2 // greeting + turn reply
	})

	texts := log.texts(EventTextOnly)
	found := false
	for _, text := range texts {
		if text == "reply to hello" {
			found = true
		}
	}
	if !found {
		t.Errorf("text-only events = %v, want reply text surfaced", texts)
	}
	if synth.playedCount() != 0 {
		t.Errorf("Play invoked %d times with no artifacts", synth.playedCount())
	}
	c.Hangup()
}

func TestRecognitionFailureKeepsCallAlive(t *testing.T) {
	sess := telephony.NewMockSession("+91")
	tr := &stubTranscriber{err: errors.New("model crashed")}
	synth := &stubSynth{}
	c, responder := newTestController(t, sess, tr, synth, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Dial(context.Background(), "+91"); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	speakUtterance(sess)
	waitFor(t, 2*time.Second, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.calls >= 1
	})

	if state, _ := c.Status(); state != StateActive {
		t.Errorf("state = %q, want active after recognition failure", state)
	}
	if responder.replyCount() != 0 {
		t.Errorf("responder invoked after recognition failure")
	}
	c.Hangup()
}

func TestDialWhileActiveReturnsBusy(t *testing.T) {
	sess := telephony.NewMockSession("+91")
	c, _ := newTestController(t, sess, &stubTranscriber{}, &stubSynth{}, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Dial(context.Background(), "+91"); err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := c.Dial(context.Background(), "+92"); !errors.Is(err, ErrBusy) {
		t.Errorf("second Dial = %v, want ErrBusy", err)
	}
	c.Hangup()
}

func TestStatusDuringRemoteHangupTeardown(t *testing.T) {
	sess := telephony.NewMockSession("+91")
	c, _ := newTestController(t, sess, &stubTranscriber{}, &stubSynth{}, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Dial(context.Background(), "+91"); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	// Snapshot the call record continuously while the workers tear the
	// call down, so the EndedAt write overlaps concurrent reads.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, call := c.Status(); call != nil {
					_ = call.EndedAt
				}
			}
		}()
	}

	sess.Hangup()
	waitFor(t, 2*time.Second, func() bool {
		state, _ := c.Status()
		return state == StateRegistered
	})
	close(stop)
	wg.Wait()

	if _, call := c.Status(); call != nil {
		t.Errorf("call after teardown = %+v, want nil", call)
	}
}

func TestReplyAudioStreamsToCaller(t *testing.T) {
	// Three full frames plus a partial one that must be zero-padded.
	pcm := make([]byte, 3*telephony.FrameBytes+100)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	synth := &fileSynth{dir: t.TempDir(), pcm: pcm, encoding: tts.EncodingPCM16}

	sess := telephony.NewMockSession("+91")
	client := &telephony.MockClient{
		DialFunc: func(_ context.Context, _ string) (telephony.Session, error) {
			return sess, nil
		},
	}
	responder := &stubResponder{}
	c := NewController(client, &stubTranscriber{}, synth, func() Responder { return responder },
		WithCredentials("agent", "secret"))

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Dial(context.Background(), "+91"); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	// The greeting streams to the gateway before playing locally.
	waitFor(t, 2*time.Second, func() bool { return synth.playedCount() >= 1 })
	c.Hangup()

	frames := sess.Played()
	if len(frames) != 4 {
		t.Fatalf("streamed %d frames, want 4", len(frames))
	}
	for i, frame := range frames {
		if len(frame) != telephony.FrameBytes {
			t.Fatalf("frame %d has %d bytes, want %d", i, len(frame), telephony.FrameBytes)
		}
	}
	last := frames[3]
	for _, b := range last[100:] {
		if b != 0 {
			t.Error("trailing frame not zero-padded")
			break
		}
	}
}

func TestMP3ReplyDoesNotStreamToCaller(t *testing.T) {
	sess := telephony.NewMockSession("+91")
	synth := &stubSynth{} // mp3-style artifacts, no PCM encoding
	c, _ := newTestController(t, sess, &stubTranscriber{}, synth, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Dial(context.Background(), "+91"); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return synth.playedCount() >= 1 })
	c.Hangup()

	if frames := sess.Played(); len(frames) != 0 {
		t.Errorf("streamed %d frames for a non-PCM artifact, want 0", len(frames))
	}
}

func TestCaptureSuppressedWhileSpeaking(t *testing.T) {
	sess := telephony.NewMockSession("+91")
	tr := &stubTranscriber{texts: []string{"hello"}}
	responder := &stubResponder{}
	client := &telephony.MockClient{
		DialFunc: func(_ context.Context, _ string) (telephony.Session, error) {
			return sess, nil
		},
	}

	var speaking atomic.Bool
	speaking.Store(true)
	c := NewController(client, tr, &stubSynth{}, func() Responder { return responder },
		WithCredentials("agent", "secret"),
		WithSpeaking(speaking.Load))

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Dial(context.Background(), "+91"); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	// Caller audio arriving during playback is our own voice echoed
	// back; it must never become an utterance.
	speakUtterance(sess)
	time.Sleep(100 * time.Millisecond)
	tr.mu.Lock()
	calls := tr.calls
	tr.mu.Unlock()
	if calls != 0 {
		t.Fatalf("transcriber invoked %d times while speaking, want 0", calls)
	}

	speaking.Store(false)
	speakUtterance(sess)
	waitFor(t, 2*time.Second, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.calls >= 1
	})
	c.Hangup()
}

func TestRemoteHangupReturnsToRegistered(t *testing.T) {
	sess := telephony.NewMockSession("+91")
	c, responder := newTestController(t, sess, &stubTranscriber{}, &stubSynth{}, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Dial(context.Background(), "+91"); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	// Remote side ends the call.
	sess.Hangup()
	waitFor(t, 2*time.Second, func() bool {
		state, _ := c.Status()
		return state == StateRegistered
	})
	if !responder.closed {
		t.Error("responder not closed after remote hangup")
	}
}
