package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vaani-labs/go-vaani/pkg/audio"
	"github.com/vaani-labs/go-vaani/pkg/language"
	"github.com/vaani-labs/go-vaani/pkg/stt"
	"github.com/vaani-labs/go-vaani/pkg/telephony"
	"github.com/vaani-labs/go-vaani/pkg/tts"
)

var (
	// ErrRegistration is a fatal startup failure; the controller
	// cannot place or accept calls without it.
	ErrRegistration = errors.New("call: registration failed")

	// ErrNotRegistered is returned when dialing or answering before
	// Start has succeeded.
	ErrNotRegistered = errors.New("call: not registered")

	// ErrBusy is returned when a call is already in progress.
	ErrBusy = errors.New("call: another call is in progress")

	// ErrNoActiveCall is returned by Hangup when nothing is active.
	ErrNoActiveCall = errors.New("call: no active call")
)

// Transcriber turns one captured utterance into text plus the language
// it was spoken in. Implemented by stt.Pipeline.
type Transcriber interface {
	Recognize(ctx context.Context, pcm []byte, tag language.Tag) (string, language.Tag, error)
}

// Responder produces the next reply for a caller turn. Implemented by
// brain.Engine; one Responder exists per call and owns that call's
// history.
type Responder interface {
	Reply(ctx context.Context, userText string, tag language.Tag) string
	Close() error
}

// Synthesizer converts reply text to a playable artifact and plays it.
// Implemented by tts.Pipeline. Synthesis and playback are separate so
// provider network calls stay on the turn loop while device I/O stays
// on the playback worker.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, tag language.Tag) (*tts.Result, error)
	Play(ctx context.Context, result *tts.Result) error
}

// Config holds controller settings.
type Config struct {
	User         string
	Pass         string
	LanguageHint string
	TurnBackoff  time.Duration
	QueueDepth   int
	Speaking     func() bool
	Logger       *slog.Logger
	OnEvent      func(Event)
}

// Option configures the controller.
type Option func(*Config)

// WithCredentials sets the gateway registration credentials.
func WithCredentials(user, pass string) Option {
	return func(c *Config) { c.User, c.Pass = user, pass }
}

// WithLanguageHint pins every turn to one language instead of
// per-utterance detection.
func WithLanguageHint(hint string) Option {
	return func(c *Config) { c.LanguageHint = hint }
}

// WithTurnBackoff sets the pause after a failed turn.
func WithTurnBackoff(d time.Duration) Option {
	return func(c *Config) { c.TurnBackoff = d }
}

// WithQueueDepth sets the utterance and reply hand-off queue depth.
func WithQueueDepth(n int) Option {
	return func(c *Config) { c.QueueDepth = n }
}

// WithSpeaking registers a check for local playback being in progress.
// While it reports true the capture loop discards inbound frames, so
// the agent's own voice picked up by the microphone is never segmented
// into an utterance.
func WithSpeaking(fn func() bool) Option {
	return func(c *Config) { c.Speaking = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithOnEvent registers an observer for call events. The callback must
// not block; it runs on the controller's workers.
func WithOnEvent(fn func(Event)) Option {
	return func(c *Config) { c.OnEvent = fn }
}

// Controller is the state machine for one phone line. It registers
// once at startup, then places or answers one call at a time, running
// the turn loop and its capture and playback workers while Active.
type Controller struct {
	client telephony.Client
	stt    Transcriber
	tts    Synthesizer

	// newResponder creates the per-call conversation engine.
	newResponder func() Responder

	cfg    *Config
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	call    *Call
	session telephony.Session
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewController wires the call controller.
func NewController(client telephony.Client, transcriber Transcriber, synthesizer Synthesizer, newResponder func() Responder, opts ...Option) *Controller {
	cfg := &Config{
		LanguageHint: language.Auto,
		TurnBackoff:  500 * time.Millisecond,
		QueueDepth:   4,
		Logger:       slog.Default(),
	}
	for _, o := range opts {
		o(cfg)
	}

	return &Controller{
		client:       client,
		stt:          transcriber,
		tts:          synthesizer,
		newResponder: newResponder,
		cfg:          cfg,
		logger:       cfg.Logger.With("component", "call.controller"),
		state:        StateIdle,
	}
}

// Start registers with the gateway. A registration failure is fatal:
// the controller stays Idle and cannot handle calls.
func (c *Controller) Start(ctx context.Context) error {
	c.setState(StateRegistering, nil)
	if err := c.client.Register(ctx, c.cfg.User, c.cfg.Pass); err != nil {
		c.setState(StateIdle, nil)
		return fmt.Errorf("%w: %v", ErrRegistration, err)
	}
	c.setState(StateRegistered, nil)
	return nil
}

// Dial places an outbound call and starts the conversation loop.
func (c *Controller) Dial(ctx context.Context, target string) error {
	if err := c.transition(StateDialing); err != nil {
		return err
	}

	sess, err := c.client.Dial(ctx, target)
	if err != nil {
		c.setState(StateRegistered, nil)
		return fmt.Errorf("call: dial %s: %w", target, err)
	}
	c.activate(sess)
	return nil
}

// Answer waits for an inbound call, accepts it, and starts the
// conversation loop.
func (c *Controller) Answer(ctx context.Context) error {
	if err := c.transition(StateRinging); err != nil {
		return err
	}

	sess, err := c.client.Accept(ctx)
	if err != nil {
		c.setState(StateRegistered, nil)
		return fmt.Errorf("call: answer: %w", err)
	}
	c.activate(sess)
	return nil
}

// Hangup ends the active call and waits for all three workers to stop.
func (c *Controller) Hangup() error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrNoActiveCall
	}
	c.state = StateEnding
	call := c.call
	sess := c.session
	cancel := c.cancel
	c.mu.Unlock()

	c.emit(Event{Kind: EventState, CallID: call.ID, Remote: call.Remote, State: StateEnding})
	sess.Hangup()
	cancel()
	c.wg.Wait()
	return nil
}

// Status returns the current state and call record, which is nil when
// no call is in progress.
func (c *Controller) Status() (State, *Call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.call == nil {
		return c.state, nil
	}
	snapshot := *c.call
	return c.state, &snapshot
}

// Close hangs up any active call and disconnects from the gateway.
func (c *Controller) Close() error {
	if err := c.Hangup(); err != nil && !errors.Is(err, ErrNoActiveCall) {
		c.logger.Warn("hangup during close failed", "error", err)
	}
	return c.client.Close()
}

// transition moves Registered to a transient pre-call state.
func (c *Controller) transition(next State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateRegistered:
	case StateIdle, StateRegistering:
		return ErrNotRegistered
	default:
		return ErrBusy
	}
	c.state = next
	c.emitLocked(Event{Kind: EventState, State: next})
	return nil
}

// activate enters Active and launches the three call workers.
func (c *Controller) activate(sess telephony.Session) {
	callCtx, cancel := context.WithCancel(context.Background())
	call := newCall(sess.Remote())
	responder := c.newResponder()

	c.mu.Lock()
	c.state = StateActive
	c.call = call
	c.session = sess
	c.cancel = cancel
	c.emitLocked(Event{Kind: EventState, CallID: call.ID, Remote: call.Remote, State: StateActive})
	c.mu.Unlock()

	c.logger.Info("call active", "call_id", call.ID, "remote", call.Remote)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(callCtx, sess, call, responder)
	}()
}

// run supervises the capture, turn, and playback workers for one call,
// then tears the call down when they stop.
func (c *Controller) run(ctx context.Context, sess telephony.Session, call *Call, responder Responder) {
	g, gctx := errgroup.WithContext(ctx)

	utterances := make(chan []byte, c.cfg.QueueDepth)
	replies := make(chan *tts.Result, c.cfg.QueueDepth)

	g.Go(func() error { return c.captureLoop(gctx, sess, utterances) })
	g.Go(func() error { return c.turnLoop(gctx, call, responder, utterances, replies) })
	g.Go(func() error { return c.playbackLoop(gctx, sess, call, replies) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("call workers stopped", "call_id", call.ID, "error", err)
	}

	responder.Close()
	sess.Hangup()

	// Status snapshots *c.call under c.mu, so EndedAt must be written
	// under the same lock.
	c.mu.Lock()
	call.EndedAt = time.Now()
	c.call = nil
	c.session = nil
	c.cancel = nil
	c.state = StateRegistered
	c.emitLocked(Event{Kind: EventState, CallID: call.ID, Remote: call.Remote, State: StateRegistered})
	c.mu.Unlock()

	c.logger.Info("call ended",
		"call_id", call.ID,
		"remote", call.Remote,
		"duration", call.Duration().Round(time.Millisecond),
	)
}

// captureLoop segments inbound frames into utterances. It owns the
// utterance queue and closes it on exit so the turn loop drains out.
func (c *Controller) captureLoop(ctx context.Context, sess telephony.Session, utterances chan<- []byte) error {
	defer close(utterances)

	detector := stt.NewDetector()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sess.Done():
			return nil
		case frame, ok := <-sess.Capture():
			if !ok {
				return nil
			}
			if c.cfg.Speaking != nil && c.cfg.Speaking() {
				// The frame is mostly our own voice; discard it
				// along with any partial utterance it would join.
				detector.Flush()
				continue
			}
			utt := detector.Feed(frame)
			if utt == nil {
				continue
			}
			select {
			case utterances <- utt:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// turnLoop runs the conversation: greeting first, then one
// transcribe-reply-synthesize cycle per captured utterance. It owns
// the reply queue and closes it on exit.
func (c *Controller) turnLoop(ctx context.Context, call *Call, responder Responder, utterances <-chan []byte, replies chan<- *tts.Result) error {
	defer close(replies)

	c.greet(ctx, call, replies)

	hint := language.Tag(c.cfg.LanguageHint)
	for {
		select {
		case <-ctx.Done():
			return nil
		case utt, ok := <-utterances:
			if !ok {
				return nil
			}
			c.turn(ctx, call, responder, hint, utt, replies)
		}
	}
}

// greet speaks the opening line before any caller audio is processed.
func (c *Controller) greet(ctx context.Context, call *Call, replies chan<- *tts.Result) {
	tag := language.Normalize(c.cfg.LanguageHint)
	if language.IsAuto(c.cfg.LanguageHint) {
		// Callers may open in either language; greet bilingually.
		tag = language.Mixed
	}
	text := language.Greeting(tag)

	c.emit(Event{Kind: EventReply, CallID: call.ID, Text: text, Language: tag})
	res, err := c.tts.Synthesize(ctx, text, tag)
	if err != nil {
		c.logger.Warn("greeting synthesis failed", "call_id", call.ID, "error", err)
	}
	select {
	case replies <- res:
	case <-ctx.Done():
	}
}

// turn runs one conversation cycle. Every failure degrades: recognition
// errors become silence plus a backoff, synthesis exhaustion becomes a
// text-only reply. The call itself never ends here.
func (c *Controller) turn(ctx context.Context, call *Call, responder Responder, hint language.Tag, utt []byte, replies chan<- *tts.Result) {
	text, tag, err := c.stt.Recognize(ctx, utt, hint)
	if err != nil {
		c.logger.Warn("recognition failed, treating as silence",
			"call_id", call.ID, "error", err)
		c.emit(Event{Kind: EventError, CallID: call.ID, Error: err.Error()})
		c.backoff(ctx)
		return
	}
	if text == "" {
		return
	}
	c.emit(Event{Kind: EventTranscript, CallID: call.ID, Text: text, Language: tag})

	reply := responder.Reply(ctx, text, tag)
	c.emit(Event{Kind: EventReply, CallID: call.ID, Text: reply, Language: tag})

	res, err := c.tts.Synthesize(ctx, reply, tag)
	if err != nil {
		c.logger.Warn("synthesis exhausted, degrading to text",
			"call_id", call.ID, "error", err)
	}
	select {
	case replies <- res:
	case <-ctx.Done():
	}
}

// playbackLoop drains synthesized replies to the caller and the local
// audio device. Replies without an artifact surface as text-only
// events; a streaming failure alone does not, since local playback may
// still deliver the audio.
func (c *Controller) playbackLoop(ctx context.Context, sess telephony.Session, call *Call, replies <-chan *tts.Result) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case res, ok := <-replies:
			if !ok {
				return nil
			}
			if res == nil {
				continue
			}
			if res.ArtifactPath == "" {
				c.textOnly(call, res)
				continue
			}
			if err := c.streamToCaller(ctx, sess, res); err != nil {
				c.logger.Warn("streaming reply to caller failed",
					"call_id", call.ID, "path", res.ArtifactPath, "error", err)
			}
			if err := c.tts.Play(ctx, res); err != nil {
				c.textOnly(call, res)
			}
		}
	}
}

// streamToCaller frames a PCM artifact into the session's outbound
// queue at real-time pace, so the gateway receives a steady 20ms frame
// stream. Artifacts in other encodings are skipped; they still play
// locally.
func (c *Controller) streamToCaller(ctx context.Context, sess telephony.Session, res *tts.Result) error {
	switch res.Encoding {
	case tts.EncodingPCM16, tts.EncodingPCM24:
	default:
		return nil
	}

	data, err := os.ReadFile(res.ArtifactPath)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	if rate := res.Encoding.SampleRate(); rate != telephony.SampleRate {
		samples := audio.Resample(audio.ConvertPCM16ToInt16(data), rate, telephony.SampleRate)
		data = audio.ConvertInt16ToPCM16(samples)
	}

	ticker := time.NewTicker(telephony.FrameMs * time.Millisecond)
	defer ticker.Stop()

	for off := 0; off < len(data); off += telephony.FrameBytes {
		frame := make([]byte, telephony.FrameBytes)
		copy(frame, data[off:]) // last frame is zero-padded
		if err := sess.Playback(frame); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-sess.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// textOnly delivers a reply that could not be spoken. The text still
// reaches the log and the event feed, so no turn disappears silently.
func (c *Controller) textOnly(call *Call, res *tts.Result) {
	c.logger.Info("reply delivered as text",
		"call_id", call.ID, "language", res.Language, "text", res.Text)
	c.emit(Event{Kind: EventTextOnly, CallID: call.ID, Text: res.Text, Language: res.Language})
}

// backoff pauses the turn loop after a failed turn.
func (c *Controller) backoff(ctx context.Context) {
	t := time.NewTimer(c.cfg.TurnBackoff)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (c *Controller) setState(s State, call *Call) {
	c.mu.Lock()
	c.state = s
	ev := Event{Kind: EventState, State: s}
	if call != nil {
		ev.CallID = call.ID
		ev.Remote = call.Remote
	}
	c.emitLocked(ev)
	c.mu.Unlock()
}

// emitLocked fires an event while holding c.mu.
func (c *Controller) emitLocked(ev Event) {
	if c.cfg.OnEvent == nil {
		return
	}
	ev.Time = time.Now()
	c.cfg.OnEvent(ev)
}

func (c *Controller) emit(ev Event) {
	if c.cfg.OnEvent == nil {
		return
	}
	ev.Time = time.Now()
	c.cfg.OnEvent(ev)
}
