package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Gateway control message types.
const (
	msgRegister   = "register"
	msgRegistered = "registered"
	msgDial       = "dial"
	msgRing       = "ring"
	msgAccept     = "accept"
	msgAnswer     = "answer"
	msgHangup     = "hangup"
	msgError      = "error"
)

// controlMsg is the JSON envelope exchanged with the gateway. Media
// travels separately: as binary WebSocket frames, or over RTP when the
// answer carries media addresses.
type controlMsg struct {
	Type   string `json:"type"`
	User   string `json:"user,omitempty"`
	Pass   string `json:"pass,omitempty"`
	Target string `json:"target,omitempty"`
	Remote string `json:"remote,omitempty"`
	Reason string `json:"reason,omitempty"`

	// RTPAddr and LocalRTPAddr switch media to an RTP bridge when
	// present on an answer.
	RTPAddr      string `json:"rtp_addr,omitempty"`
	LocalRTPAddr string `json:"local_rtp_addr,omitempty"`
}

// WSClient speaks the gateway's WebSocket signaling protocol. One
// client handles one call at a time, matching the one-conversation-
// per-line nature of a phone call.
type WSClient struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu         sync.Mutex
	registered bool
	session    *wsSession

	control chan controlMsg
	ring    chan controlMsg
	closed  chan struct{}
	once    sync.Once
}

// DialGateway connects to the call gateway at url (ws:// or wss://).
func DialGateway(ctx context.Context, url string, logger *slog.Logger) (*WSClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("telephony: dial gateway: %w", err)
	}

	c := &WSClient{
		conn:    conn,
		logger:  logger.With("component", "telephony.ws"),
		control: make(chan controlMsg, 8),
		ring:    make(chan controlMsg, 1),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Register authenticates with the gateway.
func (c *WSClient) Register(ctx context.Context, user, pass string) error {
	if err := c.send(controlMsg{Type: msgRegister, User: user, Pass: pass}); err != nil {
		return err
	}
	msg, err := c.await(ctx)
	if err != nil {
		return err
	}
	if msg.Type != msgRegistered {
		return fmt.Errorf("telephony: registration refused: %s", msg.Reason)
	}
	c.mu.Lock()
	c.registered = true
	c.mu.Unlock()
	c.logger.Info("registered with gateway", "user", user)
	return nil
}

// Dial places an outbound call and waits for the answer.
func (c *WSClient) Dial(ctx context.Context, target string) (Session, error) {
	if !c.isRegistered() {
		return nil, ErrNotRegistered
	}
	if err := c.send(controlMsg{Type: msgDial, Target: target}); err != nil {
		return nil, err
	}

	msg, err := c.await(ctx)
	if err != nil {
		return nil, err
	}
	switch msg.Type {
	case msgAnswer:
		return c.establish(ctx, msg)
	case msgError:
		return nil, fmt.Errorf("telephony: %s: %w", msg.Reason, ErrCallRejected)
	default:
		return nil, fmt.Errorf("telephony: unexpected %q during dial", msg.Type)
	}
}

// Accept waits for an inbound call and answers it.
func (c *WSClient) Accept(ctx context.Context) (Session, error) {
	if !c.isRegistered() {
		return nil, ErrNotRegistered
	}

	var offer controlMsg
	select {
	case offer = <-c.ring:
	case <-c.closed:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := c.send(controlMsg{Type: msgAccept}); err != nil {
		return nil, err
	}
	return c.establish(ctx, offer)
}

// Close tears down the gateway connection and any active session.
func (c *WSClient) Close() error {
	c.once.Do(func() {
		close(c.closed)
		c.mu.Lock()
		s := c.session
		c.mu.Unlock()
		if s != nil {
			s.end()
		}
		c.conn.Close()
	})
	return nil
}

func (c *WSClient) establish(ctx context.Context, msg controlMsg) (Session, error) {
	s := &wsSession{
		client:  c,
		remote:  msg.Remote,
		capture: make(chan []byte, QueueDepth),
		done:    make(chan struct{}),
	}

	if msg.RTPAddr != "" {
		bridge, err := NewRTPBridge(msg.LocalRTPAddr, msg.RTPAddr, c.logger)
		if err != nil {
			return nil, err
		}
		bridge.Start(ctx)
		s.bridge = bridge
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	c.logger.Info("call established", "remote", s.remote, "media", s.mediaKind())
	return s, nil
}

func (c *WSClient) isRegistered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}

func (c *WSClient) send(msg controlMsg) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *WSClient) sendBinary(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *WSClient) await(ctx context.Context) (controlMsg, error) {
	select {
	case msg := <-c.control:
		return msg, nil
	case <-c.closed:
		return controlMsg{}, ErrSessionClosed
	case <-ctx.Done():
		return controlMsg{}, ctx.Err()
	}
}

// readLoop routes gateway traffic: binary frames to the active
// session's capture queue, control messages to their waiters.
func (c *WSClient) readLoop() {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.logger.Warn("gateway connection lost", "error", err)
				c.Close()
			}
			return
		}

		if kind == websocket.BinaryMessage {
			c.mu.Lock()
			s := c.session
			c.mu.Unlock()
			if s != nil && s.bridge == nil {
				s.enqueue(data)
			}
			continue
		}

		var msg controlMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("dropping malformed control message", "error", err)
			continue
		}

		switch msg.Type {
		case msgRing:
			select {
			case c.ring <- msg:
			default:
			}
		case msgHangup:
			c.mu.Lock()
			s := c.session
			c.session = nil
			c.mu.Unlock()
			if s != nil {
				c.logger.Info("remote hangup", "remote", s.remote)
				s.end()
			}
		default:
			select {
			case c.control <- msg:
			default:
				c.logger.Debug("dropping unconsumed control message", "type", msg.Type)
			}
		}
	}
}

// wsSession is one established call over the gateway. Media goes
// through the RTP bridge when one was negotiated, otherwise as binary
// WebSocket frames.
type wsSession struct {
	client *WSClient
	remote string
	bridge *RTPBridge

	capture chan []byte
	done    chan struct{}
	once    sync.Once
}

func (s *wsSession) Remote() string { return s.remote }

func (s *wsSession) Capture() <-chan []byte {
	if s.bridge != nil {
		return s.bridge.Capture()
	}
	return s.capture
}

func (s *wsSession) Playback(frame []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	if s.bridge != nil {
		return s.bridge.Send(frame)
	}
	return s.client.sendBinary(frame)
}

func (s *wsSession) Done() <-chan struct{} { return s.done }

func (s *wsSession) Hangup() error {
	var sendErr error
	s.once.Do(func() {
		sendErr = s.client.send(controlMsg{Type: msgHangup})
		s.finish()
	})
	return sendErr
}

// end closes the session without signaling, for remote hang-up.
func (s *wsSession) end() {
	s.once.Do(s.finish)
}

// finish marks the session done. The capture channel is left open so a
// frame racing the teardown lands in a dead queue instead of a closed
// channel; readers exit via done.
func (s *wsSession) finish() {
	close(s.done)
	if s.bridge != nil {
		s.bridge.Close()
	}
	s.client.mu.Lock()
	if s.client.session == s {
		s.client.session = nil
	}
	s.client.mu.Unlock()
}

// enqueue pushes an inbound frame, dropping the oldest when full.
func (s *wsSession) enqueue(frame []byte) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.capture <- frame:
		return
	default:
	}
	select {
	case <-s.capture:
	default:
	}
	select {
	case s.capture <- frame:
	default:
	}
}

func (s *wsSession) mediaKind() string {
	if s.bridge != nil {
		return "rtp"
	}
	return "websocket"
}

// Verify interfaces at compile time.
var (
	_ Client  = (*WSClient)(nil)
	_ Session = (*wsSession)(nil)
)
