// Package telephony is the transport boundary for calls.
//
// A Client registers with a call gateway and places or answers calls.
// Once a call is established, media flows as raw PCM16 frames through
// the Session's bounded capture and playback queues; signaling never
// touches the media path again until hang-up.
package telephony

import (
	"context"
	"errors"
)

// Media frame format. Frames are 16-bit signed little-endian mono PCM.
const (
	SampleRate = 16000
	Channels   = 1
	FrameMs    = 20

	// FrameBytes is the size of one frame: 20ms at 16kHz mono PCM16.
	FrameBytes = SampleRate * FrameMs / 1000 * 2

	// QueueDepth bounds the capture and playback queues. At 20ms per
	// frame this is roughly 640ms of buffered audio per direction.
	QueueDepth = 32
)

var (
	// ErrNotRegistered is returned when dialing or accepting before a
	// successful Register.
	ErrNotRegistered = errors.New("telephony: not registered")

	// ErrCallRejected is returned when the remote party declines.
	ErrCallRejected = errors.New("telephony: call rejected")

	// ErrSessionClosed is returned when using a hung-up session.
	ErrSessionClosed = errors.New("telephony: session closed")
)

// Client is the signaling surface of the transport.
type Client interface {
	// Register authenticates with the gateway. Must succeed before
	// Dial or Accept.
	Register(ctx context.Context, user, pass string) error

	// Dial places an outbound call and blocks until the remote party
	// answers or the context ends.
	Dial(ctx context.Context, target string) (Session, error)

	// Accept blocks until an inbound call arrives and answers it.
	Accept(ctx context.Context) (Session, error)

	// Close tears down the gateway connection.
	Close() error
}

// Session is one established call's media surface.
type Session interface {
	// Remote identifies the other party.
	Remote() string

	// Capture yields inbound audio frames. Consumers select on Done
	// to observe session end; the channel itself may stay open.
	// Frames are dropped, oldest first, if the consumer falls behind
	// the queue depth.
	Capture() <-chan []byte

	// Playback queues one outbound frame. Returns ErrSessionClosed
	// after hang-up; a full queue drops the oldest pending frame
	// rather than blocking the caller.
	Playback(frame []byte) error

	// Done closes when the session has ended, locally or remotely.
	Done() <-chan struct{}

	// Hangup ends the call. Safe to call more than once.
	Hangup() error
}
