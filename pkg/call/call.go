// Package call owns the lifecycle of a phone call: registration,
// dialing, answering, the active conversation loop, and teardown.
package call

import (
	"time"

	"github.com/google/uuid"
)

// State is the call controller's lifecycle state.
type State string

const (
	StateIdle        State = "idle"
	StateRegistering State = "registering"
	StateRegistered  State = "registered"
	StateDialing     State = "dialing"
	StateRinging     State = "ringing"
	StateActive      State = "active"
	StateEnding      State = "ending"
)

// Call identifies one telephony session.
type Call struct {
	ID        string
	Remote    string
	CreatedAt time.Time
	EndedAt   time.Time
}

// newCall creates a call record for a just-established session.
func newCall(remote string) *Call {
	return &Call{
		ID:        uuid.NewString(),
		Remote:    remote,
		CreatedAt: time.Now(),
	}
}

// Active reports whether the call has not yet ended.
func (c *Call) Active() bool {
	return c != nil && c.EndedAt.IsZero()
}

// Duration is the call length so far, or the final length once ended.
func (c *Call) Duration() time.Duration {
	if c == nil {
		return 0
	}
	if c.EndedAt.IsZero() {
		return time.Since(c.CreatedAt)
	}
	return c.EndedAt.Sub(c.CreatedAt)
}
