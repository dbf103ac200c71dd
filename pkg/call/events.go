package call

import (
	"time"

	"github.com/vaani-labs/go-vaani/pkg/language"
)

// EventKind discriminates controller events.
type EventKind string

const (
	EventState      EventKind = "state"
	EventTranscript EventKind = "transcript"
	EventReply      EventKind = "reply"
	EventTextOnly   EventKind = "text_only"
	EventError      EventKind = "error"
)

// Event is one observable moment in a call: a state transition, a
// caller transcript, an assistant reply, or a degraded text-only turn.
// Events feed the control server's live stream and carry no audio.
type Event struct {
	Kind     EventKind    `json:"kind"`
	CallID   string       `json:"call_id,omitempty"`
	Remote   string       `json:"remote,omitempty"`
	State    State        `json:"state,omitempty"`
	Text     string       `json:"text,omitempty"`
	Language language.Tag `json:"language,omitempty"`
	Error    string       `json:"error,omitempty"`
	Time     time.Time    `json:"time"`
}
