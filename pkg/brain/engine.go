package brain

import (
	"context"
	"log/slog"

	"github.com/vaani-labs/go-vaani/pkg/language"
)

// DefaultHistoryLimit caps conversation history length (entries, counting
// the system prompt). Oldest user+assistant pairs are evicted beyond it.
const DefaultHistoryLimit = 20

// Engine owns one call's conversation history and produces replies.
//
// The engine is constructed per call and is not safe for concurrent use;
// the call's turn loop is its only caller. The primary provider sees the
// full running history. The alternate provider, when the primary fails,
// is given a fresh history seeded only with the system prompt and the
// current user turn, so a failing provider can never corrupt the other's
// context.
type Engine struct {
	primary   Provider
	alternate Provider

	history []Message
	limit   int
	track   language.Tag
	logger  *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithHistoryLimit sets the maximum history length in entries.
func WithHistoryLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithAlternate sets the fallback provider tried after a primary failure.
func WithAlternate(p Provider) EngineOption {
	return func(e *Engine) { e.alternate = p }
}

// WithEngineLogger sets the structured logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l.With("component", "brain.engine") }
}

// NewEngine creates a conversation engine backed by the primary provider.
func NewEngine(primary Provider, opts ...EngineOption) *Engine {
	e := &Engine{
		primary: primary,
		limit:   DefaultHistoryLimit,
		logger:  slog.Default().With("component", "brain.engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reply produces the assistant's answer to userText.
//
// On the first turn the system prompt for tag is installed as the
// history's first entry; it stays fixed for the call's lifetime. The
// user and assistant turns are appended to history only when the primary
// provider succeeds. If the primary fails, one alternate attempt is made
// with an isolated history; if that also fails, a canned phrase in the
// caller's language is returned and history is left untouched.
func (e *Engine) Reply(ctx context.Context, userText string, tag language.Tag) string {
	if len(e.history) == 0 {
		e.track = tag
		e.history = append(e.history, NewSystemMessage(language.Prompt(tag)))
	}

	primaryMsgs := append(append([]Message{}, e.history...), NewUserMessage(userText))

	resp, err := e.primary.Chat(ctx, &ChatRequest{Messages: primaryMsgs})
	if err == nil {
		e.history = append(e.history, NewUserMessage(userText), resp.Message)
		e.cap()
		return resp.Message.Content
	}

	e.logger.Warn("primary provider failed", "error", err)

	if e.alternate != nil {
		altMsgs := []Message{
			NewSystemMessage(language.Prompt(tag)),
			NewUserMessage(userText),
		}
		altResp, altErr := e.alternate.Chat(ctx, &ChatRequest{Messages: altMsgs})
		if altErr == nil {
			return altResp.Message.Content
		}
		e.logger.Warn("alternate provider failed", "error", altErr)
	}

	return language.Fallback(tag)
}

// History returns a copy of the conversation history.
func (e *Engine) History() []Message {
	out := make([]Message, len(e.history))
	copy(out, e.history)
	return out
}

// Language returns the language track selected on the first turn.
func (e *Engine) Language() language.Tag {
	if e.track == "" {
		return language.English
	}
	return e.track
}

// Close releases both providers.
func (e *Engine) Close() error {
	err := e.primary.Close()
	if e.alternate != nil {
		if altErr := e.alternate.Close(); err == nil {
			err = altErr
		}
	}
	return err
}

// cap evicts the oldest user+assistant pair while the history exceeds the
// limit. The system prompt at index 0 is never evicted, and entries are
// always removed two at a time to preserve turn alignment.
func (e *Engine) cap() {
	for len(e.history) > e.limit && len(e.history) >= 3 {
		e.history = append(e.history[:1], e.history[3:]...)
	}
}
