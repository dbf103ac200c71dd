// Package brain provides the conversation engine that turns caller
// transcripts into spoken replies.
//
// An Engine owns one call's conversation history and delegates completion
// to an LLM provider. Providers implement a single chat interface so
// OpenAI-compatible APIs and Gemini can be swapped freely. When the
// primary provider fails the engine retries once against an alternate
// provider with an isolated history, and if that also fails it falls back
// to a canned phrase in the caller's language.
package brain

import (
	"context"
)

// Provider is the LLM capability: given an ordered conversation history,
// produce the assistant's next message.
type Provider interface {
	// Chat generates a completion from the message history.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// ChatRequest for chat completions.
type ChatRequest struct {
	// Messages is the conversation history, system prompt first.
	Messages []Message

	// Model overrides the provider's default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0).
	Temperature float64
}

// ChatResponse from a chat completion.
type ChatResponse struct {
	// Message is the assistant's response.
	Message Message

	// FinishReason indicates why generation stopped.
	FinishReason string

	// Model is the model that produced the response.
	Model string

	// LatencyMs is the request round-trip time in milliseconds.
	LatencyMs int64
}
