// Package llm defines the provider-neutral contract for talking to a
// language model backend. The agent loop drives a provider through
// prompt strings rather than structured tool calls: tool use is parsed
// out of the streamed text by the interceptor, so the contract stays
// identical across backends with and without function calling.
package llm

import (
	"context"
	"errors"
)

// Message represents one turn of a conversation.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request carries one generation call. The backend receives the system
// prompt and the composed user message as two strings; conversation
// history is already folded into Message by the caller.
type Request struct {
	SystemPrompt string
	Message      string
	MaxTokens    int
	Temperature  float64
}

// StreamCallback is invoked for each chunk of streamed text. Returning
// an error aborts the stream; returning ErrStopStream aborts it without
// the provider treating the call as failed.
type StreamCallback func(chunk string) error

// ErrStopStream signals a deliberate early stop from a StreamCallback,
// e.g. when a tool block has been fully captured and the rest of the
// generation is moot.
var ErrStopStream = errors.New("stream stopped by consumer")

// Provider is implemented by every LLM backend.
type Provider interface {
	// Name identifies the provider in logs and status output.
	Name() string

	// Chat sends one request and returns the complete response text.
	Chat(ctx context.Context, req Request) (string, error)

	// ChatStream sends one request and delivers the response
	// incrementally through onChunk, returning the accumulated text.
	// A provider without streaming support may fall back to Chat and
	// deliver the result as a single chunk.
	ChatStream(ctx context.Context, req Request, onChunk StreamCallback) (string, error)

	// Abort asks the backend to stop the generation in flight. Best
	// effort: providers without an abort endpoint make this a no-op.
	Abort(ctx context.Context)

	// HealthCheck reports whether the backend is reachable.
	HealthCheck(ctx context.Context) error
}
