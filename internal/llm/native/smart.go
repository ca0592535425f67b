package native

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/maeum-ai/maeum/internal/llm"
)

// SmartClient wraps a Client and downgrades to non-streaming once
// streaming proves unavailable, caching the decision so later calls
// skip the doomed attempt.
type SmartClient struct {
	*Client
	streamBroken atomic.Bool
}

// NewSmartClient wraps the client.
func NewSmartClient(c *Client) *SmartClient {
	return &SmartClient{Client: c}
}

func (s *SmartClient) Name() string { return "native-smart" }

// ChatStream streams when possible. After a connection-level stream
// failure it falls back to Chat — delivered as one chunk — and stays
// downgraded for the rest of the process lifetime.
func (s *SmartClient) ChatStream(ctx context.Context, req llm.Request, onChunk llm.StreamCallback) (string, error) {
	if !s.streamBroken.Load() {
		text, err := s.Client.ChatStream(ctx, req, onChunk)
		if err == nil || ctx.Err() != nil || !retryable(err) {
			return text, err
		}
		s.streamBroken.Store(true)
		log.Printf("[LLM] streaming unavailable, downgrading to non-streaming: %v", err)
	}

	text, err := s.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	if onChunk != nil {
		if cbErr := onChunk(text); cbErr != nil && cbErr != llm.ErrStopStream {
			return text, cbErr
		}
	}
	return text, nil
}

var _ llm.Provider = (*SmartClient)(nil)
