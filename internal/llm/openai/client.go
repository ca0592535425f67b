// Package openai adapts any OpenAI-compatible chat completions
// endpoint to the llm.Provider contract, for users pointing Maeum at a
// hosted model instead of the local backend.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	openailib "github.com/sashabaranov/go-openai"

	"github.com/maeum-ai/maeum/internal/llm"
)

// Client implements llm.Provider over the OpenAI chat completions API.
type Client struct {
	client *openailib.Client
	config *Config
}

// NewClient creates an OpenAI-compatible client.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	clientConfig := openailib.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &Client{
		client: openailib.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// NewClientFromEnv creates a client from LLM_* environment variables.
func NewClientFromEnv() (*Client, error) {
	config, err := NewConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	return NewClient(config)
}

func (c *Client) Name() string {
	return fmt.Sprintf("openai-compatible (%s)", c.config.Model)
}

func (c *Client) request(req llm.Request, stream bool) openailib.ChatCompletionRequest {
	messages := make([]openailib.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openailib.ChatCompletionMessage{
			Role:    openailib.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openailib.ChatCompletionMessage{
		Role:    openailib.ChatMessageRoleUser,
		Content: req.Message,
	})

	out := openailib.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: messages,
		Stream:   stream,
	}
	if req.Temperature > 0 {
		out.Temperature = float32(req.Temperature)
	} else if c.config.Temperature != nil {
		out.Temperature = *c.config.Temperature
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	} else if c.config.MaxTokens > 0 {
		out.MaxTokens = c.config.MaxTokens
	}
	return out
}

// Chat sends one request and returns the full response text. Transient
// failures retry with linear backoff up to MaxRetries.
func (c *Client) Chat(ctx context.Context, req llm.Request) (string, error) {
	var resp openailib.ChatCompletionResponse
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		resp, lastErr = c.client.CreateChatCompletion(ctx, c.request(req, false))
		if lastErr == nil {
			break
		}
		if attempt < c.config.MaxRetries {
			wait := time.Duration(attempt+1) * time.Second
			log.Printf("[LLM] retry %d/%d after %v: %v", attempt+1, c.config.MaxRetries, wait, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("LLM call failed after %d retries: %w", c.config.MaxRetries, lastErr)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from LLM")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatStream streams the response token-by-token through onChunk. A
// stream that cannot be opened falls back to Chat.
func (c *Client) ChatStream(ctx context.Context, req llm.Request, onChunk llm.StreamCallback) (string, error) {
	if onChunk == nil {
		return c.Chat(ctx, req)
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, c.request(req, true))
	if err != nil {
		log.Printf("[LLM] stream creation failed, falling back to sync: %v", err)
		text, err := c.Chat(ctx, req)
		if err != nil {
			return "", err
		}
		if cbErr := onChunk(text); cbErr != nil && !errors.Is(cbErr, llm.ErrStopStream) {
			return text, cbErr
		}
		return text, nil
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep partial content if any arrived before the break.
			if sb.Len() > 0 {
				log.Printf("[LLM] stream interrupted after %d chars: %v", sb.Len(), err)
				break
			}
			return "", fmt.Errorf("stream recv error: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if cbErr := onChunk(delta); cbErr != nil {
			if errors.Is(cbErr, llm.ErrStopStream) {
				return sb.String(), nil
			}
			return sb.String(), cbErr
		}
	}
	return sb.String(), nil
}

// Abort is a no-op: the OpenAI protocol has no out-of-band abort, the
// caller cancels the request context instead.
func (c *Client) Abort(_ context.Context) {}

// HealthCheck verifies the endpoint responds to a model listing.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai endpoint unreachable: %w", err)
	}
	return nil
}

var _ llm.Provider = (*Client)(nil)
