// Package native implements the llm.Provider contract against the
// local backend's own HTTP surface: an SSE streaming endpoint, a
// non-streaming fallback, an abort endpoint and a health probe.
package native

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/maeum-ai/maeum/internal/llm"
)

const (
	connectTimeout = 10 * time.Second
	abortTimeout   = 3 * time.Second
	healthTimeout  = 5 * time.Second

	// Connection failures retry with linear backoff; timeouts and
	// mid-stream errors do not.
	maxConnectRetries = 3
)

// Options tune one client instance.
type Options struct {
	BaseURL     string
	ReadTimeout time.Duration // idle gap between SSE reads
	MaxTokens   int
	Temperature float64
}

// Client talks to the native backend.
type Client struct {
	baseURL     string
	readTimeout time.Duration
	maxTokens   int
	temperature float64
	client      *http.Client
}

// NewClient creates a native backend client. The HTTP client has no
// overall deadline: generation time is bounded by the read-idle timer
// and the caller's context instead.
func NewClient(opts Options) *Client {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Minute
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		readTimeout: opts.ReadTimeout,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
				ResponseHeaderTimeout: connectTimeout,
			},
		},
	}
}

func (c *Client) Name() string { return "native" }

type chatRequest struct {
	Message      string  `json:"message"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	Stream       bool    `json:"stream,omitempty"`
	CodingMode   bool    `json:"coding_mode"`
}

func (c *Client) body(req llm.Request, stream bool) ([]byte, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = c.temperature
	}
	return json.Marshal(chatRequest{
		Message:      req.Message,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    maxTokens,
		Temperature:  temperature,
		Stream:       stream,
		CodingMode:   true,
	})
}

// Chat performs a non-streaming generation via POST /api/chat.
func (c *Client) Chat(ctx context.Context, req llm.Request) (string, error) {
	body, err := c.body(req, false)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("backend returned HTTP %d: %s", resp.StatusCode, firstLine(string(raw)))
	}

	if text := extractChunk(string(raw)); text != "" {
		return text, nil
	}
	return "", fmt.Errorf("backend response had no content field")
}

// ChatStream performs a streaming generation via POST /api/chat/stream,
// delivering each SSE chunk to onChunk. Connection errors retry with
// linear backoff; a failure after bytes were received does not.
func (c *Client) ChatStream(ctx context.Context, req llm.Request, onChunk llm.StreamCallback) (string, error) {
	if onChunk == nil {
		return c.Chat(ctx, req)
	}
	body, err := c.body(req, true)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= maxConnectRetries; attempt++ {
		text, received, err := c.streamOnce(ctx, body, onChunk)
		if err == nil || errors.Is(err, llm.ErrStopStream) {
			return text, nil
		}
		if received || ctx.Err() != nil || !retryable(err) {
			return text, err
		}
		lastErr = err
		wait := time.Duration(attempt) * time.Second
		log.Printf("[LLM] stream connect failed (attempt %d/%d), retrying in %v: %v",
			attempt, maxConnectRetries, wait, err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("stream failed after %d attempts: %w", maxConnectRetries, lastErr)
}

// streamOnce opens one SSE stream and consumes it to the end. received
// reports whether any chunk arrived, which disables retry.
func (c *Client) streamOnce(ctx context.Context, body []byte, onChunk llm.StreamCallback) (text string, received bool, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/stream", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", false, fmt.Errorf("backend connect failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", false, fmt.Errorf("backend returned HTTP %d: %s", resp.StatusCode, firstLine(string(raw)))
	}

	// Idle watchdog: each read arms the timer; silence beyond the
	// read timeout cancels the request.
	timedOut := false
	idle := time.AfterFunc(c.readTimeout, func() {
		timedOut = true
		cancel()
	})
	defer idle.Stop()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	scanner.Split(splitSSEEvents)

	var sb strings.Builder
	for scanner.Scan() {
		idle.Reset(c.readTimeout)
		for _, payload := range dataPayloads(scanner.Text()) {
			if payload == "[DONE]" {
				return sb.String(), true, nil
			}
			chunk := extractChunk(payload)
			if chunk == "" {
				continue
			}
			received = true
			sb.WriteString(chunk)
			if err := onChunk(chunk); err != nil {
				return sb.String(), true, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if timedOut {
			return sb.String(), received, fmt.Errorf("stream idle timeout after %v", c.readTimeout)
		}
		return sb.String(), received, fmt.Errorf("stream read error: %w", err)
	}
	// Stream ended without [DONE]; treat a clean EOF as completion.
	return sb.String(), received, nil
}

// Abort asks the backend to stop the in-flight generation. Fire and
// forget.
func (c *Client) Abort(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, abortTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/extra/abort", nil)
	if err != nil {
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("[LLM] abort signal failed: %v", err)
		return
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

// HealthCheck probes /api/health, falling back to a root GET for
// backends that do not expose the endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := c.probe(ctx, c.baseURL+"/api/health"); err == nil {
		return nil
	}
	return c.probe(ctx, c.baseURL+"/")
}

func (c *Client) probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// retryable reports whether the error was a connection-level failure
// worth a fresh attempt. Timeouts are deliberate non-retries.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connect failed") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "EOF")
}

// splitSSEEvents is a bufio.SplitFunc yielding one SSE event per token,
// accepting both \n\n and \r\n\r\n delimiters.
func splitSSEEvents(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if len(data) == 0 && atEOF {
		return 0, nil, nil
	}
	lf := bytes.Index(data, []byte("\n\n"))
	crlf := bytes.Index(data, []byte("\r\n\r\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return crlf + 4, data[:crlf], nil
	case lf >= 0:
		return lf + 2, data[:lf], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// dataPayloads extracts the data payloads of one SSE event.
func dataPayloads(event string) []string {
	var out []string
	for _, line := range strings.Split(event, "\n") {
		line = strings.TrimSuffix(line, "\r")
		rest, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		out = append(out, strings.TrimPrefix(rest, " "))
	}
	return out
}

// chunkEnvelope mirrors the content fields different backend versions
// put their text in.
type chunkEnvelope struct {
	Content string `json:"content"`
	Text    string `json:"text"`
	Delta   struct {
		Content string `json:"content"`
	} `json:"delta"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Response string `json:"response"`
}

// extractChunk resolves a payload to its text: the first non-empty of
// content, text, delta.content, choices[0].delta.content, response —
// or the raw payload when it is not JSON.
func extractChunk(payload string) string {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "{") {
		return payload
	}
	var env chunkEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return payload
	}
	switch {
	case env.Content != "":
		return env.Content
	case env.Text != "":
		return env.Text
	case env.Delta.Content != "":
		return env.Delta.Content
	case len(env.Choices) > 0 && env.Choices[0].Delta.Content != "":
		return env.Choices[0].Delta.Content
	case env.Response != "":
		return env.Response
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
