package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/maeum-ai/maeum/internal/llm"
	"github.com/maeum-ai/maeum/internal/prompt"
	"github.com/maeum-ai/maeum/internal/session"
)

// compressKeepTurns is how many recent turns survive a compaction.
const compressKeepTurns = 10

// Compressor shrinks long conversations by summarizing old turns
// through the model itself. Compression runs before each generation;
// failures are logged and skipped since an over-long prompt degrades
// answers but does not break them.
type Compressor struct {
	provider llm.Provider
	loader   *prompt.Loader
	limit    int // estimated-token threshold
}

func NewCompressor(provider llm.Provider, loader *prompt.Loader, limit int) *Compressor {
	return &Compressor{provider: provider, loader: loader, limit: limit}
}

// MaybeCompress summarizes and evicts old turns when the estimated
// token count of history plus summary exceeds the limit. Returns the
// number of evicted turns (0 when nothing happened).
func (c *Compressor) MaybeCompress(ctx context.Context, sess *session.Session) int {
	history := sess.History()
	if len(history) <= compressKeepTurns {
		return 0
	}

	total := estimateTokens(sess.Summary())
	for _, t := range history {
		total += estimateTokens(t.Content)
	}
	if total < c.limit {
		return 0
	}

	evictable := history[:len(history)-compressKeepTurns]
	summary, err := c.summarize(ctx, evictable)
	if err != nil {
		log.Printf("[Compress] summarization failed, skipping: %v", err)
		return 0
	}

	if prev := sess.Summary(); prev != "" {
		summary = fmt.Sprintf("[이전 요약]\n%s\n\n[새 요약]\n%s", prev, summary)
	}
	evicted := sess.Compact(summary, compressKeepTurns)
	log.Printf("[Compress] evicted %d turns (estimated %d tokens)", evicted, total)
	return evicted
}

func (c *Compressor) summarize(ctx context.Context, turns []session.Turn) (string, error) {
	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "[%s]\n%s\n\n", t.Role, t.Content)
	}

	resp, err := c.provider.Chat(ctx, llm.Request{
		SystemPrompt: c.loader.Load("summarize.md"),
		Message:      sb.String(),
		MaxTokens:    1024,
		Temperature:  0.3,
	})
	if err != nil {
		return "", err
	}
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return "", fmt.Errorf("empty summary")
	}
	return resp, nil
}
