package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/maeum-ai/maeum/internal/llm"
	"github.com/maeum-ai/maeum/internal/prompt"
	"github.com/maeum-ai/maeum/internal/session"
)

// chatStub answers Chat with a fixed summary (or error) and fails any
// streaming call.
type chatStub struct {
	summary string
	err     error
	calls   int
}

func (p *chatStub) Name() string { return "stub" }
func (p *chatStub) Chat(_ context.Context, _ llm.Request) (string, error) {
	p.calls++
	return p.summary, p.err
}
func (p *chatStub) ChatStream(_ context.Context, _ llm.Request, _ llm.StreamCallback) (string, error) {
	return "", fmt.Errorf("not streaming")
}
func (p *chatStub) Abort(_ context.Context)             {}
func (p *chatStub) HealthCheck(_ context.Context) error { return nil }

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	store := session.NewStore(time.Minute)
	t.Cleanup(store.Close)
	return store.GetOrCreate("test")
}

func fillTurns(sess *session.Session, n int, content string) {
	for i := 0; i < n; i++ {
		role := session.RoleUser
		if i%2 == 1 {
			role = session.RoleAssistant
		}
		sess.Append(role, content)
	}
}

func TestMaybeCompress_EvictsOldTurns(t *testing.T) {
	sess := newTestSession(t)
	fillTurns(sess, 30, strings.Repeat("데이터 ", 100))

	stub := &chatStub{summary: "지금까지 데이터 작업을 진행했습니다."}
	c := NewCompressor(stub, prompt.NewLoader("", ""), 100)

	evicted := c.MaybeCompress(context.Background(), sess)
	if evicted != 20 {
		t.Fatalf("evicted = %d, want 20", evicted)
	}
	if sess.Len() != 10 {
		t.Errorf("remaining turns = %d, want 10", sess.Len())
	}
	if sess.Summary() != "지금까지 데이터 작업을 진행했습니다." {
		t.Errorf("summary = %q", sess.Summary())
	}
}

func TestMaybeCompress_MergesPriorSummary(t *testing.T) {
	sess := newTestSession(t)
	fillTurns(sess, 30, strings.Repeat("가", 50))
	stub := &chatStub{summary: "첫 요약"}
	c := NewCompressor(stub, prompt.NewLoader("", ""), 100)
	c.MaybeCompress(context.Background(), sess)

	fillTurns(sess, 25, strings.Repeat("가", 50))
	stub.summary = "둘째 요약"
	c.MaybeCompress(context.Background(), sess)

	got := sess.Summary()
	if !strings.Contains(got, "[이전 요약]") || !strings.Contains(got, "첫 요약") || !strings.Contains(got, "둘째 요약") {
		t.Errorf("merged summary = %q", got)
	}
}

func TestMaybeCompress_SkipsShortHistory(t *testing.T) {
	sess := newTestSession(t)
	fillTurns(sess, 8, strings.Repeat("가", 10000))

	stub := &chatStub{summary: "요약"}
	c := NewCompressor(stub, prompt.NewLoader("", ""), 100)
	if evicted := c.MaybeCompress(context.Background(), sess); evicted != 0 {
		t.Errorf("evicted = %d, want 0 for short history", evicted)
	}
	if stub.calls != 0 {
		t.Error("no summarization call expected")
	}
}

func TestMaybeCompress_SkipsUnderLimit(t *testing.T) {
	sess := newTestSession(t)
	fillTurns(sess, 20, "짧음")

	stub := &chatStub{summary: "요약"}
	c := NewCompressor(stub, prompt.NewLoader("", ""), 1_000_000)
	if evicted := c.MaybeCompress(context.Background(), sess); evicted != 0 {
		t.Errorf("evicted = %d, want 0 under limit", evicted)
	}
}

func TestMaybeCompress_FailureLeavesHistoryIntact(t *testing.T) {
	sess := newTestSession(t)
	fillTurns(sess, 30, strings.Repeat("가", 100))

	stub := &chatStub{err: fmt.Errorf("backend down")}
	c := NewCompressor(stub, prompt.NewLoader("", ""), 100)
	if evicted := c.MaybeCompress(context.Background(), sess); evicted != 0 {
		t.Errorf("evicted = %d, want 0 on failure", evicted)
	}
	if sess.Len() != 30 {
		t.Errorf("history length = %d, want 30", sess.Len())
	}
	if sess.Summary() != "" {
		t.Errorf("summary must stay empty, got %q", sess.Summary())
	}
}
