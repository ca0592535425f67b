package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/maeum-ai/maeum/internal/core"
)

// ── retryBaseNode: simulates Exec failures for retry testing ──

type errState struct{ calls int }

type retryBaseNode struct {
	failUntil int // fail the first N Exec calls
	calls     int
	fallbacks int
}

func (r *retryBaseNode) Prep(_ *errState) []string { return []string{"work"} }
func (r *retryBaseNode) Post(_ *errState, _ []string, results ...string) core.Action {
	if len(results) > 0 && results[0] == "fallback" {
		return core.ActionFailure
	}
	return core.ActionSuccess
}
func (r *retryBaseNode) ExecFallback(_ error) string {
	r.fallbacks++
	return "fallback"
}
func (r *retryBaseNode) Exec(_ context.Context, _ string) (string, error) {
	r.calls++
	if r.calls <= r.failUntil {
		return "", errors.New("transient error")
	}
	return "ok", nil
}

// ── Node tests ──

func TestNode_Run_SucceedsFirstAttempt(t *testing.T) {
	state := &errState{}
	impl := &retryBaseNode{failUntil: 0}
	node := core.NewNode[errState, string, string](impl, 2)
	node.Run(context.Background(), state)

	if impl.calls != 1 {
		t.Errorf("expected 1 Exec call, got %d", impl.calls)
	}
}

func TestNode_Run_RetriesOnError(t *testing.T) {
	state := &errState{}
	impl := &retryBaseNode{failUntil: 2} // fail first 2, succeed on 3rd
	node := core.NewNode[errState, string, string](impl, 3)
	action := node.Run(context.Background(), state)

	if impl.calls != 3 {
		t.Errorf("expected 3 Exec calls, got %d", impl.calls)
	}
	if action != core.ActionSuccess {
		t.Errorf("expected ActionSuccess after retries, got %q", action)
	}
}

func TestNode_Run_FallbackAfterAllRetriesExhausted(t *testing.T) {
	state := &errState{}
	impl := &retryBaseNode{failUntil: 99} // always fail
	node := core.NewNode[errState, string, string](impl, 2)
	action := node.Run(context.Background(), state)

	// maxRetries=2 → 3 total attempts
	if impl.calls != 3 {
		t.Errorf("expected 3 Exec calls (1 + 2 retries), got %d", impl.calls)
	}
	if action != core.ActionFailure {
		t.Errorf("expected ActionFailure from fallback path, got %q", action)
	}
}

func TestNode_Run_CancelledBeforeRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := &errState{}
	impl := &retryBaseNode{failUntil: 99}
	node := core.NewNode[errState, string, string](impl, 5)

	action := node.Run(ctx, state)
	if action != core.ActionCancelled {
		t.Errorf("expected ActionCancelled, got %q", action)
	}
	if impl.calls != 0 {
		t.Errorf("Exec should not run on a cancelled context, got %d calls", impl.calls)
	}
}

// cancellingBaseNode cancels its own context mid-Exec to simulate an abort
// arriving while work is in flight.
type cancellingBaseNode struct {
	cancel    context.CancelFunc
	fallbacks int
}

func (c *cancellingBaseNode) Prep(_ *errState) []string { return []string{"work"} }
func (c *cancellingBaseNode) Exec(ctx context.Context, _ string) (string, error) {
	c.cancel()
	return "", ctx.Err()
}
func (c *cancellingBaseNode) Post(_ *errState, _ []string, _ ...string) core.Action {
	return core.ActionSuccess
}
func (c *cancellingBaseNode) ExecFallback(_ error) string {
	c.fallbacks++
	return "fallback"
}

func TestNode_Run_CancellationSkipsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	impl := &cancellingBaseNode{cancel: cancel}
	node := core.NewNode[errState, string, string](impl, 3)

	action := node.Run(ctx, &errState{})
	if action != core.ActionCancelled {
		t.Errorf("expected ActionCancelled, got %q", action)
	}
	if impl.fallbacks != 0 {
		t.Errorf("cancellation must not route through ExecFallback, got %d calls", impl.fallbacks)
	}
}

func TestNode_AddSuccessor_Chaining(t *testing.T) {
	a := core.NewNode[errState, string, string](&retryBaseNode{failUntil: 0}, 0)
	b := core.NewNode[errState, string, string](&retryBaseNode{failUntil: 0}, 0)

	returned := a.AddSuccessor(b, core.ActionSuccess)
	if returned != b {
		t.Error("AddSuccessor should return the added successor")
	}
}

func TestNode_GetSuccessor_UnknownAction(t *testing.T) {
	a := core.NewNode[errState, string, string](&retryBaseNode{failUntil: 0}, 0)
	result := a.GetSuccessor(core.ActionTool) // not registered
	if result != nil {
		t.Errorf("expected nil for unregistered action, got %v", result)
	}
}

func TestNewNode_NegativeRetriesClampedToZero(t *testing.T) {
	state := &errState{}
	impl := &retryBaseNode{failUntil: 99}
	node := core.NewNode[errState, string, string](impl, -5)
	node.Run(context.Background(), state)

	if impl.calls != 1 {
		t.Errorf("negative maxRetries should clamp to 0, got %d calls", impl.calls)
	}
}

func TestTerminal(t *testing.T) {
	terminal := []core.Action{core.ActionDone, core.ActionSuspend, core.ActionCancelled, core.ActionFailure, core.ActionEnd}
	for _, a := range terminal {
		if !core.Terminal(a) {
			t.Errorf("Terminal(%q) = false, want true", a)
		}
	}
	routing := []core.Action{core.ActionTool, core.ActionObserve, core.ActionContinue, core.ActionSuccess}
	for _, a := range routing {
		if core.Terminal(a) {
			t.Errorf("Terminal(%q) = true, want false", a)
		}
	}
}
