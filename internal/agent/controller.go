package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/maeum-ai/maeum/internal/config"
	"github.com/maeum-ai/maeum/internal/core"
	"github.com/maeum-ai/maeum/internal/index"
	"github.com/maeum-ai/maeum/internal/llm"
	"github.com/maeum-ai/maeum/internal/prompt"
	"github.com/maeum-ai/maeum/internal/runtime"
	"github.com/maeum-ai/maeum/internal/session"
	"github.com/maeum-ai/maeum/internal/tool"
)

// SessionTools produces the per-session tools overlaid on the root
// registry for one turn (e.g. read_file bound to the session's symbol
// cache).
type SessionTools func(*session.Session) []tool.Tool

// Controller drives the agent loop: one RunTurn per user message, with
// Resume and AnswerUserInput re-entering turns parked on a destructive
// or interactive tool.
type Controller struct {
	cfg          *config.Config
	provider     llm.Provider
	registry     *tool.Registry
	sessionTools SessionTools
	engine       *index.Engine
	loader       *prompt.Loader
	host         runtime.Info
	compressor   *Compressor
	execLog      *ExecLogger
}

func NewController(
	cfg *config.Config,
	provider llm.Provider,
	registry *tool.Registry,
	sessionTools SessionTools,
	engine *index.Engine,
	loader *prompt.Loader,
	execLog *ExecLogger,
) *Controller {
	return &Controller{
		cfg:          cfg,
		provider:     provider,
		registry:     registry,
		sessionTools: sessionTools,
		engine:       engine,
		loader:       loader,
		host:         runtime.Probe(),
		compressor:   NewCompressor(provider, loader, cfg.ContextTokenLimit),
		execLog:      execLog,
	}
}

// Provider exposes the backend for health/status endpoints.
func (c *Controller) Provider() llm.Provider { return c.provider }

// RunTurn processes one user message to completion, suspension or
// cancellation, emitting progress through em. Blocking; the caller runs
// it on its own goroutine.
func (c *Controller) RunTurn(ctx context.Context, sess *session.Session, message string, em Emitter) core.Action {
	sess.ResetTurn()
	sess.Append(session.RoleUser, message)
	c.execLog.StartTurn(sess.ID, message)

	view := c.sessionView(sess)
	st := NewTurnState(sess, view, em, message)
	st.MaxIterations = c.cfg.MaxIterations

	return c.runLoop(ctx, st, view)
}

// Resume re-enters a parked turn after the user's confirmation
// decision. Approval executes the held tool and continues the loop;
// rejection feeds the refusal back as the tool's result and ends the
// turn so the model does not retry the same call blindly.
func (c *Controller) Resume(ctx context.Context, sess *session.Session, confirmationID string, approved bool, em Emitter) (core.Action, error) {
	parked, ok := sess.TakeParked(confirmationID)
	if !ok {
		return core.ActionFailure, fmt.Errorf("알 수 없는 확인 요청: %s", confirmationID)
	}
	if em == nil {
		em = NopEmitter{}
	}

	view := c.sessionView(sess)
	st := c.restore(sess, view, em, parked)

	if !approved {
		res := tool.Failf("사용자가 거부함")
		em.ToolResult(parked.ToolName, res)
		observation := RenderObservation(parked.ToolName, res)
		st.Transcript += "\n\n" + observation
		sess.Append(session.RoleTool, observation)
		st.Final = "요청하신 작업을 취소했습니다."
		sess.Append(session.RoleAssistant, st.Final)
		em.Done(st.Final)
		c.execLog.EndTurn("rejected", st.Iteration, len(st.Final))
		return core.ActionDone, nil
	}

	em.ToolExecuting(parked.ToolName, parked.ToolInput)
	start := time.Now()
	res := view.Execute(ctx, parked.ToolName, parked.ToolInput)
	c.execLog.LogTool(parked.ToolName, parked.ToolInput, res, time.Since(start))
	em.ToolResult(parked.ToolName, res)
	emitFileHints(em, view, parked.ToolName, res)

	if action := AdvanceObservation(st, RenderObservation(parked.ToolName, res)); core.Terminal(action) {
		return action, nil
	}
	return c.runLoop(ctx, st, view), nil
}

// AnswerUserInput resolves an ask_user suspension: the user's answer
// becomes the tool's result and the loop continues.
func (c *Controller) AnswerUserInput(ctx context.Context, sess *session.Session, confirmationID, answer string, em Emitter) (core.Action, error) {
	parked, ok := sess.TakeParked(confirmationID)
	if !ok {
		return core.ActionFailure, fmt.Errorf("알 수 없는 확인 요청: %s", confirmationID)
	}
	if !parked.Interactive {
		// Wrong resolution path; put it back for Resume.
		sess.Park(parked)
		return core.ActionFailure, fmt.Errorf("확인 요청 %s는 사용자 입력 대기가 아닙니다", confirmationID)
	}
	if em == nil {
		em = NopEmitter{}
	}

	view := c.sessionView(sess)
	st := c.restore(sess, view, em, parked)

	res := tool.Ok(map[string]any{"answer": answer})
	em.ToolResult(parked.ToolName, res)
	if action := AdvanceObservation(st, RenderObservation(parked.ToolName, res)); core.Terminal(action) {
		return action, nil
	}
	return c.runLoop(ctx, st, view), nil
}

// Abort requests cancellation of the generation in flight. The loop
// observes the flag at its next boundary.
func (c *Controller) Abort(ctx context.Context, sess *session.Session) {
	sess.RequestAbort()
	c.provider.Abort(ctx)
}

func (c *Controller) sessionView(sess *session.Session) *tool.Registry {
	if c.sessionTools == nil {
		return c.registry
	}
	extras := c.sessionTools(sess)
	if len(extras) == 0 {
		return c.registry
	}
	return c.registry.WithExtra(extras...)
}

func (c *Controller) restore(sess *session.Session, view *tool.Registry, em Emitter, parked *session.Parked) *TurnState {
	st := NewTurnState(sess, view, em, parked.UserMessage)
	st.Transcript = parked.Accumulated
	st.SystemPrompt = parked.SystemPrompt
	st.Iteration = parked.Iteration
	st.MaxIterations = c.cfg.MaxIterations
	sess.SetExploration(parked.ExplorationCount)
	return st
}

// runLoop wires the two nodes into a flow and runs it to a terminal
// action.
func (c *Controller) runLoop(ctx context.Context, st *TurnState, view *tool.Registry) core.Action {
	builder := NewPromptBuilder(c.cfg.Workspace, c.engine, view, c.loader, c.host)

	streamNode := core.NewNode[TurnState, streamWork, streamResult](
		NewStreamNode(c.provider, builder, c.compressor, c.cfg), 0)
	toolNode := core.NewNode[TurnState, toolWork, toolOutcome](
		NewToolNode(view, c.cfg, c.execLog), 0)
	streamNode.AddSuccessor(toolNode, core.ActionTool)
	toolNode.AddSuccessor(streamNode, core.ActionObserve)

	action := core.NewFlow[TurnState](streamNode).Run(ctx, st)
	switch action {
	case core.ActionDone:
		c.execLog.EndTurn("done", st.Iteration, len(st.Final))
	case core.ActionSuspend:
		log.Printf("[Loop] turn parked at iteration %d (pending=%d)", st.Iteration, st.Sess.PendingCount())
	case core.ActionCancelled:
		c.execLog.EndTurn("cancelled", st.Iteration, 0)
	case core.ActionFailure:
		st.Emitter.Error("에이전트 루프가 실패했습니다. 잠시 후 다시 시도하세요.")
		c.execLog.EndTurn("failure", st.Iteration, 0)
	}
	return action
}
