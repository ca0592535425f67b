package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/maeum-ai/maeum/internal/config"
	"github.com/maeum-ai/maeum/internal/core"
	"github.com/maeum-ai/maeum/internal/session"
	"github.com/maeum-ai/maeum/internal/tool"
)

// toolWork is one pending tool execution.
type toolWork struct {
	name    string
	input   json.RawMessage
	emitter Emitter
}

// toolOutcome is the executed result plus timing.
type toolOutcome struct {
	result  tool.Result
	elapsed time.Duration
}

// ToolNode handles the tool invocation the stream node detected:
// destructive and interactive tools park the turn and wait on the user,
// read-only tools run immediately under the exploration budget.
// Implements core.BaseNode[TurnState, toolWork, toolOutcome].
type ToolNode struct {
	registry *tool.Registry
	cfg      *config.Config
	execLog  *ExecLogger
}

func NewToolNode(registry *tool.Registry, cfg *config.Config, execLog *ExecLogger) *ToolNode {
	return &ToolNode{registry: registry, cfg: cfg, execLog: execLog}
}

// Prep classifies the call. Parking, budget refusal and abort produce
// no work item; Post routes on the flags left in state.
func (n *ToolNode) Prep(state *TurnState) []toolWork {
	state.suspended = false
	state.skipNote = ""
	call := state.Call
	if call == nil {
		return nil
	}
	if state.Sess.Aborted() {
		state.cancelled = true
		return nil
	}

	// Unknown tools run as read-only so the registry's failure result
	// flows back to the model as an observation.
	kind := tool.KindReadOnly
	if t, ok := n.registry.Get(call.Name); ok {
		kind = t.Kind()
	}

	switch kind {
	case tool.KindDestructive, tool.KindInteractive:
		n.park(state, call, kind == tool.KindInteractive)
		return nil
	default:
		if state.Sess.Exploration() >= n.cfg.MaxExploration {
			state.skipNote = fmt.Sprintf(
				"## [도구 실행 결과: %s]\n[시스템 안내] 탐색 예산(%d회)을 모두 사용했습니다. 추가 탐색 없이 지금까지 확인한 내용으로 답변을 작성하세요.",
				call.Name, n.cfg.MaxExploration)
			return nil
		}
		// Count the call before it runs so the executing event carries
		// this call's ordinal, not the previous total.
		state.Sess.AddExploration()
	}

	return []toolWork{{name: call.Name, input: call.Input, emitter: state.Emitter}}
}

// park snapshots the turn under a confirmation id and notifies the UI.
func (n *ToolNode) park(state *TurnState, call *ToolCall, interactive bool) {
	id := state.Sess.Park(&session.Parked{
		SystemPrompt:     state.SystemPrompt,
		UserMessage:      state.UserMessage,
		Accumulated:      state.Transcript,
		Iteration:        state.Iteration,
		ExplorationCount: state.Sess.Exploration(),
		ToolName:         call.Name,
		ToolInput:        call.Input,
		Interactive:      interactive,
	})
	state.suspended = true

	if interactive {
		var q struct {
			Question string   `json:"question"`
			Options  []string `json:"options"`
			Default  string   `json:"default"`
		}
		if err := json.Unmarshal(call.Input, &q); err != nil || q.Question == "" {
			q.Question = "계속 진행할까요?"
		}
		state.Emitter.UserInputRequest(id, q.Question, q.Options, q.Default)
		return
	}
	state.Emitter.ConfirmRequest(id, call.Name, call.Input)
}

func (n *ToolNode) Exec(ctx context.Context, work toolWork) (toolOutcome, error) {
	work.emitter.ToolExecuting(work.name, work.input)
	start := time.Now()
	res := n.registry.Execute(ctx, work.name, work.input)
	elapsed := time.Since(start)
	if n.execLog != nil {
		n.execLog.LogTool(work.name, work.input, res, elapsed)
	}
	return toolOutcome{result: res, elapsed: elapsed}, nil
}

func (n *ToolNode) ExecFallback(err error) toolOutcome {
	return toolOutcome{result: tool.Failf("도구 실행 실패: %v", err)}
}

func (n *ToolNode) Post(state *TurnState, prepRes []toolWork, results ...toolOutcome) core.Action {
	if state.cancelled {
		state.Emitter.Cancelled()
		return core.ActionCancelled
	}
	if state.suspended {
		return core.ActionSuspend
	}
	if state.skipNote != "" {
		return AdvanceObservation(state, state.skipNote)
	}
	if len(results) == 0 || len(prepRes) == 0 {
		return core.ActionFailure
	}

	work := prepRes[0]
	res := results[0].result
	state.Emitter.ToolResult(work.name, res)
	emitFileHints(state.Emitter, n.registry, work.name, res)
	log.Printf("[Tool] %s success=%v in %s", work.name, res.Success, results[0].elapsed.Round(time.Millisecond))

	observation := RenderObservation(work.name, res)
	if note := state.guard.Record(work.name, work.input); note != "" {
		observation += note
	}

	return AdvanceObservation(state, observation)
}

// AdvanceObservation appends an observation to the transcript and
// conversation, advances the iteration counter, and routes back to the
// stream node — or ends the turn when the iteration budget is spent.
// Shared with the controller's resume path.
func AdvanceObservation(state *TurnState, observation string) core.Action {
	state.Transcript += "\n\n" + observation
	state.Sess.Append(session.RoleTool, observation)
	state.Iteration++

	if state.Iteration >= maxTurnIterations(state) {
		state.Final = state.Prose + "\n\n[시스템 안내] 반복 한도에 도달해 작업을 마칩니다."
		state.Sess.Append(session.RoleAssistant, state.Final)
		state.Emitter.Done(state.Final)
		return core.ActionDone
	}
	return core.ActionObserve
}

// maxTurnIterations reads the per-turn budget stashed on the state by
// the controller; zero falls back to the default.
func maxTurnIterations(state *TurnState) int {
	if state.MaxIterations > 0 {
		return state.MaxIterations
	}
	return config.DefaultMaxIterations
}

// RenderObservation formats a tool result as the observation block the
// model consumes on the next iteration.
func RenderObservation(name string, res tool.Result) string {
	payload, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"success": %v, "error": "결과 직렬화 실패"}`, res.Success))
	}
	return fmt.Sprintf(
		"## [도구 실행 결과: %s]\n```json\n%s\n```\n\n위 결과를 바탕으로 다음 행동을 결정하세요. 도구가 더 필요하면 호출 형식으로, 작업이 끝났으면 최종 답변으로 응답하세요.",
		name, payload)
}

// emitFileHints derives editor notifications from well-known result
// fields: destructive tools that touched a path report file_modified,
// read_file suggests opening the file.
func emitFileHints(em Emitter, registry *tool.Registry, name string, res tool.Result) {
	if !res.Success {
		return
	}
	path, _ := res.Get("path").(string)
	if path == "" {
		return
	}
	t, ok := registry.Get(name)
	if ok && t.Kind() == tool.KindDestructive {
		em.FileModified(path, name)
		return
	}
	if name == "read_file" {
		line := 0
		switch v := res.Get("start_line").(type) {
		case int:
			line = v
		case float64:
			line = int(v)
		}
		em.OpenInEditor(path, name, line)
	}
}
