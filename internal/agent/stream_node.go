package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/maeum-ai/maeum/internal/config"
	"github.com/maeum-ai/maeum/internal/core"
	"github.com/maeum-ai/maeum/internal/llm"
	"github.com/maeum-ai/maeum/internal/session"
)

// streamWork carries the per-iteration inputs into Exec. The state
// pointer rides along because token forwarding needs the emitter while
// the stream is still in flight.
type streamWork struct {
	st *TurnState
}

// streamResult is what one generation produced.
type streamResult struct {
	system    string
	prose     string
	call      *ToolCall
	cancelled bool
}

// StreamNode runs one model generation: compress if needed, build the
// prompt, stream the response through the interceptor, and stop early
// when a tool block is detected. Implements
// core.BaseNode[TurnState, streamWork, streamResult].
type StreamNode struct {
	provider   llm.Provider
	builder    *PromptBuilder
	compressor *Compressor
	cfg        *config.Config
}

func NewStreamNode(provider llm.Provider, builder *PromptBuilder, compressor *Compressor, cfg *config.Config) *StreamNode {
	return &StreamNode{provider: provider, builder: builder, compressor: compressor, cfg: cfg}
}

func (n *StreamNode) Prep(state *TurnState) []streamWork {
	state.Call = nil
	return []streamWork{{st: state}}
}

func (n *StreamNode) Exec(ctx context.Context, work streamWork) (streamResult, error) {
	st := work.st
	if st.Sess.Aborted() {
		return streamResult{cancelled: true}, nil
	}

	if n.compressor != nil {
		n.compressor.MaybeCompress(ctx, st.Sess)
	}
	system := n.builder.Build(st.Sess)

	var prose strings.Builder
	var call *ToolCall
	ic := NewInterceptor(func(text string) {
		prose.WriteString(text)
		st.Emitter.Token(text)
	})

	_, err := n.provider.ChatStream(ctx, llm.Request{
		SystemPrompt: system,
		Message:      st.Transcript,
		MaxTokens:    n.cfg.MaxTokens,
		Temperature:  n.cfg.Temperature,
	}, func(chunk string) error {
		if st.Sess.Aborted() {
			return llm.ErrStopStream
		}
		if c := ic.Feed(chunk); c != nil {
			call = c
			return llm.ErrStopStream
		}
		return nil
	})
	if err != nil && !errors.Is(err, llm.ErrStopStream) {
		return streamResult{}, err
	}
	if st.Sess.Aborted() {
		return streamResult{cancelled: true}, nil
	}
	if call == nil {
		// Normal end: an incomplete tool block, if any, degrades to prose.
		ic.Finish()
	}
	return streamResult{system: system, prose: prose.String(), call: call}, nil
}

func (n *StreamNode) ExecFallback(err error) streamResult {
	log.Printf("[Stream] generation failed: %v", err)
	return streamResult{prose: fmt.Sprintf("\n\n오류: 모델 응답을 받지 못했습니다 (%v)", err)}
}

func (n *StreamNode) Post(state *TurnState, prepRes []streamWork, results ...streamResult) core.Action {
	if len(results) == 0 {
		return core.ActionFailure
	}
	r := results[0]
	if r.cancelled {
		state.Emitter.Cancelled()
		return core.ActionCancelled
	}

	state.SystemPrompt = r.system
	state.Prose += r.prose

	if r.call != nil {
		state.Call = r.call
		state.Emitter.ToolDetected(r.call.Name, r.call.Input)
		return core.ActionTool
	}

	state.Final = strings.TrimSpace(state.Prose)
	state.Sess.Append(session.RoleAssistant, state.Final)
	state.Emitter.Done(state.Final)
	return core.ActionDone
}
