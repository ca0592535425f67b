package agent

import (
	"github.com/maeum-ai/maeum/internal/session"
	"github.com/maeum-ai/maeum/internal/tool"
)

// TurnState is the shared state of one agent turn, threaded through the
// stream and tool nodes. The loop owns it; nodes mutate it in Post.
type TurnState struct {
	Sess     *session.Session
	Registry *tool.Registry // per-session view (WithExtra)
	Emitter  Emitter

	// UserMessage is the original message that started the turn.
	// Transcript starts as UserMessage and grows with observation
	// blocks; it is the message sent to the model each iteration.
	UserMessage string
	Transcript  string

	// SystemPrompt is the prompt used by the latest generation, kept so
	// a parked turn can record what the model saw.
	SystemPrompt string

	// Prose accumulates the visible assistant text across iterations;
	// it becomes the final answer.
	Prose string

	// Call is the tool invocation parsed from the latest stream, nil
	// when the model produced a final answer.
	Call *ToolCall

	Iteration     int
	MaxIterations int
	Final         string

	// Err is the turn-fatal failure reported by a node, if any.
	Err error

	guard *repeatGuard

	cancelled bool
	suspended bool
	skipNote  string // exploration-budget note pending as an observation
}

// NewTurnState initializes the state for a fresh user turn.
func NewTurnState(sess *session.Session, registry *tool.Registry, em Emitter, userMessage string) *TurnState {
	if em == nil {
		em = NopEmitter{}
	}
	return &TurnState{
		Sess:        sess,
		Registry:    registry,
		Emitter:     em,
		UserMessage: userMessage,
		Transcript:  userMessage,
		guard:       newRepeatGuard(),
	}
}
