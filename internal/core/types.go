package core

// Action represents the result of a node execution that determines flow control.
type Action string

// Common actions used throughout the framework.
const (
	ActionContinue Action = "continue"
	ActionEnd      Action = "end"
	ActionSuccess  Action = "success"
	ActionFailure  Action = "failure"
	ActionDefault  Action = "default"

	// Conversation loop routing
	ActionTool      Action = "tool"      // tool block detected in the model stream
	ActionObserve   Action = "observe"   // observation appended, stream again
	ActionSuspend   Action = "suspend"   // parked, waiting on user confirmation
	ActionCancelled Action = "cancelled" // aborted by the user or a dropped connection
	ActionDone      Action = "done"      // final answer produced
)

// Terminal reports whether an action ends a Run instead of routing onward.
// Suspension is terminal at the flow level: the caller checkpoints state and
// re-enters the flow when the user responds.
func Terminal(a Action) bool {
	switch a {
	case ActionDone, ActionSuspend, ActionCancelled, ActionFailure, ActionEnd:
		return true
	}
	return false
}
