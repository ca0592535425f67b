package core

import "context"

// BaseNode is the contract every workflow node implements. Execution is
// three-phased: Prep reads the shared state and produces work items, Exec
// processes one item (with retries handled by the wrapping Node), and Post
// folds the results back into state and picks the next action.
//
// Type parameters:
//   - State: the shared state passed through the workflow
//   - PrepResult: the type returned by Prep and consumed by Exec
//   - ExecResults: the type returned by Exec and consumed by Post
type BaseNode[State any, PrepResult any, ExecResults any] interface {
	// Prep reads from shared state and generates work items for Exec.
	Prep(state *State) []PrepResult

	// Exec performs the core logic on a single work item.
	Exec(ctx context.Context, prepResult PrepResult) (ExecResults, error)

	// Post handles results from Exec and determines the next action.
	Post(state *State, prepRes []PrepResult, execResults ...ExecResults) Action

	// ExecFallback provides a default result if Exec fails after all retries.
	// Context cancellation bypasses the fallback; the Run aborts instead.
	ExecFallback(err error) ExecResults
}

// Workflow represents a unit of execution that can be connected to other workflows.
// Both Node and Flow implement this interface, enabling composition.
type Workflow[State any] interface {
	// Run executes the workflow and returns an action for routing.
	Run(ctx context.Context, state *State) Action

	// GetSuccessor returns the successor workflow for a given action.
	GetSuccessor(action Action) Workflow[State]

	// AddSuccessor connects a successor workflow for a specific action.
	// Returns the successor for chaining.
	AddSuccessor(successor Workflow[State], action ...Action) Workflow[State]
}
