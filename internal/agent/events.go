package agent

import (
	"encoding/json"

	"github.com/maeum-ai/maeum/internal/tool"
)

// Emitter receives loop events for delivery to the UI. The WebSocket
// layer implements it; tests use NopEmitter. Methods are called from
// the loop goroutine only.
type Emitter interface {
	// Token forwards one chunk of visible assistant prose.
	Token(text string)

	// ToolDetected fires when the interceptor parses a tool block.
	ToolDetected(name string, input json.RawMessage)

	// ToolExecuting fires just before a tool handler runs.
	ToolExecuting(name string, input json.RawMessage)

	// ToolResult delivers a finished tool execution.
	ToolResult(name string, result tool.Result)

	// OpenInEditor hints the IDE to open a file the agent touched.
	OpenInEditor(path, toolName string, line int)

	// FileModified fires after a destructive tool changed a file.
	FileModified(path, action string)

	// ConfirmRequest asks the user to approve a destructive tool. The
	// loop is suspended under the confirmation id until Resume.
	ConfirmRequest(confirmationID, name string, input json.RawMessage)

	// UserInputRequest relays an ask_user question. The loop is
	// suspended under the confirmation id until the answer arrives.
	UserInputRequest(confirmationID, question string, options []string, defaultOption string)

	// Done delivers the final assistant message for the turn.
	Done(content string)

	// Cancelled reports that the turn stopped on user abort.
	Cancelled()

	// Error reports a turn-fatal failure.
	Error(message string)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Token(string)                                  {}
func (NopEmitter) ToolDetected(string, json.RawMessage)          {}
func (NopEmitter) ToolExecuting(string, json.RawMessage)         {}
func (NopEmitter) ToolResult(string, tool.Result)                {}
func (NopEmitter) OpenInEditor(string, string, int)              {}
func (NopEmitter) FileModified(string, string)                   {}
func (NopEmitter) ConfirmRequest(string, string, json.RawMessage) {}
func (NopEmitter) UserInputRequest(string, string, []string, string) {}
func (NopEmitter) Done(string)                                   {}
func (NopEmitter) Cancelled()                                    {}
func (NopEmitter) Error(string)                                  {}
