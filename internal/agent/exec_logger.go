package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/maeum-ai/maeum/internal/tool"
)

// ExecLogger appends agent activity to a markdown audit file. Enabled
// via MAEUM_EXEC_LOG; a nil *ExecLogger is a no-op receiver everywhere
// it is used. Thread-safe.
type ExecLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewExecLogger opens (or creates) the audit file in append mode.
func NewExecLogger(path string) (*ExecLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open exec log: %w", err)
	}
	return &ExecLogger{file: f}, nil
}

// StartTurn writes a turn header with the user's message.
func (l *ExecLogger) StartTurn(sessionID, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writef("# Turn — %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	l.writef("**Session**: %s  \n", sessionID)
	l.writef("**Message**: %s\n\n---\n\n", truncateRunes(message, 500))
}

// LogTool records one tool execution with collapsed input and output.
func (l *ExecLogger) LogTool(name string, input json.RawMessage, res tool.Result, elapsed time.Duration) {
	if l == nil {
		return
	}
	out, err := json.Marshal(res)
	if err != nil {
		out = []byte("(unserializable result)")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.writef("## Tool: `%s` (%s, success=%v)\n\n", name, elapsed.Round(time.Millisecond), res.Success)
	l.writef("<details>\n<summary>Input</summary>\n\n```json\n%s\n```\n\n</details>\n\n", truncateRunes(string(input), 2000))
	l.writef("<details>\n<summary>Result</summary>\n\n```json\n%s\n```\n\n</details>\n\n---\n\n", truncateRunes(string(out), 4000))
}

// EndTurn writes the turn footer with the outcome.
func (l *ExecLogger) EndTurn(outcome string, iterations int, answerLen int) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writef("## Outcome: %s\n\n", outcome)
	l.writef("- Iterations: %d\n- Answer length: %d chars\n\n---\n\n", iterations, answerLen)
}

// Close closes the underlying file.
func (l *ExecLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *ExecLogger) writef(format string, args ...any) {
	fmt.Fprintf(l.file, format, args...)
}
