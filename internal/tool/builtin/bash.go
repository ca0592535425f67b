package builtin

import (
	"context"
	"encoding/json"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/maeum-ai/maeum/internal/tool"
)

const (
	bashTimeout     = 30 * time.Second
	bashLongTimeout = 300 * time.Second
	maxOutputChars  = 8000
)

// deniedSubstrings block destructive shell commands outright. Checked
// case-insensitively against the whole command string; a match fails
// the call without executing anything.
var deniedSubstrings = []string{
	"rm -rf",
	"rm -r /",
	"sudo rm",
	"> /dev",
	"mkfs",
	"dd if=",
}

// BashTool executes shell commands in the workspace with a wall-clock
// timeout and a safety denylist.
type BashTool struct {
	root string
}

// NewBashTool creates the bash tool rooted at the workspace.
func NewBashTool(root string) *BashTool {
	return &BashTool{root: root}
}

func (t *BashTool) Name() string { return "bash" }
func (t *BashTool) Description() string {
	return "셸 명령을 실행하고 출력을 반환합니다. 기본 30초 제한, long=true면 300초."
}
func (t *BashTool) Kind() tool.Kind { return tool.KindDestructive }

func (t *BashTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "command", Type: "string", Description: "실행할 명령", Required: true},
		tool.SchemaParam{Name: "long", Type: "boolean", Description: "빌드/테스트 등 오래 걸리는 명령이면 true (300초 제한)"},
	)
}

func (t *BashTool) Init(_ context.Context) error { return nil }
func (t *BashTool) Close() error                 { return nil }

type bashArgs struct {
	Command string `json:"command"`
	Long    bool   `json:"long"`
}

func (t *BashTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a bashArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	if strings.TrimSpace(a.Command) == "" {
		return tool.Failf("command가 비어 있습니다"), nil
	}

	if blocked, pattern := denied(a.Command); blocked {
		return tool.Failf("안전 제한: 차단된 패턴 %q 포함", pattern), nil
	}

	timeout := bashTimeout
	if a.Long {
		timeout = bashLongTimeout
	}
	out, timedOut, err := runShell(ctx, t.root, a.Command, timeout)
	if timedOut {
		return tool.Failf("명령 시간 초과 (%v): %s", timeout, out), nil
	}
	fields := map[string]any{
		"command": a.Command,
		"output":  out,
	}
	if err != nil {
		fields["exit_error"] = err.Error()
		return tool.Result{Success: false, Error: "명령이 오류로 종료됨: " + err.Error(), Fields: fields}, nil
	}
	return tool.Ok(fields), nil
}

// denied reports whether the command contains a denylisted substring.
func denied(command string) (bool, string) {
	lower := strings.ToLower(command)
	for _, pattern := range deniedSubstrings {
		if strings.Contains(lower, pattern) {
			return true, pattern
		}
	}
	return false, ""
}

// runShell executes a command under sh -c (cmd /c on Windows) with the
// given deadline, returning the trimmed combined output.
func runShell(ctx context.Context, dir, command string, timeout time.Duration) (out string, timedOut bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/c", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = dir

	raw, err := cmd.CombinedOutput()
	out = strings.TrimSpace(truncateChars(string(raw), maxOutputChars))
	if ctx.Err() == context.DeadlineExceeded {
		return out, true, nil
	}
	return out, false, err
}
