package builtin

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/maeum-ai/maeum/internal/tool"
)

const (
	gitQueryTimeout  = 10 * time.Second
	gitCommitTimeout = 30 * time.Second
)

// runGit executes one git subcommand in the workspace root.
func runGit(ctx context.Context, root string, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(truncateChars(string(out), maxOutputChars))
	if ctx.Err() == context.DeadlineExceeded {
		return text, context.DeadlineExceeded
	}
	return text, err
}

// GitStatusTool reports the working tree status.
type GitStatusTool struct{ root string }

// NewGitStatusTool creates the git_status tool.
func NewGitStatusTool(root string) *GitStatusTool { return &GitStatusTool{root: root} }

func (t *GitStatusTool) Name() string                 { return "git_status" }
func (t *GitStatusTool) Description() string          { return "git 작업 트리 상태를 보여줍니다." }
func (t *GitStatusTool) Kind() tool.Kind              { return tool.KindReadOnly }
func (t *GitStatusTool) InputSchema() json.RawMessage { return tool.BuildSchema() }
func (t *GitStatusTool) Init(_ context.Context) error { return nil }
func (t *GitStatusTool) Close() error                 { return nil }

func (t *GitStatusTool) Execute(ctx context.Context, _ json.RawMessage) (tool.Result, error) {
	out, err := runGit(ctx, t.root, gitQueryTimeout, "status", "--short", "--branch")
	if err != nil {
		return gitFailure("git status", out, err), nil
	}
	return tool.Ok(map[string]any{"output": out}), nil
}

// GitDiffTool shows uncommitted changes, optionally for one path or the
// staged set.
type GitDiffTool struct{ root string }

// NewGitDiffTool creates the git_diff tool.
func NewGitDiffTool(root string) *GitDiffTool { return &GitDiffTool{root: root} }

func (t *GitDiffTool) Name() string        { return "git_diff" }
func (t *GitDiffTool) Description() string { return "커밋되지 않은 변경의 diff를 보여줍니다." }
func (t *GitDiffTool) Kind() tool.Kind     { return tool.KindReadOnly }
func (t *GitDiffTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "path", Type: "string", Description: "특정 파일로 제한 (선택)"},
		tool.SchemaParam{Name: "staged", Type: "boolean", Description: "스테이징된 변경만 보기"},
	)
}
func (t *GitDiffTool) Init(_ context.Context) error { return nil }
func (t *GitDiffTool) Close() error                 { return nil }

func (t *GitDiffTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		Path   string `json:"path"`
		Staged bool   `json:"staged"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	gitArgs := []string{"diff"}
	if a.Staged {
		gitArgs = append(gitArgs, "--cached")
	}
	if a.Path != "" {
		gitArgs = append(gitArgs, "--", a.Path)
	}
	out, err := runGit(ctx, t.root, gitQueryTimeout, gitArgs...)
	if err != nil {
		return gitFailure("git diff", out, err), nil
	}
	if out == "" {
		out = "(변경 없음)"
	}
	return tool.Ok(map[string]any{"output": out}), nil
}

// GitLogTool lists recent commits.
type GitLogTool struct{ root string }

// NewGitLogTool creates the git_log tool.
func NewGitLogTool(root string) *GitLogTool { return &GitLogTool{root: root} }

func (t *GitLogTool) Name() string        { return "git_log" }
func (t *GitLogTool) Description() string { return "최근 커밋 이력을 보여줍니다." }
func (t *GitLogTool) Kind() tool.Kind     { return tool.KindReadOnly }
func (t *GitLogTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "count", Type: "integer", Description: "커밋 수 (기본 10)"},
		tool.SchemaParam{Name: "path", Type: "string", Description: "특정 파일 이력으로 제한 (선택)"},
	)
}
func (t *GitLogTool) Init(_ context.Context) error { return nil }
func (t *GitLogTool) Close() error                 { return nil }

func (t *GitLogTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		Count int    `json:"count"`
		Path  string `json:"path"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	if a.Count <= 0 || a.Count > 100 {
		a.Count = 10
	}
	gitArgs := []string{"log", "--oneline", "--decorate", "-n", strconv.Itoa(a.Count)}
	if a.Path != "" {
		gitArgs = append(gitArgs, "--", a.Path)
	}
	out, err := runGit(ctx, t.root, gitQueryTimeout, gitArgs...)
	if err != nil {
		return gitFailure("git log", out, err), nil
	}
	return tool.Ok(map[string]any{"output": out}), nil
}

// GitCommitTool stages the given paths (or everything) and commits.
type GitCommitTool struct{ root string }

// NewGitCommitTool creates the git_commit tool.
func NewGitCommitTool(root string) *GitCommitTool { return &GitCommitTool{root: root} }

func (t *GitCommitTool) Name() string        { return "git_commit" }
func (t *GitCommitTool) Description() string { return "변경을 스테이징하고 커밋합니다." }
func (t *GitCommitTool) Kind() tool.Kind     { return tool.KindDestructive }
func (t *GitCommitTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "message", Type: "string", Description: "커밋 메시지", Required: true},
		tool.SchemaParam{Name: "paths", Type: "array", Description: "스테이징할 경로 목록 (생략하면 전체)",
			Items: map[string]any{"type": "string"}},
	)
}
func (t *GitCommitTool) Init(_ context.Context) error { return nil }
func (t *GitCommitTool) Close() error                 { return nil }

func (t *GitCommitTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		Message string   `json:"message"`
		Paths   []string `json:"paths"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	if strings.TrimSpace(a.Message) == "" {
		return tool.Failf("커밋 메시지가 비어 있습니다"), nil
	}

	addArgs := []string{"add"}
	if len(a.Paths) == 0 {
		addArgs = append(addArgs, "-A")
	} else {
		addArgs = append(addArgs, "--")
		addArgs = append(addArgs, a.Paths...)
	}
	if out, err := runGit(ctx, t.root, gitCommitTimeout, addArgs...); err != nil {
		return gitFailure("git add", out, err), nil
	}

	out, err := runGit(ctx, t.root, gitCommitTimeout, "commit", "-m", a.Message)
	if err != nil {
		return gitFailure("git commit", out, err), nil
	}
	return tool.Ok(map[string]any{"output": out, "message": a.Message}), nil
}

func gitFailure(what, out string, err error) tool.Result {
	if err == context.DeadlineExceeded {
		return tool.Failf("%s 시간 초과", what)
	}
	if out != "" {
		return tool.Failf("%s 실패: %s", what, out)
	}
	return tool.Failf("%s 실패: %v", what, err)
}

