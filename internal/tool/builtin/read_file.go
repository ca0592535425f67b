package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maeum-ai/maeum/internal/index"
	"github.com/maeum-ai/maeum/internal/session"
	"github.com/maeum-ai/maeum/internal/tool"
	"github.com/maeum-ai/maeum/internal/txn"
	"github.com/maeum-ai/maeum/internal/util"
)

// maxReadChars bounds one read_file slice unless an explicit end_line
// requests an exact range.
const maxReadChars = 30000

// ReadFileTool reads a slice of a text file with numbered lines and
// pagination hints. The first read of a file extracts its symbols into
// the session's cache when a session is attached.
type ReadFileTool struct {
	root string
	sess *session.Session // nil outside a conversation
}

// NewReadFileTool creates the workspace-level read_file tool.
func NewReadFileTool(root string) *ReadFileTool {
	return &ReadFileTool{root: root}
}

// WithSession returns a copy bound to a session's symbol cache.
func (t *ReadFileTool) WithSession(sess *session.Session) *ReadFileTool {
	return &ReadFileTool{root: t.root, sess: sess}
}

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Description() string {
	return "파일 내용을 줄 번호와 함께 읽습니다. 긴 파일은 30000자 단위로 나뉘며 next_offset으로 이어 읽습니다."
}
func (t *ReadFileTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *ReadFileTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "file_path", Type: "string", Description: "워크스페이스 기준 상대 경로", Required: true},
		tool.SchemaParam{Name: "start_line", Type: "integer", Description: "시작 줄 (1부터)"},
		tool.SchemaParam{Name: "end_line", Type: "integer", Description: "끝 줄 (포함). 지정하면 글자 수 제한 없이 해당 범위를 읽음"},
		tool.SchemaParam{Name: "offset", Type: "integer", Description: "start_line의 별칭"},
	)
}

func (t *ReadFileTool) Init(_ context.Context) error { return nil }
func (t *ReadFileTool) Close() error                 { return nil }

type readFileArgs struct {
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Offset    int    `json:"offset"`
}

func (t *ReadFileTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a readFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}

	abs, err := resolvePath(t.root, a.FilePath)
	if err != nil {
		return tool.Failf("%v", err), nil
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return tool.Failf("파일을 찾을 수 없습니다: %s", a.FilePath), nil
		}
		return tool.Failf("읽기 실패: %v", err), nil
	}
	if txn.IsBinary(data) {
		return tool.Failf("바이너리 파일은 읽을 수 없습니다: %s", a.FilePath), nil
	}

	content := string(data)
	totalLines := util.CountLines(content)

	start := a.StartLine
	if start <= 0 {
		start = a.Offset
	}
	if start <= 0 {
		start = 1
	}

	fields := map[string]any{
		"path":        filepath.ToSlash(a.FilePath),
		"total_lines": totalLines,
		"total_chars": len([]rune(content)),
	}

	if totalLines == 0 || start > totalLines {
		fields["content"] = ""
		fields["showing"] = fmt.Sprintf("%d-%d", start, start-1)
		fields["has_more"] = false
		t.cacheSymbols(a.FilePath, content)
		return tool.Ok(fields), nil
	}

	lines := util.SplitLines(content)
	if len(lines) > totalLines {
		lines = lines[:totalLines] // drop the phantom line after a trailing newline
	}

	var (
		sb   strings.Builder
		last = start - 1
	)
	if a.EndLine > 0 {
		// Exact range: the char cap does not apply.
		end := a.EndLine
		if end > totalLines {
			end = totalLines
		}
		for i := start; i <= end; i++ {
			fmt.Fprintf(&sb, "%d: %s\n", i, lines[i-1])
		}
		last = end
	} else {
		budget := maxReadChars
		for i := start; i <= totalLines; i++ {
			line := fmt.Sprintf("%d: %s\n", i, lines[i-1])
			if budget-len([]rune(line)) < 0 && last >= start {
				break
			}
			sb.WriteString(line)
			budget -= len([]rune(line))
			last = i
			if budget <= 0 {
				break
			}
		}
	}

	fields["content"] = strings.TrimSuffix(sb.String(), "\n")
	fields["showing"] = fmt.Sprintf("%d-%d", start, last)
	hasMore := last < totalLines
	fields["has_more"] = hasMore
	if hasMore {
		fields["next_offset"] = last + 1
		fields["hint"] = fmt.Sprintf("CONTINUE: start_line=%d 로 다시 호출하면 이어서 읽습니다", last+1)
	}

	t.cacheSymbols(a.FilePath, content)
	return tool.Ok(fields), nil
}

// cacheSymbols populates the session symbol cache on first read.
func (t *ReadFileTool) cacheSymbols(rel, content string) {
	if t.sess == nil {
		return
	}
	path := filepath.ToSlash(rel)
	if _, ok := t.sess.CachedSymbols(path); ok {
		return
	}
	syms := index.ExtractSymbols(content, strings.ToLower(filepath.Ext(path)))
	t.sess.CacheSymbols(path, syms)
}
