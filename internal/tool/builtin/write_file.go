package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maeum-ai/maeum/internal/tool"
	"github.com/maeum-ai/maeum/internal/txn"
	"github.com/maeum-ai/maeum/internal/util"
)

// WriteFileTool creates or overwrites one file inside a transaction.
type WriteFileTool struct {
	root string
	txns *txn.Manager
}

// NewWriteFileTool creates the write_file tool.
func NewWriteFileTool(root string, txns *txn.Manager) *WriteFileTool {
	return &WriteFileTool{root: root, txns: txns}
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "파일을 생성하거나 전체를 덮어씁니다. 상위 디렉토리는 자동 생성되며 변경은 실행 취소할 수 있습니다."
}
func (t *WriteFileTool) Kind() tool.Kind { return tool.KindDestructive }

func (t *WriteFileTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "file_path", Type: "string", Description: "워크스페이스 기준 상대 경로", Required: true},
		tool.SchemaParam{Name: "content", Type: "string", Description: "파일 전체 내용", Required: true},
	)
}

func (t *WriteFileTool) Init(_ context.Context) error { return nil }
func (t *WriteFileTool) Close() error                 { return nil }

type writeFileArgs struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

func (t *WriteFileTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a writeFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	abs, err := resolvePath(t.root, a.FilePath)
	if err != nil {
		return tool.Failf("%v", err), nil
	}

	action := "created"
	if _, statErr := os.Stat(abs); statErr == nil {
		action = "overwritten"
	}

	id := t.txns.Begin("write_file: " + a.FilePath)
	if err := t.txns.StageWrite(id, a.FilePath, a.Content); err != nil {
		_ = t.txns.Rollback(id)
		return tool.Failf("%v", err), nil
	}
	if _, err := t.txns.Commit(id, false); err != nil {
		return tool.Failf("%v", err), nil
	}

	return tool.Ok(map[string]any{
		"path":   filepath.ToSlash(a.FilePath),
		"action": action,
		"bytes":  len(a.Content),
		"lines":  util.CountLines(a.Content),
	}), nil
}

// EditFileTool applies one edit to an existing file, either by unique
// text replacement or by line range.
type EditFileTool struct {
	root string
	txns *txn.Manager
}

// NewEditFileTool creates the edit_file tool.
func NewEditFileTool(root string, txns *txn.Manager) *EditFileTool {
	return &EditFileTool{root: root, txns: txns}
}

func (t *EditFileTool) Name() string { return "edit_file" }
func (t *EditFileTool) Description() string {
	return "파일을 부분 수정합니다. old_text/new_text (old_text는 정확히 한 번 일치) 또는 start_line/end_line/new_content 방식."
}
func (t *EditFileTool) Kind() tool.Kind { return tool.KindDestructive }

func (t *EditFileTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "file_path", Type: "string", Description: "워크스페이스 기준 상대 경로", Required: true},
		tool.SchemaParam{Name: "old_text", Type: "string", Description: "교체할 텍스트 (파일 안에서 정확히 한 번 일치해야 함)"},
		tool.SchemaParam{Name: "new_text", Type: "string", Description: "old_text를 대체할 텍스트"},
		tool.SchemaParam{Name: "start_line", Type: "integer", Description: "범위 수정 시작 줄 (1부터)"},
		tool.SchemaParam{Name: "end_line", Type: "integer", Description: "범위 수정 끝 줄 (포함)"},
		tool.SchemaParam{Name: "new_content", Type: "string", Description: "범위를 대체할 내용"},
	)
}

func (t *EditFileTool) Init(_ context.Context) error { return nil }
func (t *EditFileTool) Close() error                 { return nil }

type editFileArgs struct {
	FilePath   string  `json:"file_path"`
	OldText    *string `json:"old_text"`
	NewText    *string `json:"new_text"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	NewContent *string `json:"new_content"`
}

func (t *EditFileTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a editFileArgs
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
		return tool.Failf("바이너리 파일은 수정할 수 없습니다: %s", a.FilePath), nil
	}
	content := string(data)

	var (
		updated  string
		editType string
	)
	switch {
	case a.OldText != nil:
		if a.NewText == nil {
			return tool.Failf("old_text에는 new_text가 함께 필요합니다"), nil
		}
		updated, err = replaceUnique(content, *a.OldText, *a.NewText)
		if err != nil {
			return tool.Failf("%v", err), nil
		}
		editType = "text_replace"
	case a.StartLine > 0:
		if a.NewContent == nil {
			return tool.Failf("범위 수정에는 new_content가 필요합니다"), nil
		}
		updated, err = replaceRange(content, a.StartLine, a.EndLine, *a.NewContent)
		if err != nil {
			return tool.Failf("%v", err), nil
		}
		editType = "line_range"
	default:
		return tool.Failf("old_text 또는 start_line 중 하나는 지정해야 합니다"), nil
	}

	id := t.txns.Begin("edit_file: " + a.FilePath)
	if err := t.txns.StageEdit(id, a.FilePath, updated); err != nil {
		_ = t.txns.Rollback(id)
		return tool.Failf("%v", err), nil
	}
	if _, err := t.txns.Commit(id, false); err != nil {
		return tool.Failf("%v", err), nil
	}

	return tool.Ok(map[string]any{
		"path":      filepath.ToSlash(a.FilePath),
		"edit_type": editType,
		"changes":   1,
	}), nil
}

// replaceUnique replaces oldText iff it occurs exactly once.
func replaceUnique(content, oldText, newText string) (string, error) {
	if oldText == "" {
		return "", fmt.Errorf("old_text가 비어 있습니다")
	}
	switch n := strings.Count(content, oldText); n {
	case 0:
		return "", fmt.Errorf("텍스트를 찾을 수 없습니다")
	case 1:
		return strings.Replace(content, oldText, newText, 1), nil
	default:
		return "", fmt.Errorf("텍스트가 %d번 일치합니다. 더 구체적인 텍스트를 지정하세요", n)
	}
}

// replaceRange swaps the inclusive line range [start, end] for the new
// content's lines.
func replaceRange(content string, start, end int, newContent string) (string, error) {
	total := util.CountLines(content)
	if end <= 0 {
		end = start
	}
	if start < 1 || start > total || end < start || end > total {
		return "", fmt.Errorf("잘못된 줄 범위: %d-%d (전체 %d줄)", start, end, total)
	}
	lines := util.SplitLines(content)
	trailingNewline := strings.HasSuffix(content, "\n")
	if len(lines) > total {
		lines = lines[:total]
	}

	replacement := strings.Split(newContent, "\n")
	out := make([]string, 0, len(lines)-(end-start+1)+len(replacement))
	out = append(out, lines[:start-1]...)
	out = append(out, replacement...)
	out = append(out, lines[end:]...)

	joined := strings.Join(out, "\n")
	if trailingNewline {
		joined += "\n"
	}
	return joined, nil
}

// MultiEditTool applies a batch of unique-text edits in one transaction;
// any failure rolls the whole batch back.
type MultiEditTool struct {
	root string
	txns *txn.Manager
}

// NewMultiEditTool creates the multi_edit tool.
func NewMultiEditTool(root string, txns *txn.Manager) *MultiEditTool {
	return &MultiEditTool{root: root, txns: txns}
}

func (t *MultiEditTool) Name() string { return "multi_edit" }
func (t *MultiEditTool) Description() string {
	return "여러 파일의 old_text/new_text 수정을 하나의 트랜잭션으로 적용합니다. 하나라도 실패하면 전체가 취소됩니다."
}
func (t *MultiEditTool) Kind() tool.Kind { return tool.KindDestructive }

func (t *MultiEditTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "edits", Type: "array", Description: "{file_path, old_text, new_text} 목록", Required: true,
			Items: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"file_path": map[string]any{"type": "string"},
					"old_text":  map[string]any{"type": "string"},
					"new_text":  map[string]any{"type": "string"},
				},
				"required": []string{"file_path", "old_text", "new_text"},
			}},
		tool.SchemaParam{Name: "description", Type: "string", Description: "변경 묶음에 대한 설명", Required: true},
	)
}

func (t *MultiEditTool) Init(_ context.Context) error { return nil }
func (t *MultiEditTool) Close() error                 { return nil }

type multiEditArgs struct {
	Edits []struct {
		FilePath string `json:"file_path"`
		OldText  string `json:"old_text"`
		NewText  string `json:"new_text"`
	} `json:"edits"`
	Description string `json:"description"`
}

func (t *MultiEditTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a multiEditArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	if len(a.Edits) == 0 {
		return tool.Failf("edits가 비어 있습니다"), nil
	}

	id := t.txns.Begin("multi_edit: " + a.Description)

	// Apply edits against an in-memory view so several edits to the same
	// file compose, then stage the final content per file.
	contents := make(map[string]string)
	var order []string
	for i, e := range a.Edits {
		path := filepath.ToSlash(e.FilePath)
		current, seen := contents[path]
		if !seen {
			abs, err := resolvePath(t.root, e.FilePath)
			if err != nil {
				_ = t.txns.Rollback(id)
				return tool.Failf("edit %d: %v", i+1, err), nil
			}
			data, err := os.ReadFile(abs)
			if err != nil {
				_ = t.txns.Rollback(id)
				return tool.Failf("edit %d: 파일을 찾을 수 없습니다: %s", i+1, e.FilePath), nil
			}
			if txn.IsBinary(data) {
				_ = t.txns.Rollback(id)
				return tool.Failf("edit %d: 바이너리 파일은 수정할 수 없습니다: %s", i+1, e.FilePath), nil
			}
			current = string(data)
			order = append(order, path)
		}
		updated, err := replaceUnique(current, e.OldText, e.NewText)
		if err != nil {
			_ = t.txns.Rollback(id)
			return tool.Failf("edit %d (%s): %v", i+1, e.FilePath, err), nil
		}
		contents[path] = updated
	}

	for _, path := range order {
		if err := t.txns.StageEdit(id, path, contents[path]); err != nil {
			_ = t.txns.Rollback(id)
			return tool.Failf("%v", err), nil
		}
	}
	if _, err := t.txns.Commit(id, false); err != nil {
		return tool.Failf("%v", err), nil
	}

	return tool.Ok(map[string]any{
		"description": a.Description,
		"files":       order,
		"changes":     len(a.Edits),
	}), nil
}
