package builtin

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/maeum-ai/maeum/internal/memory"
	"github.com/maeum-ai/maeum/internal/tool"
)

// ReadProjectMemoryTool returns the workspace MAEUM.md content.
type ReadProjectMemoryTool struct {
	store *memory.Store
}

// NewReadProjectMemoryTool creates the read_project_memory tool.
func NewReadProjectMemoryTool(store *memory.Store) *ReadProjectMemoryTool {
	return &ReadProjectMemoryTool{store: store}
}

func (t *ReadProjectMemoryTool) Name() string { return "read_project_memory" }
func (t *ReadProjectMemoryTool) Description() string {
	return "프로젝트 메모리(MAEUM.md)를 읽습니다."
}
func (t *ReadProjectMemoryTool) Kind() tool.Kind              { return tool.KindReadOnly }
func (t *ReadProjectMemoryTool) InputSchema() json.RawMessage { return tool.BuildSchema() }
func (t *ReadProjectMemoryTool) Init(_ context.Context) error { return nil }
func (t *ReadProjectMemoryTool) Close() error                 { return nil }

func (t *ReadProjectMemoryTool) Execute(_ context.Context, _ json.RawMessage) (tool.Result, error) {
	content, exists, err := t.store.Read()
	if err != nil {
		return tool.Failf("메모리 파일을 읽을 수 없습니다: %v", err), nil
	}
	if !exists {
		return tool.Ok(map[string]any{
			"exists":  false,
			"content": "",
			"note":    "아직 프로젝트 메모리가 없습니다. update_project_memory로 기록을 시작하세요.",
		}), nil
	}
	return tool.Ok(map[string]any{
		"exists":  true,
		"content": content,
	}), nil
}

// UpdateProjectMemoryTool appends a timestamped entry to one MAEUM.md
// section.
type UpdateProjectMemoryTool struct {
	store *memory.Store
}

// NewUpdateProjectMemoryTool creates the update_project_memory tool.
func NewUpdateProjectMemoryTool(store *memory.Store) *UpdateProjectMemoryTool {
	return &UpdateProjectMemoryTool{store: store}
}

func (t *UpdateProjectMemoryTool) Name() string { return "update_project_memory" }
func (t *UpdateProjectMemoryTool) Description() string {
	return "프로젝트 메모리(MAEUM.md)의 섹션에 기록을 추가합니다."
}
func (t *UpdateProjectMemoryTool) Kind() tool.Kind { return tool.KindDestructive }

func (t *UpdateProjectMemoryTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "section", Type: "string", Description: "기록할 섹션", Required: true,
			Enum: memory.Sections},
		tool.SchemaParam{Name: "content", Type: "string", Description: "기록할 내용 (한 항목)", Required: true},
	)
}

func (t *UpdateProjectMemoryTool) Init(_ context.Context) error { return nil }
func (t *UpdateProjectMemoryTool) Close() error                 { return nil }

func (t *UpdateProjectMemoryTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		Section string `json:"section"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	if err := t.store.Append(a.Section, a.Content); err != nil {
		return tool.Failf("%v", err), nil
	}
	return tool.Ok(map[string]any{
		"section": strings.ToLower(strings.TrimSpace(a.Section)),
		"file":    memory.FileName,
	}), nil
}
