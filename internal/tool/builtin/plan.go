package builtin

import (
	"context"
	"encoding/json"

	"github.com/maeum-ai/maeum/internal/plan"
	"github.com/maeum-ai/maeum/internal/tool"
)

// TodoWriteTool replaces the workspace todo list.
type TodoWriteTool struct {
	todos *plan.TodoStore
}

// NewTodoWriteTool creates the todo_write tool.
func NewTodoWriteTool(todos *plan.TodoStore) *TodoWriteTool {
	return &TodoWriteTool{todos: todos}
}

func (t *TodoWriteTool) Name() string { return "todo_write" }
func (t *TodoWriteTool) Description() string {
	return "할 일 목록 전체를 새로 씁니다. 항상 전체 목록을 전달하세요."
}
func (t *TodoWriteTool) Kind() tool.Kind { return tool.KindDestructive }

func (t *TodoWriteTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "todos", Type: "array", Description: "{content, status, priority} 목록", Required: true,
			Items: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"content":  map[string]any{"type": "string"},
					"status":   map[string]any{"type": "string", "enum": []string{"pending", "in_progress", "completed"}},
					"priority": map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
				},
				"required": []string{"content"},
			}},
	)
}

func (t *TodoWriteTool) Init(_ context.Context) error { return nil }
func (t *TodoWriteTool) Close() error                 { return nil }

func (t *TodoWriteTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		Todos []plan.TodoItem `json:"todos"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	if err := t.todos.Write(a.Todos); err != nil {
		return tool.Failf("%v", err), nil
	}
	done := 0
	for _, item := range a.Todos {
		if item.Status == "completed" {
			done++
		}
	}
	return tool.Ok(map[string]any{
		"count":     len(a.Todos),
		"completed": done,
		"file":      plan.TodosFileName,
	}), nil
}

// PlanTaskTool records the plan for the current task.
type PlanTaskTool struct {
	plans *plan.PlanStore
}

// NewPlanTaskTool creates the plan_task tool.
func NewPlanTaskTool(plans *plan.PlanStore) *PlanTaskTool {
	return &PlanTaskTool{plans: plans}
}

func (t *PlanTaskTool) Name() string { return "plan_task" }
func (t *PlanTaskTool) Description() string {
	return "작업 계획을 기록합니다. 복잡한 작업을 시작하기 전에 사용하세요."
}
func (t *PlanTaskTool) Kind() tool.Kind { return tool.KindDestructive }

func (t *PlanTaskTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "task", Type: "string", Description: "작업 한 줄 요약", Required: true},
		tool.SchemaParam{Name: "files_to_examine", Type: "array", Description: "살펴볼 파일 목록",
			Items: map[string]any{"type": "string"}},
		tool.SchemaParam{Name: "considerations", Type: "array", Description: "주의할 점 목록",
			Items: map[string]any{"type": "string"}},
		tool.SchemaParam{Name: "steps", Type: "array", Description: "실행 단계 목록",
			Items: map[string]any{"type": "string"}},
	)
}

func (t *PlanTaskTool) Init(_ context.Context) error { return nil }
func (t *PlanTaskTool) Close() error                 { return nil }

func (t *PlanTaskTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		Task           string   `json:"task"`
		FilesToExamine []string `json:"files_to_examine"`
		Considerations []string `json:"considerations"`
		Steps          []string `json:"steps"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	p, err := t.plans.Set(a.Task, a.FilesToExamine, a.Considerations, a.Steps)
	if err != nil {
		return tool.Failf("%v", err), nil
	}
	return tool.Ok(map[string]any{
		"task":       p.Task,
		"status":     p.Status,
		"created_at": p.CreatedAt,
		"file":       plan.PlanFileName,
	}), nil
}
