// Package plan persists the agent's planning artifacts as dot-files in
// the workspace: a todo list (.maeum_todos.json) and a task plan
// (.maeum_plan.json). Both survive restarts and are rendered into the
// system prompt so the model sees its own plan.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	TodosFileName = ".maeum_todos.json"
	PlanFileName  = ".maeum_plan.json"
)

// TodoItem is one entry of the todo list.
type TodoItem struct {
	Content  string `json:"content"`
	Status   string `json:"status"`   // pending | in_progress | completed
	Priority string `json:"priority"` // high | medium | low
}

var todoStatuses = map[string]bool{"pending": true, "in_progress": true, "completed": true}
var todoPriorities = map[string]bool{"high": true, "medium": true, "low": true}

// TodoStore serializes access to the workspace todo file.
type TodoStore struct {
	mu   sync.Mutex
	path string
}

// NewTodoStore creates a store rooted at the workspace.
func NewTodoStore(root string) *TodoStore {
	return &TodoStore{path: filepath.Join(root, TodosFileName)}
}

// Write replaces the whole todo list. Unknown statuses and priorities
// are rejected; empty ones get defaults.
func (s *TodoStore) Write(todos []TodoItem) error {
	for i := range todos {
		if strings.TrimSpace(todos[i].Content) == "" {
			return fmt.Errorf("todo %d: content가 비어 있습니다", i+1)
		}
		if todos[i].Status == "" {
			todos[i].Status = "pending"
		}
		if !todoStatuses[todos[i].Status] {
			return fmt.Errorf("todo %d: 잘못된 status: %s", i+1, todos[i].Status)
		}
		if todos[i].Priority == "" {
			todos[i].Priority = "medium"
		}
		if !todoPriorities[todos[i].Priority] {
			return fmt.Errorf("todo %d: 잘못된 priority: %s", i+1, todos[i].Priority)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path, todos)
}

// Read returns the current list; a missing file is an empty list.
func (s *TodoStore) Read() ([]TodoItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var todos []TodoItem
	if err := json.Unmarshal(data, &todos); err != nil {
		return nil, fmt.Errorf("%s 파싱 실패: %w", TodosFileName, err)
	}
	return todos, nil
}

var todoIcons = map[string]string{
	"pending":     "[ ]",
	"in_progress": "[→]",
	"completed":   "[x]",
}

// Render formats the todo list as a markdown checklist for the system
// prompt. Returns "" when there are no todos.
func (s *TodoStore) Render() string {
	todos, err := s.Read()
	if err != nil || len(todos) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## 할 일 목록\n")
	done := 0
	for _, t := range todos {
		icon := todoIcons[t.Status]
		if icon == "" {
			icon = "[ ]"
		}
		fmt.Fprintf(&sb, "- %s (%s) %s\n", icon, t.Priority, t.Content)
		if t.Status == "completed" {
			done++
		}
	}
	fmt.Fprintf(&sb, "\n진행 상황: %d/%d 완료\n", done, len(todos))
	return sb.String()
}

// Plan is the persisted task plan.
type Plan struct {
	Task           string   `json:"task"`
	Status         string   `json:"status"`
	FilesToExamine []string `json:"files_to_examine"`
	Considerations []string `json:"considerations"`
	CreatedAt      string   `json:"created_at"`
	Steps          []string `json:"steps"`
}

// PlanStore serializes access to the workspace plan file.
type PlanStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewPlanStore creates a store rooted at the workspace.
func NewPlanStore(root string) *PlanStore {
	return &PlanStore{path: filepath.Join(root, PlanFileName), now: time.Now}
}

// Set replaces the plan for a new task.
func (s *PlanStore) Set(task string, filesToExamine, considerations, steps []string) (Plan, error) {
	if strings.TrimSpace(task) == "" {
		return Plan{}, fmt.Errorf("task가 비어 있습니다")
	}
	p := Plan{
		Task:           task,
		Status:         "active",
		FilesToExamine: emptyIfNil(filesToExamine),
		Considerations: emptyIfNil(considerations),
		CreatedAt:      s.now().Format(time.RFC3339),
		Steps:          emptyIfNil(steps),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeJSON(s.path, p); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Read returns the current plan; ok=false when none has been written.
func (s *PlanStore) Read() (Plan, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Plan{}, false, nil
	}
	if err != nil {
		return Plan{}, false, err
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return Plan{}, false, fmt.Errorf("%s 파싱 실패: %w", PlanFileName, err)
	}
	return p, true, nil
}

// Render formats the plan for the system prompt. Returns "" when no
// plan exists.
func (s *PlanStore) Render() string {
	p, ok, err := s.Read()
	if err != nil || !ok {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## 현재 작업 계획\n")
	fmt.Fprintf(&sb, "- 작업: %s\n", p.Task)
	if len(p.FilesToExamine) > 0 {
		fmt.Fprintf(&sb, "- 살펴볼 파일: %s\n", strings.Join(p.FilesToExamine, ", "))
	}
	if len(p.Considerations) > 0 {
		fmt.Fprintf(&sb, "- 고려 사항: %s\n", strings.Join(p.Considerations, "; "))
	}
	for i, step := range p.Steps {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, step)
	}
	return sb.String()
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// writeJSON writes pretty-printed JSON through a temp file and rename
// so readers never see a partial file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
