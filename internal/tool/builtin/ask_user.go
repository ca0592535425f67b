package builtin

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/maeum-ai/maeum/internal/tool"
)

// AskUserTool never runs a real action. The loop intercepts it before
// execution and suspends until the UI delivers an answer; Execute only
// echoes the question payload so a direct call still behaves sanely.
type AskUserTool struct{}

// NewAskUserTool creates the ask_user tool.
func NewAskUserTool() *AskUserTool { return &AskUserTool{} }

func (t *AskUserTool) Name() string { return "ask_user" }
func (t *AskUserTool) Description() string {
	return "작업을 계속하기 위해 사용자에게 질문합니다. 선택지를 제시할 수 있습니다."
}
func (t *AskUserTool) Kind() tool.Kind { return tool.KindInteractive }

func (t *AskUserTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "question", Type: "string", Description: "사용자에게 할 질문", Required: true},
		tool.SchemaParam{Name: "options", Type: "array", Description: "선택지 목록 (선택)",
			Items: map[string]any{"type": "string"}},
		tool.SchemaParam{Name: "default", Type: "string", Description: "기본 선택지 (선택)"},
	)
}

func (t *AskUserTool) Init(_ context.Context) error { return nil }
func (t *AskUserTool) Close() error                 { return nil }

func (t *AskUserTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
		Default  string   `json:"default"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	if strings.TrimSpace(a.Question) == "" {
		return tool.Failf("question이 비어 있습니다"), nil
	}
	fields := map[string]any{
		"type":     "user_input_required",
		"question": a.Question,
	}
	if len(a.Options) > 0 {
		fields["options"] = a.Options
	}
	if a.Default != "" {
		fields["default"] = a.Default
	}
	return tool.Ok(fields), nil
}
