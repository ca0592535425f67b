package mcp

import (
	"context"
	"encoding/json"

	"github.com/maeum-ai/maeum/internal/tool"
)

// ReloadTool exposes the "mcp_reload" built-in command. When invoked by
// the agent it triggers a diff-based hot reload of mcp.json: new servers
// are scanned and connected, removed servers are unregistered and
// closed, unchanged servers are left untouched.
type ReloadTool struct {
	manager  *Manager
	registry *tool.Registry
}

// NewReloadTool creates a ReloadTool wired to the given manager and
// root registry.
func NewReloadTool(manager *Manager, registry *tool.Registry) *ReloadTool {
	return &ReloadTool{manager: manager, registry: registry}
}

func (t *ReloadTool) Name() string { return "mcp_reload" }

func (t *ReloadTool) Description() string {
	return "mcp.json을 다시 읽어 MCP 서버 구성을 핫 리로드합니다. 새 서버는 보안 검사 후 연결하고, 제거된 서버는 연결을 해제합니다. 변경 요약을 반환합니다."
}

// InputSchema returns an empty schema — mcp_reload takes no arguments.
func (t *ReloadTool) InputSchema() json.RawMessage {
	return tool.BuildSchema()
}

// Kind is destructive: reloading changes the available tool set, so the
// user confirms it like any other state-changing operation.
func (t *ReloadTool) Kind() tool.Kind { return tool.KindDestructive }

func (t *ReloadTool) Execute(ctx context.Context, _ json.RawMessage) (tool.Result, error) {
	summary, err := t.manager.Reload(ctx, t.registry)
	if err != nil {
		return tool.Failf("%v", err), nil
	}
	return tool.Ok(map[string]any{"summary": summary}), nil
}

func (t *ReloadTool) Init(_ context.Context) error { return nil }

func (t *ReloadTool) Close() error { return nil }
