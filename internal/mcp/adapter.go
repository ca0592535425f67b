package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maeum-ai/maeum/internal/tool"
)

// ToolAdapter bridges an MCP server tool to the tool.Tool interface,
// making it indistinguishable from native built-in tools to the agent.
//
// Naming convention: mcp_<serverName>__<toolName> (double underscore
// separator). The double underscore cannot appear within a valid server
// or tool name, so composite names stay unambiguous even when either
// component contains single underscores.
//
// Example: server "csv-tool", tool "read_csv" → "mcp_csv-tool__read_csv"
type ToolAdapter struct {
	serverName string
	info       ToolInfo
	client     *Client
}

// NewToolAdapter creates an adapter for a single MCP tool.
func NewToolAdapter(serverName string, info ToolInfo, client *Client) *ToolAdapter {
	return &ToolAdapter{serverName: serverName, info: info, client: client}
}

func (a *ToolAdapter) Name() string {
	return fmt.Sprintf("mcp_%s__%s", a.serverName, a.info.Name)
}

func (a *ToolAdapter) Description() string {
	return a.info.Description
}

func (a *ToolAdapter) InputSchema() json.RawMessage {
	if len(a.info.InputSchema) == 0 {
		return tool.BuildSchema()
	}
	return a.info.InputSchema
}

// Kind maps the server's readOnlyHint annotation onto the confirmation
// workflow: hinted read-only tools run under the exploration budget,
// everything else waits for user approval.
func (a *ToolAdapter) Kind() tool.Kind {
	if a.info.ReadOnly {
		return tool.KindReadOnly
	}
	return tool.KindDestructive
}

// Execute deserializes the JSON args and delegates to the MCP server.
// Infrastructure errors and MCP tool-level errors both come back as a
// failed Result (nil Go error) so the loop can react gracefully.
func (a *ToolAdapter) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var params map[string]any
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &params); err != nil {
			return tool.Failf("mcp adapter: parse args for %q: %v", a.Name(), err), nil
		}
	}

	text, err := a.client.CallTool(ctx, a.info.Name, params)
	if err != nil {
		return tool.Failf("%v", err), nil
	}
	return tool.Ok(map[string]any{"output": text}), nil
}

// Init satisfies tool.Tool. Connection lifecycle belongs to the Manager;
// individual adapters have nothing to set up.
func (a *ToolAdapter) Init(_ context.Context) error { return nil }

// Close satisfies tool.Tool. Adapters do not close the shared client.
func (a *ToolAdapter) Close() error { return nil }
