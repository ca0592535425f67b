package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/maeum-ai/maeum/internal/tool"
)

func TestToolAdapter_Name(t *testing.T) {
	tests := []struct {
		serverName string
		toolName   string
		wantName   string
	}{
		// Double underscore (__) separates server and tool names
		// unambiguously even when either component has underscores.
		{"csv-tool", "read_csv", "mcp_csv-tool__read_csv"},
		{"memory", "store", "mcp_memory__store"},
		{"my_server", "get_weather", "mcp_my_server__get_weather"},
	}
	for _, tc := range tests {
		t.Run(tc.wantName, func(t *testing.T) {
			adapter := NewToolAdapter(tc.serverName, ToolInfo{Name: tc.toolName}, nil)
			if got := adapter.Name(); got != tc.wantName {
				t.Errorf("Name() = %q, want %q", got, tc.wantName)
			}
		})
	}
}

func TestToolAdapter_InputSchema(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}},"required":["q"]}`)
	adapter := NewToolAdapter("svc", ToolInfo{Name: "search", InputSchema: schema}, nil)
	if got := adapter.InputSchema(); string(got) != string(schema) {
		t.Errorf("InputSchema() = %s, want %s", got, schema)
	}

	// No schema from the server → a valid empty object schema.
	empty := NewToolAdapter("svc", ToolInfo{Name: "noop"}, nil).InputSchema()
	var obj map[string]any
	if err := json.Unmarshal(empty, &obj); err != nil {
		t.Fatalf("empty fallback schema is not valid JSON: %v", err)
	}
}

func TestToolAdapter_Kind(t *testing.T) {
	tests := []struct {
		name     string
		readOnly bool
		want     tool.Kind
	}{
		{"hinted read-only", true, tool.KindReadOnly},
		{"no hint defaults to destructive", false, tool.KindDestructive},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter := NewToolAdapter("svc", ToolInfo{Name: "t", ReadOnly: tc.readOnly}, nil)
			if got := adapter.Kind(); got != tc.want {
				t.Errorf("Kind() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestToolAdapter_Execute_InvalidJSON(t *testing.T) {
	// Invalid JSON args come back as a failed Result, not a Go error.
	adapter := NewToolAdapter("svc", ToolInfo{Name: "t"}, NewClient(ServerConfig{}))
	result, err := adapter.Execute(context.Background(), json.RawMessage(`{bad json}`))
	if err != nil {
		t.Fatalf("Execute returned Go error; want failed Result: %v", err)
	}
	if result.Success || result.Error == "" {
		t.Errorf("expected failed Result for invalid JSON args, got %+v", result)
	}
}

func TestToolAdapter_Execute_NullArgs(t *testing.T) {
	// "null" args are valid (no-arg tools). With no real server behind
	// the client, a connection error is expected — not an unmarshal one.
	adapter := NewToolAdapter("svc", ToolInfo{Name: "noop"}, NewClient(ServerConfig{}))
	result, err := adapter.Execute(context.Background(), json.RawMessage(`null`))
	if err != nil {
		t.Fatalf("Execute returned Go error: %v", err)
	}
	if result.Error == "" {
		t.Error("expected a failed Result (client not connected)")
	}
}

func TestToolAdapter_InitClose(t *testing.T) {
	adapter := NewToolAdapter("svc", ToolInfo{Name: "t"}, nil)
	if err := adapter.Init(context.Background()); err != nil {
		t.Errorf("Init() error: %v", err)
	}
	if err := adapter.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
