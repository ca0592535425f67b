// Package tool defines the tool contract the agent loop dispatches on:
// a registry of named tools, JSON Schema input validation, and a uniform
// result envelope. Native built-in tools and MCP adapters implement the
// same interface.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Kind classifies a tool for the confirmation workflow. Read-only tools
// execute immediately under the exploration budget; destructive tools
// suspend the loop until the user approves; interactive tools hand a
// question to the user and wait for the answer.
type Kind string

const (
	KindReadOnly    Kind = "readonly"
	KindDestructive Kind = "destructive"
	KindInteractive Kind = "interactive"
)

// Tool is the unified interface for all tools.
type Tool interface {
	// Name returns the tool identifier the LLM uses to invoke it.
	Name() string

	// Description returns a natural-language description for the prompt
	// catalog.
	Description() string

	// InputSchema returns a JSON Schema for the tool's parameters. The
	// registry validates every call against it before dispatch.
	InputSchema() json.RawMessage

	// Kind reports the tool's safety classification.
	Kind() Kind

	// Execute runs the tool with JSON-encoded arguments. Domain failures
	// are reported inside the Result; a non-nil error is reserved for
	// infrastructure faults and is folded into a failed Result by the
	// registry.
	Execute(ctx context.Context, args json.RawMessage) (Result, error)

	// Init initializes tool resources (e.g. MCP client connections).
	// Native tools may return nil.
	Init(ctx context.Context) error

	// Close releases tool resources.
	Close() error
}

// Result is the uniform envelope every tool returns. Fields holds the
// tool-specific payload and is flattened beside success/error when the
// result is marshaled for the UI or the observation text.
type Result struct {
	Success bool
	Error   string
	Fields  map[string]any
}

// Ok builds a successful result carrying the given payload fields.
func Ok(fields map[string]any) Result {
	return Result{Success: true, Fields: fields}
}

// Failf builds a failed result with a formatted error message.
func Failf(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Get returns a payload field, or nil when absent.
func (r Result) Get(key string) any {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[key]
}

// MarshalJSON flattens Fields into the top-level object next to
// success/error. Reserved keys in Fields are skipped so the envelope
// stays authoritative.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		if k == "success" || k == "error" {
			continue
		}
		out[k] = v
	}
	out["success"] = r.Success
	if r.Error != "" {
		out["error"] = r.Error
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the envelope from its flattened form.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["success"].(bool); ok {
		r.Success = v
	}
	if v, ok := raw["error"].(string); ok {
		r.Error = v
	}
	delete(raw, "success")
	delete(raw, "error")
	r.Fields = raw
	return nil
}

// SchemaParam describes a single parameter for the BuildSchema helper.
type SchemaParam struct {
	Name        string
	Type        string // "string", "integer", "boolean", "number", "array", "object"
	Description string
	Required    bool
	Enum        []string
	Items       map[string]any // array element schema, when Type == "array"
}

// BuildSchema generates a JSON Schema object from a list of SchemaParams
// so native tools avoid hand-writing JSON strings.
func BuildSchema(params ...SchemaParam) json.RawMessage {
	properties := make(map[string]any)
	var required []string

	for _, p := range params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Items != nil {
			prop["items"] = p.Items
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	sort.Strings(required)

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	data, _ := json.Marshal(schema)
	return data
}
