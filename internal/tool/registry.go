package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry manages all registered tools with thread-safe access.
//
// A Registry can be either a "root" registry (parent == nil) that owns its
// tools map, or a "view" registry (parent != nil) created by WithExtra that
// overlays additional tools on top of a parent. Views delegate Get/List to
// the parent, so changes to the parent are immediately visible through the
// view. The agent holds a view for per-session tools (read_file with the
// session's symbol cache) while MCP reload modifies the root registry.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema // compiled at Register time
	parent  *Registry                     // non-nil → view mode; tools map holds extras only
}

// NewRegistry creates an empty root tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a tool and compiles its input schema. A tool with the
// same name is overwritten with a warning. A schema that fails to
// compile disables validation for that tool rather than rejecting it.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		log.Printf("[Registry] WARNING: overwriting existing tool %q", name)
	}
	r.tools[name] = t

	raw := t.InputSchema()
	if len(raw) == 0 {
		return
	}
	sch, err := jsonschema.CompileString("tool://"+name, string(raw))
	if err != nil {
		log.Printf("[Registry] WARNING: schema for %q does not compile, validation disabled: %v", name, err)
		return
	}
	r.schemas[name] = sch
}

// Unregister removes a tool from the registry (for hot-reload).
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.schemas, name)
	log.Printf("[Registry] Unregistered tool: %s", name)
}

// Get retrieves a tool by name. For view registries: checks extras
// first, then delegates to the parent.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if ok {
		return t, true
	}
	if r.parent != nil {
		return r.parent.Get(name)
	}
	return nil, false
}

// schema returns the compiled schema for a tool, walking the view chain.
func (r *Registry) schema(name string) *jsonschema.Schema {
	r.mu.RLock()
	sch, ok := r.schemas[name]
	r.mu.RUnlock()
	if ok {
		return sch
	}
	if r.parent != nil {
		return r.parent.schema(name)
	}
	return nil
}

// List returns all registered tools sorted by name. For view registries
// the parent's tools are merged with the extras (extras win).
func (r *Registry) List() []Tool {
	if r.parent != nil {
		return r.listView()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

func (r *Registry) listView() []Tool {
	parentTools := r.parent.List()

	r.mu.RLock()
	extras := make(map[string]Tool, len(r.tools))
	for k, v := range r.tools {
		extras[k] = v
	}
	r.mu.RUnlock()

	result := make([]Tool, 0, len(parentTools)+len(extras))
	for _, t := range parentTools {
		if _, overridden := extras[t.Name()]; !overridden {
			result = append(result, t)
		}
	}
	for _, t := range extras {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Execute validates the arguments against the tool's schema and runs
// the handler. It is a total function: every failure path, including a
// panicking handler, comes back as a failed Result, never a Go error.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Registry] PANIC in tool %q: %v", name, rec)
			res = Failf("도구 내부 오류: %v", rec)
		}
	}()

	t, ok := r.Get(name)
	if !ok {
		return Failf("알 수 없는 도구: %s", name)
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if sch := r.schema(name); sch != nil {
		var v any
		if err := json.Unmarshal(args, &v); err != nil {
			return Failf("schema: 입력이 올바른 JSON이 아닙니다: %v", err)
		}
		if err := sch.Validate(v); err != nil {
			return Failf("schema: %s", schemaErrorLine(err))
		}
	}

	out, err := t.Execute(ctx, args)
	if err != nil {
		return Failf("%v", err)
	}
	return out
}

// schemaErrorLine condenses a jsonschema validation error to one line.
func schemaErrorLine(err error) string {
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		loc := strings.TrimPrefix(leaf.InstanceLocation, "/")
		if loc == "" {
			loc = "(root)"
		}
		return fmt.Sprintf("%s: %s", loc, leaf.Message)
	}
	return err.Error()
}

// Kinds returns the classification for each registered tool name.
func (r *Registry) Kinds() map[string]Kind {
	out := make(map[string]Kind)
	for _, t := range r.List() {
		out[t.Name()] = t.Kind()
	}
	return out
}

// Catalog renders the tool list for prompt injection: name, description
// and a canonical [TOOL:name] invocation example built from the schema.
func (r *Registry) Catalog() string {
	tools := r.List()
	if len(tools) == 0 {
		return "(사용 가능한 도구 없음)"
	}

	var sb strings.Builder
	sb.WriteString("사용 가능한 도구:\n")
	for _, t := range tools {
		sb.WriteString(fmt.Sprintf("\n### %s\n%s\n", t.Name(), t.Description()))
		sb.WriteString("호출 예시:\n")
		sb.WriteString(fmt.Sprintf("[TOOL:%s]\n```json\n%s\n```\n", t.Name(), exampleInput(t.InputSchema())))
	}
	return sb.String()
}

// exampleInput builds a minimal example object from a schema's required
// properties, falling back to {} when the schema is opaque.
func exampleInput(raw json.RawMessage) string {
	var sch struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(raw, &sch); err != nil || len(sch.Required) == 0 {
		return "{}"
	}
	example := make(map[string]any, len(sch.Required))
	for _, name := range sch.Required {
		switch sch.Properties[name].Type {
		case "integer", "number":
			example[name] = 1
		case "boolean":
			example[name] = true
		case "array":
			example[name] = []any{}
		case "object":
			example[name] = map[string]any{}
		default:
			example[name] = "..."
		}
	}
	data, _ := json.Marshal(example)
	return string(data)
}

// InitAll initializes all registered tools.
func (r *Registry) InitAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, t := range r.tools {
		if err := t.Init(ctx); err != nil {
			return fmt.Errorf("init tool %q: %w", name, err)
		}
	}
	log.Printf("[Registry] Initialized %d tools", len(r.tools))
	return nil
}

// CloseAll closes all registered tools, logging errors but not failing.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, t := range r.tools {
		if err := t.Close(); err != nil {
			log.Printf("[Registry] Error closing tool %s: %v", name, err)
		}
	}
}

// WithExtra returns a view of this Registry with additional tools
// overlaid. Used for per-session tool injection (e.g. read_file bound to
// the session's symbol cache). The view delegates lookups to the parent,
// so root-level Register/Unregister stays visible through it.
func (r *Registry) WithExtra(extras ...Tool) *Registry {
	view := &Registry{
		parent:  r,
		tools:   make(map[string]Tool, len(extras)),
		schemas: make(map[string]*jsonschema.Schema, len(extras)),
	}
	for _, t := range extras {
		view.tools[t.Name()] = t
		if raw := t.InputSchema(); len(raw) > 0 {
			if sch, err := jsonschema.CompileString("tool://"+t.Name(), string(raw)); err == nil {
				view.schemas[t.Name()] = sch
			}
		}
	}
	return view
}
