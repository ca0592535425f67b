package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/maeum-ai/maeum/internal/index"
	"github.com/maeum-ai/maeum/internal/tool"
)

// ListDirTool lists one directory level, directories first. Ignored
// directories (VCS metadata, build output, virtualenvs) are hidden.
type ListDirTool struct {
	root string
}

// NewListDirTool creates the list_dir tool.
func NewListDirTool(root string) *ListDirTool {
	return &ListDirTool{root: root}
}

func (t *ListDirTool) Name() string { return "list_dir" }
func (t *ListDirTool) Description() string {
	return "디렉토리의 파일과 하위 디렉토리를 나열합니다."
}
func (t *ListDirTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *ListDirTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "path", Type: "string", Description: "워크스페이스 기준 상대 경로 (기본: 루트)"},
	)
}

func (t *ListDirTool) Init(_ context.Context) error { return nil }
func (t *ListDirTool) Close() error                 { return nil }

func (t *ListDirTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	if a.Path == "" {
		a.Path = "."
	}
	abs, err := resolvePath(t.root, a.Path)
	if err != nil {
		return tool.Failf("%v", err), nil
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return tool.Failf("디렉토리를 읽을 수 없습니다: %s", a.Path), nil
	}

	type entry struct {
		Name  string `json:"name"`
		Type  string `json:"type"`
		Size  int64  `json:"size,omitempty"`
		IsDir bool   `json:"-"`
	}
	var out []entry
	for _, e := range entries {
		if e.IsDir() && index.IgnoredDir(e.Name()) {
			continue
		}
		item := entry{Name: e.Name(), IsDir: e.IsDir()}
		if e.IsDir() {
			item.Type = "directory"
		} else {
			item.Type = "file"
			if info, err := e.Info(); err == nil {
				item.Size = info.Size()
			}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir != out[j].IsDir {
			return out[i].IsDir
		}
		return out[i].Name < out[j].Name
	})

	return tool.Ok(map[string]any{
		"path":    filepath.ToSlash(a.Path),
		"entries": out,
		"count":   len(out),
	}), nil
}

// ProjectStructureTool renders the indexed workspace as a tree.
type ProjectStructureTool struct {
	engine *index.Engine
}

// NewProjectStructureTool creates the project_structure tool.
func NewProjectStructureTool(engine *index.Engine) *ProjectStructureTool {
	return &ProjectStructureTool{engine: engine}
}

func (t *ProjectStructureTool) Name() string { return "project_structure" }
func (t *ProjectStructureTool) Description() string {
	return "프로젝트 전체 디렉토리 구조를 트리로 보여줍니다."
}
func (t *ProjectStructureTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *ProjectStructureTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "max_depth", Type: "integer", Description: "최대 깊이 (기본 4)"},
	)
}

func (t *ProjectStructureTool) Init(_ context.Context) error { return nil }
func (t *ProjectStructureTool) Close() error                 { return nil }

func (t *ProjectStructureTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		MaxDepth int `json:"max_depth"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	if a.MaxDepth <= 0 {
		a.MaxDepth = 4
	}
	stats := t.engine.Stats()
	return tool.Ok(map[string]any{
		"tree":          t.engine.Tree(a.MaxDepth, 400),
		"indexed_files": stats.IndexedFiles,
		"total_symbols": stats.TotalSymbols,
	}), nil
}

// IndexCodebaseTool rebuilds the workspace index on demand.
type IndexCodebaseTool struct {
	engine *index.Engine
}

// NewIndexCodebaseTool creates the index_codebase tool.
func NewIndexCodebaseTool(engine *index.Engine) *IndexCodebaseTool {
	return &IndexCodebaseTool{engine: engine}
}

func (t *IndexCodebaseTool) Name() string { return "index_codebase" }
func (t *IndexCodebaseTool) Description() string {
	return "코드베이스 인덱스를 다시 빌드합니다. 파일이 많이 바뀐 뒤에 사용하세요."
}
func (t *IndexCodebaseTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *IndexCodebaseTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "force", Type: "boolean", Description: "변경되지 않은 파일도 다시 인덱싱"},
	)
}

func (t *IndexCodebaseTool) Init(_ context.Context) error { return nil }
func (t *IndexCodebaseTool) Close() error                 { return nil }

func (t *IndexCodebaseTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		Force bool `json:"force"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	stats := t.engine.Build(a.Force)
	return tool.Ok(map[string]any{
		"total_files":   stats.TotalFiles,
		"indexed_files": stats.IndexedFiles,
		"symbols":       stats.Symbols,
		"errors":        stats.Errors,
		"elapsed_ms":    stats.ElapsedMs,
	}), nil
}
