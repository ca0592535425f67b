package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/maeum-ai/maeum/internal/index"
	"github.com/maeum-ai/maeum/internal/session"
	"github.com/maeum-ai/maeum/internal/tool"
	"github.com/maeum-ai/maeum/internal/txn"
	"github.com/maeum-ai/maeum/internal/util"
)

// FindSymbolTool looks up classes, functions and constants by name in
// the symbol index, preferring the session's cached extractions.
type FindSymbolTool struct {
	engine *index.Engine
	sess   *session.Session
}

// NewFindSymbolTool creates the find_symbol tool.
func NewFindSymbolTool(engine *index.Engine) *FindSymbolTool {
	return &FindSymbolTool{engine: engine}
}

// WithSession returns a copy preferring the session's symbol cache.
func (t *FindSymbolTool) WithSession(sess *session.Session) *FindSymbolTool {
	return &FindSymbolTool{engine: t.engine, sess: sess}
}

func (t *FindSymbolTool) Name() string { return "find_symbol" }
func (t *FindSymbolTool) Description() string {
	return "이름으로 심볼(클래스/함수/상수)을 찾습니다."
}
func (t *FindSymbolTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *FindSymbolTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "name", Type: "string", Description: "심볼 이름", Required: true},
		tool.SchemaParam{Name: "symbol_type", Type: "string", Description: "종류 필터", Enum: []string{"class", "function", "constant", "variable"}},
		tool.SchemaParam{Name: "exact", Type: "boolean", Description: "정확히 일치하는 이름만"},
	)
}

func (t *FindSymbolTool) Init(_ context.Context) error { return nil }
func (t *FindSymbolTool) Close() error                 { return nil }

func (t *FindSymbolTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		Name       string `json:"name"`
		SymbolType string `json:"symbol_type"`
		Exact      bool   `json:"exact"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}

	locs := t.engine.FindSymbol(a.Name, 0)
	var out []map[string]any
	for _, loc := range locs {
		if a.Exact && loc.Symbol.Name != a.Name {
			continue
		}
		if a.SymbolType != "" && loc.Symbol.Kind != a.SymbolType {
			continue
		}
		out = append(out, symbolEntry(loc))
	}
	if len(out) == 0 {
		return tool.Failf("심볼을 찾을 수 없습니다: %s", a.Name), nil
	}
	return tool.Ok(map[string]any{
		"name":    a.Name,
		"symbols": out,
		"count":   len(out),
	}), nil
}

func symbolEntry(loc index.SymbolLocation) map[string]any {
	entry := map[string]any{
		"file": loc.File,
		"name": loc.Symbol.Name,
		"kind": loc.Symbol.Kind,
		"line": loc.Symbol.Line,
	}
	if len(loc.Symbol.Args) > 0 {
		entry["args"] = loc.Symbol.Args
	}
	if len(loc.Symbol.Methods) > 0 {
		entry["methods"] = loc.Symbol.Methods
	}
	if len(loc.Symbol.Bases) > 0 {
		entry["bases"] = loc.Symbol.Bases
	}
	return entry
}

// FindReferencesTool lists whole-word occurrences of a symbol name,
// optionally excluding its definition file.
type FindReferencesTool struct {
	engine *index.Engine
}

// NewFindReferencesTool creates the find_references tool.
func NewFindReferencesTool(engine *index.Engine) *FindReferencesTool {
	return &FindReferencesTool{engine: engine}
}

func (t *FindReferencesTool) Name() string { return "find_references" }
func (t *FindReferencesTool) Description() string {
	return "심볼이 사용되는 위치를 찾습니다."
}
func (t *FindReferencesTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *FindReferencesTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "symbol_name", Type: "string", Description: "심볼 이름", Required: true},
		tool.SchemaParam{Name: "definition_file", Type: "string", Description: "정의 파일 (결과에서 제외)"},
	)
}

func (t *FindReferencesTool) Init(_ context.Context) error { return nil }
func (t *FindReferencesTool) Close() error                 { return nil }

func (t *FindReferencesTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		SymbolName     string `json:"symbol_name"`
		DefinitionFile string `json:"definition_file"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	res, err := t.engine.FindReferences(a.SymbolName, a.DefinitionFile, 0)
	if err != nil {
		return tool.Failf("%v", err), nil
	}
	return tool.Ok(map[string]any{
		"symbol":     a.SymbolName,
		"references": res.Matches,
		"count":      res.Total,
		"truncated":  res.Truncated,
	}), nil
}

// FindDefinitionTool returns the most likely definition site of a name.
type FindDefinitionTool struct {
	engine *index.Engine
}

// NewFindDefinitionTool creates the find_definition tool.
func NewFindDefinitionTool(engine *index.Engine) *FindDefinitionTool {
	return &FindDefinitionTool{engine: engine}
}

func (t *FindDefinitionTool) Name() string { return "find_definition" }
func (t *FindDefinitionTool) Description() string {
	return "심볼이 정의된 위치를 찾습니다."
}
func (t *FindDefinitionTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *FindDefinitionTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "symbol_name", Type: "string", Description: "심볼 이름", Required: true},
	)
}

func (t *FindDefinitionTool) Init(_ context.Context) error { return nil }
func (t *FindDefinitionTool) Close() error                 { return nil }

func (t *FindDefinitionTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		SymbolName string `json:"symbol_name"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	loc, ok := t.engine.FindDefinition(a.SymbolName)
	if !ok {
		return tool.Failf("정의를 찾을 수 없습니다: %s", a.SymbolName), nil
	}
	return tool.Ok(symbolEntry(loc)), nil
}

var importRe = regexp.MustCompile(`^\s*(?:import\s+.+|from\s+[\w.]+\s+import\s+.+|import\s*\{[^}]*\}\s*from\s*['"][^'"]+['"])`)

// extractImports returns the import lines of a source file, trimmed.
func extractImports(content string) []string {
	var out []string
	for _, line := range util.SplitLines(content) {
		if importRe.MatchString(line) {
			out = append(out, strings.TrimSpace(line))
			if len(out) >= 30 {
				break
			}
		}
	}
	return out
}

// AnalyzeCodeTool reports a file's structure: symbols, imports and
// size, using the session cache when the file was read before.
type AnalyzeCodeTool struct {
	root string
	sess *session.Session
}

// NewAnalyzeCodeTool creates the analyze_code tool.
func NewAnalyzeCodeTool(root string) *AnalyzeCodeTool {
	return &AnalyzeCodeTool{root: root}
}

// WithSession returns a copy preferring the session's symbol cache.
func (t *AnalyzeCodeTool) WithSession(sess *session.Session) *AnalyzeCodeTool {
	return &AnalyzeCodeTool{root: t.root, sess: sess}
}

func (t *AnalyzeCodeTool) Name() string { return "analyze_code" }
func (t *AnalyzeCodeTool) Description() string {
	return "파일의 구조(클래스/함수/임포트)를 분석합니다."
}
func (t *AnalyzeCodeTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *AnalyzeCodeTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "file_path", Type: "string", Description: "워크스페이스 기준 상대 경로", Required: true},
	)
}

func (t *AnalyzeCodeTool) Init(_ context.Context) error { return nil }
func (t *AnalyzeCodeTool) Close() error                 { return nil }

func (t *AnalyzeCodeTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	report, res := t.Analyze(a.FilePath)
	if report == nil {
		return res, nil
	}
	return tool.Ok(report), nil
}

// Analyze builds the structure report; shared with the IDE's
// /api/analyze/file endpoint. A nil report means failure.
func (t *AnalyzeCodeTool) Analyze(rel string) (map[string]any, tool.Result) {
	abs, err := resolvePath(t.root, rel)
	if err != nil {
		return nil, tool.Failf("%v", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, tool.Failf("파일을 찾을 수 없습니다: %s", rel)
	}
	if txn.IsBinary(data) {
		return nil, tool.Failf("바이너리 파일은 분석할 수 없습니다: %s", rel)
	}
	content := string(data)
	path := filepath.ToSlash(rel)
	ext := strings.ToLower(filepath.Ext(path))

	var syms []index.Symbol
	if t.sess != nil {
		if cached, ok := t.sess.CachedSymbols(path); ok {
			syms = cached
		}
	}
	if syms == nil {
		syms = index.ExtractSymbols(content, ext)
		if t.sess != nil {
			t.sess.CacheSymbols(path, syms)
		}
	}

	var classes, functions, constants []map[string]any
	for _, s := range syms {
		entry := symbolEntry(index.SymbolLocation{File: path, Symbol: s})
		switch s.Kind {
		case "class":
			classes = append(classes, entry)
		case "function":
			functions = append(functions, entry)
		default:
			constants = append(constants, entry)
		}
	}

	return map[string]any{
		"path":        path,
		"language":    LanguageFor(path),
		"total_lines": util.CountLines(content),
		"classes":     classes,
		"functions":   functions,
		"constants":   constants,
		"imports":     extractImports(content),
	}, tool.Result{}
}

// ExplainCodeTool returns a code slice together with its structural
// context so the model can explain it.
type ExplainCodeTool struct {
	root string
}

// NewExplainCodeTool creates the explain_code tool.
func NewExplainCodeTool(root string) *ExplainCodeTool {
	return &ExplainCodeTool{root: root}
}

func (t *ExplainCodeTool) Name() string { return "explain_code" }
func (t *ExplainCodeTool) Description() string {
	return "지정한 코드 구간과 주변 구조 정보를 가져옵니다."
}
func (t *ExplainCodeTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *ExplainCodeTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "file_path", Type: "string", Description: "워크스페이스 기준 상대 경로", Required: true},
		tool.SchemaParam{Name: "start_line", Type: "integer", Description: "시작 줄 (기본 1)"},
		tool.SchemaParam{Name: "end_line", Type: "integer", Description: "끝 줄 (기본 start+50)"},
	)
}

func (t *ExplainCodeTool) Init(_ context.Context) error { return nil }
func (t *ExplainCodeTool) Close() error                 { return nil }

func (t *ExplainCodeTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		FilePath  string `json:"file_path"`
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	abs, err := resolvePath(t.root, a.FilePath)
	if err != nil {
		return tool.Failf("%v", err), nil
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return tool.Failf("파일을 찾을 수 없습니다: %s", a.FilePath), nil
	}
	if txn.IsBinary(data) {
		return tool.Failf("바이너리 파일은 읽을 수 없습니다: %s", a.FilePath), nil
	}
	content := string(data)
	total := util.CountLines(content)
	lines := util.SplitLines(content)
	if len(lines) > total {
		lines = lines[:total]
	}

	start := a.StartLine
	if start < 1 {
		start = 1
	}
	end := a.EndLine
	if end <= 0 {
		end = start + 50
	}
	if end > total {
		end = total
	}
	if start > total {
		return tool.Failf("잘못된 줄 범위: %d (전체 %d줄)", start, total), nil
	}

	var sb strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&sb, "%d: %s\n", i, lines[i-1])
	}

	path := filepath.ToSlash(a.FilePath)
	syms := index.ExtractSymbols(content, strings.ToLower(filepath.Ext(path)))
	var enclosing []map[string]any
	for _, s := range syms {
		if s.Line <= end {
			enclosing = append(enclosing, symbolEntry(index.SymbolLocation{File: path, Symbol: s}))
		}
	}

	return tool.Ok(map[string]any{
		"path":        path,
		"language":    LanguageFor(path),
		"showing":     fmt.Sprintf("%d-%d", start, end),
		"total_lines": total,
		"code":        strings.TrimSuffix(sb.String(), "\n"),
		"symbols":     enclosing,
	}), nil
}
