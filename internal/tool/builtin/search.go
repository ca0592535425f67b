package builtin

import (
	"context"
	"encoding/json"

	"github.com/maeum-ai/maeum/internal/index"
	"github.com/maeum-ai/maeum/internal/tool"
)

// SearchCodeTool runs a content query against the workspace index with
// a selectable mode (exact/fuzzy/regex/semantic/symbol).
type SearchCodeTool struct {
	engine *index.Engine
}

// NewSearchCodeTool creates the search_code tool.
func NewSearchCodeTool(engine *index.Engine) *SearchCodeTool {
	return &SearchCodeTool{engine: engine}
}

func (t *SearchCodeTool) Name() string { return "search_code" }
func (t *SearchCodeTool) Description() string {
	return "워크스페이스 코드를 검색합니다. mode: exact(기본)/fuzzy/regex/symbol."
}
func (t *SearchCodeTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *SearchCodeTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "query", Type: "string", Description: "검색어", Required: true},
		tool.SchemaParam{Name: "mode", Type: "string", Description: "검색 방식", Enum: []string{"exact", "fuzzy", "regex", "semantic", "symbol"}},
		tool.SchemaParam{Name: "file_pattern", Type: "string", Description: "파일 이름/경로 glob 필터"},
		tool.SchemaParam{Name: "max_results", Type: "integer", Description: "최대 결과 수 (기본 50)"},
		tool.SchemaParam{Name: "case_sensitive", Type: "boolean", Description: "대소문자 구분"},
		tool.SchemaParam{Name: "whole_word", Type: "boolean", Description: "단어 단위 일치"},
		tool.SchemaParam{Name: "context_lines", Type: "integer", Description: "매치 전후 문맥 줄 수"},
	)
}

func (t *SearchCodeTool) Init(_ context.Context) error { return nil }
func (t *SearchCodeTool) Close() error                 { return nil }

type searchCodeArgs struct {
	Query         string `json:"query"`
	Mode          string `json:"mode"`
	FilePattern   string `json:"file_pattern"`
	MaxResults    int    `json:"max_results"`
	CaseSensitive bool   `json:"case_sensitive"`
	WholeWord     bool   `json:"whole_word"`
	ContextLines  int    `json:"context_lines"`
}

func (t *SearchCodeTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a searchCodeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	res, err := t.engine.Search(a.Query, index.Options{
		Mode:          index.ParseMode(a.Mode),
		FilePattern:   a.FilePattern,
		MaxResults:    a.MaxResults,
		CaseSensitive: a.CaseSensitive,
		WholeWord:     a.WholeWord,
		ContextLines:  a.ContextLines,
	})
	if err != nil {
		return tool.Failf("%v", err), nil
	}
	return tool.Ok(map[string]any{
		"query":     res.Query,
		"mode":      string(res.Mode),
		"matches":   res.Matches,
		"total":     res.Total,
		"truncated": res.Truncated,
	}), nil
}

// GrepTool is a regex search over indexed files; unlike search_code a
// single file may fill the whole result budget.
type GrepTool struct {
	engine *index.Engine
}

// NewGrepTool creates the grep tool.
func NewGrepTool(engine *index.Engine) *GrepTool {
	return &GrepTool{engine: engine}
}

func (t *GrepTool) Name() string { return "grep" }
func (t *GrepTool) Description() string {
	return "정규식으로 파일 내용을 검색합니다. 매치별 파일/줄/열/전후 문맥을 반환합니다."
}
func (t *GrepTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *GrepTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "pattern", Type: "string", Description: "정규식 패턴", Required: true},
		tool.SchemaParam{Name: "path", Type: "string", Description: "검색 범위 경로 glob (선택)"},
		tool.SchemaParam{Name: "file_pattern", Type: "string", Description: "파일 이름 glob 필터"},
		tool.SchemaParam{Name: "case_sensitive", Type: "boolean", Description: "대소문자 구분"},
		tool.SchemaParam{Name: "whole_word", Type: "boolean", Description: "단어 단위 일치"},
		tool.SchemaParam{Name: "context_lines", Type: "integer", Description: "매치 전후 문맥 줄 수"},
		tool.SchemaParam{Name: "max_results", Type: "integer", Description: "최대 결과 수 (기본 50)"},
	)
}

func (t *GrepTool) Init(_ context.Context) error { return nil }
func (t *GrepTool) Close() error                 { return nil }

type grepArgs struct {
	Pattern       string `json:"pattern"`
	Path          string `json:"path"`
	FilePattern   string `json:"file_pattern"`
	CaseSensitive bool   `json:"case_sensitive"`
	WholeWord     bool   `json:"whole_word"`
	ContextLines  int    `json:"context_lines"`
	MaxResults    int    `json:"max_results"`
}

func (t *GrepTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a grepArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	pattern := a.FilePattern
	if pattern == "" {
		pattern = a.Path
	}
	res, err := t.engine.Search(a.Pattern, index.Options{
		Mode:          index.ModeRegex,
		FilePattern:   pattern,
		MaxResults:    a.MaxResults,
		CaseSensitive: a.CaseSensitive,
		WholeWord:     a.WholeWord,
		ContextLines:  a.ContextLines,
		PerFileCap:    -1,
	})
	if err != nil {
		return tool.Failf("%v", err), nil
	}
	return tool.Ok(map[string]any{
		"pattern":   a.Pattern,
		"matches":   res.Matches,
		"total":     res.Total,
		"truncated": res.Truncated,
	}), nil
}

// GlobTool matches file names and relative paths with shell-style
// globs over the index.
type GlobTool struct {
	engine *index.Engine
}

// NewGlobTool creates the glob tool.
func NewGlobTool(engine *index.Engine) *GlobTool {
	return &GlobTool{engine: engine}
}

func (t *GlobTool) Name() string { return "glob" }
func (t *GlobTool) Description() string {
	return "glob 패턴으로 파일을 찾습니다 (예: *.py, src/*.ts)."
}
func (t *GlobTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *GlobTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "pattern", Type: "string", Description: "glob 패턴", Required: true},
		tool.SchemaParam{Name: "max_results", Type: "integer", Description: "최대 결과 수 (기본 50)"},
	)
}

func (t *GlobTool) Init(_ context.Context) error { return nil }
func (t *GlobTool) Close() error                 { return nil }

func (t *GlobTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		Pattern    string `json:"pattern"`
		MaxResults int    `json:"max_results"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	nodes := t.engine.FindFiles(a.Pattern, a.MaxResults)
	files := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		files = append(files, map[string]any{
			"path":      n.RelPath,
			"size":      n.Size,
			"file_type": string(n.Type),
		})
	}
	return tool.Ok(map[string]any{
		"pattern": a.Pattern,
		"files":   files,
		"count":   len(files),
	}), nil
}

// FindFilesByContentTool returns only the list of files containing a
// pattern, without per-line matches.
type FindFilesByContentTool struct {
	engine *index.Engine
}

// NewFindFilesByContentTool creates the find_files_by_content tool.
func NewFindFilesByContentTool(engine *index.Engine) *FindFilesByContentTool {
	return &FindFilesByContentTool{engine: engine}
}

func (t *FindFilesByContentTool) Name() string { return "find_files_by_content" }
func (t *FindFilesByContentTool) Description() string {
	return "특정 텍스트를 포함한 파일 목록을 찾습니다."
}
func (t *FindFilesByContentTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *FindFilesByContentTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "text", Type: "string", Description: "찾을 텍스트", Required: true},
		tool.SchemaParam{Name: "file_pattern", Type: "string", Description: "파일 이름 glob 필터"},
		tool.SchemaParam{Name: "max_results", Type: "integer", Description: "최대 파일 수 (기본 50)"},
	)
}

func (t *FindFilesByContentTool) Init(_ context.Context) error { return nil }
func (t *FindFilesByContentTool) Close() error                 { return nil }

func (t *FindFilesByContentTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		Text        string `json:"text"`
		FilePattern string `json:"file_pattern"`
		MaxResults  int    `json:"max_results"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	if a.MaxResults <= 0 {
		a.MaxResults = 50
	}
	res, err := t.engine.Search(a.Text, index.Options{
		Mode:        index.ModeExact,
		FilePattern: a.FilePattern,
		MaxResults:  a.MaxResults * 4, // several matches may share a file
	})
	if err != nil {
		return tool.Failf("%v", err), nil
	}
	seen := make(map[string]bool)
	var files []string
	for _, m := range res.Matches {
		if seen[m.File] {
			continue
		}
		seen[m.File] = true
		files = append(files, m.File)
		if len(files) >= a.MaxResults {
			break
		}
	}
	return tool.Ok(map[string]any{
		"text":  a.Text,
		"files": files,
		"count": len(files),
	}), nil
}
