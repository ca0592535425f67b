// Package builtin implements the native tool set: file reading and
// editing, shell and git execution, workspace search, symbol queries,
// project memory and planning artifacts. Every tool resolves paths
// inside the workspace root and reports domain failures through the
// tool.Result envelope.
package builtin

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// resolvePath joins a relative path under root and rejects absolute
// paths and parent-directory escapes.
func resolvePath(root, rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("경로가 워크스페이스를 벗어납니다: %s", rel)
	}
	return filepath.Join(root, clean), nil
}

// truncateChars keeps at most max runes, appending a truncation note.
func truncateChars(s string, max int) string {
	count := 0
	for i := range s {
		count++
		if count > max {
			return s[:i] + fmt.Sprintf("\n... (출력 잘림, 전체 %d자)", utf8.RuneCountInString(s))
		}
	}
	return s
}

// languageByExt maps common extensions to editor language ids.
var languageByExt = map[string]string{
	".py": "python", ".js": "javascript", ".ts": "typescript",
	".jsx": "javascript", ".tsx": "typescript",
	".go": "go", ".rs": "rust", ".java": "java", ".kt": "kotlin",
	".c": "c", ".cpp": "cpp", ".h": "c", ".hpp": "cpp",
	".cs": "csharp", ".rb": "ruby", ".php": "php", ".swift": "swift",
	".html": "html", ".css": "css", ".scss": "scss",
	".json": "json", ".yaml": "yaml", ".yml": "yaml", ".toml": "toml",
	".md": "markdown", ".sh": "shell", ".sql": "sql", ".xml": "xml",
}

// LanguageFor returns the editor language id for a path, or "plaintext".
func LanguageFor(path string) string {
	if lang, ok := languageByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "plaintext"
}
