// Package memory persists long-lived project knowledge in a MAEUM.md
// file at the workspace root. The file is plain markdown with a fixed
// section set so both the user and the model can read and edit it.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileName is the memory file kept at the workspace root.
const FileName = "MAEUM.md"

// Sections are the only headings update_project_memory may append to,
// in file order.
var Sections = []string{"architecture", "patterns", "rules", "context", "decisions"}

var sectionHeaders = map[string]string{
	"architecture": "## Architecture",
	"patterns":     "## Patterns",
	"rules":        "## Rules",
	"context":      "## Context",
	"decisions":    "## Decisions",
}

const template = `# 프로젝트 메모리

이 파일은 Maeum이 프로젝트에 대해 기억해야 할 내용을 보관합니다.
섹션별로 타임스탬프가 붙은 항목이 추가됩니다.

## Architecture

## Patterns

## Rules

## Context

## Decisions
`

// Store serializes access to one workspace's memory file.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewStore creates a store for the workspace root.
func NewStore(root string) *Store {
	return &Store{path: filepath.Join(root, FileName), now: time.Now}
}

// Path returns the absolute path of the memory file.
func (s *Store) Path() string { return s.path }

// Read returns the current file content, or ok=false when the file has
// never been written.
func (s *Store) Read() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// Append adds a timestamped bullet under the given section, creating
// the file from the template on first use. The section must be one of
// Sections.
func (s *Store) Append(section, content string) error {
	header, ok := sectionHeaders[strings.ToLower(strings.TrimSpace(section))]
	if !ok {
		return fmt.Errorf("알 수 없는 섹션: %s (사용 가능: %s)", section, strings.Join(Sections, ", "))
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("content가 비어 있습니다")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	text := template
	if data, err := os.ReadFile(s.path); err == nil {
		text = string(data)
	} else if !os.IsNotExist(err) {
		return err
	}

	bullet := fmt.Sprintf("- [%s] %s", s.now().Format("2006-01-02 15:04"), content)
	updated, err := insertUnderSection(text, header, bullet)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(updated), 0o644)
}

// insertUnderSection places the bullet at the end of the section, i.e.
// just before the next "## " heading or at end of file. A missing
// section heading is appended first.
func insertUnderSection(text, header, bullet string) (string, error) {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == header {
			start = i
			break
		}
	}
	if start == -1 {
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		return text + "\n" + header + "\n" + bullet + "\n", nil
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "## ") {
			end = i
			break
		}
	}
	// Trim trailing blank lines inside the section so the bullet sits
	// directly under the existing entries.
	insert := end
	for insert > start+1 && strings.TrimSpace(lines[insert-1]) == "" {
		insert--
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:insert]...)
	out = append(out, bullet)
	out = append(out, lines[insert:]...)
	return strings.Join(out, "\n"), nil
}
