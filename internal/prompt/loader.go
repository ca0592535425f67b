// Package prompt loads the LLM-facing prompt texts. Files ship
// embedded in the binary; a runtime directory can override any of them
// without a rebuild, and a workspace rules file lets the user append
// custom rules (filtered for prompt-injection phrases).
package prompt

import (
	"embed"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// defaultPrompts embeds the prompt files shipped with the binary.
//
//go:embed prompts/*
var defaultPrompts embed.FS

// promptInjectionPatterns contains lowercased substrings that indicate
// prompt injection attempts. Matching lines are dropped from user rules
// with a warning.
var promptInjectionPatterns = []string{
	"ignore previous",
	"ignore above",
	"ignore all previous",
	"disregard all",
	"disregard previous",
	"forget previous",
	"forget all previous",
	"override instructions",
	"override previous",
	"new instructions:",
	"from now on",
}

// Loader reads prompt files with caching. Safe for concurrent use.
type Loader struct {
	promptsDir string // runtime override directory (may be empty)
	rulesPath  string // workspace user-rules file (may be empty)

	mu    sync.RWMutex
	cache map[string]string
}

// NewLoader creates a loader reading overrides from promptsDir and
// user rules from rulesPath. Both may be empty.
func NewLoader(promptsDir, rulesPath string) *Loader {
	return &Loader{
		promptsDir: promptsDir,
		rulesPath:  rulesPath,
		cache:      make(map[string]string),
	}
}

// Load returns the content of the named prompt file (e.g. "role.md").
//
// Priority: disk override, then embedded default, then "".
func (l *Loader) Load(name string) string {
	cacheKey := "file:" + name

	l.mu.RLock()
	if val, ok := l.cache[cacheKey]; ok {
		l.mu.RUnlock()
		return val
	}
	l.mu.RUnlock()

	content := l.loadUncached(name)

	l.mu.Lock()
	defer l.mu.Unlock()
	if val, ok := l.cache[cacheKey]; ok {
		return val
	}
	l.cache[cacheKey] = content
	return content
}

func (l *Loader) loadUncached(name string) string {
	if l.promptsDir != "" {
		diskPath := filepath.Join(l.promptsDir, name)
		data, err := os.ReadFile(diskPath)
		if err == nil {
			return string(data)
		}
		if !os.IsNotExist(err) {
			log.Printf("[Prompt] read %q failed: %v; falling back to embedded default", diskPath, err)
		}
	}
	data, err := fs.ReadFile(defaultPrompts, "prompts/"+name)
	if err == nil {
		return string(data)
	}
	return ""
}

// LoadUserRules reads the workspace rules file, dropping lines that
// match known injection patterns. Returns "" when the file is absent.
func (l *Loader) LoadUserRules() string {
	cacheKey := "rules"

	l.mu.RLock()
	if val, ok := l.cache[cacheKey]; ok {
		l.mu.RUnlock()
		return val
	}
	l.mu.RUnlock()

	content := l.loadUserRulesUncached()

	l.mu.Lock()
	defer l.mu.Unlock()
	if val, ok := l.cache[cacheKey]; ok {
		return val
	}
	l.cache[cacheKey] = content
	return content
}

func (l *Loader) loadUserRulesUncached() string {
	if l.rulesPath == "" {
		return ""
	}
	data, err := os.ReadFile(l.rulesPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[Prompt] read user rules %q failed: %v", l.rulesPath, err)
		}
		return ""
	}
	return filterDangerousLines(string(data))
}

// filterDangerousLines drops lines matching known injection patterns.
func filterDangerousLines(content string) string {
	lines := strings.Split(content, "\n")
	safe := make([]string, 0, len(lines))
	for _, line := range lines {
		lower := strings.ToLower(line)
		dropped := false
		for _, pattern := range promptInjectionPatterns {
			if strings.Contains(lower, pattern) {
				log.Printf("[Prompt] user rules line dropped (injection pattern %q): %q", pattern, line)
				dropped = true
				break
			}
		}
		if !dropped {
			safe = append(safe, line)
		}
	}
	return strings.Join(safe, "\n")
}

// Reload clears the cache so subsequent loads re-read from disk.
func (l *Loader) Reload() {
	l.mu.Lock()
	l.cache = make(map[string]string)
	l.mu.Unlock()
}
