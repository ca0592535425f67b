// Package index maintains a precomputed view of the workspace so that
// repeated search tools do not walk the filesystem on every call.
//
// The engine walks the workspace once (or incrementally on refresh),
// classifies each file by role and priority, extracts code symbols for
// supported languages, and serves content/symbol/glob queries from the
// resulting in-memory index.
package index

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// maxFileSize excludes files larger than this from the index.
const maxFileSize = 10 << 20 // 10 MiB

// ignoreDirs are directory names pruned during the workspace walk.
// Dot-directories are pruned unconditionally on top of this set.
var ignoreDirs = map[string]bool{
	".git": true, "node_modules": true, "__pycache__": true,
	".venv": true, "venv": true, "env": true,
	"dist": true, "build": true, ".next": true, ".nuxt": true,
	"coverage": true, ".idea": true, ".vscode": true,
	"vendor": true, "target": true, "bin": true, "obj": true,
	".cache": true, ".pytest_cache": true, ".mypy_cache": true,
	".tox": true, "eggs": true, ".eggs": true,
	"htmlcov": true, ".hypothesis": true, ".nox": true, ".ruff_cache": true,
}

// ignoreFiles are glob patterns for files excluded from the index
// (binaries, lockfiles, media, archives).
var ignoreFiles = []string{
	"*.pyc", "*.pyo", "*.pyd", "*.so", "*.dylib", "*.dll",
	"*.class", "*.jar", "*.war", "*.ear",
	"*.min.js", "*.min.css", "*.map",
	"*.lock", "package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	"*.log", "*.tmp", "*.temp", "*.swp", "*.swo",
	".DS_Store", "Thumbs.db", "*.ico", "*.icns",
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.bmp", "*.svg", "*.webp",
	"*.mp3", "*.mp4", "*.wav", "*.avi", "*.mov",
	"*.pdf", "*.doc", "*.docx", "*.xls", "*.xlsx",
	"*.zip", "*.tar", "*.gz", "*.rar", "*.7z",
	"*.exe", "*.bin", "*.o", "*.a",
	"*.woff", "*.woff2", "*.ttf", "*.eot", "*.otf",
}

// searchableExtensions limits the index to text files worth searching.
var searchableExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".mjs": true, ".cjs": true,
	".java": true, ".kt": true, ".scala": true, ".groovy": true,
	".c": true, ".cpp": true, ".cc": true, ".cxx": true,
	".h": true, ".hpp": true, ".hxx": true,
	".cs": true, ".fs": true, ".vb": true,
	".go": true, ".rs": true, ".swift": true, ".m": true, ".mm": true,
	".rb": true, ".php": true, ".pl": true, ".pm": true, ".lua": true,
	".r": true, ".jl": true,
	".sh": true, ".bash": true, ".zsh": true, ".fish": true,
	".ps1": true, ".bat": true, ".cmd": true,
	".sql": true, ".graphql": true, ".gql": true,
	".hs": true, ".elm": true, ".clj": true, ".cljs": true,
	".erl": true, ".ex": true, ".exs": true,
	".dart": true, ".v": true, ".zig": true, ".nim": true, ".cr": true,
	".html": true, ".htm": true, ".xhtml": true, ".xml": true,
	".xsl": true, ".xslt": true,
	".css": true, ".scss": true, ".sass": true, ".less": true, ".styl": true,
	".vue": true, ".svelte": true, ".astro": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".ini": true, ".cfg": true, ".conf": true, ".env": true,
	".properties": true, ".plist": true,
	".md": true, ".markdown": true, ".rst": true, ".txt": true, ".text": true,
	".adoc": true, ".asciidoc": true, ".org": true,
	".dockerfile": true, ".containerfile": true,
	".tf": true, ".hcl": true,
	".prisma": true, ".proto": true, ".sol": true,
}

// entryPointFiles rank highest in search ordering.
var entryPointFiles = map[string]bool{
	"main.py": true, "app.py": true, "index.py": true, "cli.py": true,
	"server.py": true, "__main__.py": true,
	"main.ts": true, "main.js": true, "index.ts": true, "index.js": true,
	"app.ts": true, "app.js": true,
	"main.go": true, "main.rs": true, "Main.java": true,
	"setup.py": true, "pyproject.toml": true,
	"package.json": true, "tsconfig.json": true,
	"Cargo.toml": true, "go.mod": true, "pom.xml": true, "build.gradle": true,
	"Makefile": true, "CMakeLists.txt": true,
	"Dockerfile": true, "docker-compose.yml": true,
	"README.md": true, "CHANGELOG.md": true,
}

// FileType classifies a file's role in the workspace.
type FileType string

const (
	FileTypeSource FileType = "source"
	FileTypeConfig FileType = "config"
	FileTypeDoc    FileType = "doc"
	FileTypeTest   FileType = "test"
	FileTypeData   FileType = "data"
	FileTypeOther  FileType = "other"
)

// Symbol is one extracted code entity.
type Symbol struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"` // "class", "function", "constant", "variable"
	Line       int      `json:"line"`
	Args       []string `json:"args,omitempty"`
	Decorators []string `json:"decorators,omitempty"`
	IsAsync    bool     `json:"is_async,omitempty"`
	Bases      []string `json:"bases,omitempty"`
	Methods    []string `json:"methods,omitempty"`
}

// FileNode is one entry in the workspace index.
type FileNode struct {
	RelPath   string    `json:"relative_path"`
	Name      string    `json:"name"`
	Extension string    `json:"extension"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"modified_time"`
	Type      FileType  `json:"file_type"`
	Priority  int       `json:"priority"`
	Symbols   []Symbol  `json:"symbols,omitempty"`
}

// SymbolLocation is one entry in the by-name symbol index.
type SymbolLocation struct {
	File   string `json:"file"`
	Symbol Symbol `json:"symbol"`
}

// BuildStats summarizes one indexing pass.
type BuildStats struct {
	TotalFiles   int           `json:"total_files"`
	IndexedFiles int           `json:"indexed_files"`
	Symbols      int           `json:"symbols"`
	Errors       int           `json:"errors"`
	Elapsed      time.Duration `json:"-"`
	ElapsedMs    int64         `json:"elapsed_ms"`
}

// Stats is the live snapshot returned by Engine.Stats.
type Stats struct {
	IndexedFiles int            `json:"indexed_files"`
	TotalSymbols int            `json:"total_symbols"`
	CacheSize    int            `json:"cache_size"`
	FileTypes    map[string]int `json:"file_types"`
}

// Engine indexes one workspace root and serves queries against it.
// All exported methods are safe for concurrent use.
type Engine struct {
	root       string
	maxWorkers int

	extraIgnore map[string]bool // per-workspace additions to ignoreDirs

	mu          sync.RWMutex
	fileIndex   map[string]*FileNode        // rel path → node
	symbolIndex map[string][]SymbolLocation // symbol name → locations
	cache       *resultCache
}

// NewEngine creates an engine rooted at root. The root is resolved to an
// absolute path; queries return paths relative to it.
func NewEngine(root string) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Engine{
		root:        abs,
		maxWorkers:  defaultWorkers(),
		fileIndex:   make(map[string]*FileNode),
		symbolIndex: make(map[string][]SymbolLocation),
		cache:       newResultCache(100),
	}, nil
}

// Root returns the absolute workspace root the engine indexes.
func (e *Engine) Root() string { return e.root }

// SetExtraIgnoreDirs adds workspace-specific directory names to the
// prune set. Call before the first Build.
func (e *Engine) SetExtraIgnoreDirs(names []string) {
	if len(names) == 0 {
		return
	}
	e.extraIgnore = make(map[string]bool, len(names))
	for _, n := range names {
		e.extraIgnore[n] = true
	}
}

func defaultWorkers() int {
	n := runtime.NumCPU() + 4
	if n > 32 {
		n = 32
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Build walks the workspace and (re)builds the index. With force=false,
// files whose modification time matches the existing entry are reused
// without re-reading; force=true re-extracts everything.
func (e *Engine) Build(force bool) BuildStats {
	start := time.Now()
	paths := e.walk()

	type indexed struct {
		node *FileNode
		err  error
	}

	jobs := make(chan string)
	results := make(chan indexed)

	var wg sync.WaitGroup
	for i := 0; i < e.maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rel := range jobs {
				node, err := e.indexFile(rel, force)
				results <- indexed{node: node, err: err}
			}
		}()
	}

	go func() {
		for _, p := range paths {
			jobs <- p
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	stats := BuildStats{TotalFiles: len(paths)}
	fresh := make(map[string]*FileNode, len(paths))
	for r := range results {
		if r.err != nil {
			stats.Errors++
			continue
		}
		if r.node == nil {
			continue // oversized, skipped
		}
		fresh[r.node.RelPath] = r.node
		stats.IndexedFiles++
		stats.Symbols += len(r.node.Symbols)
	}

	e.mu.Lock()
	e.fileIndex = fresh
	e.rebuildSymbolIndexLocked()
	e.cache.Clear()
	e.mu.Unlock()

	stats.Elapsed = time.Since(start)
	stats.ElapsedMs = stats.Elapsed.Milliseconds()
	log.Printf("[Index] Indexed %d/%d files, %d symbols in %v",
		stats.IndexedFiles, stats.TotalFiles, stats.Symbols, stats.Elapsed.Round(time.Millisecond))
	return stats
}

// walk collects candidate relative paths, pruning the ignore sets.
func (e *Engine) walk() []string {
	var paths []string
	_ = filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		name := d.Name()
		if d.IsDir() {
			if path == e.root {
				return nil
			}
			if ignoreDirs[name] || e.extraIgnore[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		for _, pat := range ignoreFiles {
			if ok, _ := filepath.Match(pat, name); ok {
				return nil
			}
		}
		ext := strings.ToLower(filepath.Ext(name))
		if !searchableExtensions[ext] {
			return nil
		}
		rel, relErr := filepath.Rel(e.root, path)
		if relErr != nil {
			return nil
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	return paths
}

// indexFile builds (or reuses) the FileNode for one relative path.
// Returns (nil, nil) for files over the size cap.
func (e *Engine) indexFile(rel string, force bool) (*FileNode, error) {
	abs := filepath.Join(e.root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxFileSize {
		return nil, nil
	}

	if !force {
		e.mu.RLock()
		existing, ok := e.fileIndex[rel]
		e.mu.RUnlock()
		if ok && existing.ModTime.Equal(info.ModTime()) {
			return existing, nil
		}
	}

	name := filepath.Base(rel)
	ext := strings.ToLower(filepath.Ext(name))
	node := &FileNode{
		RelPath:   rel,
		Name:      name,
		Extension: ext,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		Type:      DetectFileType(rel),
		Priority:  FilePriority(rel),
	}

	if symbolExtensions[ext] {
		if data, readErr := os.ReadFile(abs); readErr == nil {
			node.Symbols = ExtractSymbols(string(data), ext)
		}
	}
	return node, nil
}

// rebuildSymbolIndexLocked rebuilds the by-name symbol map.
// Caller must hold e.mu.
func (e *Engine) rebuildSymbolIndexLocked() {
	e.symbolIndex = make(map[string][]SymbolLocation)
	for rel, node := range e.fileIndex {
		for _, s := range node.Symbols {
			if s.Name == "" {
				continue
			}
			e.symbolIndex[s.Name] = append(e.symbolIndex[s.Name], SymbolLocation{File: rel, Symbol: s})
		}
	}
}

// Files returns a snapshot of all indexed nodes.
func (e *Engine) Files() []*FileNode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*FileNode, 0, len(e.fileIndex))
	for _, n := range e.fileIndex {
		out = append(out, n)
	}
	return out
}

// Lookup returns the indexed node for a relative path.
func (e *Engine) Lookup(rel string) (*FileNode, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, ok := e.fileIndex[filepath.ToSlash(rel)]
	return n, ok
}

// Stats returns a snapshot of index size and composition.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Stats{
		IndexedFiles: len(e.fileIndex),
		CacheSize:    e.cache.Len(),
		FileTypes:    make(map[string]int),
	}
	for _, n := range e.fileIndex {
		s.TotalSymbols += len(n.Symbols)
		s.FileTypes[string(n.Type)]++
	}
	return s
}

// DetectFileType classifies a file by path heuristics.
func DetectFileType(relPath string) FileType {
	pathLower := strings.ToLower(filepath.ToSlash(relPath))
	name := strings.ToLower(filepath.Base(pathLower))

	if strings.Contains(name, "test") || strings.Contains(name, "spec") ||
		strings.Contains(pathLower, "/tests/") || strings.Contains(pathLower, "/test/") {
		return FileTypeTest
	}

	configMarkers := []string{
		"config", "settings", ".env", ".rc", ".conf",
		"setup.py", "setup.cfg", "pyproject.toml",
		"package.json", "tsconfig", "webpack", "vite",
		"dockerfile", "docker-compose", "makefile",
		".yaml", ".yml", ".toml", ".ini",
	}
	for _, m := range configMarkers {
		if strings.Contains(pathLower, m) {
			return FileTypeConfig
		}
	}

	docMarkers := []string{".md", ".rst", ".txt", "readme", "changelog", "license", "contributing"}
	for _, m := range docMarkers {
		if strings.Contains(pathLower, m) {
			return FileTypeDoc
		}
	}

	if strings.HasSuffix(pathLower, ".json") || strings.HasSuffix(pathLower, ".csv") ||
		strings.HasSuffix(pathLower, ".xml") {
		return FileTypeData
	}

	return FileTypeSource
}

// FilePriority ranks files for search ordering: entry points and root-level
// files surface before deeply nested ones.
func FilePriority(relPath string) int {
	slashed := filepath.ToSlash(relPath)
	name := filepath.Base(slashed)

	switch {
	case entryPointFiles[name]:
		return 100
	case name == "main.py" || name == "app.py" || name == "index.py" || name == "cli.py" ||
		name == "main.ts" || name == "main.js" || name == "index.ts" || name == "index.js":
		return 90
	case name == "__init__.py":
		return 80
	case strings.Count(slashed, "/") <= 1:
		return 70
	case strings.Contains(slashed, "/src/") || strings.HasPrefix(slashed, "src/") ||
		strings.Contains(slashed, "/lib/") || strings.HasPrefix(slashed, "lib/"):
		return 60
	}

	lower := strings.ToLower(slashed)
	for _, marker := range []string{"api", "core", "service", "util", "helper"} {
		if strings.Contains(lower, marker) {
			return 50
		}
	}
	return 10
}
