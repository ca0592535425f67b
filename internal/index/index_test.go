package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func buildEngine(t *testing.T, root string) *Engine {
	t.Helper()
	eng, err := NewEngine(root)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	eng.Build(true)
	return eng
}

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		path string
		want FileType
	}{
		{"tests/test_app.py", FileTypeTest},
		{"src/app.spec.ts", FileTypeTest},
		{"config/settings.py", FileTypeConfig},
		{"docker-compose.yml", FileTypeConfig},
		{"README.md", FileTypeDoc},
		{"docs/guide.rst", FileTypeDoc},
		{"data/users.csv", FileTypeData},
		{"src/server.py", FileTypeSource},
	}
	for _, tt := range tests {
		if got := DetectFileType(tt.path); got != tt.want {
			t.Errorf("DetectFileType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFilePriority(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{"main.py", 100},
		{"pkg/__init__.py", 80},
		{"shallow.rb", 70},
		{"a/b/src/deep.rb", 60},
		{"x/y/z/api/handler.rb", 50},
		{"x/y/z/random.rb", 10},
	}
	for _, tt := range tests {
		if got := FilePriority(tt.path); got != tt.want {
			t.Errorf("FilePriority(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
}

func TestExtractPythonSymbols(t *testing.T) {
	src := `"""Module docstring.

class NotReal:
    pass
"""
MAX_SIZE = 10

@register
class Greeter(Base, Mixin):
    def greet(self, name: str = "world") -> str:
        return name

    async def fetch(self):
        pass

def top_level(a, b):
    return a + b
`
	syms := extractPythonSymbols(src)

	byName := map[string]Symbol{}
	for _, s := range syms {
		byName[s.Name] = s
	}

	if _, ok := byName["NotReal"]; ok {
		t.Error("symbol inside docstring should be skipped")
	}
	c, ok := byName["MAX_SIZE"]
	if !ok || c.Kind != "constant" || c.Line != 6 {
		t.Errorf("MAX_SIZE = %+v, want constant at line 6", c)
	}

	g, ok := byName["Greeter"]
	if !ok {
		t.Fatal("Greeter class missing")
	}
	if g.Kind != "class" || g.Line != 9 {
		t.Errorf("Greeter = %+v, want class at line 9", g)
	}
	if want := []string{"Base", "Mixin"}; !equalStrings(g.Bases, want) {
		t.Errorf("Greeter bases = %v, want %v", g.Bases, want)
	}
	if want := []string{"register"}; !equalStrings(g.Decorators, want) {
		t.Errorf("Greeter decorators = %v, want %v", g.Decorators, want)
	}
	if want := []string{"greet", "fetch"}; !equalStrings(g.Methods, want) {
		t.Errorf("Greeter methods = %v, want %v", g.Methods, want)
	}

	fetch, ok := byName["fetch"]
	if !ok || !fetch.IsAsync {
		t.Errorf("fetch = %+v, want async function", fetch)
	}
	top, ok := byName["top_level"]
	if !ok || top.Kind != "function" {
		t.Fatalf("top_level = %+v, want function", top)
	}
	if want := []string{"a", "b"}; !equalStrings(top.Args, want) {
		t.Errorf("top_level args = %v, want %v", top.Args, want)
	}
	greet := byName["greet"]
	if want := []string{"self", "name"}; !equalStrings(greet.Args, want) {
		t.Errorf("greet args = %v, want %v (annotations stripped)", greet.Args, want)
	}
}

func TestExtractJSSymbols(t *testing.T) {
	src := `// comment with class Fake
const MAX_RETRIES = 3;
class Router extends EventEmitter {}
function handle(req) {}
const fetchData = async (url) => {};
let render = function () {};
`
	syms := extractJSSymbols(src)
	byName := map[string]Symbol{}
	for _, s := range syms {
		byName[s.Name] = s
	}

	if _, ok := byName["Fake"]; ok {
		t.Error("commented-out class should be skipped")
	}
	if s := byName["MAX_RETRIES"]; s.Kind != "constant" || s.Line != 2 {
		t.Errorf("MAX_RETRIES = %+v", s)
	}
	r := byName["Router"]
	if r.Kind != "class" || !equalStrings(r.Bases, []string{"EventEmitter"}) {
		t.Errorf("Router = %+v", r)
	}
	if s := byName["handle"]; s.Kind != "function" || s.IsAsync {
		t.Errorf("handle = %+v", s)
	}
	if s := byName["fetchData"]; s.Kind != "function" || !s.IsAsync {
		t.Errorf("fetchData = %+v, want async function", s)
	}
	if s := byName["render"]; s.Kind != "function" {
		t.Errorf("render = %+v, want function", s)
	}
}

func TestSearchModes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", "def process_data():\n    return DATA\n")
	writeFile(t, root, "lib/util.py", "def helper():\n    pass  # processing step\n")
	writeFile(t, root, "node_modules/dep/index.js", "function processData() {}\n")
	eng := buildEngine(t, root)

	t.Run("exact case-insensitive", func(t *testing.T) {
		res, err := eng.Search("PROCESS", Options{Mode: ModeExact})
		if err != nil {
			t.Fatal(err)
		}
		if res.Total != 2 {
			t.Fatalf("total = %d, want 2 (ignored dirs excluded): %+v", res.Total, res.Matches)
		}
	})

	t.Run("exact case-sensitive", func(t *testing.T) {
		res, err := eng.Search("process_data", Options{Mode: ModeExact, CaseSensitive: true})
		if err != nil {
			t.Fatal(err)
		}
		if res.Total != 1 || res.Matches[0].File != "main.py" {
			t.Fatalf("matches = %+v", res.Matches)
		}
	})

	t.Run("whole word", func(t *testing.T) {
		res, err := eng.Search("process", Options{Mode: ModeExact, WholeWord: true})
		if err != nil {
			t.Fatal(err)
		}
		// "process_data" must not match; "processing" must not match.
		if res.Total != 0 {
			t.Fatalf("whole-word matches = %+v, want none", res.Matches)
		}
	})

	t.Run("fuzzy", func(t *testing.T) {
		res, err := eng.Search("pdata", Options{Mode: ModeFuzzy})
		if err != nil {
			t.Fatal(err)
		}
		if res.Total == 0 {
			t.Fatal("fuzzy should match process_data")
		}
		if res.Matches[0].Score != 0.9 {
			t.Errorf("fuzzy score = %v, want 0.9", res.Matches[0].Score)
		}
	})

	t.Run("regex", func(t *testing.T) {
		res, err := eng.Search(`def\s+\w+\(\)`, Options{Mode: ModeRegex})
		if err != nil {
			t.Fatal(err)
		}
		if res.Total != 2 {
			t.Fatalf("regex total = %d, want 2", res.Total)
		}
	})

	t.Run("invalid regex", func(t *testing.T) {
		if _, err := eng.Search(`([`, Options{Mode: ModeRegex}); err == nil {
			t.Fatal("want error for invalid regex")
		}
	})

	t.Run("file pattern", func(t *testing.T) {
		res, err := eng.Search("def", Options{Mode: ModeExact, FilePattern: "util.py"})
		if err != nil {
			t.Fatal(err)
		}
		if res.Total != 1 || res.Matches[0].File != "lib/util.py" {
			t.Fatalf("matches = %+v", res.Matches)
		}
	})

	t.Run("symbol mode", func(t *testing.T) {
		res, err := eng.Search("process_data", Options{Mode: ModeSymbol})
		if err != nil {
			t.Fatal(err)
		}
		if res.Total != 1 || res.Matches[0].Score != 1.0 || res.Matches[0].Kind != "function" {
			t.Fatalf("symbol matches = %+v", res.Matches)
		}
	})
}

func TestSearchRankingAndTruncation(t *testing.T) {
	root := t.TempDir()
	// Root-level file has priority 70, nested file 10.
	writeFile(t, root, "notes.py", "needle\n")
	var deep strings.Builder
	for i := 0; i < 100; i++ {
		deep.WriteString("needle line\n")
	}
	writeFile(t, root, "a/b/c/noise.py", deep.String())
	eng := buildEngine(t, root)

	res, err := eng.Search("needle", Options{MaxResults: 50})
	if err != nil {
		t.Fatal(err)
	}
	// Noisy file capped at 50/10 = 5 matches.
	if res.Total != 6 {
		t.Fatalf("total = %d, want 6 (1 + capped 5)", res.Total)
	}
	if res.Matches[0].File != "notes.py" {
		t.Errorf("first match = %s, want higher-priority notes.py", res.Matches[0].File)
	}

	// Many matching files exceed max_results.
	for i := 0; i < 30; i++ {
		writeFile(t, root, fmt.Sprintf("pkg%02d/x.py", i), "needle\nneedle\nneedle\n")
	}
	eng.Build(true)
	res, err = eng.Search("needle", Options{MaxResults: 50})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 50 {
		t.Fatalf("returned = %d, want 50", len(res.Matches))
	}
	if !res.Truncated {
		t.Error("truncated flag not set")
	}
	if res.Total <= 50 {
		t.Errorf("total = %d, want > 50", res.Total)
	}
}

func TestSearchUncappedFileOverBudget(t *testing.T) {
	root := t.TempDir()
	var big strings.Builder
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&big, "needle line %d\n", i+1)
	}
	writeFile(t, root, "big.py", big.String())
	eng := buildEngine(t, root)

	res, err := eng.Search("needle", Options{MaxResults: 50, PerFileCap: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Matches) != 50 {
		t.Fatalf("returned = %d, want 50", len(res.Matches))
	}
	if !res.Truncated {
		t.Error("truncated flag not set")
	}
	// First 50 matches in file order.
	for i, m := range res.Matches {
		if m.Line != i+1 {
			t.Fatalf("match %d at line %d, want %d", i, m.Line, i+1)
		}
	}
}

func TestSearchCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "alpha\n")
	eng := buildEngine(t, root)

	first, err := eng.Search("alpha", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if eng.Stats().CacheSize != 1 {
		t.Fatalf("cache size = %d, want 1", eng.Stats().CacheSize)
	}
	second, err := eng.Search("alpha", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if first.Total != second.Total || len(second.Matches) != len(first.Matches) {
		t.Fatal("cached result differs")
	}

	// Rebuild clears the cache.
	eng.Build(true)
	if eng.Stats().CacheSize != 0 {
		t.Errorf("cache size after rebuild = %d, want 0", eng.Stats().CacheSize)
	}
}

func TestResultCacheEviction(t *testing.T) {
	c := newResultCache(2)
	c.Put("a", Result{Query: "a"})
	c.Put("b", Result{Query: "b"})
	c.Put("c", Result{Query: "c"})
	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("entry b should survive")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("entry c should survive")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestFindSymbolOrdering(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def helper():\n    pass\n")
	writeFile(t, root, "b.py", "x = 1\n\ndef helper():\n    pass\n\ndef helper_extra():\n    pass\n")
	eng := buildEngine(t, root)

	locs := eng.FindSymbol("helper", 0)
	if len(locs) != 3 {
		t.Fatalf("locations = %d, want 3", len(locs))
	}
	// Both exact definitions first, ordered by file then line; the
	// substring match trails.
	if locs[0].File != "a.py" || locs[0].Symbol.Line != 1 {
		t.Errorf("locs[0] = %+v", locs[0])
	}
	if locs[1].File != "b.py" || locs[1].Symbol.Line != 3 {
		t.Errorf("locs[1] = %+v", locs[1])
	}
	if locs[2].Symbol.Name != "helper_extra" {
		t.Errorf("locs[2] = %+v, want substring match last", locs[2])
	}
}

func TestFindReferencesExcludesDefinition(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "def.py", "def target():\n    pass\n")
	writeFile(t, root, "use.py", "from def import target\ntarget()\nretargeted = 1\n")
	eng := buildEngine(t, root)

	res, err := eng.FindReferences("target", "def.py", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 {
		t.Fatalf("references = %+v, want 2 whole-word hits in use.py", res.Matches)
	}
	for _, m := range res.Matches {
		if m.File == "def.py" {
			t.Errorf("definition file should be excluded: %+v", m)
		}
	}
}

func TestFindDefinitionPrefersClass(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "fn.py", "def Widget():\n    pass\n")
	writeFile(t, root, "cls.py", "class Widget:\n    pass\n")
	eng := buildEngine(t, root)

	loc, ok := eng.FindDefinition("Widget")
	if !ok {
		t.Fatal("definition not found")
	}
	if loc.Symbol.Kind != "class" || loc.File != "cls.py" {
		t.Errorf("definition = %+v, want the class", loc)
	}
}

func TestFindFilesByGlob(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", "x = 1\n")
	writeFile(t, root, "sub/extra.py", "y = 2\n")
	writeFile(t, root, "sub/readme.md", "# hi\n")
	eng := buildEngine(t, root)

	nodes := eng.FindFiles("*.py", 0)
	if len(nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(nodes))
	}
	if nodes[0].RelPath != "main.py" {
		t.Errorf("first = %s, want main.py (priority 100)", nodes[0].RelPath)
	}

	nodes = eng.FindFiles("sub/*.py", 0)
	if len(nodes) != 1 || nodes[0].RelPath != "sub/extra.py" {
		t.Fatalf("path glob nodes = %+v", nodes)
	}
}

func TestBuildReusesUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def one():\n    pass\n")
	eng := buildEngine(t, root)

	if got := eng.Stats().TotalSymbols; got != 1 {
		t.Fatalf("symbols = %d, want 1", got)
	}

	// Incremental rebuild keeps the entry; a new file appears alongside.
	writeFile(t, root, "b.py", "def two():\n    pass\n")
	stats := eng.Build(false)
	if stats.IndexedFiles != 2 {
		t.Fatalf("indexed = %d, want 2", stats.IndexedFiles)
	}
	if got := eng.Stats().TotalSymbols; got != 2 {
		t.Errorf("symbols = %d, want 2", got)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
