package index

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Mode selects the query interpretation for Engine.Search.
type Mode string

const (
	ModeExact    Mode = "exact"
	ModeFuzzy    Mode = "fuzzy"
	ModeRegex    Mode = "regex"
	ModeSemantic Mode = "semantic" // no embedding backend; behaves as exact
	ModeSymbol   Mode = "symbol"
)

// ParseMode normalizes a mode string, defaulting to exact.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeFuzzy:
		return ModeFuzzy
	case ModeRegex:
		return ModeRegex
	case ModeSemantic:
		return ModeSemantic
	case ModeSymbol:
		return ModeSymbol
	default:
		return ModeExact
	}
}

// Options tunes one search call. Zero values mean: exact mode, all files,
// 50 results, case-insensitive, substring match.
type Options struct {
	Mode          Mode
	FilePattern   string
	MaxResults    int
	CaseSensitive bool
	WholeWord     bool
	ContextLines  int // lines of before/after context per match
	PerFileCap    int // max matches per file; 0 = MaxResults/10, -1 = unlimited
}

const (
	defaultMaxResults = 50
	maxLineContent    = 200 // runes kept per matched line
)

// Match is one search hit.
type Match struct {
	File      string   `json:"file"`
	Line      int      `json:"line"`
	Column    int      `json:"column,omitempty"`
	Content   string   `json:"content"`
	MatchText string   `json:"match_text,omitempty"`
	Before    []string `json:"before_context,omitempty"`
	After     []string `json:"after_context,omitempty"`
	Score     float64  `json:"score"`
	Symbol    string   `json:"symbol,omitempty"`
	Kind      string   `json:"kind,omitempty"`

	priority int
}

// Result is the envelope for one search call.
type Result struct {
	Query     string  `json:"query"`
	Mode      Mode    `json:"mode"`
	Matches   []Match `json:"matches"`
	Total     int     `json:"total"`
	Truncated bool    `json:"truncated"`
	TookMs    int64   `json:"took_ms"`
}

// Search runs a content or symbol query against the index. Results are
// ranked by file priority, then score, then path and line for stable
// ordering. Identical queries are served from a bounded cache until the
// next Build.
func (e *Engine) Search(query string, opts Options) (Result, error) {
	if opts.Mode == "" {
		opts.Mode = ModeExact
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}

	key := fmt.Sprintf("%s:%s:%s:%v:%v:%d:%d:%d",
		query, opts.Mode, opts.FilePattern, opts.CaseSensitive, opts.WholeWord,
		opts.ContextLines, opts.MaxResults, opts.PerFileCap)
	e.mu.RLock()
	cached, hit := e.cache.Get(key)
	e.mu.RUnlock()
	if hit {
		return cached, nil
	}

	start := time.Now()
	var (
		matches []Match
		err     error
	)
	if opts.Mode == ModeSymbol {
		matches = e.searchSymbols(query, opts)
	} else {
		matches, err = e.searchContent(query, opts)
		if err != nil {
			return Result{}, err
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})

	res := Result{
		Query:     query,
		Mode:      opts.Mode,
		Total:     len(matches),
		Truncated: len(matches) > opts.MaxResults,
		TookMs:    time.Since(start).Milliseconds(),
	}
	if len(matches) > opts.MaxResults {
		matches = matches[:opts.MaxResults]
	}
	res.Matches = matches

	e.mu.Lock()
	e.cache.Put(key, res)
	e.mu.Unlock()
	return res, nil
}

// compileQuery turns (query, opts) into a regexp per mode. Fuzzy joins the
// query's runes with ".*" so characters may be separated by anything.
func compileQuery(query string, opts Options) (*regexp.Regexp, float64, error) {
	var pattern string
	score := 1.0
	switch opts.Mode {
	case ModeFuzzy:
		parts := make([]string, 0, utf8.RuneCountInString(query))
		for _, r := range query {
			parts = append(parts, regexp.QuoteMeta(string(r)))
		}
		pattern = strings.Join(parts, ".*")
		score = 0.9
	case ModeRegex:
		pattern = query
	default: // exact, semantic
		pattern = regexp.QuoteMeta(query)
	}

	if opts.WholeWord {
		pattern = `\b(?:` + pattern + `)\b`
	}
	if !opts.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, 0, fmt.Errorf("잘못된 검색 패턴: %w", err)
	}
	return re, score, nil
}

// searchContent scans candidate files in parallel. Each file contributes at
// most maxResults/10 matches so one noisy file cannot crowd out the rest.
func (e *Engine) searchContent(query string, opts Options) ([]Match, error) {
	re, score, err := compileQuery(query, opts)
	if err != nil {
		return nil, err
	}

	candidates := e.selectFiles(opts.FilePattern)
	perFileCap := opts.PerFileCap
	switch {
	case perFileCap < 0:
		// Uncapped: collect one past the result budget so the truncated
		// flag still trips when a single file exceeds it. Within a file
		// matches are in line order, so the extra matches can never rank
		// into the returned window.
		perFileCap = opts.MaxResults + 1
	case perFileCap == 0:
		perFileCap = opts.MaxResults / 10
		if perFileCap < 1 {
			perFileCap = 1
		}
	}

	var (
		mu      sync.Mutex
		matches []Match
		wg      sync.WaitGroup
	)
	jobs := make(chan *FileNode)
	for i := 0; i < e.maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for node := range jobs {
				found := e.scanFile(node, re, score, perFileCap, opts.ContextLines)
				if len(found) == 0 {
					continue
				}
				mu.Lock()
				matches = append(matches, found...)
				mu.Unlock()
			}
		}()
	}
	for _, node := range candidates {
		jobs <- node
	}
	close(jobs)
	wg.Wait()
	return matches, nil
}

// scanFile reads one file from disk and returns up to cap matches in line
// order. Read errors are treated as no matches.
func (e *Engine) scanFile(node *FileNode, re *regexp.Regexp, score float64, perFileCap, contextLines int) []Match {
	data, err := os.ReadFile(filepath.Join(e.root, filepath.FromSlash(node.RelPath)))
	if err != nil {
		return nil
	}
	lines := strings.Split(string(data), "\n")
	var out []Match
	for i, line := range lines {
		loc := re.FindStringIndex(line)
		if loc == nil {
			continue
		}
		m := Match{
			File:      node.RelPath,
			Line:      i + 1,
			Column:    utf8.RuneCountInString(line[:loc[0]]) + 1,
			Content:   trimContent(line),
			MatchText: line[loc[0]:loc[1]],
			Score:     score,
			priority:  node.Priority,
		}
		if contextLines > 0 {
			m.Before = contextSlice(lines, i-contextLines, i)
			m.After = contextSlice(lines, i+1, i+1+contextLines)
		}
		out = append(out, m)
		if len(out) >= perFileCap {
			break
		}
	}
	return out
}

// contextSlice returns lines[from:to] clamped to valid bounds.
func contextSlice(lines []string, from, to int) []string {
	if from < 0 {
		from = 0
	}
	if to > len(lines) {
		to = len(lines)
	}
	if from >= to {
		return nil
	}
	return append([]string(nil), lines[from:to]...)
}

func trimContent(line string) string {
	s := strings.TrimSpace(line)
	if utf8.RuneCountInString(s) <= maxLineContent {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLineContent]) + "..."
}

// selectFiles returns the indexed nodes matching the glob pattern. Patterns
// containing a separator match against the relative path, otherwise against
// the base name. Empty pattern selects everything.
func (e *Engine) selectFiles(pattern string) []*FileNode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*FileNode, 0, len(e.fileIndex))
	for _, node := range e.fileIndex {
		if pattern != "" && !matchGlob(pattern, node.RelPath, node.Name) {
			continue
		}
		out = append(out, node)
	}
	return out
}

func matchGlob(pattern, relPath, name string) bool {
	if strings.ContainsRune(pattern, '/') {
		ok, _ := filepath.Match(pattern, relPath)
		return ok
	}
	ok, _ := filepath.Match(pattern, name)
	return ok
}

// searchSymbols matches the query against indexed symbol names. Exact name
// matches score 1.0, substring matches 0.8.
func (e *Engine) searchSymbols(query string, opts Options) []Match {
	cmp := query
	if !opts.CaseSensitive {
		cmp = strings.ToLower(query)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	var matches []Match
	for name, locs := range e.symbolIndex {
		candidate := name
		if !opts.CaseSensitive {
			candidate = strings.ToLower(name)
		}
		var score float64
		switch {
		case candidate == cmp:
			score = 1.0
		case strings.Contains(candidate, cmp):
			score = 0.8
		default:
			continue
		}
		for _, loc := range locs {
			if opts.FilePattern != "" && !matchGlob(opts.FilePattern, loc.File, filepath.Base(loc.File)) {
				continue
			}
			prio := 10
			if node, ok := e.fileIndex[loc.File]; ok {
				prio = node.Priority
			}
			matches = append(matches, Match{
				File:     loc.File,
				Line:     loc.Symbol.Line,
				Content:  symbolSignature(loc.Symbol),
				Score:    score,
				Symbol:   loc.Symbol.Name,
				Kind:     loc.Symbol.Kind,
				priority: prio,
			})
		}
	}
	return matches
}

// symbolSignature renders a one-line summary of a symbol for match output.
func symbolSignature(s Symbol) string {
	switch s.Kind {
	case "class":
		if len(s.Bases) > 0 {
			return fmt.Sprintf("class %s(%s)", s.Name, strings.Join(s.Bases, ", "))
		}
		return "class " + s.Name
	case "function":
		prefix := ""
		if s.IsAsync {
			prefix = "async "
		}
		return fmt.Sprintf("%sdef %s(%s)", prefix, s.Name, strings.Join(s.Args, ", "))
	default:
		return s.Kind + " " + s.Name
	}
}

// FindFiles returns indexed files whose path or name matches the glob,
// highest-priority first.
func (e *Engine) FindFiles(pattern string, maxResults int) []*FileNode {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	nodes := e.selectFiles(pattern)
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Priority != nodes[j].Priority {
			return nodes[i].Priority > nodes[j].Priority
		}
		return nodes[i].RelPath < nodes[j].RelPath
	})
	if len(nodes) > maxResults {
		nodes = nodes[:maxResults]
	}
	return nodes
}

// FindSymbol looks a name up in the symbol index. Exact matches come first,
// then substring matches; within each group results are ordered by file and
// line.
func (e *Engine) FindSymbol(name string, maxResults int) []SymbolLocation {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	lower := strings.ToLower(name)

	e.mu.RLock()
	var exact, partial []SymbolLocation
	for symName, locs := range e.symbolIndex {
		switch {
		case symName == name:
			exact = append(exact, locs...)
		case strings.Contains(strings.ToLower(symName), lower):
			partial = append(partial, locs...)
		}
	}
	e.mu.RUnlock()

	order := func(list []SymbolLocation) {
		sort.Slice(list, func(i, j int) bool {
			if list[i].File != list[j].File {
				return list[i].File < list[j].File
			}
			return list[i].Symbol.Line < list[j].Symbol.Line
		})
	}
	order(exact)
	order(partial)

	out := append(exact, partial...)
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// FindReferences searches for whole-word occurrences of a symbol name,
// optionally excluding the file that defines it.
func (e *Engine) FindReferences(name, definitionFile string, maxResults int) (Result, error) {
	if maxResults <= 0 {
		maxResults = 500
	}
	res, err := e.Search(name, Options{
		Mode:       ModeExact,
		WholeWord:  true,
		MaxResults: maxResults,
	})
	if err != nil {
		return Result{}, err
	}
	if definitionFile == "" {
		return res, nil
	}
	defPath := filepath.ToSlash(definitionFile)
	filtered := res.Matches[:0]
	for _, m := range res.Matches {
		if m.File == defPath {
			continue
		}
		filtered = append(filtered, m)
	}
	res.Matches = filtered
	res.Total = len(filtered)
	return res, nil
}

// FindDefinition returns the most likely definition site for a name:
// exact-name symbols only, classes before functions before the rest.
func (e *Engine) FindDefinition(name string) (SymbolLocation, bool) {
	locs := e.FindSymbol(name, defaultMaxResults)
	var best SymbolLocation
	bestRank := -1
	for _, loc := range locs {
		if loc.Symbol.Name != name {
			continue
		}
		rank := 1
		switch loc.Symbol.Kind {
		case "class":
			rank = 3
		case "function":
			rank = 2
		}
		if rank > bestRank {
			best, bestRank = loc, rank
		}
	}
	return best, bestRank >= 0
}
