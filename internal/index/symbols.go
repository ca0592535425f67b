package index

import (
	"regexp"
	"strings"
)

// symbolExtensions lists the languages the extractor understands.
var symbolExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
}

// ExtractSymbols parses source text and returns classes, functions and
// constants with their line numbers. Unsupported extensions return nil.
func ExtractSymbols(content, ext string) []Symbol {
	switch ext {
	case ".py":
		return extractPythonSymbols(content)
	case ".js", ".ts", ".jsx", ".tsx":
		return extractJSSymbols(content)
	default:
		return nil
	}
}

var (
	pyClassRe    = regexp.MustCompile(`^(\s*)class\s+(\w+)\s*(?:\(([^)]*)\))?\s*:`)
	pyFuncRe     = regexp.MustCompile(`^(\s*)(async\s+)?def\s+(\w+)\s*\(([^)]*)`)
	pyDecoRe     = regexp.MustCompile(`^\s*@([\w.]+)`)
	pyConstRe    = regexp.MustCompile(`^([A-Z_][A-Z0-9_]*)\s*=`)
	tripleQuotes = []string{`"""`, `'''`}
)

// pyBlock tracks an open class so nested defs register as its methods.
type pyBlock struct {
	symbolIdx int // index into result slice, -1 for non-class blocks
	indent    int
}

// extractPythonSymbols is a line-oriented scan: classes (with bases and
// method names), functions (with args, async flag, decorators) and
// module-level UPPER_CASE constants. Docstring bodies are skipped so
// example code inside them does not produce phantom symbols.
func extractPythonSymbols(content string) []Symbol {
	var (
		symbols    []Symbol
		decorators []string
		stack      []pyBlock
		inString   string // open triple-quote delimiter, "" when outside
	)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if inString != "" {
			if strings.Contains(line, inString) {
				inString = ""
			}
			continue
		}
		if open := tripleQuoteOpen(line); open != "" {
			inString = open
			continue
		}

		if m := pyDecoRe.FindStringSubmatch(line); m != nil {
			decorators = append(decorators, m[1])
			continue
		}

		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			indent := len(m[1])
			stack = popBlocks(stack, indent)
			sym := Symbol{
				Name:       m[2],
				Kind:       "class",
				Line:       i + 1,
				Bases:      splitArgs(m[3]),
				Decorators: decorators,
			}
			symbols = append(symbols, sym)
			stack = append(stack, pyBlock{symbolIdx: len(symbols) - 1, indent: indent})
			decorators = nil
			continue
		}

		if m := pyFuncRe.FindStringSubmatch(line); m != nil {
			indent := len(m[1])
			stack = popBlocks(stack, indent)
			sym := Symbol{
				Name:       m[3],
				Kind:       "function",
				Line:       i + 1,
				IsAsync:    m[2] != "",
				Args:       splitArgs(m[4]),
				Decorators: decorators,
			}
			if len(stack) > 0 {
				if top := stack[len(stack)-1]; top.symbolIdx >= 0 {
					symbols[top.symbolIdx].Methods = append(symbols[top.symbolIdx].Methods, sym.Name)
				}
			}
			symbols = append(symbols, sym)
			stack = append(stack, pyBlock{symbolIdx: -1, indent: indent})
			decorators = nil
			continue
		}

		decorators = nil

		if m := pyConstRe.FindStringSubmatch(line); m != nil {
			symbols = append(symbols, Symbol{Name: m[1], Kind: "constant", Line: i + 1})
		}
	}
	return symbols
}

// tripleQuoteOpen reports the delimiter of a triple-quoted string that the
// line opens without closing, or "" if the line is balanced.
func tripleQuoteOpen(line string) string {
	for _, q := range tripleQuotes {
		if strings.Count(line, q)%2 == 1 {
			return q
		}
	}
	return ""
}

func popBlocks(stack []pyBlock, indent int) []pyBlock {
	for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
		stack = stack[:len(stack)-1]
	}
	return stack
}

// splitArgs splits a parameter/base list, stripping annotations, defaults
// and whitespace. Returns nil for an empty list.
func splitArgs(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		name := part
		if idx := strings.IndexAny(name, ":="); idx >= 0 {
			name = name[:idx]
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var (
	jsClassRe    = regexp.MustCompile(`\bclass\s+(\w+)(?:\s+extends\s+([\w.]+))?`)
	jsFuncRe     = regexp.MustCompile(`\b(async\s+)?function\s*\*?\s*(\w+)\s*\(`)
	jsArrowRe    = regexp.MustCompile(`\b(?:const|let|var)\s+(\w+)\s*=\s*(async\s*)?(?:\([^)]*\)|\w+)\s*=>`)
	jsFuncExprRe = regexp.MustCompile(`\b(?:const|let|var)\s+(\w+)\s*=\s*(async\s+)?function\b`)
	jsConstRe    = regexp.MustCompile(`\b(?:const|var)\s+([A-Z_][A-Z0-9_]*)\s*=`)
)

// extractJSSymbols matches declaration patterns line by line: classes,
// named functions, arrow/function-expression bindings and UPPER_CASE
// constants.
func extractJSSymbols(content string) []Symbol {
	var symbols []Symbol
	seen := make(map[string]bool) // name:line dedup across patterns

	add := func(s Symbol) {
		key := s.Name + ":" + s.Kind
		if seen[key] {
			return
		}
		seen[key] = true
		symbols = append(symbols, s)
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") {
			continue
		}
		lineNo := i + 1

		if m := jsClassRe.FindStringSubmatch(line); m != nil {
			sym := Symbol{Name: m[1], Kind: "class", Line: lineNo}
			if m[2] != "" {
				sym.Bases = []string{m[2]}
			}
			add(sym)
		}
		if m := jsFuncRe.FindStringSubmatch(line); m != nil {
			add(Symbol{Name: m[2], Kind: "function", Line: lineNo, IsAsync: m[1] != ""})
		}
		if m := jsArrowRe.FindStringSubmatch(line); m != nil {
			add(Symbol{Name: m[1], Kind: "function", Line: lineNo, IsAsync: strings.TrimSpace(m[2]) != ""})
		}
		if m := jsFuncExprRe.FindStringSubmatch(line); m != nil {
			add(Symbol{Name: m[1], Kind: "function", Line: lineNo, IsAsync: strings.TrimSpace(m[2]) != ""})
		}
		if m := jsConstRe.FindStringSubmatch(line); m != nil {
			add(Symbol{Name: m[1], Kind: "constant", Line: lineNo})
		}
	}
	return symbols
}
