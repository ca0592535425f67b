package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/maeum-ai/maeum/internal/index"
	"github.com/maeum-ai/maeum/internal/prompt"
	"github.com/maeum-ai/maeum/internal/runtime"
	"github.com/maeum-ai/maeum/internal/session"
	"github.com/maeum-ai/maeum/internal/tool"
)

// Prompt section budgets. The model is sensitive to section adjacency,
// so Build keeps the order fixed and only omits empty sections.
const (
	promptTreeDepth    = 3
	promptTreeLines    = 150
	promptUserContext  = 3000 // chars of editor selection / buffer
	promptSummaryChars = 2000
	promptRecentTurns  = 4
	promptTurnChars    = 200
	promptMaxFunctions = 10
)

// PromptBuilder assembles the system prompt for each loop iteration.
type PromptBuilder struct {
	workspace string
	engine    *index.Engine
	registry  *tool.Registry
	loader    *prompt.Loader
	host      runtime.Info

	catalogOnce sync.Once
	catalog     string
}

// NewPromptBuilder creates a builder. The tool catalog is rendered
// lazily on first use and cached — it is static per build.
func NewPromptBuilder(workspace string, engine *index.Engine, registry *tool.Registry, loader *prompt.Loader, host runtime.Info) *PromptBuilder {
	return &PromptBuilder{
		workspace: workspace,
		engine:    engine,
		registry:  registry,
		loader:    loader,
		host:      host,
	}
}

// Build renders the full system prompt for a session in the fixed
// section order: role preamble, environment, workspace tree, tool
// catalog, editor hints, user context, compressed summary, recent
// turns, symbol summary.
func (b *PromptBuilder) Build(sess *session.Session) string {
	var sb strings.Builder

	// 1. Role preamble and rules.
	if role := b.loader.Load("role.md"); role != "" {
		sb.WriteString(strings.TrimSpace(role))
		sb.WriteString("\n\n")
	}
	if rules := b.loader.LoadUserRules(); strings.TrimSpace(rules) != "" {
		sb.WriteString("## 사용자 규칙\n")
		sb.WriteString(strings.TrimSpace(rules))
		sb.WriteString("\n\n")
	}

	// 2. Environment.
	sb.WriteString("## 환경\n")
	fmt.Fprintf(&sb, "- 작업 디렉토리: %s\n", b.workspace)
	fmt.Fprintf(&sb, "- 플랫폼: %s/%s, 셸: %s\n", b.host.OS, b.host.Arch, b.host.Shell)
	fmt.Fprintf(&sb, "- 도구: %s\n\n", b.host.StatusLine())

	// 3. Workspace tree.
	if tree := b.engine.Tree(promptTreeDepth, promptTreeLines); tree != "" {
		sb.WriteString("## 프로젝트 구조\n")
		sb.WriteString(tree)
		sb.WriteString("\n\n")
	}

	// 4. Tool catalog.
	sb.WriteString("## 사용 가능한 도구\n")
	sb.WriteString(b.toolCatalog())
	sb.WriteString("\n")

	// 5-6. Editor hints.
	current, tabs := sess.Hints()
	if current != nil && current.Path != "" {
		sb.WriteString("## 현재 파일\n")
		fmt.Fprintf(&sb, "- 경로: %s\n", current.Path)
		if current.Language != "" {
			fmt.Fprintf(&sb, "- 언어: %s\n", current.Language)
		}
		if current.TotalLines > 0 {
			fmt.Fprintf(&sb, "- 전체 줄 수: %d\n", current.TotalLines)
		}
		if current.CursorLine > 0 {
			fmt.Fprintf(&sb, "- 커서 위치: %d번째 줄\n", current.CursorLine)
		}
		sb.WriteString("\n")
	}
	if len(tabs) > 0 {
		sb.WriteString("## 열린 탭\n")
		for _, tab := range tabs {
			fmt.Fprintf(&sb, "- %s\n", tab)
		}
		sb.WriteString("\n")
	}

	// 7. User context (selection or buffer excerpt).
	if uc := sess.UserContext(); strings.TrimSpace(uc) != "" {
		sb.WriteString("## 사용자 컨텍스트\n")
		sb.WriteString(truncateRunes(uc, promptUserContext))
		sb.WriteString("\n\n")
	}

	// 8. Compressed summary of evicted turns.
	if summary := sess.Summary(); summary != "" {
		sb.WriteString("## 이전 대화 요약\n")
		sb.WriteString(truncateRunes(summary, promptSummaryChars))
		sb.WriteString("\n\n")
	}

	// 9. Recent turns verbatim, truncated per message.
	if recent := recentTurns(sess, promptRecentTurns); recent != "" {
		sb.WriteString("## 최근 대화\n")
		sb.WriteString(recent)
		sb.WriteString("\n")
	}

	// 10. Symbol summary of files read this session.
	if syms := symbolSummary(sess); syms != "" {
		sb.WriteString("## 읽은 파일의 구조\n")
		sb.WriteString(syms)
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func (b *PromptBuilder) toolCatalog() string {
	b.catalogOnce.Do(func() {
		b.catalog = b.registry.Catalog()
	})
	return b.catalog
}

// recentTurns renders the last n conversation turns, each truncated.
func recentTurns(sess *session.Session, n int) string {
	history := sess.History()
	if len(history) == 0 {
		return ""
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	var sb strings.Builder
	for _, t := range history {
		fmt.Fprintf(&sb, "[%s] %s\n", roleLabel(t.Role), truncateRunes(t.Content, promptTurnChars))
	}
	return sb.String()
}

func roleLabel(role string) string {
	switch role {
	case session.RoleUser:
		return "사용자"
	case session.RoleAssistant:
		return "어시스턴트"
	case session.RoleTool:
		return "도구"
	default:
		return role
	}
}

// symbolSummary writes one paragraph per file previously read in the
// session: classes with their methods, then up to promptMaxFunctions
// function names.
func symbolSummary(sess *session.Session) string {
	paths := sess.SymbolPaths()
	if len(paths) == 0 {
		return ""
	}
	sort.Strings(paths)

	var sb strings.Builder
	for _, path := range paths {
		syms, ok := sess.CachedSymbols(path)
		if !ok || len(syms) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n", path)
		var functions []string
		for _, s := range syms {
			switch s.Kind {
			case "class":
				if len(s.Methods) > 0 {
					fmt.Fprintf(&sb, "- class %s: %s\n", s.Name, strings.Join(s.Methods, ", "))
				} else {
					fmt.Fprintf(&sb, "- class %s\n", s.Name)
				}
			case "function":
				functions = append(functions, s.Name)
			}
		}
		if len(functions) > 0 {
			if len(functions) > promptMaxFunctions {
				functions = functions[:promptMaxFunctions]
			}
			fmt.Fprintf(&sb, "- 함수: %s\n", strings.Join(functions, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// truncateRunes cuts s to at most n runes, marking the cut.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
