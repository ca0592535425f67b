package agent

import (
	"strings"
	"testing"

	"github.com/maeum-ai/maeum/internal/index"
	"github.com/maeum-ai/maeum/internal/prompt"
	"github.com/maeum-ai/maeum/internal/runtime"
	"github.com/maeum-ai/maeum/internal/session"
	"github.com/maeum-ai/maeum/internal/tool"
)

func newBuilder(t *testing.T) *PromptBuilder {
	t.Helper()
	root := t.TempDir()
	engine, err := index.NewEngine(root)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return NewPromptBuilder(root, engine, tool.NewRegistry(), prompt.NewLoader("", ""), runtime.Info{OS: "linux", Arch: "amd64", Shell: "bash"})
}

func TestPromptBuilder_SectionsAndOrder(t *testing.T) {
	b := newBuilder(t)
	sess := newTestSession(t)
	sess.SetHints(&session.FileHint{Path: "src/app.py", Language: "python", CursorLine: 42}, []string{"src/app.py", "README.md"})
	sess.SetUserContext("def main(): ...")
	sess.Append(session.RoleUser, "질문입니다")

	got := b.Build(sess)

	sections := []string{"## 환경", "## 사용 가능한 도구", "## 현재 파일", "## 열린 탭", "## 사용자 컨텍스트", "## 최근 대화"}
	last := -1
	for _, sec := range sections {
		i := strings.Index(got, sec)
		if i < 0 {
			t.Fatalf("missing section %q in:\n%s", sec, got)
		}
		if i < last {
			t.Errorf("section %q out of order", sec)
		}
		last = i
	}
	if !strings.Contains(got, "src/app.py") || !strings.Contains(got, "커서 위치: 42번째 줄") {
		t.Errorf("file hint not rendered:\n%s", got)
	}
	if !strings.Contains(got, "[사용자] 질문입니다") {
		t.Errorf("recent turn missing:\n%s", got)
	}
}

func TestPromptBuilder_OmitsEmptySections(t *testing.T) {
	b := newBuilder(t)
	got := b.Build(newTestSession(t))

	for _, absent := range []string{"## 현재 파일", "## 열린 탭", "## 사용자 컨텍스트", "## 이전 대화 요약", "## 읽은 파일의 구조"} {
		if strings.Contains(got, absent) {
			t.Errorf("empty section %q must be omitted", absent)
		}
	}
}

func TestPromptBuilder_SymbolSummary(t *testing.T) {
	b := newBuilder(t)
	sess := newTestSession(t)
	sess.CacheSymbols("svc/user.py", []index.Symbol{
		{Name: "UserService", Kind: "class", Methods: []string{"create", "delete"}},
		{Name: "helper", Kind: "function"},
	})

	got := b.Build(sess)
	if !strings.Contains(got, "## 읽은 파일의 구조") {
		t.Fatalf("symbol section missing:\n%s", got)
	}
	if !strings.Contains(got, "class UserService: create, delete") {
		t.Errorf("class line missing:\n%s", got)
	}
	if !strings.Contains(got, "함수: helper") {
		t.Errorf("function line missing:\n%s", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("가나다라", 2); got != "가나…" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes("ab", 5); got != "ab" {
		t.Errorf("got %q", got)
	}
}
