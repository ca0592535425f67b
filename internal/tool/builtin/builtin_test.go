package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maeum-ai/maeum/internal/memory"
	"github.com/maeum-ai/maeum/internal/tool"
	"github.com/maeum-ai/maeum/internal/txn"
)

func newTxnFixture(t *testing.T) (string, *txn.Manager) {
	t.Helper()
	root := t.TempDir()
	txns, err := txn.NewManager(root)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return root, txns
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readBack(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func args(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestResolvePath(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		rel     string
		wantErr bool
	}{
		{"a.txt", false},
		{"src/app.py", false},
		{"src/../a.txt", false},
		{"..", true},
		{"../outside.txt", true},
		{"a/../../outside.txt", true},
		{"/etc/passwd", true},
	}
	for _, tc := range tests {
		_, err := resolvePath(root, tc.rel)
		if (err != nil) != tc.wantErr {
			t.Errorf("resolvePath(%q) err = %v, wantErr %v", tc.rel, err, tc.wantErr)
		}
	}
}

func TestLanguageFor(t *testing.T) {
	tests := []struct{ path, want string }{
		{"app.py", "python"},
		{"src/Main.GO", "go"},
		{"notes.md", "markdown"},
		{"Makefile", "plaintext"},
	}
	for _, tc := range tests {
		if got := LanguageFor(tc.path); got != tc.want {
			t.Errorf("LanguageFor(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestTruncateChars(t *testing.T) {
	if got := truncateChars("abc", 10); got != "abc" {
		t.Errorf("short string changed: %q", got)
	}
	got := truncateChars(strings.Repeat("가", 20), 5)
	if !strings.HasPrefix(got, strings.Repeat("가", 5)) || !strings.Contains(got, "전체 20자") {
		t.Errorf("got %q", got)
	}
}

func TestReadFileTool_NumberedSlice(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "one\ntwo\nthree\n")

	res, err := NewReadFileTool(root).Execute(context.Background(), args(t, map[string]any{"file_path": "a.py"}))
	if err != nil || !res.Success {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
	if got := res.Get("content"); got != "1: one\n2: two\n3: three" {
		t.Errorf("content = %q", got)
	}
	if res.Get("total_lines") != 3 || res.Get("showing") != "1-3" || res.Get("has_more") != false {
		t.Errorf("fields = %+v", res.Fields)
	}
}

func TestReadFileTool_ExactRange(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "one\ntwo\nthree\nfour\n")

	res, _ := NewReadFileTool(root).Execute(context.Background(),
		args(t, map[string]any{"file_path": "a.py", "start_line": 2, "end_line": 3}))
	if !res.Success {
		t.Fatalf("res = %+v", res)
	}
	if got := res.Get("content"); got != "2: two\n3: three" {
		t.Errorf("content = %q", got)
	}
	if res.Get("showing") != "2-3" || res.Get("has_more") != true || res.Get("next_offset") != 4 {
		t.Errorf("fields = %+v", res.Fields)
	}
}

func TestReadFileTool_Failures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bin.dat", "\x00\x01\x02")
	rt := NewReadFileTool(root)

	res, _ := rt.Execute(context.Background(), args(t, map[string]any{"file_path": "missing.py"}))
	if res.Success || !strings.Contains(res.Error, "찾을 수 없습니다") {
		t.Errorf("missing file: %+v", res)
	}
	res, _ = rt.Execute(context.Background(), args(t, map[string]any{"file_path": "bin.dat"}))
	if res.Success || !strings.Contains(res.Error, "바이너리") {
		t.Errorf("binary file: %+v", res)
	}
	res, _ = rt.Execute(context.Background(), args(t, map[string]any{"file_path": "../x"}))
	if res.Success {
		t.Errorf("escape must fail: %+v", res)
	}
}

func TestWriteFileTool_CreateAndUndo(t *testing.T) {
	root, txns := newTxnFixture(t)
	wt := NewWriteFileTool(root, txns)

	res, _ := wt.Execute(context.Background(), args(t, map[string]any{"file_path": "src/new.py", "content": "print(1)\n"}))
	if !res.Success || res.Get("action") != "created" {
		t.Fatalf("res = %+v", res)
	}
	if readBack(t, root, "src/new.py") != "print(1)\n" {
		t.Error("file content mismatch")
	}

	res, _ = wt.Execute(context.Background(), args(t, map[string]any{"file_path": "src/new.py", "content": "print(2)\n"}))
	if !res.Success || res.Get("action") != "overwritten" {
		t.Fatalf("res = %+v", res)
	}

	if _, err := txns.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if readBack(t, root, "src/new.py") != "print(1)\n" {
		t.Error("undo did not restore the first write")
	}
}

func TestEditFileTool_UniqueReplace(t *testing.T) {
	root, txns := newTxnFixture(t)
	writeFile(t, root, "a.py", "x = 1\ny = 2\n")

	et := NewEditFileTool(root, txns)
	res, _ := et.Execute(context.Background(),
		args(t, map[string]any{"file_path": "a.py", "old_text": "y = 2", "new_text": "y = 3"}))
	if !res.Success || res.Get("edit_type") != "text_replace" {
		t.Fatalf("res = %+v", res)
	}
	if readBack(t, root, "a.py") != "x = 1\ny = 3\n" {
		t.Errorf("content = %q", readBack(t, root, "a.py"))
	}
}

func TestEditFileTool_AmbiguousMatchFails(t *testing.T) {
	root, txns := newTxnFixture(t)
	writeFile(t, root, "a.py", "x\nx\n")

	res, _ := NewEditFileTool(root, txns).Execute(context.Background(),
		args(t, map[string]any{"file_path": "a.py", "old_text": "x", "new_text": "y"}))
	if res.Success || !strings.Contains(res.Error, "2번 일치") {
		t.Fatalf("res = %+v", res)
	}
	if readBack(t, root, "a.py") != "x\nx\n" {
		t.Error("file must be untouched")
	}
	if undo, _ := txns.Counts(); undo != 0 {
		t.Errorf("undo count = %d, want 0", undo)
	}
}

func TestEditFileTool_LineRange(t *testing.T) {
	root, txns := newTxnFixture(t)
	writeFile(t, root, "a.py", "one\ntwo\nthree\n")

	res, _ := NewEditFileTool(root, txns).Execute(context.Background(),
		args(t, map[string]any{"file_path": "a.py", "start_line": 2, "end_line": 2, "new_content": "TWO\nTWO-B"}))
	if !res.Success || res.Get("edit_type") != "line_range" {
		t.Fatalf("res = %+v", res)
	}
	if got := readBack(t, root, "a.py"); got != "one\nTWO\nTWO-B\nthree\n" {
		t.Errorf("content = %q", got)
	}
}

func TestReplaceRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		newContent string
		want       string
		wantErr    bool
	}{
		{"middle line", 2, 2, "B", "a\nB\nc\n", false},
		{"end defaults to start", 3, 0, "C", "a\nb\nC\n", false},
		{"whole file", 1, 3, "only", "only\n", false},
		{"start out of range", 4, 4, "x", "", true},
		{"end before start", 2, 1, "x", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := replaceRange("a\nb\nc\n", tc.start, tc.end, tc.newContent)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMultiEditTool_AtomicFailure(t *testing.T) {
	root, txns := newTxnFixture(t)
	writeFile(t, root, "one.py", "alpha\n")
	writeFile(t, root, "two.py", "beta\n")

	res, _ := NewMultiEditTool(root, txns).Execute(context.Background(), args(t, map[string]any{
		"description": "rename symbols",
		"edits": []map[string]string{
			{"file_path": "one.py", "old_text": "alpha", "new_text": "ALPHA"},
			{"file_path": "two.py", "old_text": "nope", "new_text": "x"},
		},
	}))
	if res.Success {
		t.Fatalf("batch with a bad edit must fail: %+v", res)
	}
	if readBack(t, root, "one.py") != "alpha\n" {
		t.Error("first file must stay untouched on batch failure")
	}
	if undo, _ := txns.Counts(); undo != 0 {
		t.Errorf("undo count = %d, want 0", undo)
	}
}

func TestMultiEditTool_ComposesSameFile(t *testing.T) {
	root, txns := newTxnFixture(t)
	writeFile(t, root, "a.py", "a b\n")

	res, _ := NewMultiEditTool(root, txns).Execute(context.Background(), args(t, map[string]any{
		"description": "two edits one file",
		"edits": []map[string]string{
			{"file_path": "a.py", "old_text": "a", "new_text": "1"},
			{"file_path": "a.py", "old_text": "b", "new_text": "2"},
		},
	}))
	if !res.Success {
		t.Fatalf("res = %+v", res)
	}
	if readBack(t, root, "a.py") != "1 2\n" {
		t.Errorf("content = %q", readBack(t, root, "a.py"))
	}
	if undo, _ := txns.Counts(); undo != 1 {
		t.Errorf("undo count = %d, want 1 transaction", undo)
	}
}

func TestBashTool_Denylist(t *testing.T) {
	bt := NewBashTool(t.TempDir())
	for _, cmd := range []string{"rm -rf /tmp/x", "echo hi && sudo rm x", "DD if=/dev/zero of=x"} {
		res, _ := bt.Execute(context.Background(), args(t, map[string]any{"command": cmd}))
		if res.Success || !strings.Contains(res.Error, "안전 제한") {
			t.Errorf("command %q must be blocked: %+v", cmd, res)
		}
	}
}

func TestBashTool_RunsInWorkspace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "marker.txt", "hello")

	res, _ := NewBashTool(root).Execute(context.Background(), args(t, map[string]any{"command": "cat marker.txt"}))
	if !res.Success {
		t.Fatalf("res = %+v", res)
	}
	if res.Get("output") != "hello" {
		t.Errorf("output = %q", res.Get("output"))
	}
}

func TestBashTool_ExitErrorIsDomainFailure(t *testing.T) {
	res, err := NewBashTool(t.TempDir()).Execute(context.Background(), args(t, map[string]any{"command": "exit 3"}))
	if err != nil {
		t.Fatalf("infrastructure error: %v", err)
	}
	if res.Success || !strings.Contains(res.Error, "오류로 종료") {
		t.Errorf("res = %+v", res)
	}
}

func TestAskUserTool_EchoesQuestion(t *testing.T) {
	res, _ := NewAskUserTool().Execute(context.Background(), args(t, map[string]any{
		"question": "어느 파일을 수정할까요?",
		"options":  []string{"a.py", "b.py"},
		"default":  "a.py",
	}))
	if !res.Success || res.Get("type") != "user_input_required" {
		t.Fatalf("res = %+v", res)
	}
	if res.Get("question") != "어느 파일을 수정할까요?" || res.Get("default") != "a.py" {
		t.Errorf("fields = %+v", res.Fields)
	}

	res, _ = NewAskUserTool().Execute(context.Background(), args(t, map[string]any{"question": "  "}))
	if res.Success {
		t.Errorf("blank question must fail: %+v", res)
	}
}

func TestMemoryTools_RoundTrip(t *testing.T) {
	root := t.TempDir()
	store := memory.NewStore(root)

	res, _ := NewReadProjectMemoryTool(store).Execute(context.Background(), nil)
	if !res.Success || res.Get("exists") != false {
		t.Fatalf("fresh workspace: %+v", res)
	}

	res, _ = NewUpdateProjectMemoryTool(store).Execute(context.Background(),
		args(t, map[string]any{"section": "decisions", "content": "SQLite 대신 JSON 파일 사용"}))
	if !res.Success || res.Get("file") != memory.FileName {
		t.Fatalf("update: %+v", res)
	}

	res, _ = NewReadProjectMemoryTool(store).Execute(context.Background(), nil)
	content, _ := res.Get("content").(string)
	if res.Get("exists") != true || !strings.Contains(content, "SQLite 대신 JSON 파일 사용") {
		t.Errorf("read back: %+v", res)
	}
	di := strings.Index(content, "## Decisions")
	if di < 0 || !strings.Contains(content[di:], "SQLite") {
		t.Error("entry must land under ## Decisions")
	}

	res, _ = NewUpdateProjectMemoryTool(store).Execute(context.Background(),
		args(t, map[string]any{"section": "misc", "content": "x"}))
	if res.Success || !strings.Contains(res.Error, "알 수 없는 섹션") {
		t.Errorf("unknown section: %+v", res)
	}
}

func TestToolKinds(t *testing.T) {
	root, txns := newTxnFixture(t)
	tests := []struct {
		tl   tool.Tool
		want tool.Kind
	}{
		{NewReadFileTool(root), tool.KindReadOnly},
		{NewWriteFileTool(root, txns), tool.KindDestructive},
		{NewEditFileTool(root, txns), tool.KindDestructive},
		{NewMultiEditTool(root, txns), tool.KindDestructive},
		{NewBashTool(root), tool.KindDestructive},
		{NewAskUserTool(), tool.KindInteractive},
	}
	for _, tc := range tests {
		if got := tc.tl.Kind(); got != tc.want {
			t.Errorf("%s kind = %q, want %q", tc.tl.Name(), got, tc.want)
		}
	}
}

func TestResultNumbersSurviveObservation(t *testing.T) {
	// Observation text round-trips through MarshalJSON; integers must not
	// pick up exponent notation.
	res := tool.Ok(map[string]any{"total_lines": 3})
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"total_lines":3`) {
		t.Errorf("marshaled = %s", data)
	}
	if !strings.Contains(string(data), `"success":true`) {
		t.Errorf("marshaled = %s", data)
	}
}
