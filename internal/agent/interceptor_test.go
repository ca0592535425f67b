package agent

import (
	"strings"
	"testing"
)

func TestInterceptor_MidStreamDetection(t *testing.T) {
	// Prose before the sentinel is forwarded exactly once, in order;
	// nothing at or after the sentinel leaks; the tail is discarded.
	var got strings.Builder
	ic := NewInterceptor(func(s string) { got.WriteString(s) })

	chunks := []string{
		"I will read ",
		"that. ",
		"[TOOL:read_file]\n```json\n{\"file_path\":\"x.py\"}\n```",
		" ignored tail",
	}
	var call *ToolCall
	for _, c := range chunks {
		if call = ic.Feed(c); call != nil {
			break
		}
	}
	if call == nil {
		t.Fatal("expected a detected tool call")
	}
	if call.Name != "read_file" {
		t.Errorf("name = %q", call.Name)
	}
	if string(call.Input) != `{"file_path":"x.py"}` {
		t.Errorf("input = %s", call.Input)
	}
	if got.String() != "I will read that. " {
		t.Errorf("forwarded = %q, want %q", got.String(), "I will read that. ")
	}
}

func TestInterceptor_SentinelSplitAcrossChunks(t *testing.T) {
	var got strings.Builder
	ic := NewInterceptor(func(s string) { got.WriteString(s) })

	chunks := []string{"먼저 확인합니다 ", "[TO", "OL:bash]\n``", "`json\n{\"command\":\"ls\"}\n", "```"}
	var call *ToolCall
	for _, c := range chunks {
		if call = ic.Feed(c); call != nil {
			break
		}
	}
	if call == nil || call.Name != "bash" {
		t.Fatalf("call = %+v", call)
	}
	if got.String() != "먼저 확인합니다 " {
		t.Errorf("forwarded = %q", got.String())
	}
}

func TestInterceptor_FenceSyntax(t *testing.T) {
	ic := NewInterceptor(nil)
	call := ic.Feed("```tool:grep\n{\"pattern\":\"TODO\"}\n```")
	if call == nil || call.Name != "grep" {
		t.Fatalf("call = %+v", call)
	}
	if string(call.Input) != `{"pattern":"TODO"}` {
		t.Errorf("input = %s", call.Input)
	}
}

func TestInterceptor_ParseFailureDegradesToProse(t *testing.T) {
	// A malformed JSON body must not produce a call; the block text is
	// forwarded so the user still sees what the model said.
	var got strings.Builder
	ic := NewInterceptor(func(s string) { got.WriteString(s) })

	block := "[TOOL:edit_file]\n```json\n{broken\n```"
	if call := ic.Feed(block); call != nil {
		t.Fatalf("unexpected call %+v", call)
	}
	ic.Finish()
	if !strings.Contains(got.String(), "[TOOL:edit_file]") {
		t.Errorf("malformed block must surface as prose, got %q", got.String())
	}
}

func TestInterceptor_FinishFlushesIncompleteBlock(t *testing.T) {
	var got strings.Builder
	ic := NewInterceptor(func(s string) { got.WriteString(s) })

	if call := ic.Feed("설명입니다. [TOOL:write_file]\n```json\n{\"file_path\""); call != nil {
		t.Fatalf("incomplete block must not parse, got %+v", call)
	}
	ic.Finish()
	want := "설명입니다. [TOOL:write_file]\n```json\n{\"file_path\""
	if got.String() != want {
		t.Errorf("forwarded = %q, want %q", got.String(), want)
	}
}

func TestInterceptor_HoldbackDoesNotStallPlainProse(t *testing.T) {
	// A bracket that never becomes a sentinel is eventually forwarded.
	var got strings.Builder
	ic := NewInterceptor(func(s string) { got.WriteString(s) })

	ic.Feed("배열 인덱스는 a[")
	ic.Feed("i]로 접근합니다")
	ic.Finish()
	if got.String() != "배열 인덱스는 a[i]로 접근합니다" {
		t.Errorf("forwarded = %q", got.String())
	}
}

func TestInterceptor_NoEchoAfterSentinel(t *testing.T) {
	// Property: when a block parses, no forwarded byte comes from at or
	// after the sentinel position.
	var got strings.Builder
	ic := NewInterceptor(func(s string) { got.WriteString(s) })

	full := "prefix [TOOL:bash]\n```json\n{\"command\":\"rm -rf /\"}\n```"
	for i := 0; i < len(full); i += 3 {
		end := i + 3
		if end > len(full) {
			end = len(full)
		}
		if call := ic.Feed(full[i:end]); call != nil {
			break
		}
	}
	if strings.Contains(got.String(), "[TOOL:") || strings.Contains(got.String(), "rm -rf") {
		t.Errorf("block content leaked into prose: %q", got.String())
	}
	if got.String() != "prefix " {
		t.Errorf("forwarded = %q, want %q", got.String(), "prefix ")
	}
}

func TestFindSentinel_EarliestWins(t *testing.T) {
	i, mode := findSentinel("x ```tool:a\n{} [TOOL:b]")
	if i != 2 || mode != modeFence {
		t.Errorf("got (%d, %v), want fence at 2", i, mode)
	}
	i, mode = findSentinel("x [TOOL:b] ```tool:a")
	if i != 2 || mode != modeBracket {
		t.Errorf("got (%d, %v), want bracket at 2", i, mode)
	}
}

func TestNewToolCall_Validation(t *testing.T) {
	tests := []struct {
		name, toolName, body string
		wantNil              bool
	}{
		{"valid", "bash", `{"command":"ls"}`, false},
		{"empty name", "", `{}`, true},
		{"empty body", "bash", "", true},
		{"invalid json", "bash", `{]`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := newToolCall(tc.toolName, tc.body)
			if (got == nil) != tc.wantNil {
				t.Errorf("newToolCall(%q, %q) = %v", tc.toolName, tc.body, got)
			}
		})
	}
}
