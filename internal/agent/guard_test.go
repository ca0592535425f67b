package agent

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRepeatGuard_NudgesOnThirdIdenticalCall(t *testing.T) {
	g := newRepeatGuard()
	input := json.RawMessage(`{"file_path":"a.py"}`)

	if note := g.Record("read_file", input); note != "" {
		t.Errorf("first call nudged: %q", note)
	}
	if note := g.Record("read_file", input); note != "" {
		t.Errorf("second call nudged: %q", note)
	}
	note := g.Record("read_file", input)
	if note == "" {
		t.Fatal("third identical call must nudge")
	}
	if !strings.Contains(note, "read_file") || !strings.Contains(note, "3번") {
		t.Errorf("nudge = %q", note)
	}
}

func TestRepeatGuard_DistinguishesInputs(t *testing.T) {
	g := newRepeatGuard()
	g.Record("read_file", json.RawMessage(`{"file_path":"a.py"}`))
	g.Record("read_file", json.RawMessage(`{"file_path":"b.py"}`))
	if note := g.Record("read_file", json.RawMessage(`{"file_path":"c.py"}`)); note != "" {
		t.Errorf("different inputs must not accumulate: %q", note)
	}
}

func TestRepeatGuard_DistinguishesTools(t *testing.T) {
	g := newRepeatGuard()
	input := json.RawMessage(`{}`)
	g.Record("grep", input)
	g.Record("glob", input)
	if note := g.Record("list_dir", input); note != "" {
		t.Errorf("different tools must not accumulate: %q", note)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"가", 2},      // ceil(1.5)
		{"가나다ам", 5}, // 3 hangul + 2 cyrillic → ceil(4.5 + 0.5)
	}
	for _, tc := range tests {
		if got := estimateTokens(tc.text); got != tc.want {
			t.Errorf("estimateTokens(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}
