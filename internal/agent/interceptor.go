package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ToolCall is a structured tool invocation parsed out of the model's
// streamed text.
type ToolCall struct {
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// The two tool-block syntaxes the model is instructed to emit.
const (
	sentinelBracket = "[TOOL:"
	sentinelFence   = "```tool:"
)

type interceptMode int

const (
	modeScan interceptMode = iota
	modeBracket
	modeFence
)

var bracketHeaderRe = regexp.MustCompile(`^\[TOOL:\s*([A-Za-z0-9_.\-]+)\s*\]`)

// Interceptor consumes a token stream, forwards visible prose through
// the callback, and detects a tool block mid-stream. Text belonging to
// a detected block is never forwarded; prose before its sentinel always
// is, in order.
//
// Not safe for concurrent use — one interceptor serves one stream.
type Interceptor struct {
	forward func(string)
	buf     string
	mode    interceptMode
}

// NewInterceptor creates an interceptor forwarding prose to the given
// callback.
func NewInterceptor(forward func(string)) *Interceptor {
	if forward == nil {
		forward = func(string) {}
	}
	return &Interceptor{forward: forward}
}

// Feed consumes one chunk. A non-nil return means a well-formed tool
// block was parsed: the caller must stop the stream and discard any
// remaining generation.
func (ic *Interceptor) Feed(chunk string) *ToolCall {
	ic.buf += chunk
	for {
		switch ic.mode {
		case modeScan:
			i, mode := findSentinel(ic.buf)
			if i < 0 {
				// Forward everything except a tail that could still
				// grow into a sentinel.
				keep := holdback(ic.buf)
				if cut := len(ic.buf) - keep; cut > 0 {
					ic.forward(ic.buf[:cut])
					ic.buf = ic.buf[cut:]
				}
				return nil
			}
			if i > 0 {
				ic.forward(ic.buf[:i])
				ic.buf = ic.buf[i:]
			}
			ic.mode = mode

		case modeBracket:
			end, ok := bracketBlockEnd(ic.buf)
			if !ok {
				return nil
			}
			block := ic.buf[:end]
			if call := parseBracketBlock(block); call != nil {
				ic.buf = ""
				ic.mode = modeScan
				return call
			}
			// Parse failure degrades to prose.
			ic.forward(block)
			ic.buf = ic.buf[end:]
			ic.mode = modeScan

		case modeFence:
			end, ok := fenceBlockEnd(ic.buf)
			if !ok {
				return nil
			}
			block := ic.buf[:end]
			if call := parseFenceBlock(block); call != nil {
				ic.buf = ""
				ic.mode = modeScan
				return call
			}
			ic.forward(block)
			ic.buf = ic.buf[end:]
			ic.mode = modeScan
		}
	}
}

// Finish flushes whatever is still buffered — including an incomplete
// tool block — as prose. Call once at normal stream end.
func (ic *Interceptor) Finish() {
	if ic.buf != "" {
		ic.forward(ic.buf)
		ic.buf = ""
	}
	ic.mode = modeScan
}

// findSentinel locates the earliest tool-block sentinel.
func findSentinel(s string) (int, interceptMode) {
	bi := strings.Index(s, sentinelBracket)
	fi := strings.Index(s, sentinelFence)
	switch {
	case bi < 0 && fi < 0:
		return -1, modeScan
	case fi < 0 || (bi >= 0 && bi < fi):
		return bi, modeBracket
	default:
		return fi, modeFence
	}
}

// holdback returns the length of the longest suffix of s that is a
// proper prefix of either sentinel; that many bytes must stay buffered.
func holdback(s string) int {
	best := 0
	for _, sentinel := range []string{sentinelBracket, sentinelFence} {
		limit := len(sentinel) - 1
		if limit > len(s) {
			limit = len(s)
		}
		for n := limit; n > best; n-- {
			if strings.HasSuffix(s, sentinel[:n]) {
				best = n
				break
			}
		}
	}
	return best
}

// bracketBlockEnd reports where a complete [TOOL:...] + fenced JSON
// block ends: two fence markers after the header must be present.
func bracketBlockEnd(s string) (int, bool) {
	open := strings.Index(s, "```")
	if open < 0 {
		return 0, false
	}
	closing := strings.Index(s[open+3:], "```")
	if closing < 0 {
		return 0, false
	}
	return open + 3 + closing + 3, true
}

// parseBracketBlock extracts the tool name and JSON body; nil on any
// malformation.
func parseBracketBlock(block string) *ToolCall {
	m := bracketHeaderRe.FindStringSubmatch(block)
	if m == nil {
		return nil
	}
	open := strings.Index(block, "```")
	if open < 0 {
		return nil
	}
	body := block[open+3:]
	// Skip the fence's language tag line ("json" usually).
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.HasPrefix(strings.TrimSpace(body), "{") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return newToolCall(m[1], body)
}

// fenceBlockEnd reports where a complete ```tool:name { ... } ``` block
// ends.
func fenceBlockEnd(s string) (int, bool) {
	rest := s[len(sentinelFence):]
	closing := strings.Index(rest, "```")
	if closing < 0 {
		return 0, false
	}
	return len(sentinelFence) + closing + 3, true
}

// parseFenceBlock extracts the name after "tool:" and the JSON body.
func parseFenceBlock(block string) *ToolCall {
	rest := block[len(sentinelFence):]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return nil
	}
	name := strings.TrimSpace(rest[:nl])
	body := rest[nl+1:]
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return newToolCall(name, body)
}

func newToolCall(name, body string) *ToolCall {
	name = strings.TrimSpace(name)
	body = strings.TrimSpace(body)
	if name == "" || body == "" || !json.Valid([]byte(body)) {
		return nil
	}
	return &ToolCall{Name: name, Input: json.RawMessage(body)}
}
