package agent

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
)

// repeatThreshold is how many identical calls trigger a nudge.
const repeatThreshold = 3

// repeatGuard detects the model calling the same tool with the same
// arguments over and over within one turn. Keys are md5 digests of
// name plus raw input, so large file contents don't pile up in memory.
type repeatGuard struct {
	counts map[string]int
}

func newRepeatGuard() *repeatGuard {
	return &repeatGuard{counts: make(map[string]int)}
}

// Record registers a call and returns a Korean nudge to inject into the
// observation when the call has repeated too often, or "".
func (g *repeatGuard) Record(name string, input json.RawMessage) string {
	key := fmt.Sprintf("%x", md5.Sum(append([]byte(name+"\x00"), input...)))
	g.counts[key]++
	if g.counts[key] >= repeatThreshold {
		return fmt.Sprintf(
			"\n\n[시스템 안내] %s 도구를 동일한 인자로 %d번 호출했습니다. 이미 받은 결과를 활용해 다음 단계로 진행하거나, 다른 접근을 시도하세요.",
			name, g.counts[key])
	}
	return ""
}
