// Package session holds per-conversation state: the turn history with
// its compressed summary, parked loop snapshots awaiting confirmation,
// the abort flag, editor hints and the symbol cache populated by
// read_file.
package session

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/maeum-ai/maeum/internal/index"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Turn is one entry of the conversation.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// FileHint carries the editor's current-file context, used by the
// prompt builder to resolve deictic references ("this file", "here").
type FileHint struct {
	Path       string `json:"path"`
	Language   string `json:"language,omitempty"`
	TotalLines int    `json:"total_lines,omitempty"`
	CursorLine int    `json:"cursor_line,omitempty"`
}

// Parked is a suspended loop snapshot, stashed under a confirmation id
// while a destructive or interactive tool waits on the user.
type Parked struct {
	SystemPrompt     string
	UserMessage      string
	Accumulated      string
	Iteration        int
	ExplorationCount int
	ToolName         string
	ToolInput        json.RawMessage
	Interactive      bool // ask_user: the answer becomes the observation
	CreatedAt        time.Time
}

// Session is the state of one user conversation. All methods are safe
// for concurrent use; the loop itself processes one turn at a time.
type Session struct {
	ID string

	mu           sync.Mutex
	conversation []Turn
	summary      string
	pending      map[string]*Parked
	currentFile  *FileHint
	openTabs     []string
	userContext  string
	exploration  int
	symbols      map[string][]index.Symbol
	lastUsed     time.Time

	aborted atomic.Bool
}

func newSession(id string) *Session {
	return &Session{
		ID:       id,
		pending:  make(map[string]*Parked),
		symbols:  make(map[string][]index.Symbol),
		lastUsed: time.Now(),
	}
}

// Append adds one turn to the conversation.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation = append(s.conversation, Turn{Role: role, Content: content, Timestamp: time.Now()})
	s.lastUsed = time.Now()
}

// History returns a copy of the conversation.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.conversation))
	copy(out, s.conversation)
	return out
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversation)
}

// Summary returns the compressed summary of evicted turns.
func (s *Session) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Compact replaces all but the newest keepN turns with the given
// summary and reports how many turns were evicted.
func (s *Session) Compact(summary string, keepN int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conversation) <= keepN {
		return 0
	}
	evicted := len(s.conversation) - keepN
	s.summary = summary
	s.conversation = append([]Turn(nil), s.conversation[len(s.conversation)-keepN:]...)
	return evicted
}

// Park stores a suspended loop snapshot and returns its confirmation id.
func (s *Session) Park(p *Parked) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	p.CreatedAt = time.Now()
	s.pending[id] = p
	return id
}

// TakeParked removes and returns the snapshot for a confirmation id.
func (s *Session) TakeParked(id string) (*Parked, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	return p, ok
}

// PendingCount returns the number of parked snapshots.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// DropPending discards all parked snapshots (disconnect cleanup).
func (s *Session) DropPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string]*Parked)
}

// RequestAbort sets the abort flag. The loop observes it at iteration
// boundaries.
func (s *Session) RequestAbort() { s.aborted.Store(true) }

// Aborted reports the abort flag.
func (s *Session) Aborted() bool { return s.aborted.Load() }

// ResetTurn clears the abort flag and the exploration counter; called
// at the start of every user turn.
func (s *Session) ResetTurn() {
	s.aborted.Store(false)
	s.mu.Lock()
	s.exploration = 0
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// SetHints records the editor context sent with a chat message.
func (s *Session) SetHints(current *FileHint, openTabs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentFile = current
	s.openTabs = append([]string(nil), openTabs...)
}

// Hints returns the current-file hint and open tab list.
func (s *Session) Hints() (*FileHint, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentFile, append([]string(nil), s.openTabs...)
}

// SetUserContext records the editor selection or active-buffer excerpt
// sent with a chat message.
func (s *Session) SetUserContext(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userContext = text
}

// UserContext returns the recorded editor selection, if any.
func (s *Session) UserContext() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userContext
}

// Exploration returns the read-only tool count for this turn.
func (s *Session) Exploration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exploration
}

// AddExploration increments the counter and returns the new value.
func (s *Session) AddExploration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exploration++
	return s.exploration
}

// SetExploration restores the counter when a parked turn resumes.
func (s *Session) SetExploration(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exploration = n
}

// CacheSymbols stores extracted symbols for a file path.
func (s *Session) CacheSymbols(path string, syms []index.Symbol) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols[path] = syms
}

// CachedSymbols returns the cached symbols for a path, if any.
func (s *Session) CachedSymbols(path string) ([]index.Symbol, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	syms, ok := s.symbols[path]
	return syms, ok
}

// SymbolPaths lists the files with cached symbols in insertion-free
// (map) order; the prompt builder sorts them.
func (s *Session) SymbolPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.symbols))
	for p := range s.symbols {
		out = append(out, p)
	}
	return out
}
