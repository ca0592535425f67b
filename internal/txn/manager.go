// Package txn provides transactional file modification with undo/redo.
//
// Every destructive file operation runs as a transaction: changes are
// staged with their pre-transaction content captured, then committed
// atomically. Committed transactions live on an undo stack bounded by
// count and total byte footprint; undoing pushes onto a redo stack that
// is cleared whenever a new transaction commits.
package txn

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stack limits. When either is exceeded the oldest committed
// transactions are evicted; their on-disk backups remain.
const (
	maxTransactions = 1000
	maxTotalBytes   = 3 << 30 // 3 GiB
)

// ChangeType identifies one kind of staged file change.
type ChangeType string

const (
	ChangeEdit   ChangeType = "edit"
	ChangeWrite  ChangeType = "write"
	ChangeDelete ChangeType = "delete"
	ChangeRename ChangeType = "rename"
)

// Change is one staged file modification. OldContent always holds the
// pre-transaction content, even when the same file is staged twice.
type Change struct {
	Type       ChangeType `json:"type"`
	Path       string     `json:"path"`
	OldPath    string     `json:"old_path,omitempty"` // rename only
	NewPath    string     `json:"new_path,omitempty"` // rename only
	OldContent string     `json:"-"`
	NewContent string     `json:"-"`
	OldExists  bool       `json:"-"`
}

// Transaction groups staged changes under one id.
type Transaction struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Changes     []Change  `json:"changes"`
}

// bytes is the transaction's retained footprint: change contents plus
// the path strings, the description and the timestamp rendering.
func (t *Transaction) bytes() int64 {
	n := int64(len(t.Description) + len(t.CreatedAt.Format(time.RFC3339Nano)))
	for _, c := range t.Changes {
		n += int64(len(c.Path) + len(c.OldPath) + len(c.NewPath) +
			len(c.OldContent) + len(c.NewContent))
	}
	return n
}

// Summary is the history view of a committed transaction.
type Summary struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Changes     int       `json:"changes"`
	Files       []string  `json:"files"`
}

// PlannedChange is one entry of a dry-run commit preview.
type PlannedChange struct {
	Type    ChangeType `json:"type"`
	Path    string     `json:"path"`
	Summary string     `json:"summary"`
}

// Manager owns the transaction lifecycle for one workspace. A single
// mutex serializes staging, commit, undo and redo so file state and the
// stacks never diverge.
type Manager struct {
	mu         sync.Mutex
	root       string
	backupDir  string
	pending    map[string]*Transaction
	undoStack  []*Transaction
	redoStack  []*Transaction
	totalBytes int64
	maxTxns    int
	maxBytes   int64
}

// NewManager creates a manager rooted at the workspace directory.
// Backups go to .maeum_backup inside the root.
func NewManager(root string) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Manager{
		root:      abs,
		backupDir: filepath.Join(abs, ".maeum_backup"),
		pending:   make(map[string]*Transaction),
		maxTxns:   maxTransactions,
		maxBytes:  maxTotalBytes,
	}, nil
}

// Begin opens a new transaction and returns its id.
func (m *Manager) Begin(description string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.pending[id] = &Transaction{
		ID:          id,
		Description: description,
		CreatedAt:   time.Now(),
	}
	return id
}

// resolve joins a relative path under the root and rejects escapes.
func (m *Manager) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("경로가 워크스페이스를 벗어납니다: %s", rel)
	}
	return filepath.Join(m.root, clean), nil
}

func (m *Manager) tx(id string) (*Transaction, error) {
	t, ok := m.pending[id]
	if !ok {
		return nil, fmt.Errorf("알 수 없는 트랜잭션: %s", id)
	}
	return t, nil
}

// StageWrite stages a full-file write (create or overwrite).
func (m *Manager) StageWrite(txnID, rel, newContent string) error {
	return m.stageContent(txnID, rel, newContent, ChangeWrite, false)
}

// StageEdit stages a full-file replacement of an existing file.
func (m *Manager) StageEdit(txnID, rel, newContent string) error {
	return m.stageContent(txnID, rel, newContent, ChangeEdit, true)
}

func (m *Manager) stageContent(txnID, rel, newContent string, typ ChangeType, mustExist bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.tx(txnID)
	if err != nil {
		return err
	}
	abs, err := m.resolve(rel)
	if err != nil {
		return err
	}

	// Same file staged twice in one transaction: keep the first captured
	// pre-transaction content, let the newest content win.
	if prior := findChange(t, rel); prior != nil {
		prior.Type = typ
		prior.NewContent = newContent
		return nil
	}

	change := Change{Type: typ, Path: rel, NewContent: newContent}
	data, readErr := os.ReadFile(abs)
	switch {
	case readErr == nil:
		if IsBinary(data) {
			return fmt.Errorf("바이너리 파일은 수정할 수 없습니다: %s", rel)
		}
		change.OldContent = string(data)
		change.OldExists = true
	case os.IsNotExist(readErr):
		if mustExist {
			return fmt.Errorf("파일이 존재하지 않습니다: %s", rel)
		}
	default:
		return readErr
	}
	t.Changes = append(t.Changes, change)
	return nil
}

// StageDelete stages removal of an existing file.
func (m *Manager) StageDelete(txnID, rel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.tx(txnID)
	if err != nil {
		return err
	}
	abs, err := m.resolve(rel)
	if err != nil {
		return err
	}
	data, readErr := os.ReadFile(abs)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return fmt.Errorf("파일이 존재하지 않습니다: %s", rel)
		}
		return readErr
	}
	if IsBinary(data) {
		return fmt.Errorf("바이너리 파일은 수정할 수 없습니다: %s", rel)
	}

	if prior := findChange(t, rel); prior != nil {
		prior.Type = ChangeDelete
		prior.NewContent = ""
		return nil
	}
	t.Changes = append(t.Changes, Change{
		Type:       ChangeDelete,
		Path:       rel,
		OldContent: string(data),
		OldExists:  true,
	})
	return nil
}

// StageRename stages moving a file to a new path inside the workspace.
func (m *Manager) StageRename(txnID, oldRel, newRel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.tx(txnID)
	if err != nil {
		return err
	}
	oldAbs, err := m.resolve(oldRel)
	if err != nil {
		return err
	}
	newAbs, err := m.resolve(newRel)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(oldAbs); statErr != nil {
		return fmt.Errorf("파일이 존재하지 않습니다: %s", oldRel)
	}
	if _, statErr := os.Stat(newAbs); statErr == nil {
		return fmt.Errorf("대상 경로가 이미 존재합니다: %s", newRel)
	}
	t.Changes = append(t.Changes, Change{
		Type:    ChangeRename,
		Path:    newRel,
		OldPath: oldRel,
		NewPath: newRel,
	})
	return nil
}

func findChange(t *Transaction, rel string) *Change {
	for i := range t.Changes {
		c := &t.Changes[i]
		if c.Type != ChangeRename && c.Path == rel {
			return c
		}
	}
	return nil
}

// Commit applies the staged changes in order. dryRun previews the plan
// and leaves the transaction pending. If applying change k fails, the
// already-applied changes 0..k-1 are reverse-applied so the workspace
// never keeps a half-committed transaction.
func (m *Manager) Commit(txnID string, dryRun bool) ([]PlannedChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.tx(txnID)
	if err != nil {
		return nil, err
	}
	plan := planChanges(t)
	if dryRun {
		return plan, nil
	}

	for i := range t.Changes {
		if applyErr := m.applyChange(&t.Changes[i], true); applyErr != nil {
			for j := i - 1; j >= 0; j-- {
				if revErr := m.reverseChange(&t.Changes[j]); revErr != nil {
					log.Printf("[Txn] rollback of %s failed: %v", t.Changes[j].Path, revErr)
				}
			}
			return nil, fmt.Errorf("커밋 실패 (%s): %w", t.Changes[i].Path, applyErr)
		}
	}

	delete(m.pending, txnID)
	m.pushCommitted(t)
	log.Printf("[Txn] committed %s (%d changes): %s", t.ID, len(t.Changes), t.Description)
	return plan, nil
}

// pushCommitted adds t to the undo stack, clears redo, and evicts the
// oldest entries past the count/byte budgets. Caller holds the lock.
func (m *Manager) pushCommitted(t *Transaction) {
	for _, r := range m.redoStack {
		m.totalBytes -= r.bytes()
	}
	m.redoStack = nil

	m.undoStack = append(m.undoStack, t)
	m.totalBytes += t.bytes()

	for len(m.undoStack) > m.maxTxns || (m.totalBytes > m.maxBytes && len(m.undoStack) > 1) {
		oldest := m.undoStack[0]
		m.undoStack = m.undoStack[1:]
		m.totalBytes -= oldest.bytes()
		log.Printf("[Txn] evicted %s from history (budget)", oldest.ID)
	}
}

// Rollback discards a pending transaction without touching any files.
func (m *Manager) Rollback(txnID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[txnID]; !ok {
		return fmt.Errorf("알 수 없는 트랜잭션: %s", txnID)
	}
	delete(m.pending, txnID)
	return nil
}

// Undo reverses the latest committed transaction and moves it to the
// redo stack. A failure mid-way rolls the already-reverted changes
// forward again so the workspace never keeps a half-undone transaction;
// the transaction stays on the undo stack.
func (m *Manager) Undo() (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undoStack) == 0 {
		return nil, fmt.Errorf("되돌릴 변경사항이 없습니다")
	}
	t := m.undoStack[len(m.undoStack)-1]

	// Reverse in reverse order so intra-transaction dependencies unwind.
	for i := len(t.Changes) - 1; i >= 0; i-- {
		if err := m.reverseChange(&t.Changes[i]); err != nil {
			for j := i + 1; j < len(t.Changes); j++ {
				if fwdErr := m.applyChange(&t.Changes[j], false); fwdErr != nil {
					log.Printf("[Txn] roll-forward of %s failed: %v", t.Changes[j].Path, fwdErr)
				}
			}
			return nil, fmt.Errorf("실행 취소 실패 (%s): %w", t.Changes[i].Path, err)
		}
	}
	m.undoStack = m.undoStack[:len(m.undoStack)-1]
	m.redoStack = append(m.redoStack, t)
	log.Printf("[Txn] undo %s: %s", t.ID, t.Description)
	return t, nil
}

// Redo re-applies the latest undone transaction.
func (m *Manager) Redo() (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.redoStack) == 0 {
		return nil, fmt.Errorf("다시 실행할 변경사항이 없습니다")
	}
	t := m.redoStack[len(m.redoStack)-1]

	for i := range t.Changes {
		if err := m.applyChange(&t.Changes[i], false); err != nil {
			for j := i - 1; j >= 0; j-- {
				if revErr := m.reverseChange(&t.Changes[j]); revErr != nil {
					log.Printf("[Txn] rollback of %s failed: %v", t.Changes[j].Path, revErr)
				}
			}
			return nil, fmt.Errorf("다시 실행 실패 (%s): %w", t.Changes[i].Path, err)
		}
	}
	m.redoStack = m.redoStack[:len(m.redoStack)-1]
	m.undoStack = append(m.undoStack, t)
	log.Printf("[Txn] redo %s: %s", t.ID, t.Description)
	return t, nil
}

// History lists committed transactions, newest first.
func (m *Manager) History(limit int) []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.undoStack) {
		limit = len(m.undoStack)
	}
	out := make([]Summary, 0, limit)
	for i := len(m.undoStack) - 1; i >= len(m.undoStack)-limit; i-- {
		out = append(out, summarize(m.undoStack[i]))
	}
	return out
}

// PeekUndo returns a summary of the transaction Undo would reverse,
// without mutating anything.
func (m *Manager) PeekUndo() (Summary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undoStack) == 0 {
		return Summary{}, false
	}
	return summarize(m.undoStack[len(m.undoStack)-1]), true
}

// PeekRedo returns a summary of the transaction Redo would re-apply,
// without mutating anything.
func (m *Manager) PeekRedo() (Summary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.redoStack) == 0 {
		return Summary{}, false
	}
	return summarize(m.redoStack[len(m.redoStack)-1]), true
}

func summarize(t *Transaction) Summary {
	s := Summary{
		ID:          t.ID,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		Changes:     len(t.Changes),
	}
	for _, c := range t.Changes {
		s.Files = append(s.Files, c.Path)
	}
	return s
}

// Counts returns (undoable, redoable) stack depths.
func (m *Manager) Counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undoStack), len(m.redoStack)
}

// applyChange performs one change on disk. withBackup snapshots the
// pre-image to the backup directory first (initial commits only; undo
// and redo rely on the captured contents instead).
func (m *Manager) applyChange(c *Change, withBackup bool) error {
	switch c.Type {
	case ChangeWrite, ChangeEdit:
		abs, err := m.resolve(c.Path)
		if err != nil {
			return err
		}
		if withBackup && c.OldExists {
			if err := m.backupFile(c.Path, abs); err != nil {
				return err
			}
		}
		return writeFileAtomic(abs, []byte(c.NewContent))
	case ChangeDelete:
		abs, err := m.resolve(c.Path)
		if err != nil {
			return err
		}
		if withBackup {
			if err := m.backupFile(c.Path, abs); err != nil {
				return err
			}
		}
		return os.Remove(abs)
	case ChangeRename:
		oldAbs, err := m.resolve(c.OldPath)
		if err != nil {
			return err
		}
		newAbs, err := m.resolve(c.NewPath)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
			return err
		}
		return os.Rename(oldAbs, newAbs)
	default:
		return fmt.Errorf("알 수 없는 변경 유형: %s", c.Type)
	}
}

// reverseChange restores the pre-change state.
func (m *Manager) reverseChange(c *Change) error {
	switch c.Type {
	case ChangeWrite, ChangeEdit:
		abs, err := m.resolve(c.Path)
		if err != nil {
			return err
		}
		if !c.OldExists {
			err := os.Remove(abs)
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		return writeFileAtomic(abs, []byte(c.OldContent))
	case ChangeDelete:
		abs, err := m.resolve(c.Path)
		if err != nil {
			return err
		}
		return writeFileAtomic(abs, []byte(c.OldContent))
	case ChangeRename:
		oldAbs, err := m.resolve(c.OldPath)
		if err != nil {
			return err
		}
		newAbs, err := m.resolve(c.NewPath)
		if err != nil {
			return err
		}
		return os.Rename(newAbs, oldAbs)
	default:
		return fmt.Errorf("알 수 없는 변경 유형: %s", c.Type)
	}
}

func planChanges(t *Transaction) []PlannedChange {
	plan := make([]PlannedChange, 0, len(t.Changes))
	for _, c := range t.Changes {
		p := PlannedChange{Type: c.Type, Path: c.Path}
		switch c.Type {
		case ChangeWrite:
			if c.OldExists {
				p.Summary = fmt.Sprintf("덮어쓰기 (%d → %d bytes)", len(c.OldContent), len(c.NewContent))
			} else {
				p.Summary = fmt.Sprintf("새 파일 (%d bytes)", len(c.NewContent))
			}
		case ChangeEdit:
			p.Summary = fmt.Sprintf("수정 (%d → %d bytes)", len(c.OldContent), len(c.NewContent))
		case ChangeDelete:
			p.Summary = fmt.Sprintf("삭제 (%d bytes)", len(c.OldContent))
		case ChangeRename:
			p.Summary = fmt.Sprintf("%s → %s", c.OldPath, c.NewPath)
		}
		plan = append(plan, p)
	}
	return plan
}
