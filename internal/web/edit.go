package web

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/maeum-ai/maeum/internal/txn"
)

// editOp is one unique-text replacement.
type editOp struct {
	Path    string `json:"path"`
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
}

// handleEdit applies one replacement where old_text matches exactly
// once, recorded as an undoable transaction.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var op editOp
	if err := readJSON(r, &op); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	updated, status, err := s.applyEdit(op)
	if err != nil {
		writeError(w, status, "%v", err)
		return
	}

	id := s.txns.Begin("편집: " + op.Path)
	if err := s.txns.StageEdit(id, op.Path, updated); err != nil {
		_ = s.txns.Rollback(id)
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if _, err := s.txns.Commit(id, false); err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":    filepath.ToSlash(op.Path),
		"changes": 1,
	})
}

// handleEditBatch applies several replacements as one transaction; any
// failure leaves every file untouched.
func (s *Server) handleEditBatch(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Operations  []editOp `json:"operations"`
		Description string   `json:"description"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if len(req.Operations) == 0 {
		writeError(w, http.StatusBadRequest, "operations가 비어 있습니다")
		return
	}
	if req.Description == "" {
		req.Description = fmt.Sprintf("일괄 편집 (%d건)", len(req.Operations))
	}

	// Compose edits per file in memory so several operations on the same
	// file stack, then stage the final contents.
	contents := make(map[string]string)
	var order []string
	for i, op := range req.Operations {
		path := filepath.ToSlash(op.Path)
		current, seen := contents[path]
		if !seen {
			data, status, err := s.readWorkspaceText(op.Path)
			if err != nil {
				writeError(w, status, "operation %d: %v", i+1, err)
				return
			}
			current = data
			order = append(order, path)
		}
		updated, err := replaceOnce(current, op.OldText, op.NewText)
		if err != nil {
			writeError(w, http.StatusConflict, "operation %d (%s): %v", i+1, op.Path, err)
			return
		}
		contents[path] = updated
	}

	id := s.txns.Begin(req.Description)
	for _, path := range order {
		if err := s.txns.StageEdit(id, path, contents[path]); err != nil {
			_ = s.txns.Rollback(id)
			writeError(w, http.StatusBadRequest, "%v", err)
			return
		}
	}
	if _, err := s.txns.Commit(id, false); err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"description": req.Description,
		"files":       order,
		"changes":     len(req.Operations),
	})
}

// applyEdit validates one operation and returns the updated file text.
func (s *Server) applyEdit(op editOp) (string, int, error) {
	if op.Path == "" {
		return "", http.StatusBadRequest, fmt.Errorf("path가 필요합니다")
	}
	content, status, err := s.readWorkspaceText(op.Path)
	if err != nil {
		return "", status, err
	}
	updated, err := replaceOnce(content, op.OldText, op.NewText)
	if err != nil {
		return "", http.StatusConflict, err
	}
	return updated, 0, nil
}

// readWorkspaceText loads a workspace-relative text file.
func (s *Server) readWorkspaceText(rel string) (string, int, error) {
	abs, err := s.resolveRel(rel)
	if err != nil {
		return "", http.StatusBadRequest, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", http.StatusNotFound, fmt.Errorf("파일을 찾을 수 없습니다: %s", rel)
		}
		return "", http.StatusInternalServerError, fmt.Errorf("읽기 실패: %w", err)
	}
	if txn.IsBinary(data) {
		return "", http.StatusBadRequest, fmt.Errorf("바이너리 파일은 수정할 수 없습니다: %s", rel)
	}
	return string(data), 0, nil
}

// replaceOnce replaces oldText iff it occurs exactly once.
func replaceOnce(content, oldText, newText string) (string, error) {
	if oldText == "" {
		return "", fmt.Errorf("old_text가 비어 있습니다")
	}
	switch n := strings.Count(content, oldText); n {
	case 0:
		return "", fmt.Errorf("텍스트를 찾을 수 없습니다")
	case 1:
		return strings.Replace(content, oldText, newText, 1), nil
	default:
		return "", fmt.Errorf("텍스트가 %d번 일치합니다. 더 구체적인 텍스트를 지정하세요", n)
	}
}
