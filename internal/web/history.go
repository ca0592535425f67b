package web

import (
	"net/http"
	"strconv"

	"github.com/maeum-ai/maeum/internal/txn"
)

// handleUndo reverses the latest transaction. confirm=false (the
// default) previews the affected transaction without mutating.
func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !confirmParam(r) {
		summary, ok := s.txns.PeekUndo()
		writePreview(w, summary, ok)
		return
	}
	t, err := s.txns.Undo()
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeApplied(w, t)
}

// handleRedo re-applies the latest undone transaction, with the same
// confirm semantics as undo.
func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !confirmParam(r) {
		summary, ok := s.txns.PeekRedo()
		writePreview(w, summary, ok)
		return
	}
	t, err := s.txns.Redo()
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeApplied(w, t)
}

// handleHistory lists recent committed transactions, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	undo, redo := s.txns.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"undo_count":   undo,
		"redo_count":   redo,
		"transactions": s.txns.History(limit),
	})
}

func confirmParam(r *http.Request) bool {
	ok, err := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return err == nil && ok
}

func writePreview(w http.ResponseWriter, summary txn.Summary, ok bool) {
	resp := map[string]any{"executed": false, "available": ok}
	if ok {
		resp["transaction"] = summary
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeApplied(w http.ResponseWriter, t *txn.Transaction) {
	files := make([]string, 0, len(t.Changes))
	for _, c := range t.Changes {
		files = append(files, c.Path)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"executed":    true,
		"id":          t.ID,
		"description": t.Description,
		"files":       files,
	})
}
