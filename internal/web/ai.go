package web

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// handleAIAbort sets the abort flag. With a session_id it targets one
// session; without, every live session (the UI sends it when the user
// mashes stop and the tab association is lost).
func (s *Server) handleAIAbort(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	id := r.URL.Query().Get("session_id")
	if id != "" {
		sess, ok := s.store.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "알 수 없는 세션: %s", id)
			return
		}
		s.controller.Abort(r.Context(), sess)
		writeJSON(w, http.StatusOK, map[string]any{"aborted": 1})
		return
	}

	sessions := s.store.All()
	for _, sess := range sessions {
		s.controller.Abort(r.Context(), sess)
	}
	writeJSON(w, http.StatusOK, map[string]any{"aborted": len(sessions)})
}

// handleAIStatus reports backend reachability and session load.
func (s *Server) handleAIStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	provider := s.controller.Provider()
	healthy := provider.HealthCheck(ctx) == nil
	writeJSON(w, http.StatusOK, map[string]any{
		"provider":        provider.Name(),
		"backend_healthy": healthy,
		"active_sessions": s.store.Count(),
		"workspace":       s.cfg.Workspace,
	})
}

// handleChatHistory returns one session's conversation and compressed
// summary.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	id := r.URL.Query().Get("session_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session_id 파라미터가 필요합니다")
		return
	}
	sess, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "알 수 없는 세션: %s", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"summary":    sess.Summary(),
		"turns":      sess.History(),
	})
}

// handleAnalyzeFile returns the symbol structure report for one file,
// the same view the analyze_code tool gives the model.
func (s *Server) handleAnalyzeFile(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	rel := r.URL.Query().Get("path")
	if rel == "" {
		writeError(w, http.StatusBadRequest, "path 파라미터가 필요합니다")
		return
	}
	report, res := s.analyzer.Analyze(rel)
	if report == nil {
		writeError(w, http.StatusBadRequest, "%s", res.Error)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

// handleIndexRefresh re-walks the workspace. force=true drops the
// modification-time shortcut and re-parses every file.
func (s *Server) handleIndexRefresh(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	stats := s.engine.Build(force)
	writeJSON(w, http.StatusOK, stats)
}
