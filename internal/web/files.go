package web

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/maeum-ai/maeum/internal/index"
	"github.com/maeum-ai/maeum/internal/tool/builtin"
	"github.com/maeum-ai/maeum/internal/txn"
)

// maxServedFileSize caps GET /api/file payloads.
const maxServedFileSize = 10 << 20 // 10 MiB

// hiddenWhitelist lists dotfiles the explorer still shows.
var hiddenWhitelist = map[string]bool{
	".env":             true,
	".env.example":     true,
	".gitignore":       true,
	".maeum_todos.json": true,
	".maeum_plan.json":  true,
}

// resolveRel joins a relative path under the workspace root and rejects
// absolute paths and parent-directory escapes.
func (s *Server) resolveRel(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("경로가 워크스페이스를 벗어납니다: %s", rel)
	}
	return filepath.Join(s.cfg.Workspace, clean), nil
}

func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"path": s.cfg.Workspace,
		"name": filepath.Base(s.cfg.Workspace),
	})
}

// fileEntry is one row of a directory listing.
type fileEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	IsDirectory bool   `json:"is_directory"`
	Size        int64  `json:"size"`
	Modified    string `json:"modified"`
	Extension   string `json:"extension"`
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	rel := r.URL.Query().Get("path")
	if rel == "" {
		rel = "."
	}
	abs, err := s.resolveRel(rel)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		writeError(w, http.StatusNotFound, "디렉토리를 읽을 수 없습니다: %s", rel)
		return
	}

	out := make([]fileEntry, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") && !hiddenWhitelist[name] {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil {
			continue
		}
		entryRel := name
		if rel != "." {
			entryRel = filepath.ToSlash(filepath.Join(rel, name))
		}
		out = append(out, fileEntry{
			Name:        name,
			Path:        entryRel,
			IsDirectory: e.IsDir(),
			Size:        info.Size(),
			Modified:    info.ModTime().Format(time.RFC3339),
			Extension:   strings.TrimPrefix(filepath.Ext(name), "."),
		})
	}
	// Directories first, then by name, the way file explorers sort.
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDirectory != out[j].IsDirectory {
			return out[i].IsDirectory
		}
		return out[i].Name < out[j].Name
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.readFile(w, r)
	case http.MethodPost:
		s.saveFile(w, r)
	case http.MethodDelete:
		s.deleteFile(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "허용되지 않는 메서드: %s", r.Method)
	}
}

func (s *Server) readFile(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		writeError(w, http.StatusBadRequest, "path 파라미터가 필요합니다")
		return
	}
	abs, err := s.resolveRel(rel)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "파일을 찾을 수 없습니다: %s", rel)
		return
	}
	if info.Size() > maxServedFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, "파일이 너무 큽니다: %d bytes", info.Size())
		return
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "읽기 실패: %v", err)
		return
	}

	resp := map[string]any{
		"path":      filepath.ToSlash(rel),
		"is_binary": false,
		"language":  builtin.LanguageFor(rel),
	}
	if txn.IsBinary(data) {
		resp["is_binary"] = true
		resp["content"] = ""
		resp["language"] = "plaintext"
	} else {
		resp["content"] = string(data)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) saveFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path가 필요합니다")
		return
	}

	id := s.txns.Begin("저장: " + req.Path)
	if err := s.txns.StageWrite(id, req.Path, req.Content); err != nil {
		_ = s.txns.Rollback(id)
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if _, err := s.txns.Commit(id, false); err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":  filepath.ToSlash(req.Path),
		"bytes": len(req.Content),
	})
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		writeError(w, http.StatusBadRequest, "path 파라미터가 필요합니다")
		return
	}

	id := s.txns.Begin("삭제: " + rel)
	if err := s.txns.StageDelete(id, rel); err != nil {
		_ = s.txns.Rollback(id)
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if _, err := s.txns.Commit(id, false); err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": filepath.ToSlash(rel), "deleted": true})
}

func (s *Server) handleFileCreate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Path        string `json:"path"`
		Content     string `json:"content"`
		IsDirectory bool   `json:"is_directory"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path가 필요합니다")
		return
	}
	abs, err := s.resolveRel(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if _, statErr := os.Stat(abs); statErr == nil {
		writeError(w, http.StatusConflict, "이미 존재합니다: %s", req.Path)
		return
	}

	if req.IsDirectory {
		// Directory creation has nothing to undo; it bypasses the
		// transaction log.
		if err := os.MkdirAll(abs, 0o755); err != nil {
			writeError(w, http.StatusInternalServerError, "디렉토리 생성 실패: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"path": filepath.ToSlash(req.Path), "is_directory": true})
		return
	}

	id := s.txns.Begin("새 파일: " + req.Path)
	if err := s.txns.StageWrite(id, req.Path, req.Content); err != nil {
		_ = s.txns.Rollback(id)
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if _, err := s.txns.Commit(id, false); err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": filepath.ToSlash(req.Path), "is_directory": false})
}

func (s *Server) handleFileRename(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		OldPath string `json:"old_path"`
		NewPath string `json:"new_path"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if req.OldPath == "" || req.NewPath == "" {
		writeError(w, http.StatusBadRequest, "old_path와 new_path가 모두 필요합니다")
		return
	}

	id := s.txns.Begin(fmt.Sprintf("이름 변경: %s → %s", req.OldPath, req.NewPath))
	if err := s.txns.StageRename(id, req.OldPath, req.NewPath); err != nil {
		_ = s.txns.Rollback(id)
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if _, err := s.txns.Commit(id, false); err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"old_path": filepath.ToSlash(req.OldPath),
		"new_path": filepath.ToSlash(req.NewPath),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q 파라미터가 필요합니다")
		return
	}
	mode := r.URL.Query().Get("mode")

	var (
		results any
		count   int
	)
	switch mode {
	case "file":
		nodes := s.engine.FindFiles(query, 50)
		results, count = nodes, len(nodes)
	case "symbol":
		locs := s.engine.FindSymbol(query, 50)
		results, count = locs, len(locs)
	default:
		mode = "content"
		res, err := s.engine.Search(query, index.Options{MaxResults: 50, ContextLines: 1})
		if err != nil {
			writeError(w, http.StatusBadRequest, "검색 실패: %v", err)
			return
		}
		results, count = res.Matches, len(res.Matches)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"mode":    mode,
		"count":   count,
		"results": results,
	})
}
