package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes caps REST request bodies (file saves included).
const maxBodyBytes = 20 << 20 // 20 MiB

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// readJSON decodes a bounded request body, rejecting unknown payloads
// that are not objects of the expected shape.
func readJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("본문 읽기 실패: %w", err)
	}
	if len(body) == 0 {
		return fmt.Errorf("요청 본문이 비어 있습니다")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("JSON 파싱 실패: %w", err)
	}
	return nil
}

// requireMethod writes 405 and returns false on a method mismatch.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "허용되지 않는 메서드: %s", r.Method)
		return false
	}
	return true
}
