package txn

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// binaryProbeSize bounds how much of a file the binary check inspects.
const binaryProbeSize = 8 << 10 // 8 KiB

// IsBinary reports whether data looks like binary content: a NUL byte
// anywhere in the first 8 KiB.
func IsBinary(data []byte) bool {
	probe := data
	if len(probe) > binaryProbeSize {
		probe = probe[:binaryProbeSize]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

// writeFileAtomic writes data to path via a temp file in the same
// directory followed by a rename, so readers never observe a partial
// file. Parent directories are created as needed.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".maeum-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// backupFile copies the current content of abs into the backup
// directory under a timestamped name derived from the relative path.
func (m *Manager) backupFile(rel, abs string) error {
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(m.backupDir, 0o755); err != nil {
		return err
	}
	stamp := time.Now().Format("20060102_150405.000000000")
	name := fmt.Sprintf("%s_%s", stamp, sanitizeRel(rel))
	return os.WriteFile(filepath.Join(m.backupDir, name), data, 0o644)
}

func sanitizeRel(rel string) string {
	s := filepath.ToSlash(rel)
	s = strings.ReplaceAll(s, "/", "_")
	return s
}
