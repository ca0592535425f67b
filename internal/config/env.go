package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnv loads the first .env file found near the executable or the
// current directory. Missing files are fine; OS environment always wins
// because godotenv never overrides existing variables.
func LoadEnv() {
	for _, candidate := range envCandidates() {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			log.Printf("[Config] .env load failed (%s): %v", candidate, err)
			return
		}
		log.Printf("[Config] .env loaded: %s", candidate)
		return
	}
}

// envCandidates lists .env locations in priority order: the executable's
// directory, up to three parents above it, then the working directory.
func envCandidates() []string {
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		for i := 0; i <= 3; i++ {
			candidates = append(candidates, filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}
	return candidates
}
