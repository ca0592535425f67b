// Package config assembles runtime settings from three layers:
// built-in defaults, an optional maeum.yaml in the workspace, and
// environment variables (highest precedence).
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults. Budgets follow the agent loop's operating envelope; the
// backend URL targets a local OpenAI-compatible wrapper.
const (
	DefaultPort              = 8765
	DefaultBackendURL        = "http://localhost:8000"
	DefaultProvider          = "native"
	DefaultMaxIterations     = 99
	DefaultMaxExploration    = 20
	DefaultContextTokenLimit = 30000
	DefaultSSEReadMinutes    = 30
	DefaultMaxTokens         = 4096
	DefaultTemperature       = 0.7
	DefaultReaderURL         = "https://r.jina.ai"
)

// Config is the resolved runtime configuration.
type Config struct {
	Port              int
	Workspace         string // absolute path
	BackendURL        string
	ReaderURL         string // external web page reader service
	Provider          string // "native" or "openai"
	MaxIterations     int
	MaxExploration    int
	ContextTokenLimit int
	SSEReadTimeout    time.Duration
	MaxTokens         int
	Temperature       float64
	ExecLogPath       string // empty disables the execution audit log
	MCPConfigPath     string // empty disables MCP servers

	// Index overrides from maeum.yaml.
	ExtraIgnoreDirs []string
}

// fileConfig mirrors the optional maeum.yaml.
type fileConfig struct {
	Port              int      `yaml:"port"`
	BackendURL        string   `yaml:"backend_url"`
	ReaderURL         string   `yaml:"reader_url"`
	Provider          string   `yaml:"provider"`
	MaxIterations     int      `yaml:"max_iterations"`
	MaxExploration    int      `yaml:"max_exploration"`
	ContextTokenLimit int      `yaml:"context_token_limit"`
	MaxTokens         int      `yaml:"max_tokens"`
	Temperature       float64  `yaml:"temperature"`
	IgnoreDirs        []string `yaml:"ignore_dirs"`
}

// Load resolves the configuration for the given workspace directory
// (empty falls back to MAEUM_WORKSPACE, then the current directory).
// It never fails on bad values: out-of-range settings fall back to
// defaults with a warning.
func Load(workspace string) (*Config, error) {
	if workspace == "" {
		workspace = strings.TrimSpace(os.Getenv("MAEUM_WORKSPACE"))
	}
	if workspace == "" {
		workspace = "."
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("워크스페이스 경로 해석 실패: %w", err)
	}
	if info, statErr := os.Stat(abs); statErr != nil || !info.IsDir() {
		return nil, fmt.Errorf("워크스페이스 디렉토리가 아닙니다: %s", abs)
	}

	cfg := &Config{
		Port:              DefaultPort,
		Workspace:         abs,
		BackendURL:        DefaultBackendURL,
		ReaderURL:         DefaultReaderURL,
		Provider:          DefaultProvider,
		MaxIterations:     DefaultMaxIterations,
		MaxExploration:    DefaultMaxExploration,
		ContextTokenLimit: DefaultContextTokenLimit,
		SSEReadTimeout:    DefaultSSEReadMinutes * time.Minute,
		MaxTokens:         DefaultMaxTokens,
		Temperature:       DefaultTemperature,
	}

	applyFile(cfg, filepath.Join(abs, "maeum.yaml"))
	applyEnv(cfg)
	return cfg, nil
}

// applyFile overlays maeum.yaml when present. A malformed file is
// reported and skipped rather than failing startup.
func applyFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		log.Printf("[Config] maeum.yaml parse failed, ignoring: %v", err)
		return
	}
	if fc.Port > 0 {
		cfg.Port = fc.Port
	}
	if fc.BackendURL != "" {
		cfg.BackendURL = fc.BackendURL
	}
	if fc.ReaderURL != "" {
		cfg.ReaderURL = fc.ReaderURL
	}
	if fc.Provider != "" {
		cfg.Provider = fc.Provider
	}
	if fc.MaxIterations > 0 {
		cfg.MaxIterations = fc.MaxIterations
	}
	if fc.MaxExploration > 0 {
		cfg.MaxExploration = fc.MaxExploration
	}
	if fc.ContextTokenLimit > 0 {
		cfg.ContextTokenLimit = fc.ContextTokenLimit
	}
	if fc.MaxTokens > 0 {
		cfg.MaxTokens = fc.MaxTokens
	}
	if fc.Temperature > 0 {
		cfg.Temperature = fc.Temperature
	}
	cfg.ExtraIgnoreDirs = append(cfg.ExtraIgnoreDirs, fc.IgnoreDirs...)
	log.Printf("[Config] maeum.yaml loaded: %s", path)
}

func applyEnv(cfg *Config) {
	cfg.Port = intEnv("MAEUM_PORT", cfg.Port, 1, 65535)
	cfg.MaxIterations = intEnv("MAEUM_MAX_ITERATIONS", cfg.MaxIterations, 1, 500)
	cfg.MaxExploration = intEnv("MAEUM_MAX_EXPLORATION", cfg.MaxExploration, 1, 99)
	cfg.ContextTokenLimit = intEnv("MAEUM_CONTEXT_TOKEN_LIMIT", cfg.ContextTokenLimit, 1000, 1000000)
	cfg.MaxTokens = intEnv("MAEUM_MAX_TOKENS", cfg.MaxTokens, 1, 200000)

	minutes := intEnv("MAEUM_SSE_READ_TIMEOUT_MINUTES", int(cfg.SSEReadTimeout/time.Minute), 1, 120)
	cfg.SSEReadTimeout = time.Duration(minutes) * time.Minute

	if v := strings.TrimSpace(os.Getenv("MAEUM_BACKEND_URL")); v != "" {
		cfg.BackendURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MAEUM_READER_URL")); v != "" {
		cfg.ReaderURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MAEUM_LLM_PROVIDER")); v != "" {
		switch v {
		case "native", "openai":
			cfg.Provider = v
		default:
			log.Printf("[Config] unknown MAEUM_LLM_PROVIDER=%q, keeping %q", v, cfg.Provider)
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAEUM_EXEC_LOG")); v != "" {
		cfg.ExecLogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("MAEUM_MCP_CONFIG")); v != "" {
		cfg.MCPConfigPath = v
	}
	if v := strings.TrimSpace(os.Getenv("MAEUM_TEMPERATURE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 2 {
			log.Printf("[Config] invalid MAEUM_TEMPERATURE=%q, keeping %v", v, cfg.Temperature)
		} else {
			cfg.Temperature = f
		}
	}
}

// intEnv reads an integer variable, keeping the current value when the
// variable is unset, malformed, or outside [min, max].
func intEnv(name string, current, min, max int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return current
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		log.Printf("[Config] invalid %s=%q, keeping %d", name, raw, current)
		return current
	}
	return n
}
