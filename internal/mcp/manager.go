package mcp

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/maeum-ai/maeum/internal/prompt"
	"github.com/maeum-ai/maeum/internal/tool"
)

// Manager owns the lifecycle of all MCP server connections. It is the
// single source of truth for which servers are active and which tool
// adapters are registered in the tool.Registry.
//
// Concurrency model: state changes are guarded by mu. Network I/O is
// always performed outside the lock so that a slow or hung server cannot
// block other Manager operations (e.g. CloseAll during shutdown).
type Manager struct {
	configPath string

	mu           sync.Mutex
	configs      map[string]ServerConfig // last successfully loaded config
	clients      map[string]*Client      // active connections keyed by server name
	serverTools  map[string][]string     // server name → registered tool names
	promptLoader *prompt.Loader          // optional; Reload also clears the prompt cache
}

// NewManager creates a Manager for the given mcp.json path. No
// connections are established until ConnectAll is called.
func NewManager(configPath string) *Manager {
	return &Manager{
		configPath:  configPath,
		configs:     make(map[string]ServerConfig),
		clients:     make(map[string]*Client),
		serverTools: make(map[string][]string),
	}
}

// SetPromptLoader registers a prompt loader so that Reload also
// invalidates the prompt cache. Call before the first Reload.
func (m *Manager) SetPromptLoader(l *prompt.Loader) {
	m.mu.Lock()
	m.promptLoader = l
	m.mu.Unlock()
}

// ConnectAll loads the config and connects to all configured servers.
// Returns the number of successfully connected servers and per-server
// errors (best-effort: one failure does not prevent other servers from
// connecting).
func (m *Manager) ConnectAll(ctx context.Context) (int, []error) {
	configs, err := LoadConfig(m.configPath)
	if err != nil {
		return 0, []error{fmt.Errorf("mcp: load config: %w", err)}
	}

	type connResult struct {
		name string
		cfg  ServerConfig
		cli  *Client
		err  error
	}
	results := make([]connResult, 0, len(configs))
	for name, cfg := range configs {
		if notice := scanStdioServer(cfg); notice != "" {
			results = append(results, connResult{name: name, err: fmt.Errorf("%s", notice)})
			continue
		}
		cli := NewClient(cfg)
		if err := cli.Connect(ctx); err != nil {
			results = append(results, connResult{name: name, err: err})
			log.Printf("[MCP] Connect failed: %s: %v", name, err)
			continue
		}
		results = append(results, connResult{name: name, cfg: cfg, cli: cli})
		log.Printf("[MCP] Connected: %s (%s)", name, cfg.Transport)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	connected := 0
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("server %q: %w", r.name, r.err))
			continue
		}
		m.clients[r.name] = r.cli
		m.configs[r.name] = r.cfg
		connected++
	}
	return connected, errs
}

// RegisterTools lists the tools from all connected servers and registers
// them as ToolAdapter instances in the provided registry.
func (m *Manager) RegisterTools(ctx context.Context, registry *tool.Registry) error {
	m.mu.Lock()
	snap := make(map[string]*Client, len(m.clients))
	for name, cli := range m.clients {
		snap[name] = cli
	}
	m.mu.Unlock()

	type fetchResult struct {
		name  string
		tools []ToolInfo
		err   error
	}
	results := make([]fetchResult, 0, len(snap))
	for name, cli := range snap {
		tools, err := cli.ListTools(ctx)
		results = append(results, fetchResult{name: name, tools: tools, err: err})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range results {
		if r.err != nil {
			return fmt.Errorf("mcp: list tools for %q: %w", r.name, r.err)
		}
		var toolNames []string
		for _, ti := range r.tools {
			adapter := NewToolAdapter(r.name, ti, m.clients[r.name])
			registry.Register(adapter)
			toolNames = append(toolNames, adapter.Name())
		}
		m.serverTools[r.name] = toolNames
		log.Printf("[MCP] Registered %d tool(s) from server %q", len(r.tools), r.name)
	}
	return nil
}

// Reload re-reads mcp.json and applies a diff:
//   - Added servers: security-scanned (stdio scripts), connected, tools registered.
//   - Removed servers: tools unregistered, connections closed.
//   - Unchanged servers: left untouched.
//
// Network I/O happens outside the lock. Returns a human-readable summary
// and any fatal configuration error; per-server failures are described
// in the summary without failing the Reload itself.
func (m *Manager) Reload(ctx context.Context, registry *tool.Registry) (string, error) {
	newConfigs, err := LoadConfig(m.configPath)
	if err != nil {
		return "", fmt.Errorf("mcp reload: load config: %w", err)
	}

	m.mu.Lock()
	var toRemove []string
	var toAdd []ServerConfig
	unchanged := 0
	for name := range m.configs {
		if _, exists := newConfigs[name]; !exists {
			toRemove = append(toRemove, name)
		}
	}
	for name, cfg := range newConfigs {
		if _, exists := m.configs[name]; !exists {
			toAdd = append(toAdd, cfg)
		} else {
			unchanged++
		}
	}
	m.mu.Unlock()

	removed := 0
	for _, name := range toRemove {
		m.mu.Lock()
		toolNames := m.serverTools[name]
		cli := m.clients[name]
		delete(m.serverTools, name)
		delete(m.clients, name)
		delete(m.configs, name)
		m.mu.Unlock()

		for _, toolName := range toolNames {
			registry.Unregister(toolName)
		}
		if cli != nil {
			if err := cli.Close(); err != nil {
				log.Printf("[MCP] Close error for %q: %v", name, err)
			}
		}
		removed++
		log.Printf("[MCP] Disconnected: %s", name)
	}

	added := 0
	var notices []string
	for _, cfg := range toAdd {
		if notice := scanStdioServer(cfg); notice != "" {
			notices = append(notices, notice)
			continue
		}

		cli := NewClient(cfg)
		if err := cli.Connect(ctx); err != nil {
			notices = append(notices, fmt.Sprintf("[WARNING] connect %q: %v", cfg.Name, err))
			continue
		}
		tools, err := cli.ListTools(ctx)
		if err != nil {
			_ = cli.Close()
			notices = append(notices, fmt.Sprintf("[WARNING] list tools %q: %v", cfg.Name, err))
			continue
		}

		var toolNames []string
		for _, ti := range tools {
			adapter := NewToolAdapter(cfg.Name, ti, cli)
			registry.Register(adapter)
			toolNames = append(toolNames, adapter.Name())
		}
		m.mu.Lock()
		m.clients[cfg.Name] = cli
		m.configs[cfg.Name] = cfg
		m.serverTools[cfg.Name] = toolNames
		m.mu.Unlock()

		added++
		log.Printf("[MCP] Connected: %s (%s), %d tool(s)", cfg.Name, cfg.Transport, len(tools))
	}

	summary := fmt.Sprintf("MCP reload: +%d connected, -%d removed, %d unchanged",
		added, removed, unchanged)
	if len(notices) > 0 {
		summary += "\n" + strings.Join(notices, "\n")
	}

	// Updated prompt override files take effect on the same reload.
	m.mu.Lock()
	pl := m.promptLoader
	m.mu.Unlock()
	if pl != nil {
		pl.Reload()
		summary += "\nPrompt cache cleared."
	}
	return summary, nil
}

// CloseAll terminates all active MCP server connections. Safe to call
// multiple times.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	clients := make(map[string]*Client, len(m.clients))
	for name, cli := range m.clients {
		clients[name] = cli
		delete(m.clients, name)
	}
	m.mu.Unlock()

	for name, cli := range clients {
		if err := cli.Close(); err != nil {
			log.Printf("[MCP] Close error for %q: %v", name, err)
		}
	}
	log.Printf("[MCP] All connections closed")
}

// scanStdioServer runs the static scanner over a stdio server's script,
// if it has one. A non-empty return blocks the server from connecting.
func scanStdioServer(cfg ServerConfig) string {
	if cfg.Transport != "stdio" {
		return ""
	}
	script := findScript(cfg)
	if script == "" {
		return ""
	}
	findings, err := ScanScript(script)
	if err != nil {
		// Read errors are not evidence of malice; connect anyway.
		log.Printf("[MCP] scan error for %q: %v", cfg.Name, err)
		return ""
	}
	LogFindings(cfg.Name, findings)
	if !HasCritical(findings) {
		return ""
	}
	lines := []string{fmt.Sprintf("[BLOCKED] server %q: critical security findings in %s", cfg.Name, script)}
	for _, f := range findings {
		if f.Severity == SeverityCritical {
			lines = append(lines, fmt.Sprintf("  [%s] line %d: %s", f.Rule, f.Line, f.Snippet))
		}
	}
	return strings.Join(lines, "\n")
}

// findScript returns the first script file referenced by a stdio server
// config, checking the command itself and then the argument list.
func findScript(cfg ServerConfig) string {
	if isScript(cfg.Command) {
		return cfg.Command
	}
	for _, arg := range cfg.Args {
		if isScript(arg) {
			return arg
		}
	}
	return ""
}

func isScript(path string) bool {
	return strings.HasSuffix(path, ".py") || strings.HasSuffix(path, ".js") || strings.HasSuffix(path, ".ts")
}
