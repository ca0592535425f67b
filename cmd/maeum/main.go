// Command maeum runs the local AI coding assistant server: workspace
// index, transactional file tools, the agent loop and the localhost
// IDE surface.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/maeum-ai/maeum/internal/agent"
	"github.com/maeum-ai/maeum/internal/config"
	"github.com/maeum-ai/maeum/internal/index"
	"github.com/maeum-ai/maeum/internal/llm"
	"github.com/maeum-ai/maeum/internal/llm/native"
	"github.com/maeum-ai/maeum/internal/llm/openai"
	"github.com/maeum-ai/maeum/internal/mcp"
	"github.com/maeum-ai/maeum/internal/memory"
	"github.com/maeum-ai/maeum/internal/plan"
	"github.com/maeum-ai/maeum/internal/prompt"
	"github.com/maeum-ai/maeum/internal/session"
	"github.com/maeum-ai/maeum/internal/tool"
	"github.com/maeum-ai/maeum/internal/tool/builtin"
	"github.com/maeum-ai/maeum/internal/txn"
	"github.com/maeum-ai/maeum/internal/web"
)

// sessionTTL evicts idle IDE sessions; tabs with pending confirmations
// are never evicted.
const sessionTTL = 30 * time.Minute

func main() {
	config.LoadEnv()

	workspace := ""
	if len(os.Args) > 1 {
		workspace = os.Args[1]
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		log.Fatalf("❌ 설정 로드 실패: %v", err)
	}

	fmt.Println(`  ███╗   ███╗ █████╗ ███████╗██╗   ██╗███╗   ███╗`)
	fmt.Println(`  ████╗ ████║██╔══██╗██╔════╝██║   ██║████╗ ████║`)
	fmt.Println(`  ██╔████╔██║███████║█████╗  ██║   ██║██╔████╔██║`)
	fmt.Println(`  ██║╚██╔╝██║██╔══██║██╔══╝  ██║   ██║██║╚██╔╝██║`)
	fmt.Println(`  ██║ ╚═╝ ██║██║  ██║███████╗╚██████╔╝██║ ╚═╝ ██║`)
	fmt.Println(`  ╚═╝     ╚═╝╚═╝  ╚═╝╚══════╝ ╚═════╝ ╚═╝     ╚═╝`)
	fmt.Println(`        ╔═══ 마음 · 로컬 AI 코딩 어시스턴트 ═══╗`)

	// Workspace index.
	engine, err := index.NewEngine(cfg.Workspace)
	if err != nil {
		log.Fatalf("❌ 인덱스 엔진 초기화 실패: %v", err)
	}
	engine.SetExtraIgnoreDirs(cfg.ExtraIgnoreDirs)
	stats := engine.Build(false)
	fmt.Printf("📚 인덱스: 파일 %d개, 심볼 %d개\n", stats.IndexedFiles, stats.Symbols)

	// Transaction manager and workspace artifacts.
	txns, err := txn.NewManager(cfg.Workspace)
	if err != nil {
		log.Fatalf("❌ 트랜잭션 매니저 초기화 실패: %v", err)
	}
	memStore := memory.NewStore(cfg.Workspace)
	todos := plan.NewTodoStore(cfg.Workspace)
	plans := plan.NewPlanStore(cfg.Workspace)

	// LLM backend.
	provider, err := buildProvider(cfg)
	if err != nil {
		log.Fatalf("❌ LLM 클라이언트 초기화 실패: %v", err)
	}
	fmt.Printf("🤖 LLM: %s @ %s\n", provider.Name(), cfg.BackendURL)

	// Tool registry.
	registry := tool.NewRegistry()
	registerBuiltins(registry, cfg, engine, txns, memStore, todos, plans)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Prompt loader: runtime overrides from .maeum/prompts, user rules
	// from .maeum_rules.md — both optional.
	loader := prompt.NewLoader(
		filepath.Join(cfg.Workspace, ".maeum", "prompts"),
		filepath.Join(cfg.Workspace, ".maeum_rules.md"),
	)

	// MCP servers (optional).
	if cfg.MCPConfigPath != "" {
		mgr := mcp.NewManager(cfg.MCPConfigPath)
		mgr.SetPromptLoader(loader)
		registry.Register(mcp.NewReloadTool(mgr, registry))
		n, errs := mgr.ConnectAll(ctx)
		for _, e := range errs {
			log.Printf("⚠️  MCP 연결: %v", e)
		}
		if n > 0 {
			if err := mgr.RegisterTools(ctx, registry); err != nil {
				log.Printf("⚠️  MCP 도구 등록: %v", err)
			}
			fmt.Printf("🔌 MCP: 서버 %d개 연결\n", n)
		}
		defer mgr.CloseAll()
	}

	if err := registry.InitAll(ctx); err != nil {
		log.Fatalf("❌ 도구 초기화 실패: %v", err)
	}
	defer registry.CloseAll()
	fmt.Printf("🛠️  도구: %d개 등록\n", len(registry.List()))

	// Execution audit log (optional).
	var execLog *agent.ExecLogger
	if cfg.ExecLogPath != "" {
		execLog, err = agent.NewExecLogger(cfg.ExecLogPath)
		if err != nil {
			log.Printf("⚠️  실행 로그 비활성화: %v", err)
		} else {
			defer execLog.Close()
			fmt.Printf("📝 실행 로그: %s\n", cfg.ExecLogPath)
		}
	}

	sessionTools := func(sess *session.Session) []tool.Tool {
		return []tool.Tool{
			builtin.NewReadFileTool(cfg.Workspace).WithSession(sess),
			builtin.NewFindSymbolTool(engine).WithSession(sess),
			builtin.NewAnalyzeCodeTool(cfg.Workspace).WithSession(sess),
		}
	}

	controller := agent.NewController(cfg, provider, registry, sessionTools, engine, loader, execLog)
	store := session.NewStore(sessionTTL)
	defer store.Close()

	server := web.NewServer(cfg, store, txns, engine, controller)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("❌ 서버 오류: %v", err)
	}
	fmt.Println("👋 종료합니다")
}

// buildProvider selects the LLM transport: the native SSE backend or an
// OpenAI-compatible endpoint configured via environment.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewClientFromEnv()
	default:
		client := native.NewClient(native.Options{
			BaseURL:     cfg.BackendURL,
			ReadTimeout: cfg.SSEReadTimeout,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
		return native.NewSmartClient(client), nil
	}
}

// registerBuiltins wires the full native tool set.
func registerBuiltins(
	registry *tool.Registry,
	cfg *config.Config,
	engine *index.Engine,
	txns *txn.Manager,
	memStore *memory.Store,
	todos *plan.TodoStore,
	plans *plan.PlanStore,
) {
	root := cfg.Workspace

	// Reading and navigation.
	registry.Register(builtin.NewReadFileTool(root))
	registry.Register(builtin.NewListDirTool(root))
	registry.Register(builtin.NewProjectStructureTool(engine))
	registry.Register(builtin.NewIndexCodebaseTool(engine))

	// Search.
	registry.Register(builtin.NewSearchCodeTool(engine))
	registry.Register(builtin.NewGrepTool(engine))
	registry.Register(builtin.NewGlobTool(engine))
	registry.Register(builtin.NewFindFilesByContentTool(engine))

	// Symbols.
	registry.Register(builtin.NewFindSymbolTool(engine))
	registry.Register(builtin.NewFindReferencesTool(engine))
	registry.Register(builtin.NewFindDefinitionTool(engine))
	registry.Register(builtin.NewAnalyzeCodeTool(root))
	registry.Register(builtin.NewExplainCodeTool(root))

	// Writing, under the transaction log.
	registry.Register(builtin.NewWriteFileTool(root, txns))
	registry.Register(builtin.NewEditFileTool(root, txns))
	registry.Register(builtin.NewMultiEditTool(root, txns))

	// Shell and git.
	registry.Register(builtin.NewBashTool(root))
	registry.Register(builtin.NewGitStatusTool(root))
	registry.Register(builtin.NewGitDiffTool(root))
	registry.Register(builtin.NewGitLogTool(root))
	registry.Register(builtin.NewGitCommitTool(root))

	// Project memory and planning artifacts.
	registry.Register(builtin.NewReadProjectMemoryTool(memStore))
	registry.Register(builtin.NewUpdateProjectMemoryTool(memStore))
	registry.Register(builtin.NewTodoWriteTool(todos))
	registry.Register(builtin.NewPlanTaskTool(plans))

	// Web.
	registry.Register(builtin.NewWebSearchTool(cfg.BackendURL))
	registry.Register(builtin.NewWebFetchTool(cfg.ReaderURL))

	// Interaction.
	registry.Register(builtin.NewAskUserTool())
}
