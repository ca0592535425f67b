// Package web exposes the localhost IDE surface: REST endpoints for
// workspace files, search, edits and transaction history, plus the
// WebSocket chat channel that drives the agent loop.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/maeum-ai/maeum/internal/agent"
	"github.com/maeum-ai/maeum/internal/config"
	"github.com/maeum-ai/maeum/internal/index"
	"github.com/maeum-ai/maeum/internal/session"
	"github.com/maeum-ai/maeum/internal/tool/builtin"
	"github.com/maeum-ai/maeum/internal/txn"
)

// shutdownTimeout bounds graceful drain on exit.
const shutdownTimeout = 10 * time.Second

// Server wires the HTTP and WebSocket handlers to the process
// singletons: one session store, one transaction manager, one index
// engine and one loop controller per workspace.
type Server struct {
	cfg        *config.Config
	store      *session.Store
	txns       *txn.Manager
	engine     *index.Engine
	controller *agent.Controller
	analyzer   *builtin.AnalyzeCodeTool

	httpSrv *http.Server
}

// NewServer builds the server. The listener binds to loopback only;
// this surface is not meant to leave the machine.
func NewServer(cfg *config.Config, store *session.Store, txns *txn.Manager, engine *index.Engine, controller *agent.Controller) *Server {
	s := &Server{
		cfg:        cfg,
		store:      store,
		txns:       txns,
		engine:     engine,
		controller: controller,
		analyzer:   builtin.NewAnalyzeCodeTool(cfg.Workspace),
	}
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/workspace", s.handleWorkspace)
	mux.HandleFunc("/api/files", s.handleFiles)
	mux.HandleFunc("/api/file", s.handleFile)
	mux.HandleFunc("/api/file/create", s.handleFileCreate)
	mux.HandleFunc("/api/file/rename", s.handleFileRename)
	mux.HandleFunc("/api/search", s.handleSearch)

	mux.HandleFunc("/api/edit", s.handleEdit)
	mux.HandleFunc("/api/edit/batch", s.handleEditBatch)
	mux.HandleFunc("/api/undo", s.handleUndo)
	mux.HandleFunc("/api/redo", s.handleRedo)
	mux.HandleFunc("/api/history", s.handleHistory)

	mux.HandleFunc("/api/ai/abort", s.handleAIAbort)
	mux.HandleFunc("/api/ai/status", s.handleAIStatus)
	mux.HandleFunc("/api/chat/history", s.handleChatHistory)
	mux.HandleFunc("/api/analyze/file", s.handleAnalyzeFile)
	mux.HandleFunc("/api/index/stats", s.handleIndexStats)
	mux.HandleFunc("/api/index/refresh", s.handleIndexRefresh)

	mux.HandleFunc("/ws/chat", s.handleChatWS)
	return mux
}

// Run serves until ctx is cancelled, then drains connections for up to
// shutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Maeum 서버 시작: http://%s", s.httpSrv.Addr)
		log.Printf("📂 워크스페이스: %s", s.cfg.Workspace)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("🛑 종료 신호 수신, 서버를 정리합니다")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("서버 종료 실패: %w", err)
	}
	return <-errCh
}
