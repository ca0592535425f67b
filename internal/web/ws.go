package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/maeum-ai/maeum/internal/config"
	"github.com/maeum-ai/maeum/internal/session"
	"github.com/maeum-ai/maeum/internal/tool"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     loopbackOrigin,
}

// loopbackOrigin admits browser connections from the local machine
// only; non-browser clients send no Origin and pass.
func loopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// clientFrameSchema validates the envelope of incoming frames before
// dispatch; per-type required fields are checked after decoding.
var clientFrameSchema = jsonschema.MustCompileString("ws_client_frame.json", `{
	"type": "object",
	"required": ["type"],
	"properties": {
		"type": {"enum": ["chat", "cancel", "tool_confirm", "user_input"]},
		"message": {"type": "string"},
		"context": {"type": "string"},
		"currentFile": {"type": ["object", "null"]},
		"openTabs": {"type": "array", "items": {"type": "string"}},
		"confirmation_id": {"type": "string"},
		"approved": {"type": "boolean"},
		"answer": {"type": "string"}
	}
}`)

// clientFrame is one message from the IDE.
type clientFrame struct {
	Type           string            `json:"type"`
	Message        string            `json:"message"`
	Context        string            `json:"context"`
	CurrentFile    *session.FileHint `json:"currentFile"`
	OpenTabs       []string          `json:"openTabs"`
	ConfirmationID string            `json:"confirmation_id"`
	Approved       bool              `json:"approved"`
	Answer         string            `json:"answer"`
}

// serverFrame is one message to the IDE. Field presence follows the
// frame type; everything unused stays omitted.
type serverFrame struct {
	Type             string          `json:"type"`
	Content          string          `json:"content,omitempty"`
	SessionID        string          `json:"session_id,omitempty"`
	ToolName         string          `json:"tool_name,omitempty"`
	ToolInput        json.RawMessage `json:"tool_input,omitempty"`
	Result           *tool.Result    `json:"result,omitempty"`
	FilePath         string          `json:"file_path,omitempty"`
	Action           string          `json:"action,omitempty"`
	Line             int             `json:"line,omitempty"`
	ConfirmationID   string          `json:"confirmation_id,omitempty"`
	Description      string          `json:"description,omitempty"`
	Question         string          `json:"question,omitempty"`
	Options          []string        `json:"options,omitempty"`
	Default          string          `json:"default,omitempty"`
	ExplorationCount *int            `json:"exploration_count,omitempty"`
	MaxExploration   *int            `json:"max_exploration,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one writer at a
// time and the loop goroutine races the read loop's error frames.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(f serverFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(f); err != nil {
		log.Printf("[WS] write failed (%s): %v", f.Type, err)
	}
}

// wsEmitter adapts loop events to the wire protocol. One per
// connection; the loop calls it from its own goroutine.
type wsEmitter struct {
	conn *wsConn
	sess *session.Session
	cfg  *config.Config
}

func (e *wsEmitter) Token(text string) {
	e.conn.send(serverFrame{Type: "token", Content: text})
}

func (e *wsEmitter) ToolDetected(name string, input json.RawMessage) {
	e.conn.send(serverFrame{Type: "tool_detected", ToolName: name, ToolInput: input})
}

func (e *wsEmitter) ToolExecuting(name string, input json.RawMessage) {
	count := e.sess.Exploration()
	max := e.cfg.MaxExploration
	e.conn.send(serverFrame{
		Type:             "tool_executing",
		ToolName:         name,
		ToolInput:        input,
		ExplorationCount: &count,
		MaxExploration:   &max,
	})
}

func (e *wsEmitter) ToolResult(name string, result tool.Result) {
	f := serverFrame{Type: "tool_result", ToolName: name, Result: &result}
	if path, ok := result.Get("path").(string); ok {
		f.FilePath = path
	}
	e.conn.send(f)
}

func (e *wsEmitter) OpenInEditor(path, toolName string, line int) {
	e.conn.send(serverFrame{Type: "open_in_editor", FilePath: path, ToolName: toolName, Line: line})
}

func (e *wsEmitter) FileModified(path, action string) {
	e.conn.send(serverFrame{Type: "file_modified", FilePath: path, Action: action})
}

func (e *wsEmitter) ConfirmRequest(confirmationID, name string, input json.RawMessage) {
	e.conn.send(serverFrame{
		Type:           "tool_confirm_request",
		ConfirmationID: confirmationID,
		ToolName:       name,
		ToolInput:      input,
		Description:    fmt.Sprintf("%s 도구는 파일이나 시스템을 변경할 수 있습니다. 실행할까요?", name),
	})
	e.conn.send(serverFrame{Type: "waiting_confirmation", ConfirmationID: confirmationID})
}

func (e *wsEmitter) UserInputRequest(confirmationID, question string, options []string, defaultOption string) {
	e.conn.send(serverFrame{
		Type:           "user_input_request",
		ConfirmationID: confirmationID,
		Question:       question,
		Options:        options,
		Default:        defaultOption,
	})
	e.conn.send(serverFrame{Type: "waiting_confirmation", ConfirmationID: confirmationID})
}

func (e *wsEmitter) Done(content string) {
	e.conn.send(serverFrame{Type: "done", Content: content})
}

func (e *wsEmitter) Cancelled() {
	e.conn.send(serverFrame{Type: "cancelled", Content: "요청이 취소되었습니다"})
}

func (e *wsEmitter) Error(message string) {
	e.conn.send(serverFrame{Type: "error", Content: message})
}

// handleChatWS runs one IDE tab's conversation. Each connection gets a
// fresh session; dropping the socket cancels the turn in flight and
// discards pending confirmations.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	sess := s.store.GetOrCreate(sessionID)
	wc := &wsConn{conn: conn}
	em := &wsEmitter{conn: wc, sess: sess, cfg: s.cfg}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wc.send(serverFrame{Type: "system", SessionID: sessionID, Content: "세션이 연결되었습니다"})
	log.Printf("[WS] session %s connected", sessionID)

	// One turn at a time per connection.
	var running atomic.Bool
	var wg sync.WaitGroup

	launch := func(fn func()) bool {
		if !running.CompareAndSwap(false, true) {
			wc.send(serverFrame{Type: "error", Content: "이미 처리 중인 요청이 있습니다. 완료나 취소를 기다려 주세요."})
			return false
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer running.Store(false)
			fn()
		}()
		return true
	}

	for {
		_, data, readErr := conn.ReadMessage()
		if readErr != nil {
			break
		}
		frame, parseErr := parseClientFrame(data)
		if parseErr != nil {
			wc.send(serverFrame{Type: "error", Content: fmt.Sprintf("잘못된 메시지 형식입니다: %v", parseErr)})
			continue
		}

		switch frame.Type {
		case "chat":
			msg := frame.Message
			sess.SetHints(frame.CurrentFile, frame.OpenTabs)
			sess.SetUserContext(frame.Context)
			launch(func() {
				s.controller.RunTurn(ctx, sess, msg, em)
			})
		case "cancel":
			s.controller.Abort(ctx, sess)
		case "tool_confirm":
			id, approved := frame.ConfirmationID, frame.Approved
			launch(func() {
				if _, resumeErr := s.controller.Resume(ctx, sess, id, approved, em); resumeErr != nil {
					wc.send(serverFrame{Type: "error", Content: resumeErr.Error()})
				}
			})
		case "user_input":
			id, answer := frame.ConfirmationID, frame.Answer
			launch(func() {
				if _, ansErr := s.controller.AnswerUserInput(ctx, sess, id, answer, em); ansErr != nil {
					wc.send(serverFrame{Type: "error", Content: ansErr.Error()})
				}
			})
		}
	}

	// Disconnect is an implicit cancel.
	cancel()
	s.controller.Abort(context.Background(), sess)
	sess.DropPending()
	wg.Wait()
	s.store.Delete(sessionID)
	log.Printf("[WS] session %s closed", sessionID)
}

// parseClientFrame validates a frame against the schema, then enforces
// the per-type required fields.
func parseClientFrame(data []byte) (*clientFrame, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if err := clientFrameSchema.Validate(raw); err != nil {
		return nil, err
	}
	var f clientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	switch f.Type {
	case "chat":
		if f.Message == "" {
			return nil, fmt.Errorf("message가 비어 있습니다")
		}
	case "tool_confirm", "user_input":
		if f.ConfirmationID == "" {
			return nil, fmt.Errorf("confirmation_id가 필요합니다")
		}
	}
	return &f, nil
}
