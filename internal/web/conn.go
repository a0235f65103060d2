package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gorilla/websocket"

	"github.com/mark3labs/reagent/internal/classify"
	"github.com/mark3labs/reagent/internal/history"
	"github.com/mark3labs/reagent/internal/logger"
)

// request is any inbound client message; fields beyond type are per-kind.
type request struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// conn handles one WebSocket connection. Messages are processed one at a
// time, so a turn finishes streaming before the next request is read.
type conn struct {
	srv     *Server
	ctx     context.Context
	send    func(v any) error
	session string
}

func (c *conn) run(ws *websocket.Conn) {
	if err := c.send(map[string]any{
		"type":    "connected",
		"message": "websocket connected",
	}); err != nil {
		logger.Warn("Failed to send greeting: %v", err)
		return
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("WebSocket read failed: %v", err)
			}
			return
		}
		c.route(data)
	}
}

// route dispatches one client message. Errors are reported to the client and
// never end the connection.
func (c *conn) route(data []byte) {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		c.sendError(fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	switch req.Type {
	case "message":
		c.handleUserMessage(req)
	case "create_session":
		c.handleCreateSession(req)
	case "switch_session":
		c.handleSwitchSession(req)
	case "delete_session":
		c.handleDeleteSession(req)
	case "list_sessions":
		c.handleListSessions()
	case "load_history":
		c.handleLoadHistory(req)
	default:
		c.sendError(fmt.Sprintf("unknown message type: %q", req.Type))
	}
}

func (c *conn) sendError(msg string) {
	if err := c.send(map[string]any{"type": "error", "message": msg}); err != nil {
		logger.Warn("Failed to send error reply: %v", err)
	}
}

func (c *conn) handleUserMessage(req request) {
	if req.SessionID == "" {
		c.sendError("missing session_id")
		return
	}
	if req.Content == "" {
		c.sendError("message content must not be empty")
		return
	}

	a := c.srv.agentFor(req.SessionID)
	c.session = req.SessionID

	stream := a.Stream(c.ctx, req.Content)
	defer stream.Close()

	cls := classify.New(stream, classify.NewResolver(c.srv.tools.Providers()))
	for {
		ev, err := cls.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			c.sendError(fmt.Sprintf("turn failed: %v", err))
			return
		}
		if wireErr := c.send(wireEvent(ev)); wireErr != nil {
			logger.Warn("Failed to stream event, dropping turn: %v", wireErr)
			return
		}
	}
}

// wireEvent converts a presentation event to its wire shape. Thinking goes
// out as text_delta so the browser grows the same message bubble instead of
// opening a separate thinking view.
func wireEvent(ev classify.Event) map[string]any {
	switch e := ev.(type) {
	case classify.Thinking:
		return map[string]any{"type": "text_delta", "content": e.Text}
	case classify.Answer:
		return map[string]any{"type": "text_delta", "content": e.Text}
	case classify.ToolCall:
		return map[string]any{
			"type":      "tool_call",
			"tool_name": qualifiedName(e.Provider, e.Tool),
			"arguments": e.Arguments,
		}
	case classify.ToolResult:
		return map[string]any{
			"type":      "tool_output",
			"tool_name": qualifiedName(e.Provider, e.Tool),
			"output":    e.Output,
		}
	case classify.Complete:
		return map[string]any{"type": "complete"}
	default:
		return map[string]any{"type": "error", "message": fmt.Sprintf("unhandled event %T", ev)}
	}
}

func qualifiedName(provider, tool string) string {
	if provider == "" {
		return tool
	}
	return provider + ":" + tool
}

func (c *conn) handleCreateSession(req request) {
	id := req.SessionID
	if id == "" {
		id = newSessionID()
	}
	c.srv.agentFor(id)
	c.reply("session_created", id)
}

func (c *conn) handleSwitchSession(req request) {
	if req.SessionID == "" {
		c.sendError("missing session_id")
		return
	}
	c.srv.agentFor(req.SessionID)
	c.session = req.SessionID
	c.reply("session_switched", req.SessionID)
}

func (c *conn) handleDeleteSession(req request) {
	if req.SessionID == "" {
		c.sendError("missing session_id")
		return
	}
	if err := c.srv.store.Delete(c.ctx, req.SessionID); err != nil {
		c.sendError(fmt.Sprintf("failed to delete session: %v", err))
		return
	}
	c.srv.dropAgent(req.SessionID)
	if c.session == req.SessionID {
		c.session = ""
	}
	c.reply("session_deleted", req.SessionID)
}

func (c *conn) reply(kind, session string) {
	if err := c.send(map[string]any{"type": kind, "session_id": session}); err != nil {
		logger.Warn("Failed to send %s reply: %v", kind, err)
	}
}

func (c *conn) handleListSessions() {
	sessions, err := c.srv.store.Sessions(c.ctx)
	if err != nil {
		c.sendError(fmt.Sprintf("failed to list sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []string{}
	}
	if err := c.send(map[string]any{"type": "sessions_list", "sessions": sessions}); err != nil {
		logger.Warn("Failed to send sessions list: %v", err)
	}
}

func (c *conn) handleLoadHistory(req request) {
	if req.SessionID == "" {
		c.sendError("missing session_id")
		return
	}

	items, err := c.srv.store.Items(c.ctx, req.SessionID)
	if err != nil {
		c.sendError(fmt.Sprintf("failed to load history: %v", err))
		return
	}

	messages := make([]map[string]any, 0, len(items))
	for _, item := range items {
		messages = append(messages, historyMessage(item))
	}

	if err := c.send(map[string]any{
		"type":       "history_loaded",
		"session_id": req.SessionID,
		"messages":   messages,
	}); err != nil {
		logger.Warn("Failed to send history: %v", err)
	}
}

// historyMessage converts a stored item to the shape the browser renders.
func historyMessage(item history.Item) map[string]any {
	ts := item.Timestamp.UnixMilli()
	switch item.Kind {
	case history.KindToolCall:
		return map[string]any{
			"id":        item.ID,
			"type":      "tool_call",
			"role":      "assistant",
			"content":   fmt.Sprintf("Calling tool: %s", item.ToolName),
			"toolName":  item.ToolName,
			"toolArgs":  item.Arguments,
			"status":    "completed",
			"timestamp": ts,
		}
	case history.KindToolOutput:
		return map[string]any{
			"id":         item.ID,
			"type":       "tool_output",
			"role":       "assistant",
			"content":    "",
			"toolName":   item.ToolName,
			"toolOutput": item.Output,
			"status":     "completed",
			"timestamp":  ts,
		}
	case history.KindAssistant:
		return map[string]any{
			"id":        item.ID,
			"type":      "assistant",
			"role":      "assistant",
			"content":   item.Content,
			"timestamp": ts,
		}
	default:
		return map[string]any{
			"id":        item.ID,
			"type":      "user",
			"role":      "user",
			"content":   item.Content,
			"timestamp": ts,
		}
	}
}
