// Package web exposes the agent over a WebSocket API for browser front ends.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mark3labs/reagent/internal/agent"
	"github.com/mark3labs/reagent/internal/history"
	"github.com/mark3labs/reagent/internal/logger"
)

// Tools is the callable tool surface plus the provider listing the
// classifier needs for name qualification.
type Tools interface {
	agent.Tools
	Providers() map[string][]string
}

// Store is the session-aware conversation log backing the API.
type Store interface {
	Append(ctx context.Context, item history.Item) error
	Items(ctx context.Context, session string) ([]history.Item, error)
	Delete(ctx context.Context, session string) error
	Sessions(ctx context.Context) ([]string, error)
}

// Server owns the per-session agent cache and serves WebSocket connections.
type Server struct {
	eng   agent.Engine
	tools Tools
	store Store

	mu     sync.Mutex
	agents map[string]*agent.Agent

	upgrader websocket.Upgrader
}

func NewServer(eng agent.Engine, tools Tools, store Store) *Server {
	return &Server{
		eng:    eng,
		tools:  tools,
		store:  store,
		agents: make(map[string]*agent.Agent),
		upgrader: websocket.Upgrader{
			// The browser front end is served from anywhere during
			// development, so the origin is not restricted.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// agentFor returns the cached agent for a session, creating it on first use.
func (s *Server) agentFor(session string) *agent.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.agents[session]; ok {
		return a
	}
	a := agent.New(s.eng, s.tools, s.store, session)
	s.agents[session] = a
	logger.Debug("Created agent for session %s (%d cached)", session, len(s.agents))
	return a
}

// dropAgent evicts a session's agent from the cache.
func (s *Server) dropAgent(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, session)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	logger.Info("WebSocket connection from %s", r.RemoteAddr)

	c := &conn{
		srv:  s,
		ctx:  r.Context(),
		send: ws.WriteJSON,
	}
	c.run(ws)

	logger.Info("WebSocket connection from %s closed", r.RemoteAddr)
}

// ListenAndServe serves the WebSocket API until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("WebSocket server shutdown: %v", err)
		}
	}()

	logger.Info("WebSocket API listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server failed: %w", err)
	}
	return nil
}

// newSessionID generates an ID in the shape the browser front end expects.
func newSessionID() string {
	u := uuid.New()
	return fmt.Sprintf("web_session_%x", u[:4])
}
