package main

import (
	"context"
	"fmt"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/mark3labs/reagent/internal/agent"
	"github.com/mark3labs/reagent/internal/config"
	"github.com/mark3labs/reagent/internal/engine"
	"github.com/mark3labs/reagent/internal/history"
	"github.com/mark3labs/reagent/internal/logger"
	"github.com/mark3labs/reagent/internal/mcp"
)

// runtime bundles everything both commands need: configuration, the
// embedded event store, connected tool servers and the model engine.
type runtime struct {
	cfg   *config.Config
	ns    *natsserver.Server
	nc    *nats.Conn
	store *history.Store
	tools *mcp.Manager
	eng   agent.Engine
}

func startRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		logger.Warn("Failed to configure logger: %v", err)
	}

	ns, err := history.StartEmbedded(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to start embedded NATS: %w", err)
	}

	nc, err := history.ConnectInProcess(ns)
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("failed to connect to embedded NATS: %w", err)
	}

	js, err := history.NewJetStream(nc)
	if err != nil {
		_ = history.Shutdown(nc, ns)
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := history.NewStore(ctx, js)
	if err != nil {
		_ = history.Shutdown(nc, ns)
		return nil, fmt.Errorf("failed to create history store: %w", err)
	}

	tools := mcp.Connect(ctx, config.LoadMCP(cfg.MCPConfig))

	return &runtime{
		cfg:   cfg,
		ns:    ns,
		nc:    nc,
		store: store,
		tools: tools,
		eng:   agent.NewEngine(engine.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Model)),
	}, nil
}

func (r *runtime) shutdown() {
	r.tools.Close()
	if err := history.Shutdown(r.nc, r.ns); err != nil {
		logger.Warn("NATS shutdown: %v", err)
	}
}
