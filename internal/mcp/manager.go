// Package mcp manages connections to external MCP tool providers and exposes
// their tools to the reasoning engine.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mark3labs/reagent/internal/config"
	"github.com/mark3labs/reagent/internal/engine"
	"github.com/mark3labs/reagent/internal/logger"
)

const (
	// defaultTimeout is applied when a server config carries no timeout.
	defaultTimeout = 60 * time.Second
	// connectGrace is added on top of the configured timeout for the
	// connect/initialize/list-tools handshake.
	connectGrace = 10 * time.Second
)

// provider is one connected tool server and its declared tools.
type provider struct {
	name   string
	client *mcpclient.Client
	tools  []mcp.Tool
}

// Manager holds the set of connected tool providers for the lifetime of the
// process. Connection failures are per-provider: a server that cannot be
// reached is skipped, never fatal.
type Manager struct {
	providers []*provider
}

// Connect establishes sessions with every configured tool provider. Servers
// that fail to connect within their timeout are logged and skipped.
func Connect(ctx context.Context, cfg *config.MCPConfig) *Manager {
	m := &Manager{}

	for _, sc := range cfg.Servers {
		p, err := connectOne(ctx, sc)
		if err != nil {
			logger.Error("Failed to connect MCP server %s (%s): %v", sc.Name, sc.Protocol, err)
			continue
		}
		logger.Info("Connected MCP server %s (%s), %d tools", sc.Name, sc.Protocol, len(p.tools))
		m.providers = append(m.providers, p)
	}

	logger.Info("Connected %d of %d MCP servers", len(m.providers), len(cfg.Servers))
	return m
}

func connectOne(ctx context.Context, sc config.MCPServerConfig) (*provider, error) {
	timeout := defaultTimeout
	if sc.Timeout > 0 {
		timeout = time.Duration(sc.Timeout * float64(time.Second))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout+connectGrace)
	defer cancel()

	var (
		c   *mcpclient.Client
		err error
	)
	switch sc.Protocol {
	case "stdio":
		env := make([]string, 0, len(sc.Env))
		for k, v := range sc.Env {
			env = append(env, k+"="+v)
		}
		c, err = mcpclient.NewStdioMCPClient(sc.Command, env, sc.Args...)
		if err != nil {
			return nil, fmt.Errorf("starting stdio client: %w", err)
		}
	case "sse":
		c, err = mcpclient.NewSSEMCPClient(sc.URL)
		if err != nil {
			return nil, fmt.Errorf("creating sse client: %w", err)
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("starting sse client: %w", err)
		}
	case "streamablehttp":
		c, err = mcpclient.NewStreamableHttpClient(sc.URL)
		if err != nil {
			return nil, fmt.Errorf("creating streamablehttp client: %w", err)
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("starting streamablehttp client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", sc.Protocol)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "reagent",
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initializing session: %w", err)
	}

	toolsResult, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("listing tools: %w", err)
	}

	return &provider{name: sc.Name, client: c, tools: toolsResult.Tools}, nil
}

// Providers returns each connected provider's declared tool names, the
// catalog the tool reference resolver scans.
func (m *Manager) Providers() map[string][]string {
	out := make(map[string][]string, len(m.providers))
	for _, p := range m.providers {
		names := make([]string, 0, len(p.tools))
		for _, t := range p.tools {
			names = append(names, t.Name)
		}
		sort.Strings(names)
		out[p.name] = names
	}
	return out
}

// Specs returns the tool declarations to advertise to the engine. Tool names
// stay bare unless two providers declare the same name, in which case they
// are qualified as provider:tool to keep them callable.
func (m *Manager) Specs() []engine.ToolSpec {
	seen := map[string]int{}
	for _, p := range m.providers {
		for _, t := range p.tools {
			seen[t.Name]++
		}
	}

	var specs []engine.ToolSpec
	for _, p := range m.providers {
		for _, t := range p.tools {
			name := t.Name
			if seen[t.Name] > 1 {
				name = p.name + ":" + t.Name
			}
			params, err := json.Marshal(t.InputSchema)
			if err != nil {
				params = json.RawMessage(`{"type":"object"}`)
			}
			specs = append(specs, engine.ToolSpec{
				Name:        name,
				Description: t.Description,
				Parameters:  params,
			})
		}
	}
	return specs
}

// Call invokes the named tool. A provider-qualified name (provider:tool) is
// routed directly; a bare name goes to the first connected provider declaring
// it. The returned output is the concatenated text content of the result.
func (m *Manager) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	providerName, toolName, qualified := strings.Cut(name, ":")
	if !qualified {
		toolName = name
		providerName = ""
	}

	var target *provider
	for _, p := range m.providers {
		if providerName != "" && p.name != providerName {
			continue
		}
		for _, t := range p.tools {
			if t.Name == toolName {
				target = p
				break
			}
		}
		if target != nil {
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("no connected provider declares tool %q", name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args

	logger.Debug("Calling tool %s on provider %s", toolName, target.name)
	result, err := target.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("calling tool %s: %w", name, err)
	}

	output := flattenContent(result.Content)
	if result.IsError {
		logger.Warn("Tool %s reported an error result", name)
	}
	return output, nil
}

// flattenContent joins the text parts of a tool result. Non-text parts are
// represented by their JSON encoding so nothing disappears from display.
func flattenContent(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
			continue
		}
		if data, err := json.Marshal(c); err == nil {
			parts = append(parts, string(data))
		}
	}
	return strings.Join(parts, "\n")
}

// Close disconnects every provider. Errors are logged, not returned: teardown
// must not block shutdown.
func (m *Manager) Close() {
	for _, p := range m.providers {
		if err := p.client.Close(); err != nil {
			logger.Warn("Error closing MCP server %s: %v", p.name, err)
		} else {
			logger.Debug("MCP server %s closed", p.name)
		}
	}
}
