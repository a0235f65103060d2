package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/reagent/internal/logger"
)

// MCPServerConfig describes one external tool provider.
type MCPServerConfig struct {
	Name     string            `json:"name"`
	Protocol string            `json:"protocol"` // stdio, sse or streamablehttp
	Command  string            `json:"command,omitempty"`
	Args     []string          `json:"args,omitempty"`
	URL      string            `json:"url,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Timeout  float64           `json:"timeout,omitempty"` // seconds
}

// MCPConfig is the parsed tool-provider configuration file.
type MCPConfig struct {
	Servers []MCPServerConfig `json:"servers"`
}

// Validate checks protocol-specific required fields.
func (c MCPServerConfig) Validate() error {
	switch c.Protocol {
	case "stdio":
		if c.Command == "" {
			return fmt.Errorf("stdio server %q requires a command", c.Name)
		}
	case "sse", "streamablehttp":
		if c.URL == "" {
			return fmt.Errorf("%s server %q requires a url", c.Protocol, c.Name)
		}
	default:
		return fmt.Errorf("server %q has unsupported protocol: %s", c.Name, c.Protocol)
	}
	return nil
}

// LoadMCP loads the tool-provider configuration from a JSON file.
// A missing or malformed file is not fatal: the assistant runs without tools,
// so this logs a warning and returns an empty config instead of an error.
func LoadMCP(path string) *MCPConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("MCP config file %s not found, running without tool providers", path)
		} else {
			logger.Warn("Failed to read MCP config %s: %v, running without tool providers", path, err)
		}
		return &MCPConfig{}
	}

	var cfg MCPConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		logger.Warn("MCP config %s is not valid JSON: %v, running without tool providers", path, err)
		return &MCPConfig{}
	}

	valid := cfg.Servers[:0]
	for _, s := range cfg.Servers {
		if err := s.Validate(); err != nil {
			logger.Warn("Skipping MCP server config: %v", err)
			continue
		}
		valid = append(valid, s)
	}
	cfg.Servers = valid

	return &cfg
}
