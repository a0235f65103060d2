// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for reagent.
type Config struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	Model     string `mapstructure:"model" yaml:"model"`
	DataDir   string `mapstructure:"data_dir" yaml:"data_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file"`
	WebHost   string `mapstructure:"web_host" yaml:"web_host"`
	WebPort   int    `mapstructure:"web_port" yaml:"web_port"`
	MCPConfig string `mapstructure:"mcp_config" yaml:"mcp_config"`
}

// Load loads configuration with full precedence:
// ENV vars > project config > XDG global config > defaults.
// The OPENAI_* variable names are honored alongside the REAGENT_ prefix so an
// environment set up for other OpenAI-compatible tooling works unchanged.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("reagent")

	// api_key, base_url and model have no defaults - they are required.
	v.SetDefault("data_dir", ".reagent")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("web_host", "localhost")
	v.SetDefault("web_port", 8000)
	v.SetDefault("mcp_config", "mcp.json")

	v.SetEnvPrefix("REAGENT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit bindings: REAGENT_* takes precedence, OPENAI_* as fallback.
	binds := map[string][]string{
		"api_key":    {"REAGENT_API_KEY", "OPENAI_API_KEY"},
		"base_url":   {"REAGENT_BASE_URL", "OPENAI_BASE_URL"},
		"model":      {"REAGENT_MODEL", "OPENAI_MODEL"},
		"data_dir":   {"REAGENT_DATA_DIR"},
		"log_level":  {"REAGENT_LOG_LEVEL"},
		"log_file":   {"REAGENT_LOG_FILE"},
		"web_host":   {"REAGENT_WEB_HOST", "WEB_HOST"},
		"web_port":   {"REAGENT_WEB_PORT", "WEB_PORT"},
		"mcp_config": {"REAGENT_MCP_CONFIG"},
	}
	for key, envs := range binds {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	// Load global config first (if exists).
	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	// Merge project config on top (if exists).
	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the fields required to reach the reasoning engine are
// present. Returns an error naming every missing variable so the user can fix
// them in one pass.
func (c *Config) Validate() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.BaseURL == "" {
		missing = append(missing, "OPENAI_BASE_URL")
	}
	if c.Model == "" {
		missing = append(missing, "OPENAI_MODEL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/reagent/reagent.yml or $XDG_CONFIG_HOME/reagent/reagent.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "reagent", "reagent.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "reagent", "reagent.yml")
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return "reagent.yml"
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
