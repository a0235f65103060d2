package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGlobalPath(t *testing.T) {
	tests := []struct {
		name      string
		xdgConfig string
		want      string
	}{
		{
			name:      "with XDG_CONFIG_HOME set",
			xdgConfig: "/custom/config",
			want:      "/custom/config/reagent/reagent.yml",
		},
		{
			name:      "without XDG_CONFIG_HOME",
			xdgConfig: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.xdgConfig != "" {
				t.Setenv("XDG_CONFIG_HOME", tt.xdgConfig)
				if got := GlobalPath(); got != tt.want {
					t.Errorf("GlobalPath() = %v, want %v", got, tt.want)
				}
				return
			}

			t.Setenv("XDG_CONFIG_HOME", "")
			got := GlobalPath()
			if !filepath.IsAbs(got) {
				t.Errorf("GlobalPath() should return absolute path, got %v", got)
			}
			if filepath.Base(got) != "reagent.yml" {
				t.Errorf("GlobalPath() should end with reagent.yml, got %v", got)
			}
		})
	}
}

func TestProjectPath(t *testing.T) {
	got := ProjectPath()
	want := "reagent.yml"
	if got != want {
		t.Errorf("ProjectPath() = %v, want %v", got, want)
	}
}

func TestLoadDefaults(t *testing.T) {
	// Point XDG somewhere empty and run in a temp dir so no real config
	// files leak into the test.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDir != ".reagent" {
		t.Errorf("expected default data_dir .reagent, got %q", cfg.DataDir)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log_level info, got %q", cfg.LogLevel)
	}
	if cfg.WebHost != "localhost" || cfg.WebPort != 8000 {
		t.Errorf("expected default web address localhost:8000, got %s:%d", cfg.WebHost, cfg.WebPort)
	}
	if cfg.MCPConfig != "mcp.json" {
		t.Errorf("expected default mcp_config mcp.json, got %q", cfg.MCPConfig)
	}
}

func TestLoadEnvPrecedence(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	clearEnv(t)

	t.Run("OPENAI names are honored", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		t.Setenv("OPENAI_BASE_URL", "https://api.example.com/v1")
		t.Setenv("OPENAI_MODEL", "gpt-test")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.APIKey != "sk-test" || cfg.BaseURL != "https://api.example.com/v1" || cfg.Model != "gpt-test" {
			t.Errorf("expected OPENAI_* values, got %+v", cfg)
		}
	})

	t.Run("REAGENT names win over OPENAI names", func(t *testing.T) {
		t.Setenv("OPENAI_MODEL", "gpt-fallback")
		t.Setenv("REAGENT_MODEL", "gpt-primary")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Model != "gpt-primary" {
			t.Errorf("expected REAGENT_MODEL to win, got %q", cfg.Model)
		}
	})
}

func TestLoadProjectOverridesGlobal(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	clearEnv(t)

	globalDir := filepath.Join(xdg, "reagent")
	if err := os.MkdirAll(globalDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	global := "model: global-model\ndata_dir: global-data\n"
	if err := os.WriteFile(filepath.Join(globalDir, "reagent.yml"), []byte(global), 0644); err != nil {
		t.Fatalf("write global config: %v", err)
	}

	project := t.TempDir()
	if err := os.WriteFile(filepath.Join(project, "reagent.yml"), []byte("model: project-model\n"), 0644); err != nil {
		t.Fatalf("write project config: %v", err)
	}
	t.Chdir(project)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model != "project-model" {
		t.Errorf("expected project config to win, got %q", cfg.Model)
	}
	if cfg.DataDir != "global-data" {
		t.Errorf("expected global value to survive where project is silent, got %q", cfg.DataDir)
	}
}

func TestValidate(t *testing.T) {
	t.Run("complete config passes", func(t *testing.T) {
		cfg := &Config{APIKey: "k", BaseURL: "u", Model: "m"}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})

	t.Run("names every missing variable", func(t *testing.T) {
		cfg := &Config{}
		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected validation error")
		}
		for _, name := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL"} {
			if !strings.Contains(err.Error(), name) {
				t.Errorf("expected %s in error, got %v", name, err)
			}
		}
	})
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"REAGENT_API_KEY", "REAGENT_BASE_URL", "REAGENT_MODEL",
		"REAGENT_DATA_DIR", "REAGENT_LOG_LEVEL", "REAGENT_LOG_FILE",
		"REAGENT_WEB_HOST", "REAGENT_WEB_PORT", "REAGENT_MCP_CONFIG",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
		"WEB_HOST", "WEB_PORT",
	} {
		t.Setenv(name, "")
	}
}
