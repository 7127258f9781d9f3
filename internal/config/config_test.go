package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Anthropic.Model != "claude-3-haiku-20240307" {
		t.Errorf("expected default model claude-3-haiku-20240307, got %s", cfg.Anthropic.Model)
	}
	if cfg.Workflow.MaxAttempts != 5 {
		t.Errorf("expected max_attempts 5, got %d", cfg.Workflow.MaxAttempts)
	}
	if cfg.Workflow.InitialWait != time.Second {
		t.Errorf("expected initial_wait 1s, got %v", cfg.Workflow.InitialWait)
	}
	if cfg.NATS.Port != 4222 {
		t.Errorf("expected nats port 4222, got %d", cfg.NATS.Port)
	}
	if !cfg.Web.Enabled {
		t.Error("expected web enabled by default")
	}
	if cfg.Data.StorePath != "data/synergo.db" {
		t.Errorf("expected store path data/synergo.db, got %s", cfg.Data.StorePath)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	// Point config to a non-existent file so we use defaults
	t.Setenv("SYNERGO_CONFIG", "/nonexistent/config.yaml")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-key")
	t.Setenv("SYNERGO_MODEL", "claude-3-5-haiku-latest")
	t.Setenv("SYNERGO_WEB_PORT", "9090")
	t.Setenv("SYNERGO_DATA_DIR", "/tmp/synergo-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Anthropic.APIKey != "sk-test-key" {
		t.Errorf("expected anthropic key sk-test-key, got %s", cfg.Anthropic.APIKey)
	}
	if cfg.Anthropic.Model != "claude-3-5-haiku-latest" {
		t.Errorf("expected model override, got %s", cfg.Anthropic.Model)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected web port 9090, got %d", cfg.Web.Port)
	}
	if cfg.Data.StorePath != filepath.Join("/tmp/synergo-test", "synergo.db") {
		t.Errorf("expected store path under data dir, got %s", cfg.Data.StorePath)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
anthropic:
  model: "claude-sonnet-4-0"
  max_tokens: 4000
workflow:
  document_path: "/custom/communication.json"
  max_attempts: 8
web:
  port: 3000
  enabled: false
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SYNERGO_CONFIG", cfgPath)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("SYNERGO_MODEL", "")
	t.Setenv("SYNERGO_WEB_PORT", "")
	t.Setenv("SYNERGO_DATA_DIR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Anthropic.Model != "claude-sonnet-4-0" {
		t.Errorf("expected model claude-sonnet-4-0, got %s", cfg.Anthropic.Model)
	}
	if cfg.Anthropic.MaxTokens != 4000 {
		t.Errorf("expected max_tokens 4000, got %d", cfg.Anthropic.MaxTokens)
	}
	if cfg.Workflow.DocumentPath != "/custom/communication.json" {
		t.Errorf("expected custom document path, got %s", cfg.Workflow.DocumentPath)
	}
	if cfg.Workflow.MaxAttempts != 8 {
		t.Errorf("expected max_attempts 8, got %d", cfg.Workflow.MaxAttempts)
	}
	if cfg.Web.Enabled {
		t.Error("expected web disabled")
	}
	if cfg.Web.Port != 3000 {
		t.Errorf("expected web port 3000, got %d", cfg.Web.Port)
	}
	// Unset fields keep defaults
	if cfg.NATS.Port != 4222 {
		t.Errorf("expected default nats port, got %d", cfg.NATS.Port)
	}
}

func TestLoadExpandsEnvInYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
anthropic:
  api_key: "${TEST_SYNERGO_KEY}"
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SYNERGO_CONFIG", cfgPath)
	t.Setenv("TEST_SYNERGO_KEY", "sk-from-env")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-from-env" {
		t.Errorf("expected expanded key sk-from-env, got %s", cfg.Anthropic.APIKey)
	}
}
