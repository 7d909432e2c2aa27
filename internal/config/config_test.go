package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cairnhq/cairn/pkg/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Defaults.TokenBudget != 200000 {
		t.Errorf("expected default token budget 200000, got %d", cfg.Defaults.TokenBudget)
	}

	if cfg.Defaults.PlanType != "" {
		t.Errorf("expected empty default plan type, got %q", cfg.Defaults.PlanType)
	}

	if cfg.Anthropic.UseBedrock {
		t.Error("expected bedrock to be disabled by default")
	}

	if cfg.Tests.Command != "go test ./..." {
		t.Errorf("expected default test command 'go test ./...', got %q", cfg.Tests.Command)
	}

	if cfg.Timeouts.Agent != 15*time.Minute {
		t.Errorf("expected agent timeout 15m, got %v", cfg.Timeouts.Agent)
	}

	if cfg.Timeouts.Tests != 10*time.Minute {
		t.Errorf("expected tests timeout 10m, got %v", cfg.Timeouts.Tests)
	}

	if cfg.TUI.RefreshRate != time.Second {
		t.Errorf("expected refresh rate 1s, got %v", cfg.TUI.RefreshRate)
	}

	if cfg.Tracker.Enabled {
		t.Error("expected tracker to be disabled by default")
	}

	if len(cfg.Gates.Execution) != 2 {
		t.Errorf("expected 2 default execution gates, got %v", cfg.Gates.Execution)
	}
}

func TestLoadFromPath(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
  model: claude-opus-4-20250514
  use_bedrock: true
  region: us-west-2
defaults:
  token_budget: 50000
  plan_type: roadmap
tests:
  command: npm test
gates:
  validation: [tests, dependency]
tracker:
  enabled: true
  repo: cairnhq/demo
timeouts:
  agent: 20m
  tests: 5m
tui:
  refresh_rate: 200ms
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}

	if cfg.Anthropic.Model != "claude-opus-4-20250514" {
		t.Errorf("expected model 'claude-opus-4-20250514', got %q", cfg.Anthropic.Model)
	}

	if !cfg.Anthropic.UseBedrock {
		t.Error("expected use_bedrock to be true")
	}

	if cfg.Anthropic.Region != "us-west-2" {
		t.Errorf("expected region 'us-west-2', got %q", cfg.Anthropic.Region)
	}

	if cfg.Defaults.TokenBudget != 50000 {
		t.Errorf("expected token budget 50000, got %d", cfg.Defaults.TokenBudget)
	}

	if cfg.Defaults.PlanType != "roadmap" {
		t.Errorf("expected plan type 'roadmap', got %q", cfg.Defaults.PlanType)
	}

	if cfg.Tests.Command != "npm test" {
		t.Errorf("expected test command 'npm test', got %q", cfg.Tests.Command)
	}

	if len(cfg.Gates.Validation) != 2 || cfg.Gates.Validation[0] != "tests" {
		t.Errorf("expected validation gates [tests dependency], got %v", cfg.Gates.Validation)
	}

	// Unset sections keep their defaults
	if len(cfg.Gates.Execution) != 2 {
		t.Errorf("expected default execution gates to survive, got %v", cfg.Gates.Execution)
	}

	if !cfg.Tracker.Enabled {
		t.Error("expected tracker.enabled to be true")
	}

	if cfg.Tracker.Repo != "cairnhq/demo" {
		t.Errorf("expected tracker repo 'cairnhq/demo', got %q", cfg.Tracker.Repo)
	}

	if cfg.Timeouts.Agent != 20*time.Minute {
		t.Errorf("expected agent timeout 20m, got %v", cfg.Timeouts.Agent)
	}

	if cfg.Timeouts.Tests != 5*time.Minute {
		t.Errorf("expected tests timeout 5m, got %v", cfg.Timeouts.Tests)
	}

	if cfg.TUI.RefreshRate != 200*time.Millisecond {
		t.Errorf("expected refresh rate 200ms, got %v", cfg.TUI.RefreshRate)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	os.Setenv("XDG_CONFIG_HOME", tmpDir)
	defer os.Unsetenv("XDG_CONFIG_HOME")

	cfg := Default()
	cfg.Anthropic.APIKey = "sk-ant-roundtrip"
	cfg.Defaults.TokenBudget = 75000
	cfg.Timeouts.Agent = 30 * time.Minute

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if loaded.Anthropic.APIKey != "sk-ant-roundtrip" {
		t.Errorf("expected saved api_key to round-trip, got %q", loaded.Anthropic.APIKey)
	}

	if loaded.Defaults.TokenBudget != 75000 {
		t.Errorf("expected token budget 75000, got %d", loaded.Defaults.TokenBudget)
	}

	if loaded.Timeouts.Agent != 30*time.Minute {
		t.Errorf("expected agent timeout 30m, got %v", loaded.Timeouts.Agent)
	}
}

func TestGatesSets(t *testing.T) {
	cfg := Default()
	sets := cfg.Gates.Sets()

	if got := sets[models.StageSecurity]; len(got) != 1 || got[0] != "security" {
		t.Errorf("expected security stage gates [security], got %v", got)
	}

	if got := sets[models.StageExecution]; len(got) != 2 {
		t.Errorf("expected 2 execution stage gates, got %v", got)
	}

	if got := sets[models.StageValidation]; len(got) != 1 || got[0] != "tests" {
		t.Errorf("expected validation stage gates [tests], got %v", got)
	}
}

func TestExpandEnv(t *testing.T) {
	// Set environment variable
	os.Setenv("TEST_VAR", "expanded-value")
	defer os.Unsetenv("TEST_VAR")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	// Test with XDG_CONFIG_HOME set
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	defer os.Unsetenv("XDG_CONFIG_HOME")

	dir := getUserConfigDir()
	expected := "/custom/config/cairn"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}

	if got := GetKeywordsPath(); got != "/custom/config/cairn/keywords.yaml" {
		t.Errorf("unexpected keywords path %q", got)
	}
}
