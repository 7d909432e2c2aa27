package main

import (
	"testing"
	"time"

	"github.com/cairnhq/cairn/internal/config"
)

func TestSetConfigValue(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr bool
		check   func(*config.Config) bool
	}{
		{
			name:  "model",
			key:   "anthropic.model",
			value: "claude-opus-4-20250514",
			check: func(c *config.Config) bool { return c.Anthropic.Model == "claude-opus-4-20250514" },
		},
		{
			name:  "bedrock flag",
			key:   "anthropic.use_bedrock",
			value: "true",
			check: func(c *config.Config) bool { return c.Anthropic.UseBedrock },
		},
		{
			name:    "bedrock flag rejects non-boolean",
			key:     "anthropic.use_bedrock",
			value:   "yes please",
			wantErr: true,
		},
		{
			name:  "token budget",
			key:   "defaults.token_budget",
			value: "500000",
			check: func(c *config.Config) bool { return c.Defaults.TokenBudget == 500000 },
		},
		{
			name:    "token budget rejects negative",
			key:     "defaults.token_budget",
			value:   "-1",
			wantErr: true,
		},
		{
			name:    "token budget rejects text",
			key:     "defaults.token_budget",
			value:   "lots",
			wantErr: true,
		},
		{
			name:  "plan type",
			key:   "defaults.plan_type",
			value: "roadmap",
			check: func(c *config.Config) bool { return c.Defaults.PlanType == "roadmap" },
		},
		{
			name:  "plan type cleared",
			key:   "defaults.plan_type",
			value: "",
			check: func(c *config.Config) bool { return c.Defaults.PlanType == "" },
		},
		{
			name:    "plan type rejects unknown tier",
			key:     "defaults.plan_type",
			value:   "mega_plan",
			wantErr: true,
		},
		{
			name:  "test command",
			key:   "tests.command",
			value: "make test",
			check: func(c *config.Config) bool { return c.Tests.Command == "make test" },
		},
		{
			name:  "agent timeout",
			key:   "timeouts.agent",
			value: "20m",
			check: func(c *config.Config) bool { return c.Timeouts.Agent == 20*time.Minute },
		},
		{
			name:    "agent timeout rejects bare number",
			key:     "timeouts.agent",
			value:   "20",
			wantErr: true,
		},
		{
			name:  "refresh rate",
			key:   "tui.refresh_rate",
			value: "500ms",
			check: func(c *config.Config) bool { return c.TUI.RefreshRate == 500*time.Millisecond },
		},
		{
			name:    "unknown key",
			key:     "defaults.color_scheme",
			value:   "solarized",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			err := setConfigValue(cfg, tt.key, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("setConfigValue(%q, %q) succeeded, want error", tt.key, tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("setConfigValue(%q, %q) failed: %v", tt.key, tt.value, err)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("setConfigValue(%q, %q) did not apply", tt.key, tt.value)
			}
		})
	}
}

func TestSetConfigValueDoesNotTouchOtherFields(t *testing.T) {
	cfg := config.Default()
	defaultCommand := cfg.Tests.Command

	if err := setConfigValue(cfg, "anthropic.model", "claude-haiku-3-5-20241022"); err != nil {
		t.Fatalf("setConfigValue failed: %v", err)
	}
	if cfg.Tests.Command != defaultCommand {
		t.Errorf("tests.command changed to %q, want %q", cfg.Tests.Command, defaultCommand)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		expected string
	}{
		{"empty", "", "(not set)"},
		{"short", "abc", "****"},
		{"exactly eight", "12345678", "****"},
		{"long shows tail", "sk-ant-api03-xyz9", "****xyz9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskSecret(tt.secret)
			if result != tt.expected {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.secret, result, tt.expected)
			}
		})
	}
}
