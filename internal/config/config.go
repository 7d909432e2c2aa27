// Package config handles configuration loading and management for cairn.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cairnhq/cairn/pkg/models"
)

// envKeyReplacer maps config keys to environment variable segments,
// so gates.security becomes CAIRN_GATES_SECURITY.
var envKeyReplacer = strings.NewReplacer(".", "_")

// Config holds all configuration for cairn.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Tests     TestsConfig     `mapstructure:"tests"`
	Gates     GatesConfig     `mapstructure:"gates"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// UseBedrock routes requests through AWS Bedrock instead of the
	// direct Anthropic API. Credentials come from the AWS chain.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	Region     string `mapstructure:"region"`
	Profile    string `mapstructure:"profile"`
}

// DefaultsConfig holds default values for new planning runs.
type DefaultsConfig struct {
	TokenBudget int64 `mapstructure:"token_budget"`
	// PlanType forces a plan tier (task_list, phase_dev_plan, roadmap,
	// epic, vision_full). Empty means the decision engine chooses.
	PlanType string `mapstructure:"plan_type"`
}

// TestsConfig holds the validation test command.
type TestsConfig struct {
	Command string `mapstructure:"command"`
	Dir     string `mapstructure:"dir"`
}

// GatesConfig names the gates consulted at each stage boundary.
type GatesConfig struct {
	Security   []string `mapstructure:"security"`
	Execution  []string `mapstructure:"execution"`
	Validation []string `mapstructure:"validation"`
}

// Sets returns the configured gate names keyed by stage.
func (g GatesConfig) Sets() map[models.Stage][]string {
	return map[models.Stage][]string{
		models.StageSecurity:   g.Security,
		models.StageExecution:  g.Execution,
		models.StageValidation: g.Validation,
	}
}

// TrackerConfig holds issue tracker settings.
type TrackerConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Repo    string   `mapstructure:"repo"`
	Labels  []string `mapstructure:"labels"`
}

// TimeoutsConfig holds wall-clock limits for external work.
type TimeoutsConfig struct {
	Agent time.Duration `mapstructure:"agent"`
	Tests time.Duration `mapstructure:"tests"`
}

// TUIConfig holds status display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, CAIRN_*)
// 2. Project config (.cairn.yaml in current directory or parent)
// 3. User config (~/.config/cairn/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	bindEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.region", cfg.Anthropic.Region)
	v.Set("anthropic.profile", cfg.Anthropic.Profile)
	v.Set("defaults.token_budget", cfg.Defaults.TokenBudget)
	v.Set("defaults.plan_type", cfg.Defaults.PlanType)
	v.Set("tests.command", cfg.Tests.Command)
	v.Set("tests.dir", cfg.Tests.Dir)
	v.Set("gates.security", cfg.Gates.Security)
	v.Set("gates.execution", cfg.Gates.Execution)
	v.Set("gates.validation", cfg.Gates.Validation)
	v.Set("tracker.enabled", cfg.Tracker.Enabled)
	v.Set("tracker.repo", cfg.Tracker.Repo)
	v.Set("tracker.labels", cfg.Tracker.Labels)
	v.Set("timeouts.agent", cfg.Timeouts.Agent.String())
	v.Set("timeouts.tests", cfg.Timeouts.Tests.String())
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// GetKeywordsPath returns the path to the optional keyword-table
// override file consumed by the classifier.
func GetKeywordsPath() string {
	return filepath.Join(getUserConfigDir(), "keywords.yaml")
}

// bindEnv wires environment variables into the viper instance. Every
// key is reachable as CAIRN_<SECTION>_<KEY>; the Anthropic key also
// honors the conventional ANTHROPIC_API_KEY.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("CAIRN")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY", "CAIRN_ANTHROPIC_API_KEY")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Anthropic defaults
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.region", "")
	v.SetDefault("anthropic.profile", "")

	// Run defaults
	v.SetDefault("defaults.token_budget", 200000)
	v.SetDefault("defaults.plan_type", "")

	// Test runner defaults
	v.SetDefault("tests.command", "go test ./...")
	v.SetDefault("tests.dir", "")

	// Gate defaults
	v.SetDefault("gates.security", []string{"security"})
	v.SetDefault("gates.execution", []string{"dependency", "budget"})
	v.SetDefault("gates.validation", []string{"tests"})

	// Tracker defaults
	v.SetDefault("tracker.enabled", false)
	v.SetDefault("tracker.repo", "")
	v.SetDefault("tracker.labels", []string{"cairn"})

	// Timeout defaults
	v.SetDefault("timeouts.agent", "15m")
	v.SetDefault("timeouts.tests", "10m")

	// TUI defaults
	v.SetDefault("tui.refresh_rate", "1s")
}

// getUserConfigDir returns the XDG config directory for cairn.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "cairn")
	}

	// Fall back to ~/.config/cairn
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "cairn")
	}
	return filepath.Join(home, ".config", "cairn")
}

// findProjectConfig searches for .cairn.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".cairn.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			APIKey: "",
			Model:  "claude-sonnet-4-20250514",
		},
		Defaults: DefaultsConfig{
			TokenBudget: 200000,
			PlanType:    "",
		},
		Tests: TestsConfig{
			Command: "go test ./...",
		},
		Gates: GatesConfig{
			Security:   []string{"security"},
			Execution:  []string{"dependency", "budget"},
			Validation: []string{"tests"},
		},
		Tracker: TrackerConfig{
			Enabled: false,
			Labels:  []string{"cairn"},
		},
		Timeouts: TimeoutsConfig{
			Agent: 15 * time.Minute,
			Tests: 10 * time.Minute,
		},
		TUI: TUIConfig{
			RefreshRate: time.Second,
		},
	}
}
