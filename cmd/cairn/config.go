package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/config"
	"github.com/cairnhq/cairn/pkg/models"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage cairn configuration",
	Long: `View and change cairn configuration.

Configuration layers, highest precedence first:
  1. Environment variables (ANTHROPIC_API_KEY, CAIRN_*)
  2. Project config (.cairn.yaml in the current directory or a parent)
  3. User config (~/.config/cairn/config.yaml)
  4. Built-in defaults

'set' writes to the user config; project overrides are edited by hand.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		fmt.Println("Configuration:")
		fmt.Printf("  anthropic.model: %s\n", cfg.Anthropic.Model)
		fmt.Printf("  anthropic.api_key: %s\n", maskSecret(cfg.Anthropic.APIKey))
		fmt.Printf("  anthropic.use_bedrock: %v\n", cfg.Anthropic.UseBedrock)
		if cfg.Anthropic.Region != "" {
			fmt.Printf("  anthropic.region: %s\n", cfg.Anthropic.Region)
		}
		if cfg.Anthropic.Profile != "" {
			fmt.Printf("  anthropic.profile: %s\n", cfg.Anthropic.Profile)
		}
		fmt.Printf("  defaults.token_budget: %d\n", cfg.Defaults.TokenBudget)
		if cfg.Defaults.PlanType != "" {
			fmt.Printf("  defaults.plan_type: %s\n", cfg.Defaults.PlanType)
		}
		fmt.Printf("  tests.command: %s\n", cfg.Tests.Command)
		if cfg.Tests.Dir != "" {
			fmt.Printf("  tests.dir: %s\n", cfg.Tests.Dir)
		}
		fmt.Printf("  gates.security: %s\n", strings.Join(cfg.Gates.Security, ", "))
		fmt.Printf("  gates.execution: %s\n", strings.Join(cfg.Gates.Execution, ", "))
		fmt.Printf("  gates.validation: %s\n", strings.Join(cfg.Gates.Validation, ", "))
		fmt.Printf("  tracker.enabled: %v\n", cfg.Tracker.Enabled)
		if cfg.Tracker.Repo != "" {
			fmt.Printf("  tracker.repo: %s\n", cfg.Tracker.Repo)
		}
		fmt.Printf("  timeouts.agent: %s\n", cfg.Timeouts.Agent)
		fmt.Printf("  timeouts.tests: %s\n", cfg.Timeouts.Tests)
		fmt.Printf("  tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)

		fmt.Printf("\nUser config: %s\n", config.GetUserConfigPath())
		if project := config.GetProjectConfigPath(); project != "" {
			fmt.Printf("Project config: %s\n", project)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the user config",
	Long: `Set a configuration value by its dot-notation key.

Examples:
  cairn config set anthropic.model claude-sonnet-4-20250514
  cairn config set defaults.token_budget 500000
  cairn config set tests.command "go test ./..."
  cairn config set timeouts.agent 20m`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		cfg := loadConfig()
		if err := setConfigValue(cfg, key, value); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Printf("Set %s in %s\n", key, config.GetUserConfigPath())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a project config template",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		path := filepath.Join(cwd, ".cairn.yaml")
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("Project config already exists: %s\n", path)
			return nil
		}
		if err := os.WriteFile(path, []byte(projectConfigTemplate), 0644); err != nil {
			return fmt.Errorf("write project config: %w", err)
		}
		fmt.Printf("Created %s\n", path)
		fmt.Printf("Keyword table overrides go in %s\n", config.GetKeywordsPath())
		return nil
	},
}

// projectConfigTemplate is the commented-out starting point written by
// 'config init'. Everything here overrides the user config.
const projectConfigTemplate = `# Cairn project configuration
# This file overrides ~/.config/cairn/config.yaml for this project.

# defaults:
#   token_budget: 200000
#   plan_type: ""          # force a tier: task_list, phase_dev_plan,
#                          # roadmap, epic, vision_full

# tests:
#   command: go test ./...
#   dir: ""

# gates:
#   security: [security]
#   execution: [dependency, budget]
#   validation: [tests]

# tracker:
#   enabled: false
#   repo: ""               # owner/repo; empty resolves from the git remote
#   labels: [cairn]

# timeouts:
#   agent: 15m
#   tests: 10m
`

func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q for %s", value, key)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.region":
		cfg.Anthropic.Region = value
	case "anthropic.profile":
		cfg.Anthropic.Profile = value
	case "defaults.token_budget":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid token budget %q", value)
		}
		cfg.Defaults.TokenBudget = n
	case "defaults.plan_type":
		if value != "" && !models.PlanType(value).Valid() {
			return fmt.Errorf("invalid plan type %q: must be task_list, phase_dev_plan, roadmap, epic, or vision_full", value)
		}
		cfg.Defaults.PlanType = value
	case "tests.command":
		cfg.Tests.Command = value
	case "tests.dir":
		cfg.Tests.Dir = value
	case "tracker.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q for %s", value, key)
		}
		cfg.Tracker.Enabled = b
	case "tracker.repo":
		cfg.Tracker.Repo = value
	case "timeouts.agent":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q for %s", value, key)
		}
		cfg.Timeouts.Agent = d
	case "timeouts.tests":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q for %s", value, key)
		}
		cfg.Timeouts.Tests = d
	case "tui.refresh_rate":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q for %s", value, key)
		}
		cfg.TUI.RefreshRate = d
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

// maskSecret hides all but the tail of a credential.
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
}
