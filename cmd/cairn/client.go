package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/cairnhq/cairn/internal/agent"
	"github.com/cairnhq/cairn/internal/api"
	"github.com/cairnhq/cairn/internal/classify"
	"github.com/cairnhq/cairn/internal/config"
	"github.com/cairnhq/cairn/internal/exec"
	"github.com/cairnhq/cairn/internal/gate"
	"github.com/cairnhq/cairn/internal/orchestrator"
	"github.com/cairnhq/cairn/internal/runner"
	"github.com/cairnhq/cairn/internal/track"
	"github.com/cairnhq/cairn/pkg/models"
)

// stateDirName is the project state directory created next to the code.
const stateDirName = ".cairn"

// stateDir resolves the project state directory from the working
// directory.
func stateDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return filepath.Join(cwd, stateDirName), nil
}

// loadConfig loads the layered configuration, falling back to built-in
// defaults when loading fails.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Warning: could not load config: %v (using defaults)\n", err)
		return config.Default()
	}
	return cfg
}

// newClassifier builds the keyword classifier, merging the user's
// keyword table file when one exists.
func newClassifier() *classify.Classifier {
	c := classify.New()
	path := config.GetKeywordsPath()
	if _, err := os.Stat(path); err == nil {
		if err := c.LoadTables(path); err != nil {
			fmt.Printf("Warning: could not load keyword tables from %s: %v\n", path, err)
		}
	}
	return c
}

// newGateEngine builds the gate engine from the configured gate names.
// Unknown names are skipped with a warning; a stage whose configured
// list yields no known gates keeps the engine defaults.
func newGateEngine(cfg *config.Config) *gate.Engine {
	engine := gate.NewEngine()
	for stage, names := range cfg.Gates.Sets() {
		var gates []gate.Gate
		for _, name := range names {
			g, ok := gateFor(name)
			if !ok {
				fmt.Printf("Warning: unknown gate %q configured for the %s stage\n", name, stage)
				continue
			}
			gates = append(gates, g)
		}
		if len(gates) > 0 {
			engine.SetGates(stage, gates...)
		}
	}
	return engine
}

// gateFor maps a configured gate name to its implementation.
func gateFor(name string) (gate.Gate, bool) {
	switch name {
	case "security":
		return gate.SecurityGate{}, true
	case "dependency":
		return gate.DependencyGate{}, true
	case "budget":
		return gate.BudgetGate{}, true
	case "tests":
		return gate.TestsGate{}, true
	default:
		return nil, false
	}
}

// newTestRunner builds the validation test runner from the configured
// test command.
func newTestRunner(cfg *config.Config) *runner.Runner {
	return runner.New(exec.NewRunner(), cfg.Tests.Command, cfg.Tests.Dir, cfg.Timeouts.Tests)
}

// newTracker builds the issue tracker collaborator. Tracking degrades
// to a no-op when disabled or when gh is not installed.
func newTracker(cfg *config.Config) track.Tracker {
	if !cfg.Tracker.Enabled {
		return track.NopTracker{}
	}
	t := track.NewGHTracker(exec.NewRunner(), cfg.Tracker.Repo, cfg.Tracker.Labels)
	if !t.Available() {
		fmt.Println("Warning: tracker enabled but gh is not installed; tracking disabled")
		return track.NopTracker{}
	}
	return t
}

// newAgentExecutor builds the API-backed execution agent collaborator.
func newAgentExecutor(cfg *config.Config) (orchestrator.AgentExecutor, error) {
	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.Region,
		AWSProfile:    cfg.Anthropic.Profile,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	executor := agent.NewExecutor(client).WithTimeout(cfg.Timeouts.Agent)
	return &agentBridge{exec: executor}, nil
}

// agentBridge narrows agent results to the fields the orchestrator
// consumes.
type agentBridge struct {
	exec *agent.Executor
}

func (b *agentBridge) Execute(ctx context.Context, spawn models.SpawnDescriptor) (*orchestrator.AgentResult, error) {
	res, err := b.exec.Execute(ctx, spawn)
	if err != nil {
		return nil, err
	}
	return &orchestrator.AgentResult{
		AgentID:    res.AgentID,
		Outcome:    res.Outcome,
		Reason:     res.Reason,
		TokensUsed: res.Usage.Total(),
	}, nil
}
