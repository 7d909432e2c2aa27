package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cairnhq/cairn/internal/api"
	"github.com/cairnhq/cairn/pkg/models"
)

// maxReplyTokens caps a single agent reply.
const maxReplyTokens = 8192

// Completer is the one exchange an execution agent needs from the API
// client.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int64) (string, api.Usage, error)
}

var _ Completer = (*api.Client)(nil)

// Result is what one agent run reports back.
type Result struct {
	// AgentID identifies the agent that produced this result.
	AgentID string
	// Slug names the node the agent executed.
	Slug string
	// Outcome is the agent's reported status.
	Outcome models.AgentOutcome
	// Summary is the agent's account of the work, minus the status trailer.
	Summary string
	// Reason explains a blocked or failed outcome.
	Reason string
	// Usage is the token usage for the exchange.
	Usage api.Usage
	// Duration is how long the exchange took.
	Duration time.Duration
}

// Executor spawns execution agents, one exchange per hierarchy node.
type Executor struct {
	client  Completer
	manager *Manager
	timeout time.Duration
}

// NewExecutor creates an executor backed by the given client.
func NewExecutor(client Completer) *Executor {
	return &Executor{client: client, manager: NewManager()}
}

// WithTimeout bounds each agent exchange.
func (e *Executor) WithTimeout(d time.Duration) *Executor {
	e.timeout = d
	return e
}

// Manager returns the lifecycle manager tracking this executor's agents.
func (e *Executor) Manager() *Manager {
	return e.manager
}

// Execute spawns one agent for the descriptor and waits for its status.
// A timed-out exchange is reported as a failed outcome, not an error;
// only an exchange that never produced a reply returns an error.
func (e *Executor) Execute(ctx context.Context, spawn models.SpawnDescriptor) (*Result, error) {
	if e.client == nil {
		return nil, errors.New("no api client configured")
	}
	if spawn.Slug == "" {
		return nil, errors.New("spawn descriptor has no slug")
	}

	agentID := uuid.New().String()[:8]
	e.manager.Spawn(agentID, spawn)
	if err := e.manager.Start(agentID); err != nil {
		return nil, err
	}
	log.Printf("[agent] %s spawned for %s (budget %d)", agentID, spawn.Slug, spawn.ContextBudget)

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, usage, err := e.client.Complete(runCtx, systemPrompt, buildPrompt(spawn), maxTokensFor(spawn.ContextBudget))
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			reason := fmt.Sprintf("agent timed out after %s", e.timeout)
			if finishErr := e.manager.Finish(agentID, models.AgentFailed, usage, reason); finishErr != nil {
				return nil, finishErr
			}
			log.Printf("[agent] %s timed out on %s", agentID, spawn.Slug)
			return &Result{
				AgentID:  agentID,
				Slug:     spawn.Slug,
				Outcome:  models.AgentFailed,
				Reason:   reason,
				Usage:    usage,
				Duration: elapsed,
			}, nil
		}
		if finishErr := e.manager.Finish(agentID, models.AgentFailed, usage, err.Error()); finishErr != nil {
			return nil, finishErr
		}
		return nil, fmt.Errorf("agent exchange: %w", err)
	}

	outcome, summary, reason := parseOutcome(reply)
	if outcome == "" {
		outcome = models.AgentFailed
		reason = "agent reply did not include a status line"
	}
	if err := e.manager.Finish(agentID, outcome, usage, reason); err != nil {
		return nil, err
	}
	log.Printf("[agent] %s finished %s: %s (%d tokens)", agentID, spawn.Slug, outcome, usage.Total())

	return &Result{
		AgentID:  agentID,
		Slug:     spawn.Slug,
		Outcome:  outcome,
		Summary:  summary,
		Reason:   reason,
		Usage:    usage,
		Duration: elapsed,
	}, nil
}

// maxTokensFor caps the reply size by the agent's context budget.
func maxTokensFor(budget int64) int64 {
	if budget > 0 && budget < maxReplyTokens {
		return budget
	}
	return maxReplyTokens
}
