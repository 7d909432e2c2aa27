// Package agent spawns external AI execution agents and tracks their
// lifecycle. Each agent receives one spawn descriptor, performs one
// exchange with the model, and reports completed, blocked, or failed.
package agent

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cairnhq/cairn/internal/api"
	"github.com/cairnhq/cairn/pkg/models"
)

// Common errors for agent lifecycle tracking.
var (
	// ErrAgentNotFound indicates the requested agent does not exist.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrInvalidTransition indicates an invalid status transition was attempted.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status is an agent's position in its lifecycle.
type Status string

const (
	// StatusPending means the agent is spawned but not yet running.
	StatusPending Status = "pending"
	// StatusRunning means the agent exchange is in flight.
	StatusRunning Status = "running"
	// StatusCompleted means the agent finished its node.
	StatusCompleted Status = "completed"
	// StatusBlocked means the agent reported it could not proceed.
	StatusBlocked Status = "blocked"
	// StatusFailed means the agent failed or never answered.
	StatusFailed Status = "failed"
)

// validTransitions defines the allowed status transitions.
// Key is the current status, value is the set of valid target statuses.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusBlocked:   true,
		StatusFailed:    true,
	},
	// Terminal statuses cannot transition to anything else
	StatusCompleted: {},
	StatusBlocked:   {},
	StatusFailed:    {},
}

// CanTransition checks if a status transition is valid.
func CanTransition(from, to Status) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// statusForOutcome maps an agent's reported outcome to its terminal status.
func statusForOutcome(outcome models.AgentOutcome) Status {
	switch outcome {
	case models.AgentCompleted:
		return StatusCompleted
	case models.AgentBlocked:
		return StatusBlocked
	default:
		return StatusFailed
	}
}

// Record is the ledger entry for one spawned agent.
type Record struct {
	// ID is the agent's generated identifier.
	ID string
	// Slug names the hierarchy node the agent executes.
	Slug string
	// Domain is the classified domain the agent works in.
	Domain string
	// Status is the agent's current lifecycle status.
	Status Status
	// Budget is the context budget granted at spawn.
	Budget int64
	// Usage is the token usage reported by the API for the exchange.
	Usage api.Usage
	// Reason carries the blocked or failed explanation.
	Reason string
	// StartedAt is when the agent was spawned.
	StartedAt time.Time
	// EndedAt is when the agent reached a terminal status.
	EndedAt time.Time
}

// Manager tracks spawned agents for budget accounting and reporting.
type Manager struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
}

// NewManager creates an empty agent manager.
func NewManager() *Manager {
	return &Manager{records: make(map[string]*Record)}
}

// Spawn registers a new agent in pending status and returns a copy of
// its record.
func (m *Manager) Spawn(id string, spawn models.SpawnDescriptor) *Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := &Record{
		ID:        id,
		Slug:      spawn.Slug,
		Domain:    spawn.Domain,
		Status:    StatusPending,
		Budget:    spawn.ContextBudget,
		StartedAt: time.Now(),
	}
	m.records[id] = rec
	m.order = append(m.order, id)

	out := *rec
	return &out
}

// Start transitions an agent from pending to running.
func (m *Manager) Start(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrAgentNotFound
	}
	if !CanTransition(rec.Status, StatusRunning) {
		return fmt.Errorf("%w: cannot transition from %s to running", ErrInvalidTransition, rec.Status)
	}
	rec.Status = StatusRunning
	return nil
}

// Finish moves an agent to the terminal status matching its outcome and
// records the token usage from the exchange.
func (m *Manager) Finish(id string, outcome models.AgentOutcome, usage api.Usage, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return ErrAgentNotFound
	}
	target := statusForOutcome(outcome)
	if !CanTransition(rec.Status, target) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, rec.Status, target)
	}
	rec.Status = target
	rec.Usage = usage
	rec.Reason = reason
	rec.EndedAt = time.Now()
	return nil
}

// Get returns a copy of the agent's record.
func (m *Manager) Get(id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, ErrAgentNotFound
	}
	out := *rec
	return &out, nil
}

// List returns copies of all records in spawn order.
func (m *Manager) List() []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*Record, 0, len(m.order))
	for _, id := range m.order {
		out := *m.records[id]
		records = append(records, &out)
	}
	return records
}

// Usage returns the combined token usage across all tracked agents.
func (m *Manager) Usage() api.Usage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total api.Usage
	for _, rec := range m.records {
		total.InputTokens += rec.Usage.InputTokens
		total.OutputTokens += rec.Usage.OutputTokens
	}
	return total
}

// Active returns the number of agents currently running.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, rec := range m.records {
		if rec.Status == StatusRunning {
			count++
		}
	}
	return count
}
