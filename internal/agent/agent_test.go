package agent

import (
	"errors"
	"testing"

	"github.com/cairnhq/cairn/internal/api"
	"github.com/cairnhq/cairn/pkg/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     Status
		to       Status
		expected bool
	}{
		{"pending to running", StatusPending, StatusRunning, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"pending to completed", StatusPending, StatusCompleted, false},
		{"pending to blocked", StatusPending, StatusBlocked, false},

		{"running to completed", StatusRunning, StatusCompleted, true},
		{"running to blocked", StatusRunning, StatusBlocked, true},
		{"running to failed", StatusRunning, StatusFailed, true},
		{"running to pending", StatusRunning, StatusPending, false},

		// Terminal statuses
		{"completed to running", StatusCompleted, StatusRunning, false},
		{"blocked to running", StatusBlocked, StatusRunning, false},
		{"failed to running", StatusFailed, StatusRunning, false},

		{"unknown to running", Status("unknown"), StatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestManagerSpawn(t *testing.T) {
	m := NewManager()

	rec := m.Spawn("agent-1", models.SpawnDescriptor{
		Domain:        "backend",
		Slug:          "checkout-api",
		ContextBudget: 50000,
	})
	if rec.Status != StatusPending {
		t.Errorf("Spawn() Status = %q, want %q", rec.Status, StatusPending)
	}
	if rec.Slug != "checkout-api" {
		t.Errorf("Spawn() Slug = %q, want %q", rec.Slug, "checkout-api")
	}
	if rec.Domain != "backend" {
		t.Errorf("Spawn() Domain = %q, want %q", rec.Domain, "backend")
	}
	if rec.Budget != 50000 {
		t.Errorf("Spawn() Budget = %d, want 50000", rec.Budget)
	}
	if rec.StartedAt.IsZero() {
		t.Error("Spawn() StartedAt should be set")
	}
}

func TestManagerFinish(t *testing.T) {
	tests := []struct {
		name    string
		outcome models.AgentOutcome
		want    Status
	}{
		{"completed", models.AgentCompleted, StatusCompleted},
		{"blocked", models.AgentBlocked, StatusBlocked},
		{"failed", models.AgentFailed, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			m.Spawn("agent-1", models.SpawnDescriptor{Slug: "checkout-api"})
			if err := m.Start("agent-1"); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			usage := api.Usage{InputTokens: 1200, OutputTokens: 400}
			if err := m.Finish("agent-1", tt.outcome, usage, "why"); err != nil {
				t.Fatalf("Finish() error = %v", err)
			}

			rec, err := m.Get("agent-1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if rec.Status != tt.want {
				t.Errorf("Status = %q, want %q", rec.Status, tt.want)
			}
			if rec.Usage.Total() != 1600 {
				t.Errorf("Usage.Total() = %d, want 1600", rec.Usage.Total())
			}
			if rec.EndedAt.IsZero() {
				t.Error("EndedAt should be set")
			}
		})
	}
}

func TestManagerInvalidTransitions(t *testing.T) {
	m := NewManager()
	m.Spawn("agent-1", models.SpawnDescriptor{Slug: "checkout-api"})

	// Completing a pending agent skips running.
	if err := m.Finish("agent-1", models.AgentCompleted, api.Usage{}, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Finish() on pending error = %v, want ErrInvalidTransition", err)
	}

	if err := m.Start("agent-1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Finish("agent-1", models.AgentCompleted, api.Usage{}, ""); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	// Terminal statuses stay terminal.
	if err := m.Finish("agent-1", models.AgentFailed, api.Usage{}, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Finish() on completed error = %v, want ErrInvalidTransition", err)
	}
	if err := m.Start("agent-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Start() on completed error = %v, want ErrInvalidTransition", err)
	}
}

func TestManagerNotFound(t *testing.T) {
	m := NewManager()

	if err := m.Start("ghost"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("Start() error = %v, want ErrAgentNotFound", err)
	}
	if _, err := m.Get("ghost"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("Get() error = %v, want ErrAgentNotFound", err)
	}
	if err := m.Finish("ghost", models.AgentCompleted, api.Usage{}, ""); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("Finish() error = %v, want ErrAgentNotFound", err)
	}
}

func TestManagerUsageAggregates(t *testing.T) {
	m := NewManager()
	for i, id := range []string{"a", "b"} {
		m.Spawn(id, models.SpawnDescriptor{Slug: "node"})
		if err := m.Start(id); err != nil {
			t.Fatalf("Start(%s) error = %v", id, err)
		}
		usage := api.Usage{InputTokens: int64(1000 * (i + 1)), OutputTokens: 500}
		if err := m.Finish(id, models.AgentCompleted, usage, ""); err != nil {
			t.Fatalf("Finish(%s) error = %v", id, err)
		}
	}

	total := m.Usage()
	if total.InputTokens != 3000 {
		t.Errorf("Usage().InputTokens = %d, want 3000", total.InputTokens)
	}
	if total.OutputTokens != 1000 {
		t.Errorf("Usage().OutputTokens = %d, want 1000", total.OutputTokens)
	}
}

func TestManagerListOrder(t *testing.T) {
	m := NewManager()
	for _, id := range []string{"first", "second", "third"} {
		m.Spawn(id, models.SpawnDescriptor{Slug: id})
	}

	list := m.List()
	if len(list) != 3 {
		t.Fatalf("List() returned %d records, want 3", len(list))
	}
	for i, want := range []string{"first", "second", "third"} {
		if list[i].ID != want {
			t.Errorf("List()[%d].ID = %q, want %q", i, list[i].ID, want)
		}
	}
}

func TestManagerActive(t *testing.T) {
	m := NewManager()
	m.Spawn("a", models.SpawnDescriptor{Slug: "a"})
	if err := m.Start("a"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	m.Spawn("b", models.SpawnDescriptor{Slug: "b"})

	if got := m.Active(); got != 1 {
		t.Errorf("Active() = %d, want 1", got)
	}
}
