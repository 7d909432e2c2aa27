package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cairnhq/cairn/internal/api"
	"github.com/cairnhq/cairn/pkg/models"
)

// mockCompleter implements Completer for testing.
type mockCompleter struct {
	reply string
	usage api.Usage
	err   error
	block bool

	lastSystem string
	lastPrompt string
	lastMax    int64
}

func (m *mockCompleter) Complete(ctx context.Context, system, prompt string, maxTokens int64) (string, api.Usage, error) {
	m.lastSystem = system
	m.lastPrompt = prompt
	m.lastMax = maxTokens
	if m.block {
		<-ctx.Done()
		return "", api.Usage{}, ctx.Err()
	}
	return m.reply, m.usage, m.err
}

func TestExecute_Completed(t *testing.T) {
	mock := &mockCompleter{
		reply: "Implemented the checkout endpoint and added tests.\n\nSTATUS: completed",
		usage: api.Usage{InputTokens: 2000, OutputTokens: 800},
	}
	e := NewExecutor(mock)

	res, err := e.Execute(context.Background(), models.SpawnDescriptor{
		Domain:        "backend",
		Slug:          "checkout-api",
		ContextBudget: 50000,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if res.Outcome != models.AgentCompleted {
		t.Errorf("Outcome = %q, want %q", res.Outcome, models.AgentCompleted)
	}
	if res.Summary != "Implemented the checkout endpoint and added tests." {
		t.Errorf("Summary = %q", res.Summary)
	}
	if res.Usage.Total() != 2800 {
		t.Errorf("Usage.Total() = %d, want 2800", res.Usage.Total())
	}
	if res.AgentID == "" {
		t.Error("AgentID should be set")
	}

	rec, err := e.Manager().Get(res.AgentID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Status != StatusCompleted {
		t.Errorf("record Status = %q, want %q", rec.Status, StatusCompleted)
	}
	if !strings.Contains(mock.lastPrompt, "checkout-api") {
		t.Errorf("prompt missing node slug: %q", mock.lastPrompt)
	}
	if !strings.Contains(mock.lastSystem, "STATUS") {
		t.Error("system prompt should describe the status trailer")
	}
}

func TestExecute_BlockedWithReason(t *testing.T) {
	mock := &mockCompleter{
		reply: "Cannot proceed.\nSTATUS: blocked\nREASON: waiting on schema migration",
	}
	e := NewExecutor(mock)

	res, err := e.Execute(context.Background(), models.SpawnDescriptor{Slug: "orders-db"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Outcome != models.AgentBlocked {
		t.Errorf("Outcome = %q, want %q", res.Outcome, models.AgentBlocked)
	}
	if res.Reason != "waiting on schema migration" {
		t.Errorf("Reason = %q", res.Reason)
	}
}

func TestExecute_LowercaseStatusLine(t *testing.T) {
	mock := &mockCompleter{reply: "done\nstatus: completed"}
	e := NewExecutor(mock)

	res, err := e.Execute(context.Background(), models.SpawnDescriptor{Slug: "node"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Outcome != models.AgentCompleted {
		t.Errorf("Outcome = %q, want %q", res.Outcome, models.AgentCompleted)
	}
}

func TestExecute_MissingStatusDefaultsToFailed(t *testing.T) {
	mock := &mockCompleter{reply: "All done, great success!"}
	e := NewExecutor(mock)

	res, err := e.Execute(context.Background(), models.SpawnDescriptor{Slug: "node"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Outcome != models.AgentFailed {
		t.Errorf("Outcome = %q, want %q", res.Outcome, models.AgentFailed)
	}
	if res.Reason == "" {
		t.Error("Reason should explain the missing status line")
	}
}

func TestExecute_TimeoutCountsAsFailed(t *testing.T) {
	mock := &mockCompleter{block: true}
	e := NewExecutor(mock).WithTimeout(20 * time.Millisecond)

	res, err := e.Execute(context.Background(), models.SpawnDescriptor{Slug: "node"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Outcome != models.AgentFailed {
		t.Errorf("Outcome = %q, want %q", res.Outcome, models.AgentFailed)
	}
	if !strings.Contains(res.Reason, "timed out") {
		t.Errorf("Reason = %q, want timeout mention", res.Reason)
	}
}

func TestExecute_TransportError(t *testing.T) {
	mock := &mockCompleter{err: errors.New("api unreachable")}
	e := NewExecutor(mock)

	_, err := e.Execute(context.Background(), models.SpawnDescriptor{Slug: "node"})
	if err == nil {
		t.Fatal("Execute() should return the transport error")
	}

	// The manager still records the failed spawn.
	list := e.Manager().List()
	if len(list) != 1 {
		t.Fatalf("List() returned %d records, want 1", len(list))
	}
	if list[0].Status != StatusFailed {
		t.Errorf("record Status = %q, want %q", list[0].Status, StatusFailed)
	}
}

func TestExecute_EmptySlug(t *testing.T) {
	e := NewExecutor(&mockCompleter{})

	if _, err := e.Execute(context.Background(), models.SpawnDescriptor{}); err == nil {
		t.Error("Execute() with empty slug should return error")
	}
}

func TestExecute_NilClient(t *testing.T) {
	e := NewExecutor(nil)

	if _, err := e.Execute(context.Background(), models.SpawnDescriptor{Slug: "node"}); err == nil {
		t.Error("Execute() without a client should return error")
	}
}

func TestExecute_BudgetCapsReplyTokens(t *testing.T) {
	mock := &mockCompleter{reply: "STATUS: completed"}
	e := NewExecutor(mock)

	_, err := e.Execute(context.Background(), models.SpawnDescriptor{Slug: "node", ContextBudget: 500})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if mock.lastMax != 500 {
		t.Errorf("maxTokens = %d, want 500", mock.lastMax)
	}
}

func TestMaxTokensFor(t *testing.T) {
	tests := []struct {
		budget int64
		want   int64
	}{
		{0, maxReplyTokens},
		{500, 500},
		{200000, maxReplyTokens},
	}
	for _, tt := range tests {
		if got := maxTokensFor(tt.budget); got != tt.want {
			t.Errorf("maxTokensFor(%d) = %d, want %d", tt.budget, got, tt.want)
		}
	}
}

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantOutcome models.AgentOutcome
		wantSummary string
		wantReason  string
	}{
		{
			name:        "completed with summary",
			reply:       "Wired the endpoint.\nSTATUS: completed",
			wantOutcome: models.AgentCompleted,
			wantSummary: "Wired the endpoint.",
		},
		{
			name:        "failed with reason",
			reply:       "STATUS: failed\nREASON: tests would not pass",
			wantOutcome: models.AgentFailed,
			wantReason:  "tests would not pass",
		},
		{
			name:        "later status wins",
			reply:       "STATUS: blocked\nretried\nSTATUS: completed",
			wantOutcome: models.AgentCompleted,
			wantSummary: "retried",
		},
		{
			name:        "invalid status ignored",
			reply:       "STATUS: kinda done",
			wantOutcome: "",
		},
		{
			name:        "no trailer",
			reply:       "just prose",
			wantOutcome: "",
			wantSummary: "just prose",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, summary, reason := parseOutcome(tt.reply)
			if outcome != tt.wantOutcome {
				t.Errorf("outcome = %q, want %q", outcome, tt.wantOutcome)
			}
			if summary != tt.wantSummary {
				t.Errorf("summary = %q, want %q", summary, tt.wantSummary)
			}
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}
