package models

// WorkItem is the raw unit fed to classification. Immutable once created.
type WorkItem struct {
	// ID identifies the item, typically an issue number or slug.
	ID string `json:"id"`
	// Title is the item's short description.
	Title string `json:"title"`
	// Body is the item's full text.
	Body string `json:"body,omitempty"`
	// Files lists paths the item references.
	Files []string `json:"files,omitempty"`
	// Labels carries tracker labels attached to the item.
	Labels []string `json:"labels,omitempty"`
}

// IssueRequest is what the engine hands an external issue tracker when a
// node wants an externally visible tracking record.
type IssueRequest struct {
	// Title becomes the issue title.
	Title string `json:"title"`
	// Body becomes the issue body.
	Body string `json:"body,omitempty"`
	// Labels are applied to the issue.
	Labels []string `json:"labels,omitempty"`
}

// IssueRef is the opaque handle an issue tracker returns, stored on the
// corresponding hierarchy node.
type IssueRef struct {
	// IssueNumber is the tracker-assigned number.
	IssueNumber int `yaml:"issue_number" json:"issue_number"`
	// IssueURL is the tracker-assigned URL.
	IssueURL string `yaml:"issue_url" json:"issue_url"`
}

// TestOutcome is what an external test runner returns. A timed-out run
// is reported as a failure, not an error.
type TestOutcome struct {
	// Passed counts passing tests.
	Passed int `json:"passed"`
	// Failed counts failing tests.
	Failed int `json:"failed"`
	// Skipped counts skipped tests.
	Skipped int `json:"skipped"`
	// Failures lists failure descriptions.
	Failures []string `json:"failures,omitempty"`
}

// SpawnDescriptor is handed to an external AI execution agent, one per
// agent.
type SpawnDescriptor struct {
	// Domain is the classified domain the agent works in.
	Domain string `json:"domain"`
	// Slug names the hierarchy node the agent executes.
	Slug string `json:"slug"`
	// ContextBudget is the token budget granted to the agent.
	ContextBudget int64 `json:"context_budget"`
}

// AgentOutcome is the status an execution agent reports back.
type AgentOutcome string

const (
	// AgentCompleted indicates the agent finished its node.
	AgentCompleted AgentOutcome = "completed"
	// AgentBlocked indicates the agent could not proceed.
	AgentBlocked AgentOutcome = "blocked"
	// AgentFailed indicates the agent failed its node.
	AgentFailed AgentOutcome = "failed"
)

// Valid returns true if the outcome is a known value.
func (o AgentOutcome) Valid() bool {
	switch o {
	case AgentCompleted, AgentBlocked, AgentFailed:
		return true
	default:
		return false
	}
}
