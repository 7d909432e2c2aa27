package agent

import (
	"fmt"
	"strings"

	"github.com/cairnhq/cairn/pkg/models"
)

// statusPrefix and reasonPrefix mark the trailer lines an agent ends its
// reply with.
const (
	statusPrefix = "STATUS:"
	reasonPrefix = "REASON:"
)

// systemPrompt frames the exchange for an execution agent.
const systemPrompt = `You are an execution agent assigned one node of a
development plan. Do the work the node describes, then report.

End your reply with a trailer:

STATUS: completed, blocked, or failed
REASON: one short sentence, only when blocked or failed

Stay inside the assigned node. If you discover unrelated work, mention it
in your summary instead of doing it.`

// buildPrompt renders the spawn descriptor as the agent's task prompt.
func buildPrompt(spawn models.SpawnDescriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Node: %s\n", spawn.Slug)
	if spawn.Domain != "" {
		fmt.Fprintf(&b, "Domain: %s\n", spawn.Domain)
	}
	if spawn.ContextBudget > 0 {
		fmt.Fprintf(&b, "Context budget: %d tokens\n", spawn.ContextBudget)
	}
	b.WriteString("\nExecute this node and report status in the trailer format.")
	return b.String()
}

// parseOutcome extracts the agent's reported status, summary, and reason
// from its reply. Outcome is empty when no valid status line is present.
func parseOutcome(reply string) (models.AgentOutcome, string, string) {
	var outcome models.AgentOutcome
	var reason string
	var body []string

	for _, line := range strings.Split(reply, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		switch {
		case strings.HasPrefix(upper, statusPrefix):
			value := strings.ToLower(strings.TrimSpace(trimmed[len(statusPrefix):]))
			if candidate := models.AgentOutcome(value); candidate.Valid() {
				outcome = candidate
			}
		case strings.HasPrefix(upper, reasonPrefix):
			reason = strings.TrimSpace(trimmed[len(reasonPrefix):])
		default:
			body = append(body, line)
		}
	}

	return outcome, strings.TrimSpace(strings.Join(body, "\n")), reason
}
