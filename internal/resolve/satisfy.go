package resolve

import (
	"github.com/cairnhq/cairn/pkg/models"
)

// StatusLookup resolves a slug to its current status. The second return
// is false when the slug is unknown, which counts as unsatisfied.
type StatusLookup func(slug string) (models.NodeStatus, bool)

// CheckPlanDependencies reports whether every dependency declared for
// slug in the edge set is completed. An unsatisfied dependency is a
// result, not an error: the caller treats it as "not ready".
func CheckPlanDependencies(slug string, edges []models.DependencyEdge, lookup StatusLookup) models.DependencyCheck {
	var missing []string
	seen := make(map[string]bool)

	for _, edge := range edges {
		if edge.DependentSlug != slug || seen[edge.DependsOnSlug] {
			continue
		}
		seen[edge.DependsOnSlug] = true

		status, ok := lookup(edge.DependsOnSlug)
		if !ok || status != models.NodeStatusCompleted {
			missing = append(missing, edge.DependsOnSlug)
		}
	}

	return models.DependencyCheck{
		Satisfied: len(missing) == 0,
		Missing:   missing,
	}
}
