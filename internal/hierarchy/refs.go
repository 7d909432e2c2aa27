// Package hierarchy owns the Vision/Epic/Roadmap/PhasePlan entity graph:
// slug generation, child reference upserts, completion roll-up math,
// legacy format migration, and materializing a plan decision into nodes.
package hierarchy

import (
	"github.com/cairnhq/cairn/pkg/models"
)

// RefFor builds the denormalized parent-side reference for a node.
func RefFor(meta models.NodeMeta) models.PlanRef {
	return models.PlanRef{
		Slug:                 meta.Slug,
		Title:                meta.Title,
		Status:               meta.Status,
		CompletionPercentage: meta.CompletionPercentage,
	}
}

// AddPlanReference upserts ref into refs keyed by slug. Adding a slug
// that already exists updates the entry in place rather than
// duplicating it; this merge semantic is deliberate, not an error.
func AddPlanReference(refs []models.PlanRef, ref models.PlanRef) []models.PlanRef {
	for i := range refs {
		if refs[i].Slug == ref.Slug {
			refs[i] = ref
			return refs
		}
	}
	return append(refs, ref)
}

// UpdatePlanReference mirrors a child's current top-level fields into
// the parent's reference list. It shares AddPlanReference's upsert
// semantic, so updating a reference that was never added creates it.
func UpdatePlanReference(refs []models.PlanRef, ref models.PlanRef) []models.PlanRef {
	return AddPlanReference(refs, ref)
}

// RemovePlanReference removes the reference with the given slug and
// prunes every dependency edge naming it on either side. Removing a
// slug that is not present is a no-op.
func RemovePlanReference(refs []models.PlanRef, edges []models.DependencyEdge, slug string) ([]models.PlanRef, []models.DependencyEdge) {
	keptRefs := make([]models.PlanRef, 0, len(refs))
	for _, r := range refs {
		if r.Slug == slug {
			continue
		}
		keptRefs = append(keptRefs, r)
	}

	keptEdges := make([]models.DependencyEdge, 0, len(edges))
	for _, e := range edges {
		if e.DependentSlug == slug || e.DependsOnSlug == slug {
			continue
		}
		keptEdges = append(keptEdges, e)
	}

	return keptRefs, keptEdges
}

// CalculateOverallCompletion returns the arithmetic mean of the child
// completion percentages, treating an absent value as 0. Children are
// weighted equally regardless of size; no children means 0.
func CalculateOverallCompletion(refs []models.PlanRef) float64 {
	if len(refs) == 0 {
		return 0
	}
	var sum float64
	for _, r := range refs {
		sum += r.CompletionPercentage
	}
	return sum / float64(len(refs))
}
