// Package progress implements the bottom-up completion roll-up:
// task completions fold into phase plans, plans into roadmaps, roadmaps
// into epics, and epics into the vision. Parent status is derived from
// completion, never set independently, and a failed child surfaces as
// blocked on every ancestor until it is explicitly cleared.
package progress

import (
	"time"

	"github.com/cairnhq/cairn/internal/hierarchy"
	"github.com/cairnhq/cairn/pkg/models"
)

// Derive returns the status implied by a completion percentage. stuck
// marks a failed or blocked child, which wins over any percentage.
func Derive(completion float64, stuck bool) models.NodeStatus {
	switch {
	case stuck:
		return models.NodeStatusBlocked
	case completion <= 0:
		return models.NodeStatusPending
	case completion >= 100:
		return models.NodeStatusCompleted
	default:
		return models.NodeStatusInProgress
	}
}

// RollUpPlan recomputes a phase plan's completion and status from its
// embedded tasks. A plan without tasks keeps its own values: completion
// is only derived once children exist.
func RollUpPlan(p *models.PhasePlan, now time.Time) {
	if p == nil || len(p.Tasks) == 0 {
		return
	}

	var sum float64
	stuck := false
	for _, task := range p.Tasks {
		sum += task.CompletionPercentage
		if task.Status == models.NodeStatusFailed || task.Status == models.NodeStatusBlocked {
			stuck = true
		}
	}

	p.CompletionPercentage = sum / float64(len(p.Tasks))
	p.Status = Derive(p.CompletionPercentage, stuck)
	p.Touch(now)
}

// RollUpParent recomputes a parent's completion and status from its
// child references. It serves roadmaps, epics, and the vision alike; a
// parent without references keeps its own values.
func RollUpParent(meta *models.NodeMeta, refs []models.PlanRef, now time.Time) {
	if meta == nil || len(refs) == 0 {
		return
	}

	stuck := false
	for _, ref := range refs {
		if ref.Status == models.NodeStatusFailed || ref.Status == models.NodeStatusBlocked {
			stuck = true
			break
		}
	}

	meta.CompletionPercentage = hierarchy.CalculateOverallCompletion(refs)
	meta.Status = Derive(meta.CompletionPercentage, stuck)
	meta.Touch(now)
}

// RollUpTree folds a fully loaded hierarchy bottom-up, refreshing each
// parent's references from the current child nodes along the way.
func RollUpTree(batch *hierarchy.Batch, now time.Time) {
	if batch == nil {
		return
	}

	for _, p := range batch.Plans {
		RollUpPlan(p, now)
	}

	planBySlug := make(map[string]*models.PhasePlan, len(batch.Plans))
	for _, p := range batch.Plans {
		planBySlug[p.Slug] = p
	}
	for _, rm := range batch.Roadmaps {
		for i, ref := range rm.Plans {
			if p, ok := planBySlug[ref.Slug]; ok {
				rm.Plans[i] = hierarchy.RefFor(p.NodeMeta)
			}
		}
		RollUpParent(&rm.NodeMeta, rm.Plans, now)
	}

	roadmapBySlug := make(map[string]*models.Roadmap, len(batch.Roadmaps))
	for _, rm := range batch.Roadmaps {
		roadmapBySlug[rm.Slug] = rm
	}
	for _, e := range batch.Epics {
		for i, ref := range e.Roadmaps {
			if rm, ok := roadmapBySlug[ref.Slug]; ok {
				e.Roadmaps[i] = hierarchy.RefFor(rm.NodeMeta)
			}
		}
		RollUpParent(&e.NodeMeta, e.Roadmaps, now)
	}

	if batch.Vision == nil {
		return
	}
	epicBySlug := make(map[string]*models.Epic, len(batch.Epics))
	for _, e := range batch.Epics {
		epicBySlug[e.Slug] = e
	}
	for i, ref := range batch.Vision.Epics {
		if e, ok := epicBySlug[ref.Slug]; ok {
			batch.Vision.Epics[i] = hierarchy.RefFor(e.NodeMeta)
		}
	}
	RollUpParent(&batch.Vision.NodeMeta, batch.Vision.Epics, now)
}
