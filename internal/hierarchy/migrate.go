package hierarchy

import (
	"errors"
	"time"

	"github.com/cairnhq/cairn/pkg/models"
)

// ErrNilRoadmap is returned when a migration is attempted on a nil
// roadmap.
var ErrNilRoadmap = errors.New("roadmap is required")

// legacyEdgeReason marks dependency edges produced by migration.
const legacyEdgeReason = "carried over from legacy phase dependency"

// MigrateLegacyRoadmap converts a roadmap's flat phases array into plan
// references plus dependency edges. A roadmap that already carries plan
// references is left untouched, so repeated migration is safe. Every
// legacy depends_on entry becomes exactly one DependencyEdge between
// the equivalent slugs.
func MigrateLegacyRoadmap(rm *models.Roadmap, now time.Time) (bool, error) {
	if rm == nil {
		return false, ErrNilRoadmap
	}
	if len(rm.Plans) > 0 || len(rm.Phases) == 0 {
		return false, nil
	}

	// First pass assigns a slug per phase so forward references in
	// depends_on resolve.
	slugs := make([]string, len(rm.Phases))
	slugByName := make(map[string]string, len(rm.Phases))
	var taken []string
	for i, phase := range rm.Phases {
		name := phase.Name
		if name == "" {
			name = phase.Title
		}
		slug := GenerateUniqueSlug(name, taken)
		taken = append(taken, slug)
		slugs[i] = slug
		if _, dup := slugByName[phase.Name]; !dup {
			slugByName[phase.Name] = slug
		}
	}

	for i, phase := range rm.Phases {
		status := phase.Status
		if !status.Valid() {
			status = models.NodeStatusPending
		}
		title := phase.Title
		if title == "" {
			title = phase.Name
		}
		rm.Plans = AddPlanReference(rm.Plans, models.PlanRef{
			Slug:                 slugs[i],
			Title:                title,
			Status:               status,
			CompletionPercentage: phase.CompletionPercentage,
		})

		for _, dep := range phase.DependsOn {
			target, known := slugByName[dep]
			if !known {
				target = Slugify(dep)
			}
			rm.Dependencies = append(rm.Dependencies, models.DependencyEdge{
				DependentSlug: slugs[i],
				DependsOnSlug: target,
				Reason:        legacyEdgeReason,
			})
		}
	}

	rm.Phases = nil
	rm.CompletionPercentage = CalculateOverallCompletion(rm.Plans)
	rm.Touch(now)
	return true, nil
}
