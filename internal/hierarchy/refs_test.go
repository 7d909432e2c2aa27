package hierarchy

import (
	"testing"

	"github.com/cairnhq/cairn/pkg/models"
)

func TestAddPlanReference_AppendsAndUpserts(t *testing.T) {
	refs := AddPlanReference(nil, models.PlanRef{Slug: "auth", Title: "Auth", Status: models.NodeStatusPending})
	refs = AddPlanReference(refs, models.PlanRef{Slug: "billing", Title: "Billing", Status: models.NodeStatusPending})

	if len(refs) != 2 {
		t.Fatalf("refs = %v, want 2 entries", refs)
	}

	// Re-adding an existing slug must update in place, never duplicate.
	refs = AddPlanReference(refs, models.PlanRef{
		Slug:                 "auth",
		Title:                "Auth",
		Status:               models.NodeStatusCompleted,
		CompletionPercentage: 100,
	})

	if len(refs) != 2 {
		t.Fatalf("after upsert refs = %v, want still 2 entries", refs)
	}
	if refs[0].Slug != "auth" || refs[0].Status != models.NodeStatusCompleted {
		t.Errorf("refs[0] = %+v, want auth updated in place", refs[0])
	}
}

func TestUpdatePlanReference_CreatesWhenMissing(t *testing.T) {
	refs := UpdatePlanReference(nil, models.PlanRef{Slug: "new", Title: "New"})
	if len(refs) != 1 || refs[0].Slug != "new" {
		t.Errorf("UpdatePlanReference on empty list = %v, want the ref created", refs)
	}
}

func TestRemovePlanReference_PrunesEdges(t *testing.T) {
	refs := []models.PlanRef{
		{Slug: "auth"},
		{Slug: "billing"},
		{Slug: "reports"},
	}
	edges := []models.DependencyEdge{
		{DependentSlug: "billing", DependsOnSlug: "auth"},
		{DependentSlug: "reports", DependsOnSlug: "billing"},
		{DependentSlug: "reports", DependsOnSlug: "auth"},
	}

	refs, edges = RemovePlanReference(refs, edges, "billing")

	if len(refs) != 2 {
		t.Fatalf("refs = %v, want billing removed", refs)
	}
	for _, r := range refs {
		if r.Slug == "billing" {
			t.Error("billing still present after removal")
		}
	}
	if len(edges) != 1 {
		t.Fatalf("edges = %v, want only reports->auth to survive", edges)
	}
	if edges[0].DependentSlug != "reports" || edges[0].DependsOnSlug != "auth" {
		t.Errorf("surviving edge = %+v, want reports->auth", edges[0])
	}
}

func TestRemovePlanReference_AbsentSlugIsNoop(t *testing.T) {
	refs := []models.PlanRef{{Slug: "auth"}}
	edges := []models.DependencyEdge{{DependentSlug: "auth", DependsOnSlug: "schema"}}

	gotRefs, gotEdges := RemovePlanReference(refs, edges, "ghost")
	if len(gotRefs) != 1 || len(gotEdges) != 1 {
		t.Errorf("removing an absent slug changed state: refs=%v edges=%v", gotRefs, gotEdges)
	}
}

func TestCalculateOverallCompletion(t *testing.T) {
	tests := []struct {
		name string
		refs []models.PlanRef
		want float64
	}{
		{"no children", nil, 0},
		{"single child", []models.PlanRef{{CompletionPercentage: 40}}, 40},
		{
			"mean of mixed children",
			[]models.PlanRef{
				{CompletionPercentage: 100},
				{CompletionPercentage: 50},
				{CompletionPercentage: 0},
			},
			50,
		},
		{
			"missing values count as zero",
			[]models.PlanRef{
				{CompletionPercentage: 100},
				{Slug: "unreported"},
			},
			50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateOverallCompletion(tt.refs); got != tt.want {
				t.Errorf("CalculateOverallCompletion() = %v, want %v", got, tt.want)
			}
		})
	}
}
