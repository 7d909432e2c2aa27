package progress

import (
	"testing"
	"time"

	"github.com/cairnhq/cairn/internal/hierarchy"
	"github.com/cairnhq/cairn/pkg/models"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name       string
		completion float64
		stuck      bool
		want       models.NodeStatus
	}{
		{"zero is pending", 0, false, models.NodeStatusPending},
		{"partial is in progress", 33.3, false, models.NodeStatusInProgress},
		{"full is completed", 100, false, models.NodeStatusCompleted},
		{"stuck wins over zero", 0, true, models.NodeStatusBlocked},
		{"stuck wins over full", 100, true, models.NodeStatusBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derive(tt.completion, tt.stuck); got != tt.want {
				t.Errorf("Derive(%v, %v) = %q, want %q", tt.completion, tt.stuck, got, tt.want)
			}
		})
	}
}

func TestRollUpPlan(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	p := &models.PhasePlan{
		NodeMeta: models.NodeMeta{Slug: "checkout", Status: models.NodeStatusPlanning},
		Tasks: []models.Task{
			{Slug: "cart", Status: models.NodeStatusCompleted, CompletionPercentage: 100},
			{Slug: "payment", Status: models.NodeStatusInProgress, CompletionPercentage: 50},
			{Slug: "receipt", Status: models.NodeStatusPending},
		},
	}

	RollUpPlan(p, now)

	if p.CompletionPercentage != 50 {
		t.Errorf("CompletionPercentage = %v, want 50", p.CompletionPercentage)
	}
	if p.Status != models.NodeStatusInProgress {
		t.Errorf("Status = %q, want in_progress", p.Status)
	}
	if !p.Updated.Equal(now) {
		t.Errorf("Updated = %v, want %v", p.Updated, now)
	}
}

func TestRollUpPlan_FailedTaskBlocks(t *testing.T) {
	p := &models.PhasePlan{
		Tasks: []models.Task{
			{Slug: "cart", Status: models.NodeStatusCompleted, CompletionPercentage: 100},
			{Slug: "payment", Status: models.NodeStatusFailed, CompletionPercentage: 20},
		},
	}

	RollUpPlan(p, time.Now())

	if p.Status != models.NodeStatusBlocked {
		t.Errorf("Status = %q, a failed task must surface as blocked", p.Status)
	}
}

func TestRollUpPlan_NoTasksKeepsOwnValues(t *testing.T) {
	p := &models.PhasePlan{
		NodeMeta: models.NodeMeta{Status: models.NodeStatusInProgress, CompletionPercentage: 40},
	}

	RollUpPlan(p, time.Now())

	if p.CompletionPercentage != 40 || p.Status != models.NodeStatusInProgress {
		t.Errorf("childless plan changed to %v%% %q, completion is only derived from children",
			p.CompletionPercentage, p.Status)
	}
}

func TestRollUpParent(t *testing.T) {
	meta := &models.NodeMeta{Slug: "launch"}
	refs := []models.PlanRef{
		{Slug: "a", Status: models.NodeStatusCompleted, CompletionPercentage: 100},
		{Slug: "b", Status: models.NodeStatusInProgress, CompletionPercentage: 50},
		{Slug: "c", Status: models.NodeStatusPending},
	}

	RollUpParent(meta, refs, time.Now())

	if meta.CompletionPercentage != 50 {
		t.Errorf("CompletionPercentage = %v, want 50", meta.CompletionPercentage)
	}
	if meta.Status != models.NodeStatusInProgress {
		t.Errorf("Status = %q, want in_progress", meta.Status)
	}
}

func TestRollUpParent_BlockedChildSticks(t *testing.T) {
	meta := &models.NodeMeta{}
	refs := []models.PlanRef{
		{Slug: "a", Status: models.NodeStatusBlocked, CompletionPercentage: 100},
	}

	RollUpParent(meta, refs, time.Now())

	if meta.Status != models.NodeStatusBlocked {
		t.Errorf("Status = %q, a blocked child must keep ancestors blocked", meta.Status)
	}
}

func TestRollUpTree(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	plan1 := &models.PhasePlan{
		NodeMeta:    models.NodeMeta{Slug: "plan-1"},
		RoadmapSlug: "rm-1",
		Tasks: []models.Task{
			{Slug: "t1", Status: models.NodeStatusCompleted, CompletionPercentage: 100},
			{Slug: "t2", Status: models.NodeStatusCompleted, CompletionPercentage: 100},
		},
	}
	plan2 := &models.PhasePlan{
		NodeMeta:    models.NodeMeta{Slug: "plan-2"},
		RoadmapSlug: "rm-1",
		Tasks: []models.Task{
			{Slug: "t3", Status: models.NodeStatusPending},
		},
	}
	rm := &models.Roadmap{
		NodeMeta: models.NodeMeta{Slug: "rm-1"},
		EpicSlug: "epic-1",
		Plans: []models.PlanRef{
			{Slug: "plan-1"},
			{Slug: "plan-2"},
		},
	}
	epic := &models.Epic{
		NodeMeta:   models.NodeMeta{Slug: "epic-1"},
		VisionSlug: "vision-1",
		Roadmaps:   []models.PlanRef{{Slug: "rm-1"}},
	}
	vision := &models.Vision{
		NodeMeta: models.NodeMeta{Slug: "vision-1"},
		Epics:    []models.PlanRef{{Slug: "epic-1"}},
	}

	batch := &hierarchy.Batch{
		Vision:   vision,
		Epics:    []*models.Epic{epic},
		Roadmaps: []*models.Roadmap{rm},
		Plans:    []*models.PhasePlan{plan1, plan2},
	}

	RollUpTree(batch, now)

	if plan1.CompletionPercentage != 100 || plan1.Status != models.NodeStatusCompleted {
		t.Errorf("plan1 = %v%% %q, want 100%% completed", plan1.CompletionPercentage, plan1.Status)
	}
	if rm.CompletionPercentage != 50 {
		t.Errorf("roadmap completion = %v, want mean of 100 and 0", rm.CompletionPercentage)
	}
	if rm.Plans[0].CompletionPercentage != 100 {
		t.Errorf("roadmap ref = %+v, want refreshed from the plan node", rm.Plans[0])
	}
	if epic.CompletionPercentage != 50 || vision.CompletionPercentage != 50 {
		t.Errorf("epic/vision completion = %v/%v, want 50/50",
			epic.CompletionPercentage, vision.CompletionPercentage)
	}
	if vision.Status != models.NodeStatusInProgress {
		t.Errorf("vision status = %q, want in_progress", vision.Status)
	}
}

func TestRollUpTree_FailurePropagatesToRoot(t *testing.T) {
	plan := &models.PhasePlan{
		NodeMeta:    models.NodeMeta{Slug: "plan-1"},
		RoadmapSlug: "rm-1",
		Tasks: []models.Task{
			{Slug: "t1", Status: models.NodeStatusFailed, CompletionPercentage: 10},
		},
	}
	rm := &models.Roadmap{
		NodeMeta: models.NodeMeta{Slug: "rm-1"},
		Plans:    []models.PlanRef{{Slug: "plan-1"}},
	}
	epic := &models.Epic{
		NodeMeta: models.NodeMeta{Slug: "epic-1"},
		Roadmaps: []models.PlanRef{{Slug: "rm-1"}},
	}
	vision := &models.Vision{
		NodeMeta: models.NodeMeta{Slug: "vision-1"},
		Epics:    []models.PlanRef{{Slug: "epic-1"}},
	}

	RollUpTree(&hierarchy.Batch{
		Vision:   vision,
		Epics:    []*models.Epic{epic},
		Roadmaps: []*models.Roadmap{rm},
		Plans:    []*models.PhasePlan{plan},
	}, time.Now())

	if plan.Status != models.NodeStatusBlocked {
		t.Errorf("plan status = %q, want blocked", plan.Status)
	}
	for name, status := range map[string]models.NodeStatus{
		"roadmap": rm.Status,
		"epic":    epic.Status,
		"vision":  vision.Status,
	} {
		if status != models.NodeStatusBlocked {
			t.Errorf("%s status = %q, failure must stay sticky to the root", name, status)
		}
	}
}
