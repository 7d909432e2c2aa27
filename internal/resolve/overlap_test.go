package resolve

import (
	"testing"

	"github.com/cairnhq/cairn/pkg/models"
)

func TestFindOverlaps_RiskLevels(t *testing.T) {
	items := []models.WorkItem{
		{ID: "1", Files: []string{"api/routes.go", "api/auth.go"}},
		{ID: "2", Files: []string{"api/routes.go", "db/schema.sql"}},
		{ID: "3", Files: []string{"api/routes.go", "db/schema.sql"}},
		{ID: "4", Files: []string{"docs/readme.md"}},
	}

	overlaps := FindOverlaps(items)

	if len(overlaps) != 2 {
		t.Fatalf("FindOverlaps() = %v, want 2 records", overlaps)
	}

	byFile := make(map[string]Overlap)
	for _, o := range overlaps {
		byFile[o.File] = o
	}

	routes, ok := byFile["api/routes.go"]
	if !ok {
		t.Fatal("api/routes.go should be reported as an overlap")
	}
	if routes.ConflictRisk != RiskHigh {
		t.Errorf("three items sharing a file should be %q, got %q", RiskHigh, routes.ConflictRisk)
	}
	if len(routes.ItemIDs) != 3 {
		t.Errorf("routes.ItemIDs = %v, want 3 items", routes.ItemIDs)
	}

	schema, ok := byFile["db/schema.sql"]
	if !ok {
		t.Fatal("db/schema.sql should be reported as an overlap")
	}
	if schema.ConflictRisk != RiskMedium {
		t.Errorf("two items sharing a file should be %q, got %q", RiskMedium, schema.ConflictRisk)
	}

	if _, ok := byFile["docs/readme.md"]; ok {
		t.Error("a file referenced once must not produce an overlap record")
	}
}

func TestFindOverlaps_NoSharedFiles(t *testing.T) {
	items := []models.WorkItem{
		{ID: "1", Files: []string{"a.go"}},
		{ID: "2", Files: []string{"b.go"}},
	}
	if overlaps := FindOverlaps(items); len(overlaps) != 0 {
		t.Errorf("FindOverlaps() = %v, want none", overlaps)
	}
}

func TestSuggestOrder_RiskiestFirst(t *testing.T) {
	items := []models.WorkItem{
		{ID: "solo", Files: []string{"docs/readme.md"}},
		{ID: "busy", Files: []string{"api/routes.go", "db/schema.sql"}},
		{ID: "half", Files: []string{"api/routes.go"}},
		{ID: "other", Files: []string{"db/schema.sql"}},
	}

	order := SuggestOrder(items)

	if len(order) != 4 {
		t.Fatalf("SuggestOrder() = %v, want all 4 ids", order)
	}
	if order[0] != "busy" {
		t.Errorf("order[0] = %q, want busy (touches two shared files)", order[0])
	}
	if order[len(order)-1] != "solo" {
		t.Errorf("order last = %q, want solo (touches no shared files)", order[len(order)-1])
	}
}

func TestSuggestOrder_StableOnTies(t *testing.T) {
	items := []models.WorkItem{
		{ID: "first", Files: []string{"x.go"}},
		{ID: "second", Files: []string{"x.go"}},
	}

	order := SuggestOrder(items)
	if order[0] != "first" || order[1] != "second" {
		t.Errorf("SuggestOrder() = %v, want input order preserved on ties", order)
	}
}
