package hierarchy

import (
	"errors"
	"testing"
	"time"

	"github.com/cairnhq/cairn/pkg/models"
)

func TestMigrateLegacyRoadmap(t *testing.T) {
	rm := &models.Roadmap{
		NodeMeta: models.NodeMeta{Slug: "launch", Title: "Launch"},
		Phases: []models.LegacyPhase{
			{Name: "schema", Title: "Schema work", Status: models.NodeStatusCompleted, CompletionPercentage: 100},
			{Name: "api", Title: "API work", Status: models.NodeStatusInProgress, CompletionPercentage: 50, DependsOn: []string{"schema"}},
		},
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	migrated, err := MigrateLegacyRoadmap(rm, now)
	if err != nil {
		t.Fatalf("MigrateLegacyRoadmap() error = %v", err)
	}
	if !migrated {
		t.Fatal("MigrateLegacyRoadmap() = false, want migration to run")
	}

	if len(rm.Plans) != 2 {
		t.Fatalf("Plans = %v, want 2 references", rm.Plans)
	}
	if rm.Plans[0].Slug != "schema" || rm.Plans[1].Slug != "api" {
		t.Errorf("plan slugs = %q, %q, want schema, api", rm.Plans[0].Slug, rm.Plans[1].Slug)
	}
	if rm.Plans[0].Status != models.NodeStatusCompleted || rm.Plans[0].CompletionPercentage != 100 {
		t.Errorf("schema ref = %+v, want status and completion carried over", rm.Plans[0])
	}

	if len(rm.Dependencies) != 1 {
		t.Fatalf("Dependencies = %v, want exactly 1 edge", rm.Dependencies)
	}
	edge := rm.Dependencies[0]
	if edge.DependentSlug != "api" || edge.DependsOnSlug != "schema" {
		t.Errorf("edge = %+v, want api depends on schema", edge)
	}

	if rm.Phases != nil {
		t.Error("Phases should be cleared after migration")
	}
	if rm.CompletionPercentage != 75 {
		t.Errorf("CompletionPercentage = %v, want 75 (mean of 100 and 50)", rm.CompletionPercentage)
	}
	if !rm.Updated.Equal(now) {
		t.Errorf("Updated = %v, want %v", rm.Updated, now)
	}
}

func TestMigrateLegacyRoadmap_Idempotent(t *testing.T) {
	rm := &models.Roadmap{
		Plans: []models.PlanRef{{Slug: "schema"}},
		Phases: []models.LegacyPhase{
			{Name: "schema", Title: "Schema work"},
		},
	}

	migrated, err := MigrateLegacyRoadmap(rm, time.Now())
	if err != nil {
		t.Fatalf("MigrateLegacyRoadmap() error = %v", err)
	}
	if migrated {
		t.Error("a roadmap that already has references must not migrate again")
	}
	if len(rm.Plans) != 1 {
		t.Errorf("Plans = %v, want untouched", rm.Plans)
	}
}

func TestMigrateLegacyRoadmap_NothingToMigrate(t *testing.T) {
	rm := &models.Roadmap{}
	migrated, err := MigrateLegacyRoadmap(rm, time.Now())
	if err != nil {
		t.Fatalf("MigrateLegacyRoadmap() error = %v", err)
	}
	if migrated {
		t.Error("an empty roadmap has nothing to migrate")
	}
}

func TestMigrateLegacyRoadmap_NilRoadmap(t *testing.T) {
	if _, err := MigrateLegacyRoadmap(nil, time.Now()); !errors.Is(err, ErrNilRoadmap) {
		t.Errorf("error = %v, want ErrNilRoadmap", err)
	}
}

func TestMigrateLegacyRoadmap_DefaultsInvalidStatus(t *testing.T) {
	rm := &models.Roadmap{
		Phases: []models.LegacyPhase{
			{Name: "mystery", Title: "Mystery phase", Status: "unknowable"},
		},
	}

	if _, err := MigrateLegacyRoadmap(rm, time.Now()); err != nil {
		t.Fatalf("MigrateLegacyRoadmap() error = %v", err)
	}
	if rm.Plans[0].Status != models.NodeStatusPending {
		t.Errorf("status = %q, want invalid legacy status coerced to pending", rm.Plans[0].Status)
	}
}

func TestMigrateLegacyRoadmap_UnknownDependencyKept(t *testing.T) {
	rm := &models.Roadmap{
		Phases: []models.LegacyPhase{
			{Name: "api", Title: "API work", DependsOn: []string{"Removed Phase"}},
		},
	}

	if _, err := MigrateLegacyRoadmap(rm, time.Now()); err != nil {
		t.Fatalf("MigrateLegacyRoadmap() error = %v", err)
	}
	if len(rm.Dependencies) != 1 {
		t.Fatalf("Dependencies = %v, want the unknown dependency preserved", rm.Dependencies)
	}
	if rm.Dependencies[0].DependsOnSlug != "removed-phase" {
		t.Errorf("DependsOnSlug = %q, want removed-phase", rm.Dependencies[0].DependsOnSlug)
	}
}
