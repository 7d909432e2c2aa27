// Package state provides the SQLite audit log for cairn.
package state

import (
	"io"

	"github.com/cairnhq/cairn/pkg/models"
)

// RunStore handles run-related audit operations.
type RunStore interface {
	CreateRun(r *Run) error
	GetRun(id string) (*Run, error)
	UpdateRun(r *Run) error
	ListRuns(visionSlug string, limit int) ([]Run, error)
	ActiveRun(visionSlug string) (*Run, error)
}

// TransitionStore handles stage transition audit operations.
type TransitionStore interface {
	RecordTransition(runID string, tr models.StageTransition) error
	ListTransitions(runID string) ([]models.StageTransition, error)
}

// BudgetEventStore handles budget event audit operations.
type BudgetEventStore interface {
	RecordBudgetEvent(e *BudgetEvent) error
	ListBudgetEvents(runID string) ([]BudgetEvent, error)
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// AuditStore defines the interface for audit persistence.
// This interface allows the orchestrator to record its trail without
// depending on the concrete SQLite implementation.
// It composes focused sub-interfaces for better modularity.
type AuditStore interface {
	io.Closer
	Migrator
	RunStore
	TransitionStore
	BudgetEventStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ AuditStore       = (*DB)(nil)
	_ Migrator         = (*DB)(nil)
	_ RunStore         = (*DB)(nil)
	_ TransitionStore  = (*DB)(nil)
	_ BudgetEventStore = (*DB)(nil)
)
