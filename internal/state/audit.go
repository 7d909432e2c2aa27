package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cairnhq/cairn/pkg/models"
)

// RunStatus represents the status of an orchestration run.
type RunStatus string

const (
	RunActive    RunStatus = "active"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunPaused    RunStatus = "paused"
)

// BudgetEventKind names what a budget event recorded.
type BudgetEventKind string

const (
	EventAllocate   BudgetEventKind = "allocate"
	EventUsage      BudgetEventKind = "usage"
	EventReallocate BudgetEventKind = "reallocate"
	EventRelease    BudgetEventKind = "release"
)

// Run represents one orchestration pass over a vision.
type Run struct {
	ID         string       `json:"id"`
	VisionSlug string       `json:"vision_slug"`
	Stage      models.Stage `json:"stage"`
	Status     RunStatus    `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at"`
	Error      string       `json:"error"`
}

// BudgetEvent is one audit entry for a budget mutation.
type BudgetEvent struct {
	ID       int64           `json:"id"`
	RunID    string          `json:"run_id"`
	NodeSlug string          `json:"node_slug"`
	ChildID  string          `json:"child_id"`
	Kind     BudgetEventKind `json:"kind"`
	Delta    int64           `json:"delta"`
	Total    int64           `json:"total"`
	At       time.Time       `json:"at"`
}

// Run CRUD operations

// CreateRun records a new run.
func (db *DB) CreateRun(r *Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, vision_slug, stage, status, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.VisionSlug, string(r.Stage), string(r.Status), formatTime(r.StartedAt), nil, r.Error)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil when no run matches.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, vision_slug, stage, status, started_at, finished_at, error
		FROM runs WHERE id = ?
	`, id)

	r, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// UpdateRun updates a run's stage, status, finish time, and error.
func (db *DB) UpdateRun(r *Run) error {
	var finishedAt *string
	if r.FinishedAt != nil {
		s := formatTime(*r.FinishedAt)
		finishedAt = &s
	}

	_, err := db.Exec(`
		UPDATE runs SET vision_slug = ?, stage = ?, status = ?, finished_at = ?, error = ?
		WHERE id = ?
	`, r.VisionSlug, string(r.Stage), string(r.Status), finishedAt, r.Error, r.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// ListRuns lists runs newest first, optionally filtered to one vision.
// A non-positive limit returns every matching run.
func (db *DB) ListRuns(visionSlug string, limit int) ([]Run, error) {
	query := `
		SELECT id, vision_slug, stage, status, started_at, finished_at, error
		FROM runs`
	var args []any
	if visionSlug != "" {
		query += " WHERE vision_slug = ?"
		args = append(args, visionSlug)
	}
	query += " ORDER BY started_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, nil
}

// ActiveRun returns the newest active run for a vision, if any.
func (db *DB) ActiveRun(visionSlug string) (*Run, error) {
	rows, err := db.Query(`
		SELECT id, vision_slug, stage, status, started_at, finished_at, error
		FROM runs WHERE vision_slug = ? AND status = ?
		ORDER BY started_at DESC, id DESC LIMIT 1
	`, visionSlug, string(RunActive))
	if err != nil {
		return nil, fmt.Errorf("get active run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	r, err := scanRun(rows.Scan)
	if err != nil {
		return nil, fmt.Errorf("scan active run: %w", err)
	}
	return r, nil
}

// scanRun reads one run row through the given scan function.
func scanRun(scan func(...any) error) (*Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	var errMsg sql.NullString
	if err := scan(&r.ID, &r.VisionSlug, &r.Stage, &r.Status, &startedAt, &finishedAt, &errMsg); err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	return &r, nil
}

// Stage transition operations

// RecordTransition appends one stage transition to a run's audit trail.
func (db *DB) RecordTransition(runID string, tr models.StageTransition) error {
	_, err := db.Exec(`
		INSERT INTO stage_transitions (run_id, from_stage, to_stage, at)
		VALUES (?, ?, ?, ?)
	`, runID, string(tr.From), string(tr.To), formatTime(tr.Timestamp))
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// ListTransitions returns a run's stage transitions in the order they
// were recorded.
func (db *DB) ListTransitions(runID string) ([]models.StageTransition, error) {
	rows, err := db.Query(`
		SELECT from_stage, to_stage, at
		FROM stage_transitions WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []models.StageTransition
	for rows.Next() {
		var tr models.StageTransition
		var at string
		if err := rows.Scan(&tr.From, &tr.To, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.Timestamp, _ = parseTime(at)
		transitions = append(transitions, tr)
	}
	return transitions, nil
}

// Budget event operations

// RecordBudgetEvent appends one budget mutation to the audit trail.
func (db *DB) RecordBudgetEvent(e *BudgetEvent) error {
	_, err := db.Exec(`
		INSERT INTO budget_events (run_id, node_slug, child_id, kind, delta, total, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.RunID, e.NodeSlug, e.ChildID, string(e.Kind), e.Delta, e.Total, formatTime(e.At))
	if err != nil {
		return fmt.Errorf("record budget event: %w", err)
	}
	return nil
}

// ListBudgetEvents returns a run's budget events in recorded order.
func (db *DB) ListBudgetEvents(runID string) ([]BudgetEvent, error) {
	rows, err := db.Query(`
		SELECT id, run_id, node_slug, child_id, kind, delta, total, at
		FROM budget_events WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list budget events: %w", err)
	}
	defer rows.Close()

	var events []BudgetEvent
	for rows.Next() {
		var e BudgetEvent
		var at string
		if err := rows.Scan(&e.ID, &e.RunID, &e.NodeSlug, &e.ChildID, &e.Kind, &e.Delta, &e.Total, &at); err != nil {
			return nil, fmt.Errorf("scan budget event: %w", err)
		}
		e.At, _ = parseTime(at)
		events = append(events, e)
	}
	return events, nil
}
