// Package checkpoint persists orchestrator snapshots for crash
// recovery and resume. Snapshots live in their own database
// (.cairn/checkpoints.db), separate from the audit log, so a resume
// never contends with audit writes.
package checkpoint

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cairnhq/cairn/pkg/models"
)

// Snapshot is one persisted machine state, keyed by run. State carries
// the orchestrator's resumable fields as JSON; Encode and Decode wrap
// the marshaling.
type Snapshot struct {
	RunID      string
	VisionSlug string
	Stage      models.Stage
	State      json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Encode marshals v into the snapshot's State field.
func (s *Snapshot) Encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot state: %w", err)
	}
	s.State = data
	return nil
}

// Decode unmarshals the snapshot's State field into v.
func (s *Snapshot) Decode(v any) error {
	if len(s.State) == 0 {
		return fmt.Errorf("snapshot %s has no state", s.RunID)
	}
	if err := json.Unmarshal(s.State, v); err != nil {
		return fmt.Errorf("decode snapshot state: %w", err)
	}
	return nil
}

// DBPath returns the checkpoint database location inside a state
// directory.
func DBPath(stateDir string) string {
	return filepath.Join(stateDir, "checkpoints.db")
}

// Store manages snapshot persistence for resume.
type Store struct {
	db *sql.DB
}

// NewStore opens the checkpoint database at the given path, creating
// the schema if needed.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			run_id TEXT PRIMARY KEY,
			vision_slug TEXT NOT NULL,
			stage TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_checkpoints_vision ON checkpoints(vision_slug);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &Store{db: db}, nil
}

// Save upserts a snapshot by run ID. The first save sets CreatedAt;
// every save refreshes UpdatedAt.
func (s *Store) Save(snap *Snapshot) error {
	now := time.Now()
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = now
	}
	snap.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO checkpoints (run_id, vision_slug, stage, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			vision_slug = excluded.vision_slug,
			stage = excluded.stage,
			state = excluded.state,
			updated_at = excluded.updated_at
	`, snap.RunID, snap.VisionSlug, string(snap.Stage), string(snap.State), snap.CreatedAt, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Get retrieves the snapshot for a run.
func (s *Store) Get(runID string) (*Snapshot, error) {
	row := s.db.QueryRow(`
		SELECT run_id, vision_slug, stage, state, created_at, updated_at
		FROM checkpoints
		WHERE run_id = ?
	`, runID)

	snap, err := scanSnapshot(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("checkpoint not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return snap, nil
}

// Latest returns the most recently updated snapshot for a vision, or
// nil when the vision has never checkpointed.
func (s *Store) Latest(visionSlug string) (*Snapshot, error) {
	row := s.db.QueryRow(`
		SELECT run_id, vision_slug, stage, state, created_at, updated_at
		FROM checkpoints
		WHERE vision_slug = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`, visionSlug)

	snap, err := scanSnapshot(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return snap, nil
}

// Delete removes a run's snapshot, typically after a clean completion.
func (s *Store) Delete(runID string) error {
	result, err := s.db.Exec(`DELETE FROM checkpoints WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("checkpoint not found: %s", runID)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanSnapshot(scan func(...any) error) (*Snapshot, error) {
	var snap Snapshot
	var state string
	if err := scan(&snap.RunID, &snap.VisionSlug, &snap.Stage, &state, &snap.CreatedAt, &snap.UpdatedAt); err != nil {
		return nil, err
	}
	snap.State = json.RawMessage(state)
	return &snap, nil
}
