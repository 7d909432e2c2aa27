// Package state provides the SQLite audit log for cairn. Every
// orchestration run, stage transition, and budget event is recorded in
// the project-local database (.cairn/cairn.db) so status and budget
// reports never have to replay node files.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps an SQLite database connection with cairn's audit operations.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DBPath returns the audit database location inside a state directory.
func DBPath(stateDir string) string {
	return filepath.Join(stateDir, "cairn.db")
}

// Open opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// OpenProject opens the audit database of one project state directory.
func OpenProject(stateDir string) (*DB, error) {
	return Open(DBPath(stateDir))
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Runs},
		{2, migrationV2Transitions},
		{3, migrationV3BudgetEvents},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Runs = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	vision_slug TEXT NOT NULL,
	stage TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	error TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_vision_slug ON runs(vision_slug);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

const migrationV2Transitions = `
CREATE TABLE IF NOT EXISTS stage_transitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id),
	from_stage TEXT NOT NULL,
	to_stage TEXT NOT NULL,
	at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_run_id ON stage_transitions(run_id);
`

const migrationV3BudgetEvents = `
CREATE TABLE IF NOT EXISTS budget_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id),
	node_slug TEXT NOT NULL,
	child_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	delta INTEGER NOT NULL DEFAULT 0,
	total INTEGER NOT NULL DEFAULT 0,
	at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_budget_events_run_id ON budget_events(run_id);
`

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRow(query, args...)
}

// Transaction runs the given function within a transaction.
func (db *DB) Transaction(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

// PurgeOldRuns deletes finished runs older than the specified duration,
// along with their transitions and budget events. Active runs are never
// purged. Returns the number of runs deleted.
func (db *DB) PurgeOldRuns(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	var purged int64
	err := db.Transaction(func(tx *sql.Tx) error {
		old := "started_at < ? AND status != 'active'"
		if _, err := tx.Exec(
			"DELETE FROM budget_events WHERE run_id IN (SELECT id FROM runs WHERE "+old+")",
			cutoff); err != nil {
			return fmt.Errorf("purge budget events: %w", err)
		}
		if _, err := tx.Exec(
			"DELETE FROM stage_transitions WHERE run_id IN (SELECT id FROM runs WHERE "+old+")",
			cutoff); err != nil {
			return fmt.Errorf("purge transitions: %w", err)
		}
		result, err := tx.Exec("DELETE FROM runs WHERE "+old, cutoff)
		if err != nil {
			return fmt.Errorf("purge runs: %w", err)
		}
		purged, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}
