package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	path := filepath.Join(nested, "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Errorf("parent directories not created: %s", nested)
	}
}

func TestClose(t *testing.T) {
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// Subsequent operations should fail
	_, err = db.Query("SELECT 1")
	if err == nil {
		t.Error("expected error after close, got nil")
	}
}

func TestMigrate(t *testing.T) {
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	tables := []string{"schema_version", "runs", "stage_transitions", "budget_events"}
	for _, table := range tables {
		var count int
		row := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		if err := row.Scan(&count); err != nil {
			t.Errorf("failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate (iteration %d) failed: %v", i, err)
		}
	}

	var version int
	row := db.QueryRow("SELECT MAX(version) FROM schema_version")
	if err := row.Scan(&version); err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != 3 {
		t.Errorf("schema version = %d, want 3", version)
	}
}

func TestTransaction_Success(t *testing.T) {
	db := setupTestDB(t)

	err := db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO runs (id, vision_slug, stage, status, started_at) VALUES (?, ?, ?, ?, ?)",
			"tx-1", "checkout-flow", "analysis", "active", "2026-01-01T00:00:00Z")
		return err
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	var count int
	row := db.QueryRow("SELECT COUNT(*) FROM runs WHERE id = ?", "tx-1")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("failed to verify: %v", err)
	}
	if count != 1 {
		t.Error("transaction was not committed")
	}
}

func TestTransaction_Rollback(t *testing.T) {
	db := setupTestDB(t)

	err := db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO runs (id, vision_slug, stage, status, started_at) VALUES (?, ?, ?, ?, ?)",
			"tx-fail", "checkout-flow", "analysis", "active", "2026-01-01T00:00:00Z")
		if err != nil {
			return err
		}
		return fmt.Errorf("simulated error")
	})
	if err == nil {
		t.Error("expected error from Transaction")
	}

	var count int
	row := db.QueryRow("SELECT COUNT(*) FROM runs WHERE id = ?", "tx-fail")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("failed to verify: %v", err)
	}
	if count != 0 {
		t.Error("transaction was not rolled back")
	}
}

func TestDBPath(t *testing.T) {
	path := DBPath("/my/project/.cairn")
	expected := "/my/project/.cairn/cairn.db"
	if path != expected {
		t.Errorf("DBPath() = %q, want %q", path, expected)
	}
}

func TestFormatAndParseTime(t *testing.T) {
	now := time.Now()
	formatted := formatTime(now)
	parsed, err := parseTime(formatted)
	if err != nil {
		t.Fatalf("parseTime failed: %v", err)
	}

	// Times should be equal when truncated to second precision in UTC
	if !now.UTC().Truncate(time.Second).Equal(parsed.Truncate(time.Second)) {
		t.Errorf("time round-trip failed: got %v, want %v", parsed, now.UTC())
	}
}

func TestParseNullableTime(t *testing.T) {
	validTime := sql.NullString{String: "2026-01-01T12:00:00Z", Valid: true}
	if result := parseNullableTime(validTime); result == nil {
		t.Error("expected non-nil time for valid input")
	}

	nullTime := sql.NullString{Valid: false}
	if result := parseNullableTime(nullTime); result != nil {
		t.Error("expected nil time for invalid input")
	}

	badFormat := sql.NullString{String: "not a time", Valid: true}
	if result := parseNullableTime(badFormat); result != nil {
		t.Error("expected nil time for invalid format")
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := setupTestDB(t)

	old := time.Now().Add(-72 * time.Hour)
	recent := time.Now().Add(-time.Hour)

	for _, row := range []struct {
		id      string
		status  string
		started time.Time
	}{
		{"old-done", "completed", old},
		{"old-active", "active", old},
		{"recent-done", "completed", recent},
	} {
		_, err := db.Exec("INSERT INTO runs (id, vision_slug, stage, status, started_at) VALUES (?, ?, ?, ?, ?)",
			row.id, "checkout-flow", "completion", row.status, formatTime(row.started))
		if err != nil {
			t.Fatalf("insert run %s: %v", row.id, err)
		}
	}
	_, err := db.Exec("INSERT INTO stage_transitions (run_id, from_stage, to_stage, at) VALUES (?, ?, ?, ?)",
		"old-done", "validation", "completion", formatTime(old))
	if err != nil {
		t.Fatalf("insert transition: %v", err)
	}

	purged, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged %d runs, want 1", purged)
	}

	// The active old run and the recent run survive.
	for _, id := range []string{"old-active", "recent-done"} {
		var count int
		row := db.QueryRow("SELECT COUNT(*) FROM runs WHERE id = ?", id)
		if err := row.Scan(&count); err != nil {
			t.Fatalf("verify %s: %v", id, err)
		}
		if count != 1 {
			t.Errorf("run %s was purged, want kept", id)
		}
	}

	var transitions int
	row := db.QueryRow("SELECT COUNT(*) FROM stage_transitions WHERE run_id = ?", "old-done")
	if err := row.Scan(&transitions); err != nil {
		t.Fatalf("verify transitions: %v", err)
	}
	if transitions != 0 {
		t.Error("purged run left stage transitions behind")
	}
}
