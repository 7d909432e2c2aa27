package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"
)

// deadPID is far above any real pid_max, so no live process can own it.
const deadPID = 1 << 30

func writeLockFile(t *testing.T, path string, info lockInfo) {
	t.Helper()
	data, err := yaml.Marshal(info)
	if err != nil {
		t.Fatalf("marshal lock info: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write lock file: %v", err)
	}
}

func TestAcquireLock_WritesOwnerIdentity(t *testing.T) {
	target := filepath.Join(t.TempDir(), "vision.yaml")

	lock, err := AcquireLock(target)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}

	info, err := readLockInfo(target + lockSuffix)
	if err != nil {
		t.Fatalf("readLockInfo() error = %v", err)
	}
	if info.PID != os.Getpid() {
		t.Errorf("lock PID = %d, want %d", info.PID, os.Getpid())
	}
	if host, _ := os.Hostname(); info.Host != host {
		t.Errorf("lock Host = %q, want %q", info.Host, host)
	}
	if info.Acquired.IsZero() {
		t.Error("lock Acquired timestamp is zero")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(target + lockSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Error("lock file still exists after Release")
	}
}

func TestAcquireLock_HeldByLiveProcess(t *testing.T) {
	target := filepath.Join(t.TempDir(), "vision.yaml")

	first, err := AcquireLock(target)
	if err != nil {
		t.Fatalf("first AcquireLock() error = %v", err)
	}
	defer first.Release()

	_, err = AcquireLock(target)
	if !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second AcquireLock() error = %v, want ErrLockHeld", err)
	}
}

func TestAcquireLock_ClearsDeadOwner(t *testing.T) {
	target := filepath.Join(t.TempDir(), "vision.yaml")
	host, _ := os.Hostname()
	writeLockFile(t, target+lockSuffix, lockInfo{
		PID:      deadPID,
		Host:     host,
		Acquired: time.Now().UTC(),
	})

	lock, err := AcquireLock(target)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v, want stale lock cleared", err)
	}
	defer lock.Release()

	info, err := readLockInfo(target + lockSuffix)
	if err != nil {
		t.Fatalf("readLockInfo() error = %v", err)
	}
	if info.PID != os.Getpid() {
		t.Errorf("lock PID = %d, want current process %d", info.PID, os.Getpid())
	}
}

func TestAcquireLock_ClearsExpiredOwner(t *testing.T) {
	target := filepath.Join(t.TempDir(), "vision.yaml")
	host, _ := os.Hostname()
	writeLockFile(t, target+lockSuffix, lockInfo{
		PID:      os.Getpid(),
		Host:     host,
		Acquired: time.Now().UTC().Add(-time.Hour),
	})

	lock, err := AcquireLock(target)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v, want expired lock cleared", err)
	}
	lock.Release()
}

func TestAcquireLock_RespectsRemoteHolder(t *testing.T) {
	target := filepath.Join(t.TempDir(), "vision.yaml")
	writeLockFile(t, target+lockSuffix, lockInfo{
		PID:      deadPID,
		Host:     "unreachable-peer-host",
		Acquired: time.Now().UTC(),
	})

	_, err := AcquireLock(target)
	if !errors.Is(err, ErrLockHeld) {
		t.Fatalf("AcquireLock() error = %v, want ErrLockHeld for fresh remote lock", err)
	}
}

func TestRelease_Idempotent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "vision.yaml")

	lock, err := AcquireLock(target)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("first Release() error = %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release() error = %v, want nil", err)
	}

	var nilLock *Lock
	if err := nilLock.Release(); err != nil {
		t.Errorf("nil lock Release() error = %v, want nil", err)
	}
}

func TestSweepStaleLocks(t *testing.T) {
	root := t.TempDir()
	host, _ := os.Hostname()

	stalePath := filepath.Join(root, "visions", "old", "vision.yaml"+lockSuffix)
	writeLockFile(t, stalePath, lockInfo{PID: deadPID, Host: host, Acquired: time.Now().UTC()})

	heldPath := filepath.Join(root, "visions", "live", "vision.yaml"+lockSuffix)
	writeLockFile(t, heldPath, lockInfo{PID: os.Getpid(), Host: host, Acquired: time.Now().UTC()})

	garbagePath := filepath.Join(root, "registry.yaml"+lockSuffix)
	if err := os.WriteFile(garbagePath, []byte("not: [unclosed"), 0o644); err != nil {
		t.Fatalf("write garbage lock: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(garbagePath, old, old); err != nil {
		t.Fatalf("age garbage lock: %v", err)
	}

	plainPath := filepath.Join(root, "registry.yaml")
	if err := os.WriteFile(plainPath, []byte("visions: []\n"), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	cleared, err := SweepStaleLocks(root)
	if err != nil {
		t.Fatalf("SweepStaleLocks() error = %v", err)
	}
	if len(cleared) != 2 {
		t.Fatalf("cleared %d locks (%v), want 2", len(cleared), cleared)
	}

	for _, path := range []string{stalePath, garbagePath} {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("stale lock %s still exists", path)
		}
	}
	if _, err := os.Stat(heldPath); err != nil {
		t.Errorf("held lock was swept: %v", err)
	}
	if _, err := os.Stat(plainPath); err != nil {
		t.Errorf("non-lock file was swept: %v", err)
	}
}

func TestSweepStaleLocks_MissingRoot(t *testing.T) {
	cleared, err := SweepStaleLocks(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("SweepStaleLocks() error = %v", err)
	}
	if len(cleared) != 0 {
		t.Errorf("cleared = %v, want empty", cleared)
	}
}
