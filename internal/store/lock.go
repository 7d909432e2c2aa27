package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.yaml.in/yaml/v3"
)

const (
	lockSuffix   = ".lock"
	lockFileMode = 0o644

	// staleLockAge is how long a lock may exist before it is cleared
	// regardless of its owner. Writers hold locks for milliseconds.
	staleLockAge = 10 * time.Minute

	lockAttempts = 4
	lockBackoff  = 50 * time.Millisecond
)

// ErrLockHeld is returned when a lock could not be acquired after the
// bounded retry sequence. Callers treat it as a blocking condition, not
// a crash.
var ErrLockHeld = errors.New("lock held by another process")

// lockInfo is the payload of a sidecar lock file.
type lockInfo struct {
	PID      int       `yaml:"pid"`
	Host     string    `yaml:"host"`
	Acquired time.Time `yaml:"acquired"`
}

// stale reports whether the lock's owner can no longer be holding it:
// the lock outlived the stale threshold, or the owning process is gone.
// A fresh lock from another host is never stale because its owner
// cannot be probed from here.
func (info *lockInfo) stale(now time.Time) bool {
	if !info.Acquired.IsZero() && now.Sub(info.Acquired) > staleLockAge {
		return true
	}
	if hostname, err := os.Hostname(); err == nil && info.Host != "" && info.Host != hostname {
		return false
	}
	return !processAlive(info.PID)
}

// processAlive checks whether a process with the given PID exists.
// EPERM means the process exists but belongs to another user, so it
// counts as alive.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

// Lock is an advisory lock held through a sidecar file next to the
// state file it guards.
type Lock struct {
	path string
}

// AcquireLock takes the advisory lock guarding path by creating the
// sidecar file path+".lock". Stale locks found along the way are
// cleared; live contention retries with doubling backoff a bounded
// number of times before returning ErrLockHeld.
func AcquireLock(path string) (*Lock, error) {
	lockPath := path + lockSuffix
	if err := os.MkdirAll(filepath.Dir(lockPath), stateDirMode); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	delay := lockBackoff
	for attempt := 0; attempt < lockAttempts; attempt++ {
		ok, err := tryLock(lockPath)
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lock{path: lockPath}, nil
		}
		if lockIsStale(lockPath, time.Now()) {
			log.Printf("[store] clearing stale lock %s", lockPath)
			if err := os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("clear stale lock: %w", err)
			}
			continue
		}
		if attempt < lockAttempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLockHeld, lockPath)
}

// Release removes the sidecar lock file. Releasing a lock whose file is
// already gone is not an error.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// tryLock attempts to create the lock file exclusively and stamp it
// with this process's identity. false with nil error means the lock is
// already held.
func tryLock(lockPath string) (bool, error) {
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, lockFileMode)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create lock: %w", err)
	}
	defer f.Close()

	host, _ := os.Hostname()
	data, err := yaml.Marshal(lockInfo{
		PID:      os.Getpid(),
		Host:     host,
		Acquired: time.Now().UTC(),
	})
	if err != nil {
		os.Remove(lockPath)
		return false, fmt.Errorf("marshal lock: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		os.Remove(lockPath)
		return false, fmt.Errorf("write lock: %w", err)
	}
	return true, nil
}

// lockIsStale decides whether an existing lock file may be cleared. A
// lock that cannot be parsed is judged by file age alone, so a writer
// that is mid-create is never swept out from under itself.
func lockIsStale(lockPath string, now time.Time) bool {
	info, err := readLockInfo(lockPath)
	if err != nil {
		fi, statErr := os.Stat(lockPath)
		return statErr == nil && now.Sub(fi.ModTime()) > staleLockAge
	}
	return info.stale(now)
}

func readLockInfo(lockPath string) (*lockInfo, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}
	var info lockInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse lock %s: %w", lockPath, err)
	}
	return &info, nil
}

// SweepStaleLocks walks root and removes every stale sidecar lock,
// returning the paths it cleared. Locks with living owners are left
// alone. A missing root is an empty result, not an error.
func SweepStaleLocks(root string) ([]string, error) {
	now := time.Now()
	var cleared []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, os.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(path, lockSuffix) {
			return nil
		}
		if !lockIsStale(path, now) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale lock: %w", err)
		}
		cleared = append(cleared, path)
		return nil
	})
	if err != nil {
		return cleared, fmt.Errorf("sweep locks: %w", err)
	}
	return cleared, nil
}
