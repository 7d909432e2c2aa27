// Package signal coordinates pause and stop requests between the CLI
// and a running engine through files under the project signals
// directory. A request is one file named <vision-slug>.<kind>; raising
// it from a second process needs no IPC beyond the filesystem.
package signal

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Kind is the type of control request.
type Kind string

const (
	// Pause asks the run to checkpoint and stop at the next boundary.
	Pause Kind = "pause"
	// Stop asks the run to halt without finishing the current stage.
	Stop Kind = "stop"
)

// signalsDirName is the directory under the state dir holding signal
// files.
const signalsDirName = "signals"

// Watcher observes control signals for one vision's run.
type Watcher struct {
	dir        string
	visionSlug string

	mu      sync.RWMutex
	paused  bool
	stopped bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for the given vision. The watcher
// prefers fsnotify for immediate delivery and falls back to stat
// checks when the filesystem watch cannot be established.
func NewWatcher(stateDir, visionSlug string) (*Watcher, error) {
	dir := filepath.Join(stateDir, signalsDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:        dir,
		visionSlug: visionSlug,
		done:       make(chan struct{}),
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		// Continue without watcher - stat fallback still works
		return w, nil
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return w, nil
	}
	w.watcher = fsw

	go w.watch()

	return w, nil
}

// watch marks signal state as files appear in the signals directory.
func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.mu.Lock()
			switch filepath.Base(event.Name) {
			case fileName(w.visionSlug, Pause):
				w.paused = true
			case fileName(w.visionSlug, Stop):
				w.stopped = true
			}
			w.mu.Unlock()
		case <-w.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

// ShouldPause returns true if a pause has been requested.
func (w *Watcher) ShouldPause() bool {
	// Also check the file directly in case the watcher missed it
	if _, err := os.Stat(filepath.Join(w.dir, fileName(w.visionSlug, Pause))); err == nil {
		w.mu.Lock()
		w.paused = true
		w.mu.Unlock()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.paused
}

// ShouldStop returns true if a stop has been requested.
func (w *Watcher) ShouldStop() bool {
	if _, err := os.Stat(filepath.Join(w.dir, fileName(w.visionSlug, Stop))); err == nil {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopped
}

// Reset removes this vision's signal files and clears watcher state.
// Called when a run resumes so stale requests do not re-trigger.
func (w *Watcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.paused = false
	w.stopped = false

	os.Remove(filepath.Join(w.dir, fileName(w.visionSlug, Pause)))
	os.Remove(filepath.Join(w.dir, fileName(w.visionSlug, Stop)))
}

// Close shuts down the watcher.
func (w *Watcher) Close() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

// Raise writes a signal file for a vision. The file body records when
// the request was made.
func Raise(stateDir, visionSlug string, kind Kind) error {
	dir := filepath.Join(stateDir, signalsDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, fileName(visionSlug, kind))
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Raised reports whether a signal file currently exists.
func Raised(stateDir, visionSlug string, kind Kind) bool {
	path := filepath.Join(stateDir, signalsDirName, fileName(visionSlug, kind))
	_, err := os.Stat(path)
	return err == nil
}

// Clear removes a vision's signal files.
func Clear(stateDir, visionSlug string) {
	dir := filepath.Join(stateDir, signalsDirName)
	os.Remove(filepath.Join(dir, fileName(visionSlug, Pause)))
	os.Remove(filepath.Join(dir, fileName(visionSlug, Stop)))
}

// ClearAll removes every signal file in the project. Returns the
// number of files removed.
func ClearAll(stateDir string) (int, error) {
	dir := filepath.Join(stateDir, signalsDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, "."+string(Pause)) && !strings.HasSuffix(name, "."+string(Stop)) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}

// fileName builds the signal file name for a vision and kind.
func fileName(visionSlug string, kind Kind) string {
	return visionSlug + "." + string(kind)
}
