package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogger writes timestamped trace lines to a file. The zero value
// and a nil logger are both no-ops, so callers never guard their Log
// calls.
type DebugLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewDebugLogger creates a logger writing to logPath. An empty path
// returns a no-op logger. Parent directories are created as needed.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &DebugLogger{file: f}
	l.Log("=== Debug log started at %s ===", time.Now().UTC().Format(time.RFC3339))
	return l, nil
}

// NewDebugLoggerForDir creates a logger at <stateDir>/debug.log,
// degrading to a no-op when the file cannot be opened.
func NewDebugLoggerForDir(stateDir string) *DebugLogger {
	l, err := NewDebugLogger(filepath.Join(stateDir, "debug.log"))
	if err != nil {
		return &DebugLogger{}
	}
	return l
}

// Log writes a timestamped line. Safe on a nil or file-less logger.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.file, "[%s] %s\n", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
	l.file.Sync()
}

// Close closes the log file. Safe on a nil or file-less logger.
func (l *DebugLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
