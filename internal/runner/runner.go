// Package runner invokes the project's test command and reports the
// outcome in the shape the validation gate consumes.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"

	iexec "github.com/cairnhq/cairn/internal/exec"
	"github.com/cairnhq/cairn/pkg/models"
)

// defaultTimeout bounds a test run when no timeout is configured.
const defaultTimeout = 10 * time.Minute

// TestRunner runs the configured test suite. A timed-out run reports
// as a failure, not an error; the error return is reserved for
// commands that never started.
type TestRunner interface {
	Run(ctx context.Context) (*models.TestOutcome, string, error)
}

// Runner shells out through a CommandRunner with a wall-clock limit.
type Runner struct {
	exec    iexec.CommandRunner
	command string
	dir     string
	timeout time.Duration
}

// New creates a Runner for the given shell command. An empty command
// means the project has no tests; Run then reports a zero outcome.
func New(cmdRunner iexec.CommandRunner, command, dir string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Runner{
		exec:    cmdRunner,
		command: command,
		dir:     dir,
		timeout: timeout,
	}
}

// Run executes the test command and returns the parsed outcome plus
// the raw output for audit records.
func (r *Runner) Run(ctx context.Context) (*models.TestOutcome, string, error) {
	if r.command == "" {
		return &models.TestOutcome{}, "", nil
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	log.Printf("[runner] running tests: %s", r.command)
	raw, err := r.exec.RunShell(runCtx, r.dir, r.command)
	output := string(raw)

	if runCtx.Err() == context.DeadlineExceeded {
		outcome := &models.TestOutcome{
			Failed:   1,
			Failures: []string{fmt.Sprintf("test command timed out after %s", r.timeout)},
		}
		return outcome, output, nil
	}

	outcome, parsed := parseTestMarkers(output)
	if !parsed {
		outcome, parsed = parsePackageLines(output)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// Command never ran; surface the error to the caller.
			return nil, output, fmt.Errorf("running test command: %w", err)
		}
		if outcome.Failed == 0 {
			outcome.Failed = 1
			outcome.Failures = append(outcome.Failures, summarize(output))
		}
		return &outcome, output, nil
	}

	if !parsed {
		// No recognizable output; count the suite as one pass.
		outcome.Passed = 1
	}
	return &outcome, output, nil
}

// parseTestMarkers extracts per-test results from go test -v style
// markers. The bool reports whether any markers were found.
func parseTestMarkers(output string) (models.TestOutcome, bool) {
	var out models.TestOutcome
	found := false

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "--- PASS:"):
			out.Passed++
			found = true
		case strings.HasPrefix(trimmed, "--- FAIL:"):
			out.Failed++
			found = true
			if name := markerTestName(trimmed); name != "" {
				out.Failures = append(out.Failures, name)
			}
		case strings.HasPrefix(trimmed, "--- SKIP:"):
			out.Skipped++
			found = true
		}
	}
	return out, found
}

// parsePackageLines extracts per-package results from non-verbose go
// test output ("ok pkg 0.1s" and "FAIL pkg 0.1s" lines).
func parsePackageLines(output string) (models.TestOutcome, bool) {
	var out models.TestOutcome
	found := false

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "ok":
			out.Passed++
			found = true
		case "FAIL":
			out.Failed++
			out.Failures = append(out.Failures, fields[1])
			found = true
		}
	}
	return out, found
}

// markerTestName pulls the test name out of a "--- FAIL: TestX (0.00s)" line.
func markerTestName(line string) string {
	fields := strings.Fields(line)
	if len(fields) >= 3 {
		return fields[2]
	}
	return ""
}

// summarize returns the first non-empty output line for use as a
// failure description.
func summarize(output string) string {
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if len(trimmed) > 120 {
			return trimmed[:120]
		}
		return trimmed
	}
	return "test command failed"
}

// Verify Runner implements TestRunner at compile time.
var _ TestRunner = (*Runner)(nil)
