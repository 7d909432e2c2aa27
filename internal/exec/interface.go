// Package exec provides an interface for command execution.
package exec

import (
	"context"
)

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// Output executes a command and returns stdout only. Callers that
	// parse structured output use this so stderr noise stays out.
	Output(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// RunShell executes a shell command through "sh -c".
	// This is a convenience method for running configured test commands.
	RunShell(ctx context.Context, workDir string, command string) (output []byte, err error)

	// Installed reports whether a binary is available on PATH.
	Installed(name string) bool
}
