// Package exec provides an interface for command execution.
package exec

import (
	"context"
	"time"
)

// Command describes one subprocess invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current one.
	Dir string
	// Stdin is fed to the process when non-empty.
	Stdin string
	// Timeout bounds the run. Zero means no limit beyond ctx.
	Timeout time.Duration
	// Env entries ("K=V") are appended to the inherited environment.
	Env []string
}

// Output is what a finished command produced.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	// TimedOut is set when the command was killed by its Timeout.
	TimedOut bool
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and captures stdout and stderr separately.
	// A non-zero exit is reported through Output.ExitCode with a nil error;
	// the error is reserved for failures to start or wait for the process.
	Run(ctx context.Context, cmd Command) (*Output, error)

	// LookPath reports whether an executable is available.
	LookPath(name string) (string, error)
}
