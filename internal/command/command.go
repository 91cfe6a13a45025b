// Package command runs opaque external commands and captures their outcome.
//
// Every process Gauntlet launches (docker pulls, container lifecycle
// commands, certificate generation, and the per-unit test command) goes
// through the Runner interface. The engine never inspects a command's
// stdout semantically; it records exit code, captured output, and duration.
package command

import (
	"context"
	"time"
)

// Spec describes a single external command invocation.
type Spec struct {
	// Name is the executable to run, resolved via PATH when not absolute.
	Name string `json:"name"`

	// Args are the command arguments, argv[1:].
	Args []string `json:"args,omitempty"`

	// WorkDir is the working directory; empty means the current directory.
	WorkDir string `json:"work_dir,omitempty"`

	// Env is appended to the inherited environment as KEY=VALUE pairs.
	Env []string `json:"env,omitempty"`

	// Timeout bounds the command's wall-clock time. Zero means no bound
	// beyond the caller's context.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Result captures the outcome of a command invocation.
// Duration is serialized as nanoseconds (int64) in JSON, the default Go
// behavior for time.Duration.
type Result struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// Success returns true if the command exited with code 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes external commands. Implementations must be safe for
// concurrent use; the scheduler shares one Runner across all units.
type Runner interface {
	// Run executes the command described by spec and returns its captured
	// result. A non-zero exit code is NOT an error: err is non-nil only
	// when the command could not be run or waited on at all.
	Run(ctx context.Context, spec Spec) (*Result, error)
}
