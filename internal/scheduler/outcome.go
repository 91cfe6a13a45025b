package scheduler

import (
	"time"

	"github.com/gauntlet-ci/gauntlet/internal/matrix"
)

// Status is the terminal classification of one execution unit.
type Status int

const (
	// StatusPassed: the test command exited zero.
	StatusPassed Status = iota

	// StatusFailed: a hard failure. Any unit in this state fails the run.
	StatusFailed

	// StatusFailedTolerated: the unit failed but was flagged tolerated in
	// the matrix; recorded and reported, never fatal to the run.
	StatusFailedTolerated
)

var statusNames = map[Status]string{
	StatusPassed:          "passed",
	StatusFailed:          "failed",
	StatusFailedTolerated: "failed_tolerated",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Reason qualifies a failure beyond its status.
type Reason int

const (
	// ReasonNone: no qualifier; for failures this means the test command
	// itself exited non-zero.
	ReasonNone Reason = iota

	// ReasonTopologyUnavailable: the unit's topology never became ready,
	// so the unit was not dispatched at all.
	ReasonTopologyUnavailable

	// ReasonExecError: the test command could not be executed (missing
	// binary, killed by timeout, cancelled).
	ReasonExecError
)

var reasonNames = map[Reason]string{
	ReasonNone:                "",
	ReasonTopologyUnavailable: "topology_unavailable",
	ReasonExecError:           "exec_error",
}

func (r Reason) String() string { return reasonNames[r] }

// UnitOutcome is the result of one matrix cell.
type UnitOutcome struct {
	Unit   matrix.Unit
	Status Status
	Reason Reason

	// ExitCode is the test command's exit code; -1 when the command never
	// produced one (not dispatched, or exec error).
	ExitCode int

	// Duration is the unit's wall-clock time; zero when not dispatched.
	Duration time.Duration

	// LogDir is the unit's working directory holding captured stdout and
	// stderr; empty when not dispatched.
	LogDir string

	// BundlePath is the diagnostic bundle location, set only for hard
	// failures under capture-enabled topologies.
	BundlePath string
}

// Hard reports whether the outcome is a non-tolerated failure.
func (o UnitOutcome) Hard() bool { return o.Status == StatusFailed }
