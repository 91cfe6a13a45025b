// Package report turns a finished run's outcomes into a verdict and a
// human-readable summary. Aggregation is pure: it inspects outcomes only,
// performs no I/O, and is deterministic for a given input.
package report

import (
	"time"

	"github.com/gauntlet-ci/gauntlet/internal/scheduler"
)

// Summary is the aggregate view of one run.
type Summary struct {
	RunID string

	// Image is the resolved environment reference the run deployed.
	Image string

	// Outcomes holds every unit outcome, ordered by topology then test.
	Outcomes []scheduler.UnitOutcome

	Total           int
	Passed          int
	FailedHard      int
	FailedTolerated int

	// Duration is the run's wall-clock time.
	Duration time.Duration
}

// Failed reports the run verdict: true iff at least one outcome is a hard
// (non-tolerated) failure. An empty outcome set is a pass; vacuous success
// keeps a filtered-to-nothing matrix from breaking CI.
func (s Summary) Failed() bool { return s.FailedHard > 0 }

// ExitCode maps the verdict to a process exit code.
func (s Summary) ExitCode() int {
	if s.Failed() {
		return 1
	}
	return 0
}

// HardFailures returns the outcomes that decided a failed verdict.
func (s Summary) HardFailures() []scheduler.UnitOutcome {
	var out []scheduler.UnitOutcome
	for _, o := range s.Outcomes {
		if o.Hard() {
			out = append(out, o)
		}
	}
	return out
}

// Aggregate computes the summary for a finished run.
func Aggregate(runID, image string, duration time.Duration, outcomes []scheduler.UnitOutcome) Summary {
	s := Summary{
		RunID:    runID,
		Image:    image,
		Outcomes: outcomes,
		Total:    len(outcomes),
		Duration: duration,
	}
	for _, o := range outcomes {
		switch o.Status {
		case scheduler.StatusPassed:
			s.Passed++
		case scheduler.StatusFailed:
			s.FailedHard++
		case scheduler.StatusFailedTolerated:
			s.FailedTolerated++
		}
	}
	return s
}
