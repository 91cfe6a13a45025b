package topology

import (
	"fmt"
	"time"
)

// StartupError reports a topology whose deployment commands failed before
// readiness. It aborts only the units assigned to that topology; sibling
// topologies keep running.
type StartupError struct {
	Topology string
	Err      error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("topology %q failed to start: %v", e.Topology, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// StartupTimeoutError reports a topology whose containers started but never
// became ready within the configured window.
type StartupTimeoutError struct {
	Topology string
	Timeout  time.Duration
	LastErr  error
}

func (e *StartupTimeoutError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("topology %q not ready after %s: %v", e.Topology, e.Timeout, e.LastErr)
	}
	return fmt.Sprintf("topology %q not ready after %s", e.Topology, e.Timeout)
}

func (e *StartupTimeoutError) Unwrap() error { return e.LastErr }
