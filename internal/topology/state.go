package topology

// State tracks a topology through its lifecycle. Transitions are linear:
//
//	Uninitialized → Starting → Ready → TearingDown → Terminated
//
// with FailedStart as the terminal state of an unsuccessful Start. A
// topology never leaves Terminated or FailedStart except through Teardown,
// which is valid from every state.
type State int

const (
	StateUninitialized State = iota
	StateStarting
	StateReady
	StateFailedStart
	StateTearingDown
	StateTerminated
)

var stateNames = map[State]string{
	StateUninitialized: "uninitialized",
	StateStarting:      "starting",
	StateReady:         "ready",
	StateFailedStart:   "failed_start",
	StateTearingDown:   "tearing_down",
	StateTerminated:    "terminated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
