package scheduler

import "time"

// EventType discriminates scheduler progress events.
type EventType int

const (
	EventTopologyStarting EventType = iota
	EventTopologyReady
	EventTopologyFailed
	EventTopologyStopped
	EventUnitStarted
	EventUnitFinished
)

// Event is a progress notification emitted while a run executes. Emission
// is non-blocking: a slow or absent consumer never stalls the run, it only
// misses events.
type Event struct {
	Type     EventType
	Topology string
	Unit     string
	Status   Status
	Message  string
	Time     time.Time
}

// emit sends the event without blocking. A nil channel drops everything.
func emit(ch chan<- Event, ev Event) {
	if ch == nil {
		return
	}
	ev.Time = time.Now()
	select {
	case ch <- ev:
	default:
	}
}
