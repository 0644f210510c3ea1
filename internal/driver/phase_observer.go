package driver

import "time"

// PhaseStatus marks which edge of a session phase an event reports.
type PhaseStatus int

const (
	PhaseStart PhaseStatus = iota
	PhaseEnd
)

func (s PhaseStatus) String() string {
	if s == PhaseEnd {
		return "end"
	}
	return "start"
}

// PhaseEvent is emitted when a session phase (load, cache, compile, decode,
// execute) starts or ends. Elapsed is only set on PhaseEnd.
type PhaseEvent struct {
	Name    string
	Status  PhaseStatus
	Elapsed time.Duration
}

// PhaseObserver is called synchronously from the session goroutine.
type PhaseObserver func(PhaseEvent)
