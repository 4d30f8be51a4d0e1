package worker

import "fmt"

// Lifecycle is the worker state machine:
//
//	Idle -> Starting -> Running -> Stopping -> Joined
//
// Idle may also go straight to Stopping when a worker is discarded before it ran.
// Joined is terminal; a worker is never restarted.
type Lifecycle int32

const (
	Idle Lifecycle = iota
	Starting
	Running
	Stopping
	Joined
)

func (l Lifecycle) String() string {
	switch l {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Joined:
		return "joined"
	default:
		return fmt.Sprintf("lifecycle(%d)", int32(l))
	}
}

// Mode selects where the loop body runs
type Mode int

const (
	// Threaded runs the loop on a dedicated goroutine
	Threaded Mode = iota
	// Cooperative runs one iteration per Step call on the caller's goroutine
	Cooperative
)

func (m Mode) String() string {
	if m == Cooperative {
		return "cooperative"
	}
	return "threaded"
}

// State mirrors the flags a consumer may want to display
type State struct {
	Alive      bool
	Active     bool
	SourceOpen bool
	Lifecycle  Lifecycle
}

// Stats counts loop iterations for diagnostics
type Stats struct {
	Iterations     uint64
	Idles          uint64
	Decodes        uint64
	DecodeFailures uint64
	Reuses         uint64
}
