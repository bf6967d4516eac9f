package dispatch

import "sync/atomic"

// State is the connection state observed by the dispatch loop.
type State int32

const (
	// Closed means no loop is running or the driver was unset.
	Closed State = iota
	// Connecting means a cycle is opening its connection.
	Connecting
	// Open means the last cycle connected successfully.
	Open
	// Broken means the last cycle failed to connect or lost its connection.
	Broken
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Connecting:
		return "Connecting"
	case Open:
		return "Open"
	case Broken:
		return "Broken"
	default:
		return "Unknown"
	}
}

// stateBox holds a State for lock-free reads.
type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) Load() State {
	return State(b.v.Load())
}

// Swap stores s and reports whether it differs from the previous value.
func (b *stateBox) Swap(s State) bool {
	return State(b.v.Swap(int32(s))) != s
}
