package dispatch

import (
	"github.com/satishbabariya/anybase/query"
)

// Lane names.
const (
	LaneImportant = "important"
	LaneCommon    = "common"
)

// Lane is a bounded FIFO of pending queries. Any number of goroutines may
// push; one goroutine pops. Push never blocks.
type Lane struct {
	name  string
	items chan *query.Object
}

// NewLane creates a lane holding at most capacity items.
func NewLane(name string, capacity int) *Lane {
	if capacity < 1 {
		capacity = 1
	}
	return &Lane{name: name, items: make(chan *query.Object, capacity)}
}

// Name returns the lane name.
func (l *Lane) Name() string { return l.name }

// Len returns the number of queued items.
func (l *Lane) Len() int { return len(l.items) }

// Cap returns the lane capacity.
func (l *Lane) Cap() int { return cap(l.items) }

// Push appends obj. It returns false without blocking when the lane is full;
// the caller owns the rejected item.
func (l *Lane) Push(obj *query.Object) bool {
	select {
	case l.items <- obj:
		return true
	default:
		return false
	}
}

// Pop removes the oldest item, if any.
func (l *Lane) Pop() (*query.Object, bool) {
	select {
	case obj := <-l.items:
		return obj, true
	default:
		return nil, false
	}
}

// Drain removes every queued item, hands each to fn and returns how many
// were removed.
func (l *Lane) Drain(fn func(*query.Object)) int {
	n := 0
	for {
		obj, ok := l.Pop()
		if !ok {
			return n
		}
		fn(obj)
		n++
	}
}

// Clear removes every queued item and returns them in FIFO order without
// completing them.
func (l *Lane) Clear() []*query.Object {
	var out []*query.Object
	l.Drain(func(obj *query.Object) { out = append(out, obj) })
	return out
}
