// Package telemetry records dispatcher activity.
package telemetry

import (
	"time"
)

// Query outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeCritical = "critical"
	OutcomeCanceled = "canceled"
)

// Drop reasons.
const (
	ReasonSaturated      = "saturated"
	ReasonConnectionLost = "connection_lost"
	ReasonClosed         = "closed"
)

// Recorder receives dispatcher events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// RecordEnqueue records a submit attempt on a lane.
	RecordEnqueue(engine, lane string, accepted bool)

	// RecordDepth records the current length of a lane.
	RecordDepth(engine, lane string, depth int)

	// RecordDrop records queued items discarded without running.
	RecordDrop(engine, lane, reason string, n int)

	// RecordQuery records one executed query.
	RecordQuery(engine string, info QueryInfo)

	// RecordCycle records one dispatch cycle.
	RecordCycle(engine string, info CycleInfo)

	// RecordState records a connection state change.
	RecordState(engine, state string)
}

// QueryInfo describes one executed query.
type QueryInfo struct {
	Lane     string
	Outcome  string
	Duration time.Duration
}

// CycleInfo describes one dispatch cycle.
type CycleInfo struct {
	// Outcome is "ok", "open_failed", "connection_lost" or "canceled".
	Outcome  string
	Executed int
	Duration time.Duration
}

// Noop returns a Recorder that discards everything.
func Noop() Recorder {
	return noop{}
}

type noop struct{}

func (noop) RecordEnqueue(string, string, bool)     {}
func (noop) RecordDepth(string, string, int)        {}
func (noop) RecordDrop(string, string, string, int) {}
func (noop) RecordQuery(string, QueryInfo)          {}
func (noop) RecordCycle(string, CycleInfo)          {}
func (noop) RecordState(string, string)             {}
