package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	p.RecordEnqueue("sqlite", "common", true)
	p.RecordEnqueue("sqlite", "common", true)
	p.RecordEnqueue("sqlite", "common", false)
	p.RecordDrop("sqlite", "common", ReasonConnectionLost, 3)
	p.RecordDrop("sqlite", "common", ReasonConnectionLost, 0)
	p.RecordQuery("sqlite", QueryInfo{Lane: "important", Outcome: OutcomeOK, Duration: time.Millisecond})
	p.RecordCycle("sqlite", CycleInfo{Outcome: "ok", Executed: 1})
	p.RecordDepth("sqlite", "important", 7)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.enqueued.WithLabelValues("sqlite", "common", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.enqueued.WithLabelValues("sqlite", "common", "false")))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.dropped.WithLabelValues("sqlite", "common", ReasonConnectionLost)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.queries.WithLabelValues("sqlite", "important", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.cycles.WithLabelValues("sqlite", "ok")))
	assert.Equal(t, 7.0, testutil.ToFloat64(p.depth.WithLabelValues("sqlite", "important")))
}

func TestPrometheus_StateIsExclusive(t *testing.T) {
	p, err := NewPrometheus(prometheus.NewRegistry())
	require.NoError(t, err)

	p.RecordState("mysql", "Connecting")
	p.RecordState("mysql", "Open")

	assert.Equal(t, 0.0, testutil.ToFloat64(p.state.WithLabelValues("mysql", "Connecting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.state.WithLabelValues("mysql", "Open")))
}

func TestPrometheus_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)

	_, err = NewPrometheus(reg)
	assert.Error(t, err)
}

func TestDefault_IsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestNoop(t *testing.T) {
	r := Noop()
	assert.NotPanics(t, func() {
		r.RecordEnqueue("e", "l", true)
		r.RecordDepth("e", "l", 1)
		r.RecordDrop("e", "l", ReasonClosed, 1)
		r.RecordQuery("e", QueryInfo{})
		r.RecordCycle("e", CycleInfo{})
		r.RecordState("e", "Open")
	})
}
