package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "anybase"

// Prometheus implements Recorder using Prometheus collectors.
type Prometheus struct {
	enqueued      *prometheus.CounterVec
	depth         *prometheus.GaugeVec
	dropped       *prometheus.CounterVec
	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	cycles        *prometheus.CounterVec
	state         *prometheus.GaugeVec

	mu        sync.Mutex
	lastState map[string]string
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enqueued_total",
			Help:      "Submit attempts per lane, split by whether the lane accepted the query.",
		}, []string{"engine", "lane", "accepted"}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lane_depth",
			Help:      "Queries waiting in a lane.",
		}, []string{"engine", "lane"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Queries discarded without running.",
		}, []string{"engine", "lane", "reason"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Executed queries by outcome.",
		}, []string{"engine", "lane", "outcome"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query execution time.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"engine", "lane"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Dispatch cycles by outcome.",
		}, []string{"engine", "outcome"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the last observed connection state of an engine, 0 otherwise.",
		}, []string{"engine", "state"}),
		lastState: make(map[string]string),
	}

	for _, c := range []prometheus.Collector{
		p.enqueued, p.depth, p.dropped, p.queries, p.queryDuration, p.cycles, p.state,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

var (
	defaultOnce     sync.Once
	defaultRecorder Recorder
)

// Default returns a process-wide Prometheus recorder registered with
// prometheus.DefaultRegisterer. Registration failure falls back to Noop.
func Default() Recorder {
	defaultOnce.Do(func() {
		p, err := NewPrometheus(prometheus.DefaultRegisterer)
		if err != nil {
			defaultRecorder = Noop()
			return
		}
		defaultRecorder = p
	})
	return defaultRecorder
}

// RecordEnqueue implements Recorder.
func (p *Prometheus) RecordEnqueue(engine, lane string, accepted bool) {
	a := "true"
	if !accepted {
		a = "false"
	}
	p.enqueued.WithLabelValues(engine, lane, a).Inc()
}

// RecordDepth implements Recorder.
func (p *Prometheus) RecordDepth(engine, lane string, depth int) {
	p.depth.WithLabelValues(engine, lane).Set(float64(depth))
}

// RecordDrop implements Recorder.
func (p *Prometheus) RecordDrop(engine, lane, reason string, n int) {
	if n <= 0 {
		return
	}
	p.dropped.WithLabelValues(engine, lane, reason).Add(float64(n))
}

// RecordQuery implements Recorder.
func (p *Prometheus) RecordQuery(engine string, info QueryInfo) {
	p.queries.WithLabelValues(engine, info.Lane, info.Outcome).Inc()
	p.queryDuration.WithLabelValues(engine, info.Lane).Observe(info.Duration.Seconds())
}

// RecordCycle implements Recorder.
func (p *Prometheus) RecordCycle(engine string, info CycleInfo) {
	p.cycles.WithLabelValues(engine, info.Outcome).Inc()
}

// RecordState implements Recorder.
func (p *Prometheus) RecordState(engine, state string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.lastState[engine]; ok && prev != state {
		p.state.WithLabelValues(engine, prev).Set(0)
	}
	p.lastState[engine] = state
	p.state.WithLabelValues(engine, state).Set(1)
}

// Ensure Prometheus implements Recorder.
var _ Recorder = (*Prometheus)(nil)
