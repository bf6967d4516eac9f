// Package dispatch runs queued queries against a single, periodically
// reopened engine connection.
//
// Two lanes feed the loop. Important items survive connection failures and
// are replayed on the next successful cycle; common items are failed as soon
// as a cycle hits a connection-level error.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/satishbabariya/anybase/internal/debug"
	"github.com/satishbabariya/anybase/query"
	"github.com/satishbabariya/anybase/telemetry"
)

// Dispatcher owns the lanes and the loop of one driver instance.
type Dispatcher struct {
	engine string
	cfg    Config
	log    *slog.Logger
	rec    telemetry.Recorder

	important *Lane
	common    *Lane
	state     stateBox

	// mu serializes Start and Halt.
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// inCallback counts callbacks running on a loop goroutine.
	inCallback atomic.Int32
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithRecorder sets the telemetry recorder.
func WithRecorder(r telemetry.Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.rec = r
		}
	}
}

// New creates a stopped dispatcher. Zero fields of cfg take their defaults.
func New(engine string, cfg Config, opts ...Option) *Dispatcher {
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		engine:    engine,
		cfg:       cfg,
		log:       debug.With("component", "dispatch", "engine", engine),
		rec:       telemetry.Noop(),
		important: NewLane(LaneImportant, cfg.ImportantCapacity),
		common:    NewLane(LaneCommon, cfg.CommonCapacity),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config returns the effective configuration.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// State returns the last observed connection state. It never blocks.
func (d *Dispatcher) State() State {
	return d.state.Load()
}

// Pending returns the number of queued important and common items.
func (d *Dispatcher) Pending() (important, common int) {
	return d.important.Len(), d.common.Len()
}

// Submit enqueues obj on the selected lane. A full lane rejects the item,
// fails its callback with ErrQueueSaturated and returns that error.
func (d *Dispatcher) Submit(obj *query.Object, important bool) error {
	lane := d.common
	if important {
		lane = d.important
	}
	if !lane.Push(obj) {
		d.rec.RecordEnqueue(d.engine, lane.Name(), false)
		d.rec.RecordDrop(d.engine, lane.Name(), telemetry.ReasonSaturated, 1)
		d.log.Debug("lane saturated", "lane", lane.Name(), "capacity", lane.Cap())
		d.deliver(obj, query.Failure(ErrQueueSaturated))
		return ErrQueueSaturated
	}
	d.rec.RecordEnqueue(d.engine, lane.Name(), true)
	d.rec.RecordDepth(d.engine, lane.Name(), lane.Len())
	return nil
}

// Reject completes obj with a failure without queueing it.
func (d *Dispatcher) Reject(obj *query.Object, err error) {
	d.log.Debug("query rejected", "template", obj.Template, "error", err)
	d.deliver(obj, query.Failure(err))
}

// Start replaces any running loop with a new one using c. Queued items are
// kept. A nil connector runs the loop without ever connecting.
func (d *Dispatcher) Start(c Connector) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.haltLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done

	go d.run(ctx, c, done)
}

// Stop cancels the loop, waits up to Config.StopGrace for it to exit, fails
// every queued item with ErrDriverClosed and sets the state to Closed. It is
// safe to call on a stopped dispatcher and from inside a callback.
func (d *Dispatcher) Stop() {
	d.FailClosed(d.Halt())
}

// Halt stops the loop like Stop and sets the state to Closed, but returns the
// queued items instead of completing them. Callers holding their own locks
// pass the items to FailClosed after releasing them.
func (d *Dispatcher) Halt() []*query.Object {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.haltLocked()

	important := d.important.Clear()
	common := d.common.Clear()
	if len(important) > 0 {
		d.rec.RecordDrop(d.engine, LaneImportant, telemetry.ReasonClosed, len(important))
	}
	if len(common) > 0 {
		d.rec.RecordDrop(d.engine, LaneCommon, telemetry.ReasonClosed, len(common))
	}
	d.rec.RecordDepth(d.engine, LaneImportant, 0)
	d.rec.RecordDepth(d.engine, LaneCommon, 0)
	d.setState(Closed)

	return append(important, common...)
}

// FailClosed completes items with ErrDriverClosed.
func (d *Dispatcher) FailClosed(items []*query.Object) {
	for _, obj := range items {
		d.deliver(obj, query.Failure(ErrDriverClosed))
	}
}

// haltLocked cancels the running loop and waits up to StopGrace for it. A
// loop that is running a callback is not waited for: the caller may be that
// callback, and the loop exits on its own once the callback returns.
func (d *Dispatcher) haltLocked() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	if d.inCallback.Load() == 0 {
		timer := time.NewTimer(d.cfg.StopGrace)
		select {
		case <-d.done:
		case <-timer.C:
			d.log.Error("dispatch loop did not stop in time, abandoning it", "grace", d.cfg.StopGrace)
		}
		timer.Stop()
	}
	d.cancel = nil
	d.done = nil
}

func (d *Dispatcher) run(ctx context.Context, c Connector, done chan struct{}) {
	defer close(done)

	for {
		if !sleep(ctx, d.cfg.Interval) {
			return
		}
		if c == nil {
			continue
		}

		start := time.Now()
		executed, err := d.cycle(ctx, c)
		if ctx.Err() != nil {
			d.rec.RecordCycle(d.engine, telemetry.CycleInfo{Outcome: "canceled", Executed: executed, Duration: time.Since(start)})
			return
		}
		if err == nil {
			d.rec.RecordCycle(d.engine, telemetry.CycleInfo{Outcome: "ok", Executed: executed, Duration: time.Since(start)})
			continue
		}

		outcome := "connection_lost"
		var oe *openError
		if errors.As(err, &oe) {
			outcome = "open_failed"
		}
		d.rec.RecordCycle(d.engine, telemetry.CycleInfo{Outcome: outcome, Executed: executed, Duration: time.Since(start)})
		d.fail(ctx, err)

		if !sleep(ctx, d.cfg.Backoff) {
			return
		}
	}
}

// openError marks a cycle that never got a connection.
type openError struct {
	err error
}

func (e *openError) Error() string { return "open connection: " + e.err.Error() }
func (e *openError) Unwrap() error { return e.err }

// cycle opens a connection, drains both lanes under their caps and reports
// how many items ran. A non-nil error means the cycle failed fatally.
func (d *Dispatcher) cycle(ctx context.Context, c Connector) (int, error) {
	d.setStateIfLive(ctx, Connecting)

	conn, err := c.Open(ctx)
	if err != nil {
		return 0, &openError{err: err}
	}
	defer func() {
		if err := conn.Close(); err != nil {
			d.log.Debug("close connection", "error", err)
		}
	}()

	d.setStateIfLive(ctx, conn.State())
	if conn.State() != Open {
		return 0, fmt.Errorf("%w: connection not open after handshake", ErrConnectionLost)
	}

	executed, err := d.drain(ctx, conn, c, d.important, d.cfg.ImportantBatch)
	if err != nil {
		return executed, err
	}
	n, err := d.drain(ctx, conn, c, d.common, d.cfg.CommonBatch)
	executed += n
	if err != nil {
		return executed, err
	}

	if conn.State() != Open {
		return executed, fmt.Errorf("%w: connection dropped during cycle", ErrConnectionLost)
	}
	return executed, nil
}

// drain executes up to limit items from lane. It stops early when the
// connection is lost or the loop is canceled.
func (d *Dispatcher) drain(ctx context.Context, conn Conn, c Connector, lane *Lane, limit int) (int, error) {
	defer func() { d.rec.RecordDepth(d.engine, lane.Name(), lane.Len()) }()

	n := 0
	for n < limit {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		obj, ok := lane.Pop()
		if !ok {
			break
		}
		err := d.execute(ctx, conn, c, lane.Name(), obj)
		n++
		if IsCritical(err) {
			return n, err
		}
		if conn.State() != Open {
			return n, fmt.Errorf("%w: connection dropped during %s lane", ErrConnectionLost, lane.Name())
		}
	}
	return n, nil
}

// execute runs one item and always completes it. Only the returned error
// decides whether the cycle continues.
func (d *Dispatcher) execute(ctx context.Context, conn Conn, c Connector, lane string, obj *query.Object) (err error) {
	qctx := ctx
	if d.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, d.cfg.QueryTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &QueryError{Kind: ErrQueryFailed, Query: obj.Statement.Text, Cause: fmt.Errorf("panic: %v", r)}
			d.log.Error("query panicked", "lane", lane, "panic", r)
			d.deliverFromLoop(obj, query.Failure(err))
		}
		d.rec.RecordQuery(d.engine, telemetry.QueryInfo{Lane: lane, Outcome: outcomeOf(err), Duration: time.Since(start)})
	}()

	var rows []query.Row
	if obj.NonQuery {
		_, err = conn.Exec(qctx, obj.Statement)
	} else {
		rows, err = conn.Query(qctx, obj.Statement)
	}
	if err != nil {
		err = Classify(err, obj.Statement.Text, c.IsCritical)
		d.log.Debug("query failed", "lane", lane, "query", obj.Statement.Text, "error", err)
		d.deliverFromLoop(obj, query.Failure(err))
		return err
	}

	d.deliverFromLoop(obj, query.Success(rows))
	return nil
}

// fail handles a fatal cycle: the state goes Broken and the common lane is
// emptied. Important items stay queued for the next cycle.
func (d *Dispatcher) fail(ctx context.Context, cause error) {
	d.setStateIfLive(ctx, Broken)

	dropped := d.common.Drain(func(obj *query.Object) {
		d.deliverFromLoop(obj, query.Failure(&QueryError{Kind: ErrConnectionLost, Query: obj.Statement.Text, Cause: cause}))
	})
	d.rec.RecordDrop(d.engine, LaneCommon, telemetry.ReasonConnectionLost, dropped)
	d.rec.RecordDepth(d.engine, LaneCommon, 0)

	d.log.Warn("dispatch cycle failed, backing off",
		"error", cause,
		"dropped_common", dropped,
		"pending_important", d.important.Len(),
		"backoff", d.cfg.Backoff,
	)
}

// deliver runs the callback and keeps a panicking callback from taking the
// loop down.
func (d *Dispatcher) deliver(obj *query.Object, r query.Result) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("query callback panicked", "panic", p)
		}
	}()
	obj.Complete(r)
}

func (d *Dispatcher) deliverFromLoop(obj *query.Object, r query.Result) {
	d.inCallback.Add(1)
	defer d.inCallback.Add(-1)
	d.deliver(obj, r)
}

func (d *Dispatcher) setState(s State) {
	if d.state.Swap(s) {
		d.rec.RecordState(d.engine, s.String())
		d.log.Debug("connection state changed", "state", s.String())
	}
}

// setStateIfLive drops updates from a loop that has already been canceled,
// so an abandoned loop cannot overwrite Closed.
func (d *Dispatcher) setStateIfLive(ctx context.Context, s State) {
	if ctx.Err() != nil {
		return
	}
	d.setState(s)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeOK
	case IsCritical(err):
		return telemetry.OutcomeCritical
	case errors.Is(err, ErrCanceled):
		return telemetry.OutcomeCanceled
	default:
		return telemetry.OutcomeFailed
	}
}

// sleep waits for d or until ctx is done. It reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
