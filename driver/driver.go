// Package driver is the engine-agnostic facade over the dispatch loop.
//
// A Driver compiles templates at submit time, queues them on one of two
// lanes and reports results through callbacks. Engine variants live in the
// mysql, postgres and sqlite subpackages.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/satishbabariya/anybase/dispatch"
	"github.com/satishbabariya/anybase/internal/debug"
	"github.com/satishbabariya/anybase/query"
	"github.com/satishbabariya/anybase/query/compiler"
	"github.com/satishbabariya/anybase/telemetry"
)

// Driver is the caller-facing contract shared by every engine.
type Driver interface {
	// Set configures the connection and (re)starts the dispatch loop.
	Set(name, host, user, password string) error

	// UnSet stops the loop and fails every queued query.
	UnSet()

	// QueryAsync validates template against args and queues it. The
	// callback runs exactly once. A non-nil error means the query was
	// rejected and the callback has already received the same failure.
	QueryAsync(template string, args []*string, cb query.Callback, nonQuery, important bool) error

	// GetLastState returns the last observed connection state.
	GetLastState() dispatch.State
}

// ErrEscapeUnsupported is returned by engines that do not treat a backslash
// inside a string literal as an escape character.
var ErrEscapeUnsupported = errors.New("escape mode is not supported by this engine")

// BackslashEscaper is implemented by engines whose string literals honour
// backslash escapes. Escape mode is only accepted for engines reporting true.
type BackslashEscaper interface {
	BackslashEscapes() bool
}

// SupportsEscapeMode reports whether e accepts WithEscapeMode.
func SupportsEscapeMode(e Engine) bool {
	be, ok := e.(BackslashEscaper)
	return ok && be.BackslashEscapes()
}

// Option configures a Base.
type Option func(*options)

type options struct {
	dispatch dispatch.Config
	log      *slog.Logger
	mode     compiler.Mode
	recorder telemetry.Recorder
}

// WithDispatchConfig overrides the dispatch loop configuration.
func WithDispatchConfig(cfg dispatch.Config) Option {
	return func(o *options) {
		o.dispatch = cfg
	}
}

// WithLogger sets the logger used by the driver and its loop.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithEscapeMode substitutes escaped argument text into the statement
// instead of binding parameters. Only engines implementing BackslashEscaper
// accept it; for the others Set and every query fail with
// ErrEscapeUnsupported, since a quote escaped with a backslash would still
// terminate the literal.
func WithEscapeMode() Option {
	return func(o *options) {
		o.mode = compiler.Escaped
	}
}

// WithMetrics records dispatch metrics to r.
func WithMetrics(r telemetry.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// Base implements Driver on top of an Engine.
type Base struct {
	engine   Engine
	compiler compiler.Compiler
	disp     *dispatch.Dispatcher
	log      *slog.Logger
	// modeErr is set when the requested mode is unsafe for the engine.
	modeErr  error

	// mu serializes Set and UnSet.
	mu        sync.Mutex
	connector *sqlConnector
	target    Target
}

var _ Driver = (*Base)(nil)

// New creates an unconfigured driver for engine. Queries submitted before
// Set wait in their lanes.
func New(engine Engine, opts ...Option) *Base {
	o := options{
		dispatch: dispatch.DefaultConfig(),
		mode:     compiler.Bind,
		recorder: telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	dispOpts := []dispatch.Option{dispatch.WithRecorder(o.recorder)}
	log := o.log
	if log == nil {
		log = debug.With("component", "driver", "engine", engine.Name())
	} else {
		dispOpts = append(dispOpts, dispatch.WithLogger(log))
	}

	var modeErr error
	if o.mode == compiler.Escaped && !SupportsEscapeMode(engine) {
		modeErr = fmt.Errorf("%w: %s", ErrEscapeUnsupported, engine.Name())
	}

	return &Base{
		engine:  engine,
		modeErr: modeErr,
		compiler: compiler.Compiler{
			Marker:     engine.Marker(),
			Mode:       o.mode,
			StripCasts: engine.StripCasts(),
		},
		disp: dispatch.New(engine.Name(), o.dispatch, dispOpts...),
		log:  log,
	}
}

// Engine returns the engine variant.
func (b *Base) Engine() Engine {
	return b.engine
}

// Mode returns the argument handling mode.
func (b *Base) Mode() compiler.Mode {
	return b.compiler.Mode
}

// Set parses host, builds the connection string and starts the loop. A
// configured driver is UnSet first, which fails its queued queries. On error
// the previous configuration keeps running. Callbacks of queries failed by
// the implicit UnSet run after Set has released its lock.
func (b *Base) Set(name, host, user, password string) error {
	if b.modeErr != nil {
		return b.modeErr
	}
	server, port, err := ParseHost(host, b.engine.DefaultPort())
	if err != nil {
		return err
	}
	t := Target{
		Database: name,
		Server:   server,
		Port:     port,
		User:     user,
		Password: password,
	}

	dsn, err := b.engine.DataSource(t)
	if err != nil {
		return fmt.Errorf("failed to build %s connection string: %w", b.engine.Name(), err)
	}
	driverName, err := b.engine.SQLDriver()
	if err != nil {
		return fmt.Errorf("failed to initialize %s driver: %w", b.engine.Name(), err)
	}

	b.mu.Lock()
	var closed []*query.Object
	if b.connector != nil {
		closed = b.unsetLocked()
	}
	b.connector = newSQLConnector(driverName, dsn, b.engine.IsCritical, b.log)
	b.target = t
	b.disp.Start(b.connector)
	b.mu.Unlock()

	b.disp.FailClosed(closed)
	b.log.Info("driver configured", "database", name, "server", server, "port", port)
	return nil
}

// UnSet stops the loop, fails queued queries with dispatch.ErrDriverClosed
// and releases the connection. It is safe to call repeatedly, and from a
// query callback.
func (b *Base) UnSet() {
	b.mu.Lock()
	closed := b.unsetLocked()
	b.mu.Unlock()

	b.disp.FailClosed(closed)
}

// unsetLocked stops the loop and returns the queued queries for the caller
// to fail once b.mu is released.
func (b *Base) unsetLocked() []*query.Object {
	closed := b.disp.Halt()
	if b.connector != nil {
		if err := b.connector.Close(); err != nil {
			b.log.Warn("failed to close database", "error", err)
		}
		b.connector = nil
	}
	b.target = Target{}
	return closed
}

// QueryAsync implements Driver.
func (b *Base) QueryAsync(template string, args []*string, cb query.Callback, nonQuery, important bool) error {
	stmt, err := b.Compile(template, args)
	obj := query.New(template, args, stmt, cb, nonQuery)
	if err != nil {
		b.disp.Reject(obj, err)
		return err
	}
	return b.disp.Submit(obj, important)
}

// Compile returns the statement QueryAsync would queue for template.
func (b *Base) Compile(template string, args []*string) (query.Statement, error) {
	if b.modeErr != nil {
		return query.Statement{}, b.modeErr
	}
	return b.compiler.Compile(b.engine.Rewrite(template), args)
}

// Query submits template and waits for its result or ctx.
func (b *Base) Query(ctx context.Context, template string, args []*string, nonQuery, important bool) (query.Result, error) {
	fut := query.NewFuture()
	if err := b.QueryAsync(template, args, fut.Callback(), nonQuery, important); err != nil {
		return query.Failure(err), err
	}
	return fut.Wait(ctx)
}

// GetLastState implements Driver.
func (b *Base) GetLastState() dispatch.State {
	return b.disp.State()
}

// Pending returns the number of queued important and common queries.
func (b *Base) Pending() (important, common int) {
	return b.disp.Pending()
}

// Target returns the resolved configuration of the last successful Set, with
// the password cleared.
func (b *Base) Target() Target {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.target
	t.Password = ""
	return t
}
