// Package query defines the unit of work handed to a driver and the
// result delivered back to the caller.
package query

import (
	"context"
	"sync"
)

// Row is one result row. A nil element is SQL NULL.
type Row []*string

// Result is what a Callback receives exactly once.
//
// A failed query carries a non-nil Err and no rows. A successful query
// carries a non-nil (possibly empty) Rows slice.
type Result struct {
	Rows []Row
	Err  error
}

// Failed reports whether r is a failure marker.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Empty reports whether r is a success without rows.
func (r Result) Empty() bool {
	return r.Err == nil && len(r.Rows) == 0
}

// Success builds a successful result. A nil rows slice is normalised to an
// empty one so callers can tell "no rows" from a failure.
func Success(rows []Row) Result {
	if rows == nil {
		rows = []Row{}
	}
	return Result{Rows: rows}
}

// Failure builds a failure marker.
func Failure(err error) Result {
	return Result{Err: err}
}

// Callback receives the outcome of a submitted query.
type Callback func(Result)

// Statement is a compiled template: engine-ready text plus the values to
// bind in order. Values holds nil for SQL NULL.
type Statement struct {
	Text   string
	Values []any
}

// Object is one pending unit of work. It is immutable once built; the
// only state it carries is whether the callback already ran.
type Object struct {
	Template  string
	Args      []*string
	NonQuery  bool
	Statement Statement

	onComplete Callback
	once       sync.Once
}

// New builds an Object around an already compiled statement.
func New(template string, args []*string, stmt Statement, cb Callback, nonQuery bool) *Object {
	return &Object{
		Template:   template,
		Args:       args,
		NonQuery:   nonQuery,
		Statement:  stmt,
		onComplete: cb,
	}
}

// Complete delivers r to the callback. Only the first call has any effect.
func (o *Object) Complete(r Result) {
	o.once.Do(func() {
		if o.onComplete != nil {
			o.onComplete(r)
		}
	})
}

// Arg returns a pointer to s for use in an argument list.
func Arg(s string) *string {
	return &s
}

// Args converts plain strings to an argument list without NULLs.
func Args(values ...string) []*string {
	out := make([]*string, len(values))
	for i := range values {
		out[i] = Arg(values[i])
	}
	return out
}

// Null is the absent argument.
var Null *string

// Future is a Callback whose Result can be awaited.
type Future struct {
	ch chan Result
}

// NewFuture returns a Future. Pass Future.Callback to QueryAsync.
func NewFuture() *Future {
	return &Future{ch: make(chan Result, 1)}
}

// Callback returns the function that resolves the future.
func (f *Future) Callback() Callback {
	return func(r Result) {
		select {
		case f.ch <- r:
		default:
		}
	}
}

// Done returns a channel that yields the Result once.
func (f *Future) Done() <-chan Result {
	return f.ch
}

// Wait blocks until the result arrives or ctx is done.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case r := <-f.ch:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
