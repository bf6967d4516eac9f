package dispatch

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// Error types for dispatch operations.
var (
	// ErrQueueSaturated is returned when a lane is full and the query was not enqueued.
	ErrQueueSaturated = errors.New("query queue saturated")

	// ErrQueryFailed is returned when the engine rejected a single query.
	ErrQueryFailed = errors.New("query execution failed")

	// ErrConnectionLost is returned when the engine reports the connection is gone.
	ErrConnectionLost = errors.New("database connection lost")

	// ErrDriverClosed is delivered to queries discarded by UnSet.
	ErrDriverClosed = errors.New("driver closed")

	// ErrCanceled is delivered to a query whose cycle was canceled before it ran.
	ErrCanceled = errors.New("dispatch canceled")
)

// QueryError carries the failed statement and the engine cause.
type QueryError struct {
	// Kind is ErrQueryFailed, ErrConnectionLost or ErrCanceled.
	Kind  error
	Query string
	Cause error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
}

// Unwrap returns the engine cause.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is matches the error kind as well as the cause chain.
func (e *QueryError) Is(target error) bool {
	return target == e.Kind
}

// Critical reports whether the error means the connection is unusable.
func (e *QueryError) Critical() bool {
	return e.Kind == ErrConnectionLost
}

// Classifier reports whether an engine error means the connection is gone.
type Classifier func(error) bool

// Classify wraps an engine error into a QueryError. The engine classifier
// is consulted after the generic connection-loss checks; nil is allowed.
func Classify(err error, stmt string, critical Classifier) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	kind := ErrQueryFailed
	switch {
	case errors.Is(err, context.Canceled):
		kind = ErrCanceled
	case IsConnectionLost(err), critical != nil && critical(err):
		kind = ErrConnectionLost
	}
	return &QueryError{Kind: kind, Query: stmt, Cause: err}
}

// IsCritical reports whether err was classified as connection loss.
func IsCritical(err error) bool {
	return errors.Is(err, ErrConnectionLost)
}

// connectionLostMessages are substrings drivers use when the socket is gone
// but the error is not typed.
var connectionLostMessages = []string{
	"bad connection",
	"broken pipe",
	"connection refused",
	"connection reset",
	"server closed the connection",
	"use of closed network connection",
	"database is closed",
}

// IsConnectionLost applies engine-independent connection-loss checks.
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range connectionLostMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
