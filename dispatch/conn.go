package dispatch

import (
	"context"

	"github.com/satishbabariya/anybase/query"
)

// Conn is one live engine connection. It is used by a single goroutine.
type Conn interface {
	// Query runs a row-returning statement and renders every value as text.
	Query(ctx context.Context, stmt query.Statement) ([]query.Row, error)

	// Exec runs a statement without result rows and returns the affected count.
	Exec(ctx context.Context, stmt query.Statement) (int64, error)

	// State reports Open until the connection is known to be unusable.
	State() State

	// Close releases the connection.
	Close() error
}

// Connector opens connections for a configured connection string.
type Connector interface {
	// Open establishes and verifies a new connection.
	Open(ctx context.Context) (Conn, error)

	// IsCritical reports engine-specific connection-loss errors.
	IsCritical(err error) bool
}
