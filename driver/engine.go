package driver

import (
	"github.com/satishbabariya/anybase/query/compiler"
)

// Target is what Set resolves its arguments into.
type Target struct {
	Database string
	Server   string
	Port     int
	User     string
	Password string
}

// Engine captures everything that differs between database backends.
type Engine interface {
	// Name is the canonical engine name.
	Name() string

	// DefaultPort is used when the host carries no port. Engines without a
	// network endpoint return 0.
	DefaultPort() int

	// DataSource builds the connection string for t.
	DataSource(t Target) (string, error)

	// SQLDriver returns the database/sql driver name, performing any
	// process-wide native setup on first use.
	SQLDriver() (string, error)

	// Rewrite adapts template text written in the common dialect.
	Rewrite(template string) string

	// Marker renders the bind marker for a 1-based argument position.
	Marker() compiler.Marker

	// StripCasts reports whether "::type" casts must be removed.
	StripCasts() bool

	// IsCritical reports engine errors that mean the connection is gone.
	IsCritical(err error) bool
}
