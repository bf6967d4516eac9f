// Package sqlite is the SQLite engine. A database named "app" lives in the
// file "app.sqlite"; host, user and password are ignored.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/hashicorp/go-version"
	"github.com/mattn/go-sqlite3"

	"github.com/satishbabariya/anybase/driver"
	"github.com/satishbabariya/anybase/internal/debug"
	"github.com/satishbabariya/anybase/query/compiler"
)

// Name is the canonical engine name.
const Name = "sqlite"

// DriverName is the database/sql driver registered on first use. Its
// connections run in WAL journal mode.
const DriverName = "sqlite3_anybase"

// FileExt is appended to the database name.
const FileExt = ".sqlite"

// unixepoch() first shipped in 3.38.0.
var unixepochSince = version.Must(version.NewVersion("3.38.0"))

var (
	registerOnce sync.Once
	registerErr  error
)

// LibVersion returns the version of the linked SQLite library.
func LibVersion() string {
	v, _, _ := sqlite3.Version()
	return v
}

// epochExpr picks the UNIX_TIMESTAMP() replacement for the linked library.
var epochExpr = sync.OnceValue(func() string {
	v, err := version.NewVersion(LibVersion())
	if err != nil || v.LessThan(unixepochSince) {
		return "CAST(strftime('%s','now') AS INTEGER)"
	}
	return "unixepoch()"
})

var (
	reIntAutoIncrement = regexp.MustCompile(`(?i)\bINT(?:EGER)?\s+PRIMARY\s+KEY\s+AUTO_INCREMENT\b`)
	reAutoIncrement    = regexp.MustCompile(`(?i)\bPRIMARY\s+KEY\s+AUTO_INCREMENT\b`)
	reUnixTimestamp    = regexp.MustCompile(`(?i)\bUNIX_TIMESTAMP\(\s*\)`)
)

// Engine implements driver.Engine for SQLite.
type Engine struct {
	dir         string
	busyTimeout int
}

// Option configures the engine.
type Option func(*Engine)

// WithDir places database files in dir instead of the working directory.
func WithDir(dir string) Option {
	return func(e *Engine) {
		e.dir = dir
	}
}

// WithBusyTimeout sets how long a locked database is retried, in
// milliseconds.
func WithBusyTimeout(ms int) Option {
	return func(e *Engine) {
		e.busyTimeout = ms
	}
}

// New creates the SQLite engine.
func New(opts ...Option) *Engine {
	e := &Engine{busyTimeout: 5000}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string     { return Name }
func (e *Engine) DefaultPort() int { return 0 }

// Path returns the database file for name.
func (e *Engine) Path(name string) string {
	return filepath.Join(e.dir, name+FileExt)
}

// DataSource returns the file path with driver parameters.
func (e *Engine) DataSource(t driver.Target) (string, error) {
	if t.Database == "" {
		return "", errors.New("database name is required")
	}
	if strings.ContainsAny(t.Database, "?#") {
		return "", fmt.Errorf("database name %q contains reserved characters", t.Database)
	}
	return fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=%d", e.Path(t.Database), e.busyTimeout), nil
}

// SQLDriver registers DriverName once per process.
func (e *Engine) SQLDriver() (string, error) {
	registerOnce.Do(func() {
		registerErr = register()
	})
	if registerErr != nil {
		return "", registerErr
	}
	return DriverName, nil
}

func register() (err error) {
	// sql.Register panics on a duplicate name.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("register %s: %v", DriverName, r)
		}
	}()

	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if _, err := conn.Exec("PRAGMA journal_mode=WAL", nil); err != nil {
				return fmt.Errorf("enable WAL: %w", err)
			}
			return nil
		},
	})

	libVersion, _, _ := sqlite3.Version()
	debug.Debug("sqlite driver registered", "driver", DriverName, "version", libVersion, "epoch", epochExpr())
	return nil
}

// Rewrite translates MySQL-flavoured auto-increment and time syntax.
func (e *Engine) Rewrite(template string) string {
	template = reIntAutoIncrement.ReplaceAllString(template, "INTEGER PRIMARY KEY AUTOINCREMENT")
	template = reAutoIncrement.ReplaceAllString(template, "PRIMARY KEY AUTOINCREMENT")
	return reUnixTimestamp.ReplaceAllLiteralString(template, epochExpr())
}

func (e *Engine) Marker() compiler.Marker { return compiler.NumberedQuestionMarker }

func (e *Engine) StripCasts() bool { return true }

// BackslashEscapes is false: SQLite only escapes a quote by doubling it.
func (e *Engine) BackslashEscapes() bool { return false }

// IsCritical reports errors that leave the database file unusable.
func (e *Engine) IsCritical(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code {
	case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
		return true
	}
	return false
}

var (
	_ driver.Engine           = (*Engine)(nil)
	_ driver.BackslashEscaper = (*Engine)(nil)
)
