// Package mysql is the MySQL and MariaDB engine.
package mysql

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/satishbabariya/anybase/driver"
	"github.com/satishbabariya/anybase/internal/debug"
	"github.com/satishbabariya/anybase/query/compiler"
)

// Name is the canonical engine name.
const Name = "mysql"

// DefaultPort is the MySQL server port.
const DefaultPort = 3306

// Server error numbers that mean the session is gone.
var lostConnectionErrors = map[uint16]bool{
	1053: true, // ER_SERVER_SHUTDOWN
	1152: true, // ER_ABORTING_CONNECTION
	1927: true, // ER_CONNECTION_KILLED
	2006: true, // CR_SERVER_GONE_ERROR
	2013: true, // CR_SERVER_LOST
}

var initOnce sync.Once

// Engine implements driver.Engine for MySQL.
type Engine struct {
	tls     string
	timeout time.Duration
}

// Option configures the engine.
type Option func(*Engine)

// WithTLS selects a TLS configuration by name ("true", "skip-verify",
// "preferred" or one registered with mysql.RegisterTLSConfig).
func WithTLS(name string) Option {
	return func(e *Engine) {
		e.tls = name
	}
}

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// New creates the MySQL engine. TLS is off unless WithTLS is given.
func New(opts ...Option) *Engine {
	e := &Engine{timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string     { return Name }
func (e *Engine) DefaultPort() int { return DefaultPort }

// DataSource builds a go-sql-driver DSN.
func (e *Engine) DataSource(t driver.Target) (string, error) {
	if t.Server == "" {
		return "", errors.New("server is required")
	}

	cfg := mysql.NewConfig()
	cfg.User = t.User
	cfg.Passwd = t.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(t.Server, strconv.Itoa(t.Port))
	cfg.DBName = t.Database
	cfg.AllowNativePasswords = true
	cfg.ParseTime = false
	cfg.Timeout = e.timeout
	if e.tls != "" {
		cfg.TLSConfig = e.tls
	}
	return cfg.FormatDSN(), nil
}

// SQLDriver routes the driver's internal logger into the process logger on
// first use.
func (e *Engine) SQLDriver() (string, error) {
	var err error
	initOnce.Do(func() {
		err = mysql.SetLogger(logAdapter{})
	})
	if err != nil {
		return "", fmt.Errorf("failed to set mysql logger: %w", err)
	}
	return "mysql", nil
}

// Rewrite returns template unchanged: templates are written in MySQL's
// dialect.
func (e *Engine) Rewrite(template string) string { return template }

func (e *Engine) Marker() compiler.Marker { return compiler.QuestionMarker }

func (e *Engine) StripCasts() bool { return true }

// BackslashEscapes is true unless the server runs with the
// NO_BACKSLASH_ESCAPES sql_mode, in which case escape mode must not be used.
func (e *Engine) BackslashEscapes() bool { return true }

// IsCritical reports errors after which the session cannot be reused.
func (e *Engine) IsCritical(err error) bool {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return lostConnectionErrors[myErr.Number]
	}
	return false
}

type logAdapter struct{}

func (logAdapter) Print(v ...any) {
	debug.Warn(fmt.Sprint(v...), "source", "go-sql-driver/mysql")
}

var (
	_ driver.Engine           = (*Engine)(nil)
	_ driver.BackslashEscaper = (*Engine)(nil)
)
