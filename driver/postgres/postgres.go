// Package postgres is the PostgreSQL engine.
package postgres

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/lib/pq"

	"github.com/satishbabariya/anybase/driver"
	"github.com/satishbabariya/anybase/query/compiler"
)

// Name is the canonical engine name.
const Name = "postgre"

// DefaultPort is the PostgreSQL server port.
const DefaultPort = 5432

// database/sql driver names. DriverPQ is the default.
const (
	DriverPQ  = "postgres"
	DriverPgx = "pgx"
)

// SSL modes understood by both drivers.
const (
	SSLDisable    = "disable"
	SSLRequire    = "require"
	SSLVerifyCA   = "verify-ca"
	SSLVerifyFull = "verify-full"
)

var (
	// ErrInvalidSSLMode is returned for an sslmode the drivers cannot handle.
	ErrInvalidSSLMode = errors.New("unsupported sslmode")
	// ErrInvalidDriver is returned for a database/sql driver other than
	// DriverPQ or DriverPgx.
	ErrInvalidDriver = errors.New("unsupported postgres driver")
)

var rewrites = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\bUNIX_TIMESTAMP\(\s*\)`), "CAST(EXTRACT(EPOCH FROM NOW()) AS BIGINT)"},
	{regexp.MustCompile(`(?i)\bBIGINT\s+PRIMARY\s+KEY\s+AUTO_INCREMENT\b`), "BIGSERIAL PRIMARY KEY"},
	{regexp.MustCompile(`(?i)\bINT(?:EGER)?\s+PRIMARY\s+KEY\s+AUTO_INCREMENT\b`), "SERIAL PRIMARY KEY"},
	{regexp.MustCompile(`(?i)\bPRIMARY\s+KEY\s+AUTO_INCREMENT\b`), "PRIMARY KEY"},
}

// Engine implements driver.Engine for PostgreSQL.
type Engine struct {
	sslMode   string
	timeout   time.Duration
	sqlDriver string
}

// Option configures the engine.
type Option func(*Engine)

// WithSSLMode sets the sslmode parameter.
func WithSSLMode(mode string) Option {
	return func(e *Engine) {
		e.sslMode = mode
	}
}

// WithConnectTimeout sets connect_timeout, rounded down to whole seconds.
func WithConnectTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithDriver selects the database/sql driver: DriverPQ (lib/pq) or
// DriverPgx (jackc/pgx). Both accept the same connection string.
func WithDriver(name string) Option {
	return func(e *Engine) {
		e.sqlDriver = name
	}
}

// New creates the PostgreSQL engine with sslmode=disable on lib/pq.
func New(opts ...Option) *Engine {
	e := &Engine{sslMode: SSLDisable, timeout: 10 * time.Second, sqlDriver: DriverPQ}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string     { return Name }
func (e *Engine) DefaultPort() int { return DefaultPort }

// DataSource builds a key/value connection string.
func (e *Engine) DataSource(t driver.Target) (string, error) {
	if t.Server == "" {
		return "", errors.New("server is required")
	}
	switch e.sslMode {
	case SSLDisable, SSLRequire, SSLVerifyCA, SSLVerifyFull:
	default:
		return "", fmt.Errorf("%w %q", ErrInvalidSSLMode, e.sslMode)
	}

	params := [][2]string{
		{"host", t.Server},
		{"port", strconv.Itoa(t.Port)},
		{"dbname", t.Database},
		{"user", t.User},
		{"password", t.Password},
		{"sslmode", e.sslMode},
	}
	if secs := int(e.timeout / time.Second); secs > 0 {
		params = append(params, [2]string{"connect_timeout", strconv.Itoa(secs)})
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p[1] == "" {
			continue
		}
		parts = append(parts, p[0]+"="+quote(p[1]))
	}
	return strings.Join(parts, " "), nil
}

// SQLDriver returns the selected driver name. Both drivers register
// themselves at import.
func (e *Engine) SQLDriver() (string, error) {
	switch e.sqlDriver {
	case DriverPQ, DriverPgx:
		return e.sqlDriver, nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidDriver, e.sqlDriver)
}

// Rewrite translates MySQL-flavoured time and auto-increment syntax.
func (e *Engine) Rewrite(template string) string {
	for _, r := range rewrites {
		template = r.re.ReplaceAllString(template, r.repl)
	}
	return template
}

func (e *Engine) Marker() compiler.Marker { return compiler.DollarMarker }

// StripCasts is false: PostgreSQL understands "::type".
func (e *Engine) StripCasts() bool { return false }

// BackslashEscapes is false: with standard_conforming_strings on, the
// default since 9.1, a backslash in '...' is an ordinary character.
func (e *Engine) BackslashEscapes() bool { return false }

// IsCritical reports connection exceptions (class 08), shutdowns and FATAL
// errors from either driver.
func (e *Engine) IsCritical(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Fatal() || criticalCode(string(pqErr.Code))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Severity == "FATAL" || pgErr.Severity == "PANIC" || criticalCode(pgErr.Code)
	}
	return false
}

func criticalCode(code string) bool {
	if strings.HasPrefix(code, "08") {
		return true
	}
	switch code {
	case "57P01", "57P02", "57P03":
		return true
	}
	return false
}

// quote wraps v in single quotes when it contains characters that are
// special in a key/value connection string.
func quote(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

var (
	_ driver.Engine           = (*Engine)(nil)
	_ driver.BackslashEscaper = (*Engine)(nil)
)
