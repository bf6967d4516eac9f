package driver

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/satishbabariya/anybase/dispatch"
	"github.com/satishbabariya/anybase/query"
)

// sqlConnector opens dispatch connections from a database/sql pool limited
// to a single physical connection.
type sqlConnector struct {
	driverName string
	dsn        string
	critical   func(error) bool
	log        *slog.Logger

	mu sync.Mutex
	db *sql.DB
}

func newSQLConnector(driverName, dsn string, critical func(error) bool, log *slog.Logger) *sqlConnector {
	return &sqlConnector{
		driverName: driverName,
		dsn:        dsn,
		critical:   critical,
		log:        log,
	}
}

// Open checks out the pooled connection and pings it.
func (c *sqlConnector) Open(ctx context.Context) (dispatch.Conn, error) {
	db, err := c.pool()
	if err != nil {
		return nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &sqlConn{conn: conn, critical: c.IsCritical}, nil
}

// IsCritical combines generic and engine-specific connection loss checks.
func (c *sqlConnector) IsCritical(err error) bool {
	if dispatch.IsConnectionLost(err) {
		return true
	}
	return c.critical != nil && c.critical(err)
}

func (c *sqlConnector) pool() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}
	db, err := sql.Open(c.driverName, c.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	c.log.Debug("database pool opened", "driver", c.driverName)
	c.db = db
	return db, nil
}

// Close releases the pool. The connector can be reopened afterwards.
func (c *sqlConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// sqlConn is one checked-out connection. It turns Broken after the first
// critical error.
type sqlConn struct {
	conn     *sql.Conn
	critical func(error) bool
	broken   bool
	closed   bool
}

func (c *sqlConn) Query(ctx context.Context, stmt query.Statement) ([]query.Row, error) {
	rows, err := c.conn.QueryContext(ctx, stmt.Text, stmt.Values...)
	if err != nil {
		return nil, c.observe(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, c.observe(err)
	}

	out := []query.Row{}
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, c.observe(err)
		}

		row := make(query.Row, len(cols))
		for i, v := range values {
			if v.Valid {
				s := v.String
				row[i] = &s
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, c.observe(err)
	}
	return out, nil
}

func (c *sqlConn) Exec(ctx context.Context, stmt query.Statement) (int64, error) {
	res, err := c.conn.ExecContext(ctx, stmt.Text, stmt.Values...)
	if err != nil {
		return 0, c.observe(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report it; the statement still succeeded.
		return 0, nil
	}
	return n, nil
}

func (c *sqlConn) State() dispatch.State {
	switch {
	case c.closed:
		return dispatch.Closed
	case c.broken:
		return dispatch.Broken
	default:
		return dispatch.Open
	}
}

func (c *sqlConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *sqlConn) observe(err error) error {
	if c.critical(err) {
		c.broken = true
	}
	return err
}
