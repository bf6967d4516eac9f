package dispatch

import (
	"context"
	"database/sql/driver"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/satishbabariya/anybase/query"
)

// fakeConnector hands out fakeConns and records every executed statement
// together with the number of the connection that ran it.
type fakeConnector struct {
	mu       sync.Mutex
	opened   int
	openErrs int // fail this many Open calls first
	executed []execRecord

	// failOn maps statement text to the error it returns, on any connection.
	failOn map[string]error
	// criticalOnce maps statement text to an error returned only the first time.
	criticalOnce map[string]error
	// block makes every statement wait until the channel is closed.
	block chan struct{}
}

type execRecord struct {
	conn int
	stmt string
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		failOn:       make(map[string]error),
		criticalOnce: make(map[string]error),
	}
}

func (f *fakeConnector) Open(ctx context.Context) (Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErrs > 0 {
		f.openErrs--
		return nil, errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
	}
	f.opened++
	return &fakeConn{id: f.opened, owner: f}, nil
}

func (f *fakeConnector) IsCritical(err error) bool {
	return errors.Is(err, errEngineGone)
}

func (f *fakeConnector) statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.executed))
	for i, r := range f.executed {
		out[i] = r.stmt
	}
	return out
}

func (f *fakeConnector) byConn() map[int][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int][]string)
	for _, r := range f.executed {
		out[r.conn] = append(out[r.conn], r.stmt)
	}
	return out
}

var errEngineGone = errors.New("engine: server has gone away")

type fakeConn struct {
	id     int
	owner  *fakeConnector
	broken atomic.Bool
	closed atomic.Bool
}

func (c *fakeConn) run(ctx context.Context, stmt query.Statement) error {
	f := c.owner
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.criticalOnce[stmt.Text]; ok {
		delete(f.criticalOnce, stmt.Text)
		c.broken.Store(true)
		return err
	}
	if err, ok := f.failOn[stmt.Text]; ok {
		return err
	}
	f.executed = append(f.executed, execRecord{conn: c.id, stmt: stmt.Text})
	return nil
}

func (c *fakeConn) Query(ctx context.Context, stmt query.Statement) ([]query.Row, error) {
	if err := c.run(ctx, stmt); err != nil {
		return nil, err
	}
	if len(stmt.Values) == 0 {
		return nil, nil
	}
	row := make(query.Row, len(stmt.Values))
	for i, v := range stmt.Values {
		if s, ok := v.(string); ok {
			row[i] = query.Arg(s)
		}
	}
	return []query.Row{row}, nil
}

func (c *fakeConn) Exec(ctx context.Context, stmt query.Statement) (int64, error) {
	if err := c.run(ctx, stmt); err != nil {
		return 0, err
	}
	return 1, nil
}

func (c *fakeConn) State() State {
	switch {
	case c.closed.Load():
		return Closed
	case c.broken.Load():
		return Broken
	default:
		return Open
	}
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

// badConn is returned by a statement to simulate a dead socket.
var badConn = driver.ErrBadConn
