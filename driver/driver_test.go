package driver

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/anybase/dispatch"
	"github.com/satishbabariya/anybase/query"
	"github.com/satishbabariya/anybase/query/compiler"
)

// fileEngine is a minimal Engine backed by the stock sqlite3 driver.
type fileEngine struct {
	dir string
}

func (e fileEngine) Name() string { return "testdb" }
func (e fileEngine) DefaultPort() int { return 0 }

func (e fileEngine) DataSource(t Target) (string, error) {
	if t.Database == "" {
		return "", errors.New("database name is required")
	}
	return "file:" + filepath.Join(e.dir, t.Database+".db"), nil
}

func (e fileEngine) SQLDriver() (string, error) { return "sqlite3", nil }
func (e fileEngine) Rewrite(s string) string { return strings.ReplaceAll(s, "NOW_TS", "0") }
func (e fileEngine) Marker() compiler.Marker { return compiler.QuestionMarker }
func (e fileEngine) StripCasts() bool { return true }
func (e fileEngine) IsCritical(err error) bool { return false }

func fastConfig() dispatch.Config {
	return dispatch.Config{
		Interval:     10 * time.Millisecond,
		Backoff:      20 * time.Millisecond,
		StopGrace:    time.Second,
		QueryTimeout: time.Second,
	}
}

func newTestBase(t *testing.T, opts ...Option) *Base {
	t.Helper()
	b := New(fileEngine{dir: t.TempDir()}, append([]Option{WithDispatchConfig(fastConfig())}, opts...)...)
	t.Cleanup(b.UnSet)
	return b
}

func waitResult(t *testing.T, b *Base, template string, args []*string, nonQuery, important bool) query.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := b.Query(ctx, template, args, nonQuery, important)
	require.NoError(t, err)
	return r
}

func TestBase_RoundTrip(t *testing.T) {
	b := newTestBase(t)
	require.NoError(t, b.Set("app", "", "", ""))

	r := waitResult(t, b, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT, ts INTEGER)", nil, true, true)
	require.NoError(t, r.Err)
	assert.True(t, r.Empty())

	r = waitResult(t, b, "INSERT INTO t (id, name, ts) VALUES ({ARG}::int, {ARG}, NOW_TS)", query.Args("1", "it's"), true, false)
	require.NoError(t, r.Err)

	r = waitResult(t, b, "INSERT INTO t (id, name) VALUES ({ARG}, {ARG})", []*string{query.Arg("2"), query.Null}, true, false)
	require.NoError(t, r.Err)

	r = waitResult(t, b, "SELECT id, name, ts FROM t ORDER BY id", nil, false, false)
	require.NoError(t, r.Err)
	require.Len(t, r.Rows, 2)
	assert.Equal(t, "1", *r.Rows[0][0])
	assert.Equal(t, "it's", *r.Rows[0][1])
	assert.Equal(t, "0", *r.Rows[0][2])
	assert.Nil(t, r.Rows[1][1])
	assert.Nil(t, r.Rows[1][2])

	r = waitResult(t, b, "SELECT * FROM t WHERE id={ARG}", query.Args("42"), false, false)
	require.NoError(t, r.Err)
	assert.NotNil(t, r.Rows)
	assert.Empty(t, r.Rows)

	assert.Equal(t, dispatch.Open, b.GetLastState())
	assert.Equal(t, "app", b.Target().Database)
}

// escapingEngine claims backslash escapes so the escape path can run on the
// test database. Only arguments without quotes are executed through it.
type escapingEngine struct {
	fileEngine
}

func (escapingEngine) BackslashEscapes() bool { return true }

func TestBase_EscapeMode(t *testing.T) {
	b := New(escapingEngine{fileEngine{dir: t.TempDir()}}, WithDispatchConfig(fastConfig()), WithEscapeMode())
	t.Cleanup(b.UnSet)
	assert.Equal(t, compiler.Escaped, b.Mode())
	require.NoError(t, b.Set("esc", "", "", ""))

	stmt, err := b.Compile("SELECT '{ARG}'", query.Args("it's"))
	require.NoError(t, err)
	assert.Equal(t, `SELECT 'it\'s'`, stmt.Text)
	assert.Empty(t, stmt.Values)

	r := waitResult(t, b, "SELECT '{ARG}' || '{ARG}'", query.Args("a", "b"), false, true)
	require.NoError(t, r.Err)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, "ab", *r.Rows[0][0])
}

func TestBase_QueryFailureIsLocal(t *testing.T) {
	b := newTestBase(t)
	require.NoError(t, b.Set("app", "", "", ""))

	r := waitResult(t, b, "SELECT * FROM missing", nil, false, false)
	require.True(t, r.Failed())
	assert.ErrorIs(t, r.Err, dispatch.ErrQueryFailed)

	r = waitResult(t, b, "SELECT 1", nil, false, false)
	require.NoError(t, r.Err)
	assert.Equal(t, dispatch.Open, b.GetLastState())
}

func TestBase_ArgumentMismatch(t *testing.T) {
	b := newTestBase(t)

	var got query.Result
	calls := 0
	err := b.QueryAsync("SELECT {ARG}, {ARG}", query.Args("1"), func(r query.Result) {
		calls++
		got = r
	}, false, true)

	require.ErrorIs(t, err, compiler.ErrTooFewArguments)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, got.Err, compiler.ErrTooFewArguments)

	important, common := b.Pending()
	assert.Zero(t, important)
	assert.Zero(t, common)
}

func TestBase_QueuedBeforeSet(t *testing.T) {
	b := newTestBase(t)

	fut := query.NewFuture()
	require.NoError(t, b.QueryAsync("SELECT {ARG}", query.Args("7"), fut.Callback(), false, true))
	important, _ := b.Pending()
	assert.Equal(t, 1, important)

	require.NoError(t, b.Set("late", "", "", ""))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := fut.Wait(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Err)
	assert.Equal(t, "7", *r.Rows[0][0])
}

func TestBase_UnSetFailsQueued(t *testing.T) {
	cfg := fastConfig()
	cfg.Interval = time.Hour
	b := New(fileEngine{dir: t.TempDir()}, WithDispatchConfig(cfg))

	require.NoError(t, b.Set("app", "", "", ""))

	fut := query.NewFuture()
	require.NoError(t, b.QueryAsync("SELECT 1", nil, fut.Callback(), false, false))

	b.UnSet()
	r := <-fut.Done()
	assert.ErrorIs(t, r.Err, dispatch.ErrDriverClosed)
	assert.Equal(t, dispatch.Closed, b.GetLastState())
	assert.Empty(t, b.Target().Database)

	assert.NotPanics(t, b.UnSet)
}

func TestBase_SetTwiceResets(t *testing.T) {
	cfg := fastConfig()
	cfg.Interval = time.Hour
	b := New(fileEngine{dir: t.TempDir()}, WithDispatchConfig(cfg))
	defer b.UnSet()

	require.NoError(t, b.Set("one", "", "", ""))
	fut := query.NewFuture()
	require.NoError(t, b.QueryAsync("SELECT 1", nil, fut.Callback(), false, true))

	require.NoError(t, b.Set("two", "", "", ""))
	r := <-fut.Done()
	assert.ErrorIs(t, r.Err, dispatch.ErrDriverClosed)
	assert.Equal(t, "two", b.Target().Database)
}

func TestBase_SetErrors(t *testing.T) {
	b := newTestBase(t)

	err := b.Set("app", "host:notaport", "", "")
	assert.ErrorIs(t, err, ErrInvalidHost)

	err = b.Set("", "", "", "")
	assert.ErrorContains(t, err, "database name is required")
	assert.Equal(t, dispatch.Closed, b.GetLastState())
}

func TestBase_TargetHidesPassword(t *testing.T) {
	b := newTestBase(t)
	require.NoError(t, b.Set("app", "db.local:1234", "root", "secret"))

	tgt := b.Target()
	assert.Equal(t, "db.local", tgt.Server)
	assert.Equal(t, 1234, tgt.Port)
	assert.Equal(t, "root", tgt.User)
	assert.Empty(t, tgt.Password)
}

func TestBase_EscapeModeNeedsBackslashEngine(t *testing.T) {
	b := newTestBase(t, WithEscapeMode())
	assert.False(t, SupportsEscapeMode(fileEngine{}))
	assert.True(t, SupportsEscapeMode(escapingEngine{}))

	err := b.Set("app", "", "", "")
	assert.ErrorIs(t, err, ErrEscapeUnsupported)
	assert.Contains(t, err.Error(), "testdb")

	_, err = b.Compile("SELECT '{ARG}'", query.Args("x"))
	assert.ErrorIs(t, err, ErrEscapeUnsupported)
}

func TestBase_UnSetFromCallback(t *testing.T) {
	t.Run("callback of a closed query", func(t *testing.T) {
		cfg := fastConfig()
		cfg.Interval = time.Hour
		b := New(fileEngine{dir: t.TempDir()}, WithDispatchConfig(cfg))
		require.NoError(t, b.Set("app", "", "", ""))

		reset := make(chan error, 1)
		require.NoError(t, b.QueryAsync("SELECT 1", nil, func(r query.Result) {
			if errors.Is(r.Err, dispatch.ErrDriverClosed) {
				b.UnSet()
				reset <- b.Set("again", "", "", "")
			}
		}, false, true))

		done := make(chan struct{})
		go func() {
			b.UnSet()
			close(done)
		}()
		select {
		case err := <-reset:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("UnSet deadlocked with a callback calling UnSet")
		}
		<-done
		assert.Equal(t, "again", b.Target().Database)
		b.UnSet()
	})

	t.Run("callback on the dispatch loop", func(t *testing.T) {
		cfg := fastConfig()
		cfg.StopGrace = 5 * time.Second
		b := New(fileEngine{dir: t.TempDir()}, WithDispatchConfig(cfg))
		t.Cleanup(b.UnSet)

		took := make(chan time.Duration, 1)
		require.NoError(t, b.QueryAsync("SELECT 1", nil, func(query.Result) {
			start := time.Now()
			b.UnSet()
			took <- time.Since(start)
		}, false, true))
		require.NoError(t, b.Set("app", "", "", ""))

		select {
		case d := <-took:
			assert.Less(t, d, time.Second)
		case <-time.After(3 * time.Second):
			t.Fatal("UnSet from the dispatch loop did not return")
		}
		assert.Equal(t, dispatch.Closed, b.GetLastState())
	})
}
