package anybase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/anybase/dispatch"
	"github.com/satishbabariya/anybase/driver"
	"github.com/satishbabariya/anybase/query"
	"github.com/satishbabariya/anybase/query/compiler"
)

func TestBase_Engines(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"mysql", "mysql"},
		{"MySQL", "mysql"},
		{"mariadb", "mysql"},
		{"postgre", "postgre"},
		{"Postgres", "postgre"},
		{"postgresql", "postgre"},
		{"sqlite", "sqlite"},
		{" SQLite3 ", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Base(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Engine().Name())
			assert.Equal(t, dispatch.Closed, b.GetLastState())
		})
	}
}

func TestBase_Unsupported(t *testing.T) {
	for _, name := range []string{"", "oracle", "mssql"} {
		_, err := Base(name)
		assert.ErrorIs(t, err, ErrUnsupportedEngine)
	}
	assert.Panics(t, func() { MustBase("oracle") })
	assert.NotPanics(t, func() { MustBase("sqlite") })
}

func TestEngines(t *testing.T) {
	names := Engines()
	assert.Contains(t, names, "postgre")
	assert.IsIncreasing(t, names)
}

func TestBase_MismatchIsRejectedImmediately(t *testing.T) {
	b := MustBase("mysql")
	defer b.UnSet()

	var got []query.Result
	err := b.QueryAsync("UPDATE t SET a={ARG} WHERE id={ARG}", query.Args("1"), func(r query.Result) {
		got = append(got, r)
	}, true, true)

	require.ErrorIs(t, err, compiler.ErrTooFewArguments)
	require.Len(t, got, 1)
	assert.True(t, got[0].Failed())

	important, common := b.Pending()
	assert.Zero(t, important+common)
}

func TestBase_SQLite(t *testing.T) {
	t.Chdir(t.TempDir())

	b, err := Base("sqlite", driver.WithDispatchConfig(dispatch.Config{
		Interval:  10 * time.Millisecond,
		Backoff:   20 * time.Millisecond,
		StopGrace: time.Second,
	}))
	require.NoError(t, err)
	defer b.UnSet()
	require.NoError(t, b.Set("factory", "", "", ""))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := b.Query(ctx, "SELECT {ARG}", query.Args("ok"), false, true)
	require.NoError(t, err)
	require.NoError(t, r.Err)
	assert.Equal(t, "ok", *r.Rows[0][0])
	assert.FileExists(t, "factory.sqlite")
}
