package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject_CompleteOnce(t *testing.T) {
	calls := 0
	var got Result
	obj := New("SELECT 1", nil, Statement{Text: "SELECT 1"}, func(r Result) {
		calls++
		got = r
	}, false)

	obj.Complete(Success(nil))
	obj.Complete(Failure(errors.New("late")))

	assert.Equal(t, 1, calls)
	assert.False(t, got.Failed())
	assert.True(t, got.Empty())
	assert.NotNil(t, got.Rows)
}

func TestObject_NilCallback(t *testing.T) {
	obj := New("SELECT 1", nil, Statement{}, nil, false)
	assert.NotPanics(t, func() { obj.Complete(Failure(errors.New("boom"))) })
}

func TestArgs(t *testing.T) {
	args := Args("a", "b")
	require.Len(t, args, 2)
	assert.Equal(t, "a", *args[0])
	assert.Equal(t, "b", *args[1])

	withNull := []*string{Arg("x"), Null}
	assert.Nil(t, withNull[1])
}

func TestFuture(t *testing.T) {
	t.Run("resolves", func(t *testing.T) {
		f := NewFuture()
		cb := f.Callback()
		cb(Success([]Row{{Arg("1")}}))
		cb(Failure(errors.New("ignored")))

		r, err := f.Wait(context.Background())
		require.NoError(t, err)
		require.Len(t, r.Rows, 1)
		assert.Equal(t, "1", *r.Rows[0][0])
	})

	t.Run("times out", func(t *testing.T) {
		f := NewFuture()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := f.Wait(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
