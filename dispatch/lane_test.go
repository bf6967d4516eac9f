package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/anybase/query"
)

func TestLane_FIFO(t *testing.T) {
	l := NewLane(LaneCommon, 3)
	assert.Equal(t, LaneCommon, l.Name())
	assert.Equal(t, 3, l.Cap())

	for _, s := range []string{"a", "b", "c"} {
		require.True(t, l.Push(query.New(s, nil, query.Statement{Text: s}, nil, true)))
	}
	assert.False(t, l.Push(query.New("d", nil, query.Statement{Text: "d"}, nil, true)))
	assert.Equal(t, 3, l.Len())

	var got []string
	for {
		obj, ok := l.Pop()
		if !ok {
			break
		}
		got = append(got, obj.Template)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestLane_MinimumCapacity(t *testing.T) {
	l := NewLane(LaneImportant, 0)
	assert.Equal(t, 1, l.Cap())
}

func TestLane_Clear(t *testing.T) {
	l := NewLane(LaneImportant, 4)

	calls := 0
	for _, name := range []string{"a", "b", "c"} {
		l.Push(query.New(name, nil, query.Statement{}, func(query.Result) { calls++ }, true))
	}

	items := l.Clear()
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].Template)
	assert.Equal(t, "c", items[2].Template)
	assert.Zero(t, calls, "cleared items are not completed")
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Clear())
}

func TestLane_ConcurrentPush(t *testing.T) {
	l := NewLane(LaneCommon, 50)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Push(query.New("q", nil, query.Statement{}, nil, true)) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, accepted)
	assert.Equal(t, 50, l.Len())
}
