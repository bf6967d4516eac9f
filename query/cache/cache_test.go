package cache

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int](2)
	c.Set("a", 1)
	c.Set("b", 2)

	// Touch a so b becomes the eviction candidate.
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok)

	for _, k := range []string{"a", "c"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}

	stats := c.GetStats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, int64(3), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 75.0, stats.HitRate, 0.001)
}

func TestLRU_SetExistingUpdates(t *testing.T) {
	c := New[string](2)
	c.Set("k", "old")
	c.Set("k", "new")

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_InvalidateAndClear(t *testing.T) {
	c := New[int](4)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	c.Invalidate("b")
	c.Invalidate("missing")
	assert.Equal(t, 2, c.Len())

	// Removing the head and the tail keeps the list consistent.
	c.Invalidate("c")
	c.Invalidate("a")
	assert.Zero(t, c.Len())
	c.Set("d", 4)
	v, ok := c.Get("d")
	require.True(t, ok)
	assert.Equal(t, 4, v)

	c.Clear()
	assert.Zero(t, c.Len())
	assert.Equal(t, Stats{MaxSize: 4}, c.GetStats())
}

func TestLRU_GetOrAdd(t *testing.T) {
	c := New[int](4)
	loads := 0
	load := func() (int, error) {
		loads++
		return 7, nil
	}

	for range 3 {
		v, err := c.GetOrAdd("k", load)
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	}
	assert.Equal(t, 1, loads)

	boom := errors.New("boom")
	_, err := c.GetOrAdd("bad", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("bad")
	assert.False(t, ok)
}

func TestLRU_MinimumSize(t *testing.T) {
	c := New[int](0)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_Concurrent(t *testing.T) {
	c := New[int](16)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				k := strconv.Itoa((g * i) % 32)
				c.Set(k, i)
				c.Get(k)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 16)
}
