// ABOUTME: Tests for the TTL LRU cache used by the tool client.
// ABOUTME: Validates expiration, recency-based eviction, cleanup and concurrency safety.

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newWithClock(t *testing.T, ttl time.Duration, size int) (*Cache[string], *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 11, 5, 12, 0, 0, 0, time.UTC)}
	c := New[string](ttl, size)
	c.now = clock.Now
	t.Cleanup(c.Close)
	return c, clock
}

func TestCache_GetMissing(t *testing.T) {
	c, _ := newWithClock(t, time.Minute, 10)

	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestCache_PutGet(t *testing.T) {
	c, _ := newWithClock(t, time.Minute, 10)

	c.Put("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	c.Put("k", "v2")
	v, _ = c.Get("k")
	assert.Equal(t, "v2", v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Expiry(t *testing.T) {
	c, clock := newWithClock(t, time.Minute, 10)

	c.Put("k", "v")
	clock.Advance(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newWithClock(t, time.Minute, 3)

	c.Put("a", "1")
	c.Put("b", "2")
	c.Put("c", "3")

	// Touch a so that b becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("d", "4")
	assert.Equal(t, 3, c.Len())

	_, ok = c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, "%s should still be cached", k)
	}
}

func TestCache_Delete(t *testing.T) {
	c, _ := newWithClock(t, time.Minute, 3)

	c.Put("a", "1")
	c.Delete("a")
	c.Delete("never")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_RunCleanup(t *testing.T) {
	c, clock := newWithClock(t, time.Minute, 10)

	c.Put("old", "1")
	clock.Advance(30 * time.Second)
	c.Put("new", "2")
	clock.Advance(45 * time.Second)

	c.runCleanup()
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("new")
	assert.True(t, ok)
}

func TestCache_CloseIdempotent(t *testing.T) {
	c := New[int](time.Minute, 1)
	c.Close()
	c.Close()
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int](time.Minute, 50)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d", (i*100+j)%75)
				c.Put(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}
