package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheHitWithinTTL(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	c.Put("k", "v")

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestCacheMissAfterTTL(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	now := time.Now()
	c.SetNow(func() time.Time { return now })
	c.Put("k", "v")

	// Step the clock exactly to the TTL boundary: an entry read at t is
	// valid iff t - insertedAt < ttl, so the boundary itself is stale.
	now = now.Add(time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)

	// Lazy eviction removed the entry on that read.
	assert.Equal(t, 0, c.Len())
}

func TestCacheStaleEntryReDerived(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	now := time.Now()
	c.SetNow(func() time.Time { return now })

	c.Put("k", "old")
	now = now.Add(2 * time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Put("k", "new")
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestCacheClear(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	c.Put("a", "1")
	c.Put("b", "2")
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheZeroTTLDisablesCaching(t *testing.T) {
	t.Parallel()

	c := New(0)
	c.Put("k", "v")
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n%10)
			c.Put(key, "value")
			c.Get(key)
			if n%7 == 0 {
				c.Clear()
			}
		}(i)
	}
	wg.Wait()
}
