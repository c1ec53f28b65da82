package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestCache(opts Options) (*Cache, *time.Time) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	c := New(opts)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestSetGetExpire(t *testing.T) {
	c, now := newTestCache(Options{TTL: time.Minute})

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	*now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)

	c.DeleteExpired()
	assert.Equal(t, 0, c.Count())
}

func TestZeroExpirationNeverExpires(t *testing.T) {
	c, now := newTestCache(Options{})

	c.SetWithExpiration("k", "v", 0)
	*now = now.Add(24 * time.Hour)
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestEvictsOldestWhenFull(t *testing.T) {
	c, now := newTestCache(Options{MaxItems: 2})
	var evicted []string
	c.SetOnEvicted(func(k string, _ any) { evicted = append(evicted, k) })

	c.Set("first", 1)
	*now = now.Add(time.Second)
	c.Set("second", 2)
	*now = now.Add(time.Second)
	c.Set("third", 3)

	assert.Equal(t, []string{"first"}, evicted)
	_, ok := c.Get("first")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Count())

	// Overwriting an existing key does not evict.
	c.Set("third", 4)
	assert.Len(t, evicted, 1)
}

func TestCloseStopsPurgeLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New(Options{PurgeWindow: time.Millisecond})
	c.Close()
	c.Close()
}
