package quote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_ExpiryWindow(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	c := newTTLCache(5*time.Second, 10)
	c.now = func() time.Time { return now }

	c.set("get-price:wbtc", cachedPrice{price: 100})

	hit, ok := c.get("get-price:wbtc")
	require.True(t, ok)
	assert.Equal(t, 100.0, hit.price)

	now = now.Add(4 * time.Second)
	_, ok = c.get("get-price:wbtc")
	assert.True(t, ok, "entry inside the TTL window is served")

	now = now.Add(2 * time.Second)
	_, ok = c.get("get-price:wbtc")
	assert.False(t, ok, "entry beyond the TTL window has expired")
}

func TestTTLCache_OldestEvictedAtCap(t *testing.T) {
	c := newTTLCache(time.Minute, 3)

	c.set("a", cachedPrice{price: 1})
	c.set("b", cachedPrice{price: 2})
	c.set("c", cachedPrice{price: 3})
	c.set("d", cachedPrice{price: 4})

	assert.Equal(t, 3, c.len(), "cache never exceeds its cap")
	_, ok := c.get("a")
	assert.False(t, ok, "oldest entry was evicted")
	for _, key := range []string{"b", "c", "d"} {
		_, ok := c.get(key)
		assert.True(t, ok, "entry %s survives", key)
	}
}

func TestTTLCache_UpdateRefreshesAge(t *testing.T) {
	c := newTTLCache(time.Minute, 2)

	c.set("a", cachedPrice{price: 1})
	c.set("b", cachedPrice{price: 2})
	c.set("a", cachedPrice{price: 10}) // refresh: "b" is now oldest
	c.set("c", cachedPrice{price: 3})

	_, ok := c.get("b")
	assert.False(t, ok)
	hit, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 10.0, hit.price)
}
