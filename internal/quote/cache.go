package quote

import (
	"container/list"
	"sync"
	"time"
)

// ttlCache is a thread-safe memoization cache with per-entry expiry and a
// hard size cap. When the cap is exceeded the oldest entry is evicted. It
// exists only to shield the rate-limited upstream, never for correctness.
type ttlCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	items      map[string]*list.Element
	order      *list.List // front = oldest
	now        func() time.Time
}

type cacheEntry struct {
	key       string
	value     cachedPrice
	expiresAt time.Time
}

type cachedPrice struct {
	price float64
	ts    time.Time
}

func newTTLCache(ttl time.Duration, maxEntries int) *ttlCache {
	return &ttlCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

func (c *ttlCache) get(key string) (cachedPrice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return cachedPrice{}, false
	}
	entry := el.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		return cachedPrice{}, false
	}
	return entry.value, true
}

func (c *ttlCache) set(key string, value cachedPrice) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = value
		entry.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToBack(el)
		return
	}

	el := c.order.PushBack(&cacheEntry{
		key:       key,
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	})
	c.items[key] = el

	if c.order.Len() > c.maxEntries {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

func (c *ttlCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
