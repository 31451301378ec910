package account

import (
	"container/list"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/qorzen/kernel/internal/metrics"
)

// cacheKey is (user_id, permission, role_version) per spec.md §4.4.
type cacheKey struct {
	userID      string
	permission  string
	roleVersion uint64
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s|%s|%d", k.userID, k.permission, k.roleVersion)
}

// permissionCache is a bounded LRU of permission-check decisions, filled
// through a singleflight group so concurrent cache misses for the same key
// collapse into one evaluation (spec.md §4.4). Capacity eviction is plain
// LRU; invalidation is via role_version, never a targeted per-key delete —
// bumping a user's role_version makes every prior entry for that user
// unreachable (a new key), which is why stale entries are left to age out
// of the LRU rather than scanned-and-removed.
type permissionCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[cacheKey]*list.Element
	order    *list.List // front = most recently used

	group singleflight.Group

	metrics *metrics.Registry
}

type cacheEntry struct {
	key   cacheKey
	value bool
}

func newPermissionCache(capacity int, m *metrics.Registry) *permissionCache {
	if capacity <= 0 {
		capacity = 10000
	}
	return &permissionCache{
		capacity: capacity,
		entries:  make(map[cacheKey]*list.Element),
		order:    list.New(),
		metrics:  m,
	}
}

// getOrCompute returns the cached decision for key, computing it via fn
// (shared across concurrent callers for the same key) on a miss.
func (c *permissionCache) getOrCompute(key cacheKey, fn func() bool) bool {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		v := el.Value.(*cacheEntry).value
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.PermissionCacheHits.Inc()
		}
		return v
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.PermissionCacheMisses.Inc()
	}

	result, _, _ := c.group.Do(key.String(), func() (any, error) {
		v := fn()
		c.put(key, v)
		return v, nil
	})
	return result.(bool)
}

func (c *permissionCache) put(key cacheKey, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{key: key, value: value})
	c.entries[key] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}
