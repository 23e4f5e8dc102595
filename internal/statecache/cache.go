/*

In-process read-through cache for backend data: the pools list, per-pool
OHLCV series, and per-fingerprint analysis results. Entries expire lazily
after a configurable TTL and the entry count is bounded by pruning the
least recently accessed entries.

Cache operations never fail; a missing or expired key is an ordinary miss,
and a size-bound violation self-heals through pruning rather than rejecting
the write.

*/

package statecache

import (
	"sort"
	"sync"
	"time"

	"github.com/saucerview/saucerview/internal/logger"
)

var cacheLogger = logger.GetForComponent("state_cache")

// SettingsSource supplies the live cache tuning values. Both are consulted
// lazily at access time, so a preference change applies to the next
// read/write and never retroactively purges existing entries.
type SettingsSource interface {
	CacheExpiry() time.Duration
	MaxCacheSize() int
}

// Entry is one cached value with its access metadata. LastAccessed never
// precedes Timestamp; AccessCount increments exactly once per non-stale read.
type Entry struct {
	Data         any
	Timestamp    time.Time
	AccessCount  int
	LastAccessed time.Time
}

// Cache is a TTL map with LRU-by-recency pruning and hit/miss accounting.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	settings SettingsSource
	stats    stats
	now      func() time.Time // swapped out in tests
}

// New creates an empty cache bound to the given settings source.
func New(settings SettingsSource) *Cache {
	return &Cache{
		entries:  make(map[string]*Entry),
		settings: settings,
		now:      time.Now,
	}
}

// Get returns the cached value for key. A missing key or an entry older
// than the configured expiry is a miss; expired entries are deleted on the
// spot and never resurrected.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.stats.misses++
		return nil, false
	}

	now := c.now()
	if now.Sub(entry.Timestamp) > c.settings.CacheExpiry() {
		delete(c.entries, key)
		c.stats.misses++
		return nil, false
	}

	entry.AccessCount++
	entry.LastAccessed = now
	c.stats.hits++
	return entry.Data, true
}

// Set stores data under key as a fresh entry, overwriting any prior entry,
// then prunes if the entry count exceeds the configured maximum.
func (c *Cache) Set(key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = &Entry{
		Data:         data,
		Timestamp:    now,
		AccessCount:  0,
		LastAccessed: now,
	}

	if max := c.settings.MaxCacheSize(); max > 0 && len(c.entries) > max {
		c.pruneLocked(max)
	}
}

// Prune evicts least-recently-accessed entries until the count is within
// the configured maximum.
func (c *Cache) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if max := c.settings.MaxCacheSize(); max > 0 {
		c.pruneLocked(max)
	}
}

// pruneLocked evicts by LastAccessed ascending, not insertion time: two
// entries inserted together but read differently evict independently.
func (c *Cache) pruneLocked(max int) {
	if len(c.entries) <= max {
		return
	}

	type aged struct {
		key          string
		lastAccessed time.Time
	}
	order := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		order = append(order, aged{key: key, lastAccessed: entry.LastAccessed})
	}
	sort.Slice(order, func(i, j int) bool {
		return order[i].lastAccessed.Before(order[j].lastAccessed)
	})

	evicted := 0
	for _, item := range order {
		if len(c.entries) <= max {
			break
		}
		delete(c.entries, item.key)
		evicted++
	}

	cacheLogger.Debug().
		Int("evicted", evicted).
		Int("remaining", len(c.entries)).
		Int("max", max).
		Msg("Pruned state cache")
}

// Clear unconditionally empties the cache. Performance counters survive.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	cacheLogger.Info().Msg("State cache cleared")
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
