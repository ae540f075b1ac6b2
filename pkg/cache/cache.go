// Package cache provides a generic, thread-safe TTL cache.
//
// Entries carry the timestamp at which they were stored; an entry is fresh
// iff less than the configured TTL has elapsed since then. Stale entries are
// treated as absent on read but are never deleted - a later Put overwrites
// them wholesale. There is no eviction policy and no background cleanup, so
// memory grows with the number of distinct keys seen. That trade-off is
// deliberate: the cache is sized for a single small key space.
//
// Statistics are always collected; Prometheus export is optional via
// WithMetrics. The clock is injectable (WithClock) so expiry is
// deterministic in tests.
package cache

import (
	"sync"
	"time"

	"github.com/c360/playerlist/errors"
)

// Entry is a stored value together with the time it was fetched.
type Entry[V any] struct {
	Key       string
	Value     V
	FetchedAt time.Time
}

// TTLCache is a thread-safe cache with a single fixed TTL policy.
type TTLCache[V any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]Entry[V]

	now     func() time.Time
	stats   *Statistics
	metrics *cacheMetrics
}

// NewTTL creates a TTL cache. Returns an error if ttl is not positive or if
// metrics registration fails when requested.
func NewTTL[V any](ttl time.Duration, opts ...Option[V]) (*TTLCache[V], error) {
	if ttl <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewTTL", "ttl must be positive")
	}

	o := applyOptions(opts...)

	var metrics *cacheMetrics
	if o.metricsReg != nil && o.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(o.metricsReg, o.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "NewTTL", "metrics registration")
		}
	}

	return &TTLCache[V]{
		ttl:     ttl,
		items:   make(map[string]Entry[V]),
		now:     o.clock,
		stats:   NewStatistics(),
		metrics: metrics,
	}, nil
}

// fresh reports whether the entry is still within its TTL at time now.
// An entry aged exactly ttl is stale.
func (c *TTLCache[V]) fresh(e Entry[V], now time.Time) bool {
	return now.Sub(e.FetchedAt) < c.ttl
}

// Get returns the cached value for key iff present and fresh.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	e, ok := c.GetEntry(key)
	return e.Value, ok
}

// GetEntry returns the full cache entry for key iff present and fresh.
// Stale entries report absent but remain in place until overwritten.
func (c *TTLCache[V]) GetEntry(key string) (Entry[V], bool) {
	c.mu.RLock()
	e, exists := c.items[key]
	now := c.now()
	c.mu.RUnlock()

	if !exists || !c.fresh(e, now) {
		c.stats.Miss()
		if c.metrics != nil {
			c.metrics.recordMiss()
		}
		return Entry[V]{}, false
	}

	c.stats.Hit()
	if c.metrics != nil {
		c.metrics.recordHit()
	}
	return e, true
}

// Put unconditionally stores value under key with FetchedAt set to the
// current clock reading, replacing any prior entry.
func (c *TTLCache[V]) Put(key string, value V) {
	c.mu.Lock()
	c.items[key] = Entry[V]{
		Key:       key,
		Value:     value,
		FetchedAt: c.now(),
	}
	size := len(c.items)
	c.mu.Unlock()

	c.stats.Set()
	c.stats.UpdateSize(int64(size))
	if c.metrics != nil {
		c.metrics.recordSet()
		c.metrics.updateSize(size)
	}
}

// Size returns the number of entries currently held, fresh or stale.
func (c *TTLCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns the keys of all fresh entries.
func (c *TTLCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	keys := make([]string, 0, len(c.items))
	for key, e := range c.items {
		if c.fresh(e, now) {
			keys = append(keys, key)
		}
	}
	return keys
}

// TTL returns the configured time-to-live.
func (c *TTLCache[V]) TTL() time.Duration {
	return c.ttl
}

// Stats returns the cache statistics tracker.
func (c *TTLCache[V]) Stats() *Statistics {
	return c.stats
}
