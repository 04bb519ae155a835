package query

import (
	"sync"
	"time"

	"github.com/arcgraph/edgestore/pkg/kv"
	"github.com/arcgraph/edgestore/pkg/metricsx"
)

// DefaultCoalesceExpireCount bounds how many callers can share one
// in-flight future before it is forced to expire and a fresh fetch starts,
// so a sustained hot key cannot coalesce onto an arbitrarily stale request.
const DefaultCoalesceExpireCount = 32

type coalesceEntry struct {
	future    *kv.Future[kv.GetResult]
	createdAt time.Time
	hits      int
}

// CoalescingCache shares one in-flight future across concurrent callers
// issuing the same physical request within a short TTL. A per-entry hit
// counter evicts the entry once it exceeds expireCount, so a sustained hot
// key cannot pin an arbitrarily stale future past its TTL's intent.
type CoalescingCache struct {
	mu          sync.Mutex
	ttl         time.Duration
	expireCount int
	entries     map[CacheKey]*coalesceEntry
}

// NewCoalescingCache returns a CoalescingCache with the given TTL (typically
// a few milliseconds) and expire-count bound (0 = DefaultCoalesceExpireCount).
func NewCoalescingCache(ttl time.Duration, expireCount int) *CoalescingCache {
	if expireCount <= 0 {
		expireCount = DefaultCoalesceExpireCount
	}
	return &CoalescingCache{
		ttl:         ttl,
		expireCount: expireCount,
		entries:     make(map[CacheKey]*coalesceEntry),
	}
}

// GetOrCreate returns the shared future for key. If no live entry exists —
// none yet, the TTL lapsed, or the hit count was exceeded — create is
// invoked to start a fresh underlying fetch, which is then published for
// subsequent callers.
func (c *CoalescingCache) GetOrCreate(key CacheKey, create func() *kv.Future[kv.GetResult]) *kv.Future[kv.GetResult] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		if time.Since(e.createdAt) < c.ttl && e.hits < c.expireCount {
			e.hits++
			metricsx.CacheRequestsTotal.WithLabelValues("coalesce", "coalesced").Inc()
			return e.future
		}
		delete(c.entries, key)
	}

	f := create()
	c.entries[key] = &coalesceEntry{future: f, createdAt: time.Now()}
	metricsx.CacheRequestsTotal.WithLabelValues("coalesce", "miss").Inc()
	return f
}

// Len reports the number of live in-flight entries, used by tests.
func (c *CoalescingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
