package query

import (
	"container/list"
	"sync"
	"time"

	"github.com/arcgraph/edgestore/pkg/kv"
	"github.com/arcgraph/edgestore/pkg/metricsx"
)

type resultEntry struct {
	key        CacheKey
	result     kv.GetResult
	producedAt time.Time
	ttl        time.Duration
}

// ResultCache is the opt-in per-QueryParam result cache: a query only lands
// here when its CacheTTLMs is set above zero. LRU+TTL, container/list + map,
// mutex-guarded, with a per-entry TTL since each query can choose its own
// freshness window rather than sharing one cache-wide value.
type ResultCache struct {
	mu      sync.Mutex
	maxSize int
	list    *list.List
	items   map[CacheKey]*list.Element
}

// NewResultCache returns a ResultCache bounded to maxSize entries (0 = a
// sensible default), evicting least-recently-used entries when full.
func NewResultCache(maxSize int) *ResultCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &ResultCache{maxSize: maxSize, list: list.New(), items: make(map[CacheKey]*list.Element, maxSize)}
}

// Get returns the cached result for key if present and not expired per its
// own TTL: now - producedAt < ttl.
func (c *ResultCache) Get(key CacheKey) (kv.GetResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		metricsx.CacheRequestsTotal.WithLabelValues("result", "miss").Inc()
		return kv.GetResult{}, false
	}
	entry := elem.Value.(*resultEntry)
	if time.Since(entry.producedAt) >= entry.ttl {
		c.removeLocked(elem)
		metricsx.CacheRequestsTotal.WithLabelValues("result", "expired").Inc()
		return kv.GetResult{}, false
	}
	c.list.MoveToFront(elem)
	metricsx.CacheRequestsTotal.WithLabelValues("result", "hit").Inc()
	return entry.result, true
}

// Put inserts or refreshes the cached value for key with its own ttl.
func (c *ResultCache) Put(key CacheKey, result kv.GetResult, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*resultEntry)
		entry.result = result
		entry.producedAt = time.Now()
		entry.ttl = ttl
		c.list.MoveToFront(elem)
		return
	}

	for c.list.Len() >= c.maxSize {
		c.evictOldestLocked()
	}

	entry := &resultEntry{key: key, result: result, producedAt: time.Now(), ttl: ttl}
	elem := c.list.PushFront(entry)
	c.items[key] = elem
}

// Len reports the number of cached entries, used by tests.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}

func (c *ResultCache) evictOldestLocked() {
	if elem := c.list.Back(); elem != nil {
		c.removeLocked(elem)
	}
}

func (c *ResultCache) removeLocked(elem *list.Element) {
	c.list.Remove(elem)
	entry := elem.Value.(*resultEntry)
	delete(c.items, entry.key)
}
