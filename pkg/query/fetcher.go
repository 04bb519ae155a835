package query

import (
	"context"
	"time"

	"github.com/arcgraph/edgestore/pkg/codec"
	"github.com/arcgraph/edgestore/pkg/kv"
	"github.com/arcgraph/edgestore/pkg/qparam"
)

// FetcherOptions configures a Fetcher's cache tuning.
type FetcherOptions struct {
	CoalesceTTL         time.Duration // default 15ms
	CoalesceExpireCount int           // 0 => DefaultCoalesceExpireCount
	ResultCacheSize     int           // 0 => ResultCache default
}

// Fetcher is the read path: build the physical request, check the result
// cache, else join (or start) the coalescing cache's in-flight future, then
// populate the result cache on the way out.
type Fetcher struct {
	store    kv.Store
	codec    *codec.Codec
	coalesce *CoalescingCache
	result   *ResultCache
}

// NewFetcher wires a Fetcher around store and codec with the given options.
func NewFetcher(store kv.Store, c *codec.Codec, opts FetcherOptions) *Fetcher {
	ttl := opts.CoalesceTTL
	if ttl <= 0 {
		ttl = 15 * time.Millisecond
	}
	return &Fetcher{
		store:    store,
		codec:    c,
		coalesce: NewCoalescingCache(ttl, opts.CoalesceExpireCount),
		result:   NewResultCache(opts.ResultCacheSize),
	}
}

// Fetch executes qp, consulting both caches. Both are read-through at the
// physical-request layer: a result-cache hit never touches the coalescing
// cache or the store.
func (f *Fetcher) Fetch(ctx context.Context, qp qparam.QueryParam) (kv.GetResult, error) {
	req := BuildRequest(f.codec, qp)
	key := KeyFor(req)

	if qp.CacheEnabled() {
		if cached, ok := f.result.Get(key); ok {
			return cached, nil
		}
	}

	future := f.coalesce.GetOrCreate(key, func() *kv.Future[kv.GetResult] {
		return f.store.Get(req)
	})
	result, err := future.Await(ctx)
	if err != nil {
		return kv.GetResult{}, err
	}

	if qp.CacheEnabled() {
		f.result.Put(key, result, qp.CacheTTL())
	}
	return result, nil
}
