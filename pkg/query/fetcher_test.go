package query

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcgraph/edgestore/pkg/codec"
	"github.com/arcgraph/edgestore/pkg/kv"
	"github.com/arcgraph/edgestore/pkg/model"
	"github.com/arcgraph/edgestore/pkg/qparam"
	"github.com/arcgraph/edgestore/pkg/schema"
)

// countingStore counts real Get calls and blocks each one briefly so
// concurrent callers genuinely overlap, exercising the coalescing cache.
type countingStore struct {
	kv.Store
	calls int64
	delay time.Duration
}

func (s *countingStore) Get(req kv.GetRequest) *kv.Future[kv.GetResult] {
	atomic.AddInt64(&s.calls, 1)
	f, resolve := kv.NewFuture[kv.GetResult]()
	go func() {
		time.Sleep(s.delay)
		resolve(kv.GetResult{Cells: []kv.Cell{{Row: req.Row, Value: []byte("v")}}}, nil)
	}()
	return f
}

func testQueryParam() qparam.QueryParam {
	return qparam.QueryParam{
		Src:       model.VertexID{ColumnID: 1, InnerID: model.Long(1)},
		Label:     3,
		Direction: model.DirOut,
		Tgt:       ptr(model.VertexID{ColumnID: 1, InnerID: model.Long(2)}),
	}
}

func ptr[T any](v T) *T { return &v }

// TestFetcherCoalescesConcurrentReads is R5: N concurrent identical
// physical requests within the TTL cause exactly one underlying KV read.
func TestFetcherCoalescesConcurrentReads(t *testing.T) {
	store := &countingStore{delay: 20 * time.Millisecond}
	f := NewFetcher(store, codec.New(schema.V3), FetcherOptions{CoalesceTTL: 50 * time.Millisecond})
	qp := testQueryParam()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Fetch(context.Background(), qp)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&store.calls))
}

// TestFetcherResultCacheHitMatchesUncachedRead is R6: a result-cache hit
// returns what an uncached read would have returned when it was populated.
func TestFetcherResultCacheHitMatchesUncachedRead(t *testing.T) {
	store := &countingStore{}
	f := NewFetcher(store, codec.New(schema.V3), FetcherOptions{})
	qp := testQueryParam()
	qp.CacheTTLMs = 1000

	first, err := f.Fetch(context.Background(), qp)
	require.NoError(t, err)

	second, err := f.Fetch(context.Background(), qp)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt64(&store.calls), "second fetch should be a result-cache hit, not a new store read")
}

func TestFetcherWithoutCacheRefetches(t *testing.T) {
	store := &countingStore{}
	f := NewFetcher(store, codec.New(schema.V3), FetcherOptions{CoalesceTTL: time.Nanosecond})
	qp := testQueryParam()

	_, err := f.Fetch(context.Background(), qp)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = f.Fetch(context.Background(), qp)
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt64(&store.calls))
}

func TestResultCacheExpiresAfterTTL(t *testing.T) {
	c := NewResultCache(10)
	key := CacheKey{1}
	c.Put(key, kv.GetResult{}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestResultCacheEvictsLRU(t *testing.T) {
	c := NewResultCache(2)
	c.Put(CacheKey{1}, kv.GetResult{}, time.Hour)
	c.Put(CacheKey{2}, kv.GetResult{}, time.Hour)
	c.Put(CacheKey{3}, kv.GetResult{}, time.Hour)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(CacheKey{1})
	assert.False(t, ok, "oldest entry should have been evicted")
}

func TestCoalescingCacheExpireCountForcesNewFuture(t *testing.T) {
	c := NewCoalescingCache(time.Hour, 2)
	key := CacheKey{9}
	calls := 0
	create := func() *kv.Future[kv.GetResult] {
		calls++
		return kv.Resolved(kv.GetResult{}, nil)
	}

	c.GetOrCreate(key, create) // miss, creates
	c.GetOrCreate(key, create) // hit 1
	c.GetOrCreate(key, create) // hit 2, now at expireCount
	c.GetOrCreate(key, create) // exceeds expireCount -> new future

	assert.Equal(t, 2, calls)
}

func TestCacheKeyDiffersByTimeout(t *testing.T) {
	reqA := kv.GetRequest{Row: kv.Row("r"), Family: kv.Family("f"), RPCTimeout: time.Second}
	reqB := reqA
	reqB.RPCTimeout = 2 * time.Second

	assert.NotEqual(t, KeyFor(reqA), KeyFor(reqB))
}
