// Package metricsx exposes prometheus counters/gauges for the core's
// otherwise-invisible internals: cache hit rates, commit outcomes, retry
// exhaustion. Package-level prometheus.New*Vec registry plus a promhttp
// handler, registered once at init and scraped over HTTP when enabled.
package metricsx

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheRequestsTotal counts coalescing/result cache lookups by cache
	// name and outcome.
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgestore_cache_requests_total",
			Help: "Cache lookups by cache name and outcome (hit/miss/coalesced).",
		},
		[]string{"cache", "outcome"},
	)

	// CommitOutcomesTotal counts Commit Engine results by outcome code.
	CommitOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgestore_commit_outcomes_total",
			Help: "Commit Engine attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// RetryExhaustedTotal counts elements that exhausted the retry harness
	// and were dead-lettered.
	RetryExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgestore_retry_exhausted_total",
			Help: "Elements dead-lettered after exhausting retries, by caller.",
		},
		[]string{"caller"},
	)

	// DeleteAllEdgesRetiredTotal counts edges tombstoned by the deleteAll
	// traversal.
	DeleteAllEdgesRetiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edgestore_delete_all_edges_retired_total",
			Help: "Edges tombstoned by deleteAll traversals.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CacheRequestsTotal,
		CommitOutcomesTotal,
		RetryExhaustedTotal,
		DeleteAllEdgesRetiredTotal,
	)
}

// Handler returns the promhttp handler for the default registry, wired up
// by cmd/edgestored when metrics are enabled (EDGESTORE_METRICS_ENABLED),
// listening on EDGESTORE_METRICS_ADDR.
func Handler() http.Handler {
	return promhttp.Handler()
}
