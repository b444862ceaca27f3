package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheHitsTotal, cacheMissesTotal, cacheEvictionsTotal) }

var cacheHitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "content_cache_hits_total",
		Help: "Content cache hits, labeled by operation and tier.",
	},
	[]string{"operation", "tier"}, // 'memory', 'disk'
)

var cacheMissesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "content_cache_misses_total",
		Help: "Content cache misses, labeled by operation.",
	},
	[]string{"operation"},
)

var cacheEvictionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "content_cache_evictions_total",
		Help: "Entries evicted from the memory tier because it was full.",
	},
)

func IncCacheHit(operation, tier string) {
	cacheHitsTotal.WithLabelValues(norm(operation), norm(tier)).Inc()
}

func IncCacheMiss(operation string) {
	cacheMissesTotal.WithLabelValues(norm(operation)).Inc()
}

func IncCacheEviction() {
	cacheEvictionsTotal.Inc()
}
