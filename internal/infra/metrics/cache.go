package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheLookups, cacheInvalidations) }

var (
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Read-through cache lookups by cache and result (hit, miss, error).",
		},
		[]string{"cache", "result"},
	)
	cacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Keys dropped from a cache because the underlying row changed.",
		},
		[]string{"cache"},
	)
)

func IncCacheRequest(cacheName, result string) {
	cacheLookups.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func AddCacheInvalidations(cacheName string, n int) {
	if n > 0 {
		cacheInvalidations.WithLabelValues(norm(cacheName)).Add(float64(n))
	}
}
