package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CacheRequests counts lookups by backend and result (hit, miss or error)
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discograph_cache_requests_total",
			Help: "Cache lookups by backend and result",
		},
		[]string{"backend", "result"},
	)

	// CacheWrites counts stored values by backend
	CacheWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discograph_cache_writes_total",
			Help: "Values written to the cache by backend",
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(CacheRequests)
	prometheus.MustRegister(CacheWrites)
}

func recordLookup(backend string, hit bool, err error) {
	switch {
	case err != nil:
		CacheRequests.WithLabelValues(backend, "error").Inc()
	case hit:
		CacheRequests.WithLabelValues(backend, "hit").Inc()
	default:
		CacheRequests.WithLabelValues(backend, "miss").Inc()
	}
}
