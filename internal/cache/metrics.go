package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_cache_lookups_total",
			Help: "Cache lookups by result",
		},
		[]string{"cache", "result"}, // result: hit, miss
	)

	cacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_cache_evictions_total",
			Help: "Expired entries removed on read",
		},
		[]string{"cache"},
	)

	cacheSharedResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_cache_shared_results_total",
			Help: "Executions whose outcome was shared with concurrent callers",
		},
		[]string{"cache"},
	)

	cacheStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labelscan_cache_store_errors_total",
			Help: "Backing store failures by operation",
		},
		[]string{"cache", "op"},
	)
)
