package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	pulse = "pulse"

	kindLabel   = "kind"
	stateLabel  = "state"
	resultLabel = "result"
)

// Cache read outcomes
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
)

var fetchRunsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: pulse,
		Name:      "fetch_runs_total",
		Help:      "number of fetch runs by kind and terminal state",
	},
	[]string{kindLabel, stateLabel},
)

var recordsFetchedMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: pulse,
		Name:      "records_fetched_total",
		Help:      "number of records written to the cache",
	},
	[]string{kindLabel},
)

var fetchDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: pulse,
		Name:      "fetch_duration_milliseconds",
		Help:      "time spent in a fetch run",
		Buckets:   []float64{50, 100, 300, 500, 1000, 5000, 15000},
	},
	[]string{kindLabel},
)

var cacheReadsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: pulse,
		Name:      "cache_reads_total",
		Help:      "cache lookups partitioned by outcome",
	},
	[]string{kindLabel, resultLabel},
)

var trackedKeysMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: pulse,
		Name:      "cached_keys",
		Help:      "number of keys currently held in the cache",
	},
	[]string{kindLabel},
)

var httpRequestsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: pulse,
		Name:      "http_requests_total",
		Help:      "number of http requests by route and status code",
	},
	[]string{"code", "method", "route"},
)

func ObserveFetchRun(kind, state string, d time.Duration) {
	fetchRunsMetric.With(prometheus.Labels{kindLabel: kind, stateLabel: state}).Inc()
	fetchDurationMetric.With(prometheus.Labels{kindLabel: kind}).Observe(float64(d.Milliseconds()))
}

func AddRecordsFetched(kind string, n int) {
	recordsFetchedMetric.With(prometheus.Labels{kindLabel: kind}).Add(float64(n))
}

func IncreaseCacheReads(kind, result string) {
	cacheReadsMetric.With(prometheus.Labels{kindLabel: kind, resultLabel: result}).Inc()
}

func UpdateCachedKeys(kind string, count int) {
	trackedKeysMetric.With(prometheus.Labels{kindLabel: kind}).Set(float64(count))
}

func IncreaseHTTPRequests(code, method, route string) {
	httpRequestsMetric.With(prometheus.Labels{"code": code, "method": method, "route": route}).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(fetchRunsMetric)
	prometheus.MustRegister(recordsFetchedMetric)
	prometheus.MustRegister(fetchDurationMetric)
	prometheus.MustRegister(cacheReadsMetric)
	prometheus.MustRegister(trackedKeysMetric)
	prometheus.MustRegister(httpRequestsMetric)
}
