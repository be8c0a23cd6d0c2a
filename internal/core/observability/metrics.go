// Package observability records Prometheus metrics for stores, planner and transport.
package observability

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var strategyLabel atomic.Value

func init() {
	strategyLabel.Store("unknown")
}

func SetStrategy(s string) {
	if s == "" {
		s = "unknown"
	}
	strategyLabel.Store(s)
}

func getStrategy() string {
	if v := strategyLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	remoteLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imagery_remote_latency_seconds",
			Help:    "Latency of imagery service calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"op", "result"},
	)

	storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_op_total",
			Help: "File store operations by store, op and result.",
		},
		[]string{"store", "op", "result"},
	)

	storeOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_op_duration_seconds",
			Help:    "Duration of file store operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"store", "op"},
	)

	plannerOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_outcomes_total",
			Help: "Planner calls by operation, outcome and composite strategy.",
		},
		[]string{"op", "outcome", "strategy"},
	)

	matchedItems = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planner_matched_items",
			Help:    "Archive items matched per preview/execute.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"op"},
	)

	cacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Result cache operations by op and result.",
		},
		[]string{"op", "result"},
	)

	cacheOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of Redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Result cache lookups by outcome and tier.",
		},
		[]string{"outcome", "tier"},
	)

	exportEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_events_total",
			Help: "Export job events by result.",
		},
		[]string{"result"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sar_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

var (
	initMu     sync.Mutex
	registered = map[prometheus.Registerer]bool{}
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, remoteLatencySeconds,
		storeOps, storeOpDuration, plannerOutcomes, matchedItems,
		cacheOps, cacheOpDuration, cacheResults, exportEvents, buildInfo,
	}
}

// Init registers the collectors on reg. Collectors keep counting when
// disabled; they are just not exported.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	initMu.Lock()
	defer initMu.Unlock()
	if registered[reg] {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
	registered[reg] = true
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveRemote(op string, err error, durationSeconds float64) {
	remoteLatencySeconds.WithLabelValues(op, result(err)).Observe(durationSeconds)
}

func ObserveStoreOp(store, op string, err error, durationSeconds float64) {
	storeOps.WithLabelValues(store, op, result(err)).Inc()
	storeOpDuration.WithLabelValues(store, op).Observe(durationSeconds)
}

// IncPlanner counts one planner call; outcome is ok, no_data, invalid or remote_error.
func IncPlanner(op, outcome string) {
	plannerOutcomes.WithLabelValues(op, outcome, getStrategy()).Inc()
}

func ObserveMatched(op string, count int) {
	matchedItems.WithLabelValues(op).Observe(float64(count))
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOps.WithLabelValues(op, result(err)).Inc()
	cacheOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func IncCacheHit(tier string) {
	cacheResults.WithLabelValues("hit", tier).Inc()
}

func IncCacheMiss(tier string) {
	cacheResults.WithLabelValues("miss", tier).Inc()
}

func IncExportEvent(result string) {
	exportEvents.WithLabelValues(result).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
