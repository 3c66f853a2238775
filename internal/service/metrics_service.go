package service

import (
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/mentormatch-api/pkg/docstore"
	appErrors "github.com/noah-isme/mentormatch-api/pkg/errors"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	txAttempts      prometheus.Histogram
	txOutcomes      *prometheus.CounterVec
	workflowOps     *prometheus.CounterVec
	notifications   *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
	requestCount   uint64
	txConflicts    uint64
}

// MetricsSnapshot is a compact JSON view of the counters.
type MetricsSnapshot struct {
	CacheHitRatio float64   `json:"cacheHitRatio"`
	CacheHits     uint64    `json:"cacheHits"`
	CacheMisses   uint64    `json:"cacheMisses"`
	RequestsTotal uint64    `json:"requestsTotal"`
	TxConflicts   uint64    `json:"txConflicts"`
	Goroutines    int       `json:"goroutines"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	txAttempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "docstore_transaction_attempts",
		Help:    "Attempts needed per document store transaction",
		Buckets: []float64{1, 2, 3, 4, 5, 8},
	})

	txOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docstore_transactions_total",
		Help: "Document store transactions by outcome",
	}, []string{"outcome"})

	workflowOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_operations_total",
		Help: "Workflow operations by name and error kind",
	}, []string{"operation", "outcome"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notification deliveries by event and result",
	}, []string{"event", "result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		txAttempts, txOutcomes, workflowOps, notifications, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		txAttempts:      txAttempts,
		txOutcomes:      txOutcomes,
		workflowOps:     workflowOps,
		notifications:   notifications,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveTransaction matches docstore.WithObserver.
func (m *MetricsService) ObserveTransaction(attempts int, err error) {
	if m == nil {
		return
	}
	m.txAttempts.Observe(float64(attempts))
	outcome := "committed"
	switch {
	case err == nil:
	case errors.Is(err, docstore.ErrConflict):
		outcome = "conflict"
		atomic.AddUint64(&m.txConflicts, 1)
	default:
		outcome = "aborted"
	}
	m.txOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveWorkflow counts a workflow operation by the kind of error it ended with.
func (m *MetricsService) ObserveWorkflow(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(appErrors.KindOf(err))
	}
	m.workflowOps.WithLabelValues(operation, outcome).Inc()
}

// ObserveNotification counts one delivery attempt.
func (m *MetricsService) ObserveNotification(event string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(event, result).Inc()
}

// Snapshot returns aggregated metrics suitable for a JSON endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)

	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}

	return MetricsSnapshot{
		CacheHitRatio: ratio,
		CacheHits:     hits,
		CacheMisses:   misses,
		RequestsTotal: atomic.LoadUint64(&m.requestCount),
		TxConflicts:   atomic.LoadUint64(&m.txConflicts),
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
}
