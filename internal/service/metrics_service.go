package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// MetricsService wraps the Prometheus registry. All methods are safe on a nil receiver.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	storeDuration   *prometheus.HistogramVec
	conflictsFound  *prometheus.CounterVec
	persistDuration *prometheus.HistogramVec
	persistRecords  prometheus.Gauge
	persistDropped  prometheus.Counter

	requestCount     uint64
	cacheHitCount    uint64
	cacheMissCount   uint64
	teacherConflicts uint64
	roomConflicts    uint64
	persistOK        uint64
	persistFailed    uint64
	lastPersistTotal int64
}

// NewMetricsService registers the service collectors on a private registry.
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
		Name:    "reference_cache_latency_seconds",
		Help:    "Latency for reference cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reference_cache_hits_total",
		Help: "Total reference cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reference_cache_misses_total",
		Help: "Total reference cache misses",
	})

	storeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocation_store_operation_seconds",
		Help:    "Duration of allocation store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver", "op"})

	conflictsFound := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_conflicts_total",
		Help: "Conflicts reported by the detector",
	}, []string{"kind"})

	persistDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocation_persist_duration_seconds",
		Help:    "Duration of allocation persist runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode", "result"})

	persistRecords := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "allocation_persist_records",
		Help: "Number of allocations written by the last successful persist",
	})

	persistDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "allocation_persist_dropped_total",
		Help: "Duplicate allocations dropped while persisting",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses, storeDuration,
		conflictsFound, persistDuration, persistRecords, persistDropped, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		storeDuration:   storeDuration,
		conflictsFound:  conflictsFound,
		persistDuration: persistDuration,
		persistRecords:  persistRecords,
		persistDropped:  persistDropped,
	}
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records a reference cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveStoreOperation records timing for a backing store call.
func (m *MetricsService) ObserveStoreOperation(driver, op string, duration time.Duration) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(driver, op).Observe(duration.Seconds())
}

// ObserveConflicts counts conflicts found by one detection call.
func (m *MetricsService) ObserveConflicts(teacher, room int) {
	if m == nil {
		return
	}
	if teacher > 0 {
		m.conflictsFound.WithLabelValues(string(models.ConflictKindTeacher)).Add(float64(teacher))
		atomic.AddUint64(&m.teacherConflicts, uint64(teacher))
	}
	if room > 0 {
		m.conflictsFound.WithLabelValues(string(models.ConflictKindRoom)).Add(float64(room))
		atomic.AddUint64(&m.roomConflicts, uint64(room))
	}
}

// ObservePersist records the outcome of one persist run.
func (m *MetricsService) ObservePersist(mode, result string, duration time.Duration, total, dropped int) {
	if m == nil {
		return
	}
	m.persistDuration.WithLabelValues(mode, result).Observe(duration.Seconds())
	if result != "ok" {
		atomic.AddUint64(&m.persistFailed, 1)
		return
	}
	atomic.AddUint64(&m.persistOK, 1)
	atomic.StoreInt64(&m.lastPersistTotal, int64(total))
	m.persistRecords.Set(float64(total))
	if dropped > 0 {
		m.persistDropped.Add(float64(dropped))
	}
}

// Snapshot returns aggregated counters for the JSON metrics endpoint.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	return models.MetricsSnapshot{
		RequestsTotal:    atomic.LoadUint64(&m.requestCount),
		CacheHitRatio:    ratio,
		TeacherConflicts: atomic.LoadUint64(&m.teacherConflicts),
		RoomConflicts:    atomic.LoadUint64(&m.roomConflicts),
		PersistSucceeded: atomic.LoadUint64(&m.persistOK),
		PersistFailed:    atomic.LoadUint64(&m.persistFailed),
		LastPersistTotal: int(atomic.LoadInt64(&m.lastPersistTotal)),
		Goroutines:       runtime.NumGoroutine(),
		GeneratedAt:      time.Now().UTC(),
	}
}
