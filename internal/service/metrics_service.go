package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the fees API.
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
	dbQueryDuration *prometheus.HistogramVec
	feesCreated     prometheus.Counter
	feesOverdue     prometheus.Counter
	paymentsSettled prometheus.Counter
	paymentAmount   prometheus.Counter
	alertsSent      prometheus.Counter
	alertConflicts  prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
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
		Help:    "Latency for cache operations",
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

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	feesCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "student_fees_created_total",
		Help: "Total student fees materialised from templates",
	})

	feesOverdue := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "student_fees_overdue_total",
		Help: "Total pending fees promoted to overdue",
	})

	paymentsSettled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_settled_total",
		Help: "Total payments settled",
	})

	paymentAmount := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payments_amount_total",
		Help: "Cumulative settled payment amount",
	})

	alertsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fee_alerts_sent_total",
		Help: "Total fee alerts delivered",
	})

	alertConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fee_alert_conflicts_total",
		Help: "Total duplicate fee alert attempts rejected",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio,
		cacheHits, cacheMisses, dbQueryDuration, feesCreated, feesOverdue, paymentsSettled,
		paymentAmount, alertsSent, alertConflicts, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		dbQueryDuration: dbQueryDuration,
		feesCreated:     feesCreated,
		feesOverdue:     feesOverdue,
		paymentsSettled: paymentsSettled,
		paymentAmount:   paymentAmount,
		alertsSent:      alertsSent,
		alertConflicts:  alertConflicts,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordFeeCreated counts a materialised student fee.
func (m *MetricsService) RecordFeeCreated() {
	if m != nil {
		m.feesCreated.Inc()
	}
}

// RecordFeeOverdue counts a pending fee promoted to overdue.
func (m *MetricsService) RecordFeeOverdue() {
	if m != nil {
		m.feesOverdue.Inc()
	}
}

// RecordPaymentSettled counts a settled payment and its amount.
func (m *MetricsService) RecordPaymentSettled(amount float64) {
	if m == nil {
		return
	}
	m.paymentsSettled.Inc()
	m.paymentAmount.Add(amount)
}

// RecordAlertSent counts a delivered fee alert.
func (m *MetricsService) RecordAlertSent() {
	if m != nil {
		m.alertsSent.Inc()
	}
}

// RecordAlertConflict counts a rejected duplicate alert.
func (m *MetricsService) RecordAlertConflict() {
	if m != nil {
		m.alertConflicts.Inc()
	}
}
