// Package metrics provides Prometheus metrics for the rvutrack service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus metric the service publishes.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Tracking pipeline
	observationsTotal      prometheus.Counter
	observationsMalformed  prometheus.Counter
	studiesCompleted       *prometheus.CounterVec
	studiesDiscarded       prometheus.Counter
	unknownClassifications prometheus.Counter

	// Live shift
	shiftRVU        prometheus.Gauge
	shiftStudyCount prometheus.Gauge
	rvuPerHour      prometheus.Gauge

	// Persistence queue and writers
	persistQueueCapacity    prometheus.Gauge
	persistQueueSize        prometheus.Gauge
	persistQueueUtilization prometheus.Gauge
	persistQueueDrops       *prometheus.CounterVec
	recordsPersisted        prometheus.Counter
	persistRetries          prometheus.Counter
	persistFailures         prometheus.Counter
	writeLatency            prometheus.Histogram
	writerActiveCount       prometheus.Gauge

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec
	errorLatency      *prometheus.HistogramVec

	// Process health
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rvutrack",
		subsystem:        "tracking",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one registration site for every metric
	auto := promauto.With(m.registry)

	m.observationsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "observations_total",
		Help:      "Total number of observation ticks processed",
	})

	m.observationsMalformed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "observations_malformed_total",
		Help:      "Total number of observations ignored as malformed",
	})

	m.studiesCompleted = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "studies_completed_total",
			Help:      "Total number of completed-study records by source",
		},
		[]string{"source"},
	)

	m.studiesDiscarded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "studies_discarded_total",
		Help:      "Total number of sub-threshold studies discarded",
	})

	m.unknownClassifications = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "unknown_classifications_total",
		Help:      "Total number of procedures no classification rule matched",
	})

	m.shiftRVU = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "shift_rvu",
		Help:      "Cumulative RVU of the active shift",
	})

	m.shiftStudyCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "shift_study_count",
		Help:      "Study count of the active shift, every accession counted",
	})

	m.rvuPerHour = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rvu_per_hour",
		Help:      "RVU per hour over the active shift",
	})

	m.persistQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_queue_capacity",
		Help:      "Maximum record queue capacity",
	})

	m.persistQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_queue_size",
		Help:      "Current size of the record queue",
	})

	m.persistQueueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_queue_utilization_ratio",
		Help:      "Record queue utilization ratio (size / capacity)",
	})

	m.persistQueueDrops = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "persist_queue_drops_total",
			Help:      "Total number of records the queue rejected, by reason",
		},
		[]string{"reason"},
	)

	m.recordsPersisted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_persisted_total",
		Help:      "Total number of records written to the store",
	})

	m.persistRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_retries_total",
		Help:      "Total number of retried store writes",
	})

	m.persistFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persist_failures_total",
		Help:      "Total number of records whose write attempts were exhausted",
	})

	m.writeLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "write_latency_milliseconds",
		Help:      "Store write latency in milliseconds, retries included",
		Buckets:   m.histogramBuckets,
	})

	m.writerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "writer_active_count",
		Help:      "Number of running persistence writers",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)

	m.errorsByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "Total number of errors by type",
		},
		[]string{"error_type", "severity"},
	)

	m.errorsByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total number of errors by endpoint",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "error_latency_milliseconds",
			Help:      "Latency of operations that resulted in errors",
			Buckets:   m.histogramBuckets,
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// Tracking pipeline functions.

// RecordObservation increments the observation tick counter.
func RecordObservation() {
	globalManager.observationsTotal.Inc()
}

// RecordObservationMalformed increments the malformed observation counter.
func RecordObservationMalformed() {
	globalManager.observationsMalformed.Inc()
}

// RecordStudyCompleted increments the completed-study counter for a source.
func RecordStudyCompleted(source string) {
	globalManager.studiesCompleted.WithLabelValues(source).Inc()
}

// RecordStudyDiscarded increments the sub-threshold discard counter.
func RecordStudyDiscarded() {
	globalManager.studiesDiscarded.Inc()
}

// RecordUnknownClassification increments the unmatched-procedure counter.
func RecordUnknownClassification() {
	globalManager.unknownClassifications.Inc()
}

// Live shift functions.

// UpdateShiftRVU sets the active shift's cumulative RVU.
func UpdateShiftRVU(rvu float64) {
	globalManager.shiftRVU.Set(rvu)
}

// UpdateShiftStudyCount sets the active shift's study count.
func UpdateShiftStudyCount(count int) {
	globalManager.shiftStudyCount.Set(float64(count))
}

// UpdateRVUPerHour sets the active shift's RVU/hour rate.
func UpdateRVUPerHour(rate float64) {
	globalManager.rvuPerHour.Set(rate)
}

// Persistence queue and writer functions.

// UpdatePersistQueueCapacity sets the maximum queue capacity.
func UpdatePersistQueueCapacity(capacity int) {
	globalManager.persistQueueCapacity.Set(float64(capacity))
}

// UpdatePersistQueueSize sets the current queue size.
func UpdatePersistQueueSize(size int) {
	globalManager.persistQueueSize.Set(float64(size))
}

// UpdatePersistQueueUtilization sets the queue utilization ratio.
func UpdatePersistQueueUtilization(utilization float64) {
	globalManager.persistQueueUtilization.Set(utilization)
}

// RecordPersistQueueDrop increments the queue drop counter for a reason.
func RecordPersistQueueDrop(reason string) {
	globalManager.persistQueueDrops.WithLabelValues(reason).Inc()
}

// RecordPersisted increments the persisted-record counter.
func RecordPersisted() {
	globalManager.recordsPersisted.Inc()
}

// RecordPersistRetry increments the write retry counter.
func RecordPersistRetry() {
	globalManager.persistRetries.Inc()
}

// RecordPersistFailure increments the exhausted-write counter.
func RecordPersistFailure() {
	globalManager.persistFailures.Inc()
}

// RecordWriteLatency records one record's store write latency.
func RecordWriteLatency(latencyMs float64) {
	globalManager.writeLatency.Observe(latencyMs)
}

// UpdateWriterActiveCount sets the number of running writers.
func UpdateWriterActiveCount(count int) {
	globalManager.writerActiveCount.Set(float64(count))
}

// HTTP functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error tracking functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// Process health functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry backing the global
// manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
