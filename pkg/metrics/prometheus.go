// Package metrics provides Prometheus metrics for the finbrief service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the finbrief service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Cache Metrics - Snapshot refresh health
	cacheRefreshes     *prometheus.CounterVec
	cacheRefreshErrors *prometheus.CounterVec
	cacheRows          *prometheus.GaugeVec

	// Buffer Metrics - Event batching behavior
	bufferSize              prometheus.Gauge
	bufferFlushes           prometheus.Counter
	bufferEventsWritten     prometheus.Counter
	bufferDuplicatesSkipped prometheus.Counter
	bufferFlushErrors       prometheus.Counter
	bufferEventsDropped     prometheus.Counter

	// Validator Metrics - Which parse strategy recovered the score
	parseStrategy *prometheus.CounterVec

	// Model Metrics - Completion calls
	modelLatency prometheus.Histogram
	modelRetries prometheus.Counter
	modelErrors  prometheus.Counter
	modelTokens  *prometheus.CounterVec

	// Store Metrics - Relational store performance
	storeInsertLatency prometheus.Histogram
	storeQueryLatency  prometheus.Histogram
	eventTimeDefaulted prometheus.Counter

	// Analysis Run Metrics - Daily batch outcomes
	analysisRuns      prometheus.Counter
	analysisRunErrors prometheus.Counter
	tickersAnalyzed   prometheus.Counter
	tickersSkipped    prometheus.Counter

	// Worker Metrics - Task pool health
	workerCount    prometheus.Gauge
	tasksSubmitted prometheus.Counter
	tasksRejected  prometheus.Counter
	taskLatency    prometheus.Histogram
	workerErrors   prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics - Errors by originating component
	errorsByComponent *prometheus.CounterVec

	// System Metrics - Process health
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

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "finbrief",
		subsystem:        "service",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Cache Metrics - Snapshot refresh health
	m.cacheRefreshes = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "cache_refreshes_total",
			Help:      "Total number of successful cache refreshes by cache",
		},
		[]string{"cache"},
	)

	m.cacheRefreshErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "cache_refresh_errors_total",
			Help:      "Total number of failed cache refreshes by cache (stale snapshot kept)",
		},
		[]string{"cache"},
	)

	m.cacheRows = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "cache_rows",
			Help:      "Number of rows in the current published snapshot by cache",
		},
		[]string{"cache"},
	)

	// Buffer Metrics - Event batching behavior
	m.bufferSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_size",
		Help:      "Current number of events in the live buffer",
	})

	m.bufferFlushes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_flushes_total",
		Help:      "Total number of successful buffer flushes",
	})

	m.bufferEventsWritten = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_events_written_total",
		Help:      "Total number of events newly written by flushes (duplicates excluded)",
	})

	m.bufferDuplicatesSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_duplicates_skipped_total",
		Help:      "Total number of flushed events the store skipped as duplicates",
	})

	m.bufferFlushErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_flush_errors_total",
		Help:      "Total number of failed batch writes",
	})

	m.bufferEventsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_events_dropped_total",
		Help:      "Total number of detached events lost to failed batch writes",
	})

	// Validator Metrics - Which parse strategy recovered the score
	m.parseStrategy = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "parse_strategy_total",
			Help:      "Total number of validated model outputs by winning parse strategy",
		},
		[]string{"strategy"},
	)

	// Model Metrics - Completion calls
	m.modelLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "model_latency_milliseconds",
		Help:      "Histogram of model completion latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.modelRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "model_retries_total",
		Help:      "Total number of retried model calls",
	})

	m.modelErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "model_errors_total",
		Help:      "Total number of model calls failed after exhausting retries",
	})

	m.modelTokens = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "model_tokens_total",
			Help:      "Total tokens exchanged with the model by direction",
		},
		[]string{"direction"},
	)

	// Store Metrics - Relational store performance
	m.storeInsertLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_insert_latency_milliseconds",
		Help:      "Store write operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_latency_milliseconds",
		Help:      "Store query operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.eventTimeDefaulted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "event_time_defaulted_total",
		Help:      "Total number of events whose timestamp was defaulted at row conversion",
	})

	// Analysis Run Metrics - Daily batch outcomes
	m.analysisRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analysis_runs_total",
		Help:      "Total number of daily analysis runs started",
	})

	m.analysisRunErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analysis_run_errors_total",
		Help:      "Total number of per-ticker analysis failures",
	})

	m.tickersAnalyzed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tickers_analyzed_total",
		Help:      "Total number of tickers analyzed and persisted",
	})

	m.tickersSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tickers_skipped_total",
		Help:      "Total number of tickers skipped for missing configuration",
	})

	// Worker Metrics - Task pool health
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Current number of pool workers (processing capacity)",
	})

	m.tasksSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tasks_submitted_total",
		Help:      "Total number of tasks accepted by the pool",
	})

	m.tasksRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tasks_rejected_total",
		Help:      "Total number of tasks rejected because the pool was saturated",
	})

	m.taskLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "task_latency_milliseconds",
		Help:      "Task processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of task panics recovered by pool workers",
	})

	// HTTP Performance Metrics - User experience indicators
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
			Help:      "HTTP request duration in milliseconds (user experience)",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Error Metrics - Errors by originating component
	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)

	// System Metrics - Process health
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "Current allocated heap memory in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// Cache Metrics Functions.

// RecordCacheRefresh records a successful refresh and the published row count.
func RecordCacheRefresh(cache string, rows int) {
	globalManager.cacheRefreshes.WithLabelValues(cache).Inc()
	globalManager.cacheRows.WithLabelValues(cache).Set(float64(rows))
}

// RecordCacheRefreshError increments the refresh error counter for a cache.
func RecordCacheRefreshError(cache string) {
	globalManager.cacheRefreshErrors.WithLabelValues(cache).Inc()
}

// Buffer Metrics Functions.

// UpdateBufferSize sets the current live buffer size.
func UpdateBufferSize(size int) {
	globalManager.bufferSize.Set(float64(size))
}

// RecordBufferFlush records a successful flush of batchSize events of
// which inserted were newly written.
func RecordBufferFlush(batchSize, inserted int) {
	globalManager.bufferFlushes.Inc()
	globalManager.bufferEventsWritten.Add(float64(inserted))
	if skipped := batchSize - inserted; skipped > 0 {
		globalManager.bufferDuplicatesSkipped.Add(float64(skipped))
	}
}

// RecordBufferFlushError increments the failed batch write counter.
func RecordBufferFlushError() {
	globalManager.bufferFlushErrors.Inc()
}

// AddEventsDropped counts detached events lost to a failed batch write.
func AddEventsDropped(n int) {
	globalManager.bufferEventsDropped.Add(float64(n))
}

// Validator Metrics Functions.

// RecordParseStrategy counts which strategy recovered a validated output.
func RecordParseStrategy(strategy string) {
	globalManager.parseStrategy.WithLabelValues(strategy).Inc()
}

// Model Metrics Functions.

// RecordModelLatency records one completion call's latency in milliseconds.
func RecordModelLatency(latencyMs float64) {
	globalManager.modelLatency.Observe(latencyMs)
}

// RecordModelRetry increments the retried model call counter.
func RecordModelRetry() {
	globalManager.modelRetries.Inc()
}

// RecordModelError increments the exhausted model call counter.
func RecordModelError() {
	globalManager.modelErrors.Inc()
}

// AddModelTokens counts tokens exchanged with the model.
func AddModelTokens(prompt, completion int) {
	globalManager.modelTokens.WithLabelValues("prompt").Add(float64(prompt))
	globalManager.modelTokens.WithLabelValues("completion").Add(float64(completion))
}

// Store Metrics Functions.

// RecordStoreInsertLatency records store write latency in milliseconds.
func RecordStoreInsertLatency(latencyMs float64) {
	globalManager.storeInsertLatency.Observe(latencyMs)
}

// RecordStoreQueryLatency records store query latency in milliseconds.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// RecordEventTimeDefaulted counts an event whose timestamp was backfilled.
func RecordEventTimeDefaulted() {
	globalManager.eventTimeDefaulted.Inc()
}

// Analysis Run Metrics Functions.

// RecordAnalysisRun increments the started runs counter.
func RecordAnalysisRun() {
	globalManager.analysisRuns.Inc()
}

// RecordAnalysisRunError increments the per-ticker failure counter.
func RecordAnalysisRunError() {
	globalManager.analysisRunErrors.Inc()
}

// RecordTickerAnalyzed increments the analyzed-and-persisted counter.
func RecordTickerAnalyzed() {
	globalManager.tickersAnalyzed.Inc()
}

// RecordTickerSkipped increments the skipped-for-configuration counter.
func RecordTickerSkipped() {
	globalManager.tickersSkipped.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordTaskSubmitted increments the accepted tasks counter.
func RecordTaskSubmitted() {
	globalManager.tasksSubmitted.Inc()
}

// RecordTaskRejected increments the rejected tasks counter.
func RecordTaskRejected() {
	globalManager.tasksRejected.Inc()
}

// RecordTaskLatency records task processing latency in milliseconds.
func RecordTaskLatency(latencyMs float64) {
	globalManager.taskLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the current allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records average GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
