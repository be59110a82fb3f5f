// Package metrics provides Prometheus metrics for the build scoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Scoring
	buildsReceived   prometheus.Counter
	buildsDuplicate  prometheus.Counter
	buildsRejected   *prometheus.CounterVec
	buildsScored     prometheus.Counter
	buildPoints      prometheus.Histogram
	ruleLatency      prometheus.Histogram
	ruleFailures     *prometheus.CounterVec
	scoreAdjustments *prometheus.CounterVec
	optedOutSkips    prometheus.Counter

	// Ledger maintenance
	userSaveErrors *prometheus.CounterVec
	prunedUsers    prometheus.Counter
	resets         *prometheus.CounterVec
	totalUsers     prometheus.Gauge
	customGames    prometheus.Gauge

	// Leaderboard
	leaderboardLatency prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Stream intake
	streamMessages *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry *prometheus.Registry //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	Configure()
}

// Configure rebuilds the global collectors with opts on a fresh registry.
// Call it once at start-up, before metrics are recorded or served.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(customRegistry))...)
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "cigame",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.buildsReceived = m.counter("builds_received_total", "Builds accepted for scoring")
	m.buildsDuplicate = m.counter("builds_duplicate_total", "Builds ignored because they were already scored")
	m.buildsRejected = m.counterVec("builds_rejected_total", "Builds rejected before scoring", "reason")
	m.buildsScored = m.counter("builds_scored_total", "Builds evaluated and credited")
	m.buildPoints = m.histogram("build_points", "Total point delta per scored build",
		[]float64{-50, -20, -10, -5, -1, 0, 1, 5, 10, 20, 50})
	m.ruleLatency = m.histogram("rule_evaluation_latency_milliseconds", "Rule book evaluation latency in milliseconds", m.histogramBuckets)
	m.ruleFailures = m.counterVec("rule_failures_total", "Rule evaluations aborted by a failing rule", "set")
	m.scoreAdjustments = m.counterVec("score_adjustments_total", "Ledger adjustments applied", "game_kind")
	m.optedOutSkips = m.counter("opted_out_skips_total", "Credits skipped because the user opted out")

	m.userSaveErrors = m.counterVec("user_save_errors_total", "User records that failed to persist", "operation")
	m.prunedUsers = m.counter("pruned_users_total", "User records cleaned of obsolete custom game scores")
	m.resets = m.counterVec("game_resets_total", "Score resets performed", "game_kind")
	m.totalUsers = m.gauge("users", "Known users")
	m.customGames = m.gauge("custom_games", "Configured custom games")

	m.leaderboardLatency = m.histogram("leaderboard_latency_milliseconds", "Leaderboard build latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Builds waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue fill ratio between 0 and 1")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Builds enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Builds dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Builds refused by the queue")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds", m.histogramBuckets)

	m.workerCount = m.gauge("worker_count", "Started workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently scoring a build")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Per-build processing latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Builds that failed in a worker")

	m.streamMessages = m.counterVec("stream_messages_total", "Build stream messages by outcome", "outcome")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// Scoring.

// RecordBuildReceived increments the accepted builds counter.
func RecordBuildReceived() { globalManager.buildsReceived.Inc() }

// RecordBuildDuplicate increments the duplicate builds counter.
func RecordBuildDuplicate() { globalManager.buildsDuplicate.Inc() }

// RecordBuildRejected counts a build rejected for reason.
func RecordBuildRejected(reason string) { globalManager.buildsRejected.WithLabelValues(reason).Inc() }

// RecordBuildScored counts a scored build and its total delta.
func RecordBuildScored(total float64) {
	globalManager.buildsScored.Inc()
	globalManager.buildPoints.Observe(total)
}

// RecordRuleEvaluationLatency records rule book latency in milliseconds.
func RecordRuleEvaluationLatency(latencyMs float64) { globalManager.ruleLatency.Observe(latencyMs) }

// RecordRuleFailure counts an evaluation aborted by a rule of set.
func RecordRuleFailure(set string) { globalManager.ruleFailures.WithLabelValues(set).Inc() }

// RecordScoreAdjustment counts a ledger adjustment for a game kind.
func RecordScoreAdjustment(gameKind string) {
	globalManager.scoreAdjustments.WithLabelValues(gameKind).Inc()
}

// RecordOptedOutSkip counts a credit skipped for an opted out user.
func RecordOptedOutSkip() { globalManager.optedOutSkips.Inc() }

// Ledger maintenance.

// RecordUserSaveError counts a failed user save during operation.
func RecordUserSaveError(operation string) {
	globalManager.userSaveErrors.WithLabelValues(operation).Inc()
}

// RecordPrunedUsers adds n users cleaned by a prune.
func RecordPrunedUsers(n int) { globalManager.prunedUsers.Add(float64(n)) }

// RecordReset counts a reset of a game of the given kind.
func RecordReset(gameKind string) { globalManager.resets.WithLabelValues(gameKind).Inc() }

// UpdateTotalUsers sets the number of known users.
func UpdateTotalUsers(count int) { globalManager.totalUsers.Set(float64(count)) }

// UpdateCustomGames sets the number of configured custom games.
func UpdateCustomGames(count int) { globalManager.customGames.Set(float64(count)) }

// RecordLeaderboardLatency records leaderboard build latency in milliseconds.
func RecordLeaderboardLatency(latencyMs float64) { globalManager.leaderboardLatency.Observe(latencyMs) }

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Workers.

// UpdateWorkerCount sets the number of started workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordStreamMessage counts a build stream message by outcome.
func RecordStreamMessage(outcome string) { globalManager.streamMessages.WithLabelValues(outcome).Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
