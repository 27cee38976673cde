// Package metrics provides Prometheus metrics for the podium leaderboard service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Submission outcomes used as the "outcome" label.
const (
	OutcomeAccepted    = "accepted"
	OutcomeRejected    = "rejected"
	OutcomeInvalid     = "invalid"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Reward claim outcomes used as the "outcome" label.
const (
	ClaimWon      = "won"
	ClaimLostRace = "lost_race"
	ClaimNone     = "none"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace       string
	subsystem       string
	enabled         bool
	refreshInterval time.Duration
	registry        prometheus.Registerer

	// Submission pipeline
	submissions         *prometheus.CounterVec
	antiCheatRejections prometheus.Counter
	flagsRecorded       prometheus.Counter
	personalBests       prometheus.Counter
	submitLatency       prometheus.Histogram

	// Fast ranking store
	fastStoreOps       *prometheus.CounterVec
	fastStoreAvailable prometheus.Gauge
	dailyPlayers       prometheus.Gauge

	// Durable ledger
	ledgerLatency *prometheus.HistogramVec
	ledgerErrors  *prometheus.CounterVec

	// Rewards
	rewardClaims *prometheus.CounterVec

	// Replay queue and workers
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueDropped     prometheus.Counter
	replayApplied    prometheus.Counter
	replayRetries    prometheus.Counter
	replayExpired    prometheus.Counter
	workerCount      prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure replaces the global manager with one built from opts on a fresh
// registry. Call it at startup, before anything captures GetRegistry.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// RefreshInterval returns the global manager's gauge refresh period.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "podium",
		subsystem:       "leaderboard",
		enabled:         true,
		refreshInterval: defaultRefreshInterval,
		registry:        prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.DefBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.submissions = auto.NewCounterVec(m.counterOpts("submissions_total", "Score submissions by outcome"), []string{"outcome"})
	m.antiCheatRejections = auto.NewCounter(m.counterOpts("anticheat_rejections_total", "Victory submissions rejected by the completion time floor"))
	m.flagsRecorded = auto.NewCounter(m.counterOpts("flags_recorded_total", "Suspicious activity records written"))
	m.personalBests = auto.NewCounter(m.counterOpts("personal_bests_total", "Accepted submissions that set a new personal best"))
	m.submitLatency = auto.NewHistogram(m.histogramOpts("submit_latency_milliseconds", "End-to-end submission pipeline latency in milliseconds"))

	m.fastStoreOps = auto.NewCounterVec(m.counterOpts("fast_store_operations_total", "Fast ranking store operations by op and result"), []string{"op", "result"})
	m.fastStoreAvailable = auto.NewGauge(m.gaugeOpts("fast_store_available", "1 when the fast ranking store answered its last health check"))
	m.dailyPlayers = auto.NewGauge(m.gaugeOpts("daily_players", "Distinct ranked entries in today's bucket"))

	m.ledgerLatency = auto.NewHistogramVec(m.histogramOpts("ledger_latency_milliseconds", "Durable ledger operation latency in milliseconds"), []string{"op"})
	m.ledgerErrors = auto.NewCounterVec(m.counterOpts("ledger_errors_total", "Durable ledger failures by op"), []string{"op"})

	m.rewardClaims = auto.NewCounterVec(m.counterOpts("reward_claims_total", "Reward checks by outcome"), []string{"outcome"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("replay_queue_size", "Pending daily ranking replays"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("replay_queue_capacity", "Maximum pending daily ranking replays"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("replay_queue_utilization_ratio", "Replay queue utilization ratio"))
	m.queueDropped = auto.NewCounter(m.counterOpts("replay_dropped_total", "Replays dropped because the queue was full or closed"))
	m.replayApplied = auto.NewCounter(m.counterOpts("replay_applied_total", "Replays written to the fast store"))
	m.replayRetries = auto.NewCounter(m.counterOpts("replay_retries_total", "Replay attempts that failed and were retried"))
	m.replayExpired = auto.NewCounter(m.counterOpts("replay_expired_total", "Replays discarded because their day ended or attempts ran out"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Replay workers running"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total", "Errors by type"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Errors by endpoint"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds", "Latency of operations that resulted in errors"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	gc := m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds")
	gc.Buckets = []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}
	m.systemGCPauseTime = auto.NewHistogram(gc)
}

// Enabled reports whether the manager records observations.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval returns how often gauges should be refreshed by callers.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Submission pipeline.

// RecordSubmission counts a submission with the given outcome.
func RecordSubmission(outcome string) {
	if globalManager.enabled {
		globalManager.submissions.WithLabelValues(outcome).Inc()
	}
}

// RecordAntiCheatRejection counts a victory run rejected by the time floor.
func RecordAntiCheatRejection() {
	if globalManager.enabled {
		globalManager.antiCheatRejections.Inc()
	}
}

// RecordFlag counts a written flag record.
func RecordFlag() {
	if globalManager.enabled {
		globalManager.flagsRecorded.Inc()
	}
}

// RecordPersonalBest counts a new personal best.
func RecordPersonalBest() {
	if globalManager.enabled {
		globalManager.personalBests.Inc()
	}
}

// RecordSubmitLatency records the pipeline latency in milliseconds.
func RecordSubmitLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.submitLatency.Observe(latencyMs)
	}
}

// Fast ranking store.

// RecordFastStoreOp counts a fast store operation; result is "ok" or "unavailable".
func RecordFastStoreOp(op, result string) {
	if globalManager.enabled {
		globalManager.fastStoreOps.WithLabelValues(op, result).Inc()
	}
}

// UpdateFastStoreAvailable records the last observed fast store health.
func UpdateFastStoreAvailable(up bool) {
	if !globalManager.enabled {
		return
	}
	if up {
		globalManager.fastStoreAvailable.Set(1)
		return
	}
	globalManager.fastStoreAvailable.Set(0)
}

// UpdateDailyPlayers sets the size of today's bucket.
func UpdateDailyPlayers(count int64) {
	if globalManager.enabled {
		globalManager.dailyPlayers.Set(float64(count))
	}
}

// Durable ledger.

// RecordLedgerLatency records a ledger operation latency in milliseconds.
func RecordLedgerLatency(op string, latencyMs float64) {
	if globalManager.enabled {
		globalManager.ledgerLatency.WithLabelValues(op).Observe(latencyMs)
	}
}

// RecordLedgerError counts a failed ledger operation.
func RecordLedgerError(op string) {
	if globalManager.enabled {
		globalManager.ledgerErrors.WithLabelValues(op).Inc()
	}
}

// Rewards.

// RecordRewardClaim counts a reward check with the given outcome.
func RecordRewardClaim(outcome string) {
	if globalManager.enabled {
		globalManager.rewardClaims.WithLabelValues(outcome).Inc()
	}
}

// Replay queue and workers.

// UpdateQueueSize sets the current replay queue size.
func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the maximum replay queue capacity.
func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueUtilization sets the replay queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	if globalManager.enabled {
		globalManager.queueUtilization.Set(utilization)
	}
}

// RecordQueueDropped counts a replay that could not be enqueued.
func RecordQueueDropped() {
	if globalManager.enabled {
		globalManager.queueDropped.Inc()
	}
}

// RecordReplayApplied counts a replay written to the fast store.
func RecordReplayApplied() {
	if globalManager.enabled {
		globalManager.replayApplied.Inc()
	}
}

// RecordReplayRetry counts a failed replay attempt that will be retried.
func RecordReplayRetry() {
	if globalManager.enabled {
		globalManager.replayRetries.Inc()
	}
}

// RecordReplayExpired counts a discarded replay.
func RecordReplayExpired() {
	if globalManager.enabled {
		globalManager.replayExpired.Inc()
	}
}

// UpdateWorkerCount sets the number of running replay workers.
func UpdateWorkerCount(count int) {
	if globalManager.enabled {
		globalManager.workerCount.Set(float64(count))
	}
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	if globalManager.enabled {
		globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
	}
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	if globalManager.enabled {
		globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
	}
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if globalManager.enabled {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Since returns the elapsed milliseconds since start as a float, the unit
// every latency histogram in this package uses.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
