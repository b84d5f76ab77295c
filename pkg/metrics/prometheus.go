// Package metrics provides Prometheus metrics for the fedbench convergence service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for fedbench.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Convergence metrics
	roundsObserved   prometheus.Counter
	stopDecisions    *prometheus.CounterVec
	lastProgress     prometheus.Gauge
	lastObjective    prometheus.Gauge
	progressWindowSz prometheus.Gauge

	// Evaluation metrics
	evaluations             prometheus.Counter
	evaluationLatency       prometheus.Histogram
	undefinedClientMetrics  prometheus.Counter
	evaluationErrors        *prometheus.CounterVec
	definedClientsPerRound  prometheus.Histogram
	strategyRoundLatency    prometheus.Histogram
	strategyRoundsPerformed prometheus.Counter

	// Run registry metrics
	activeRuns prometheus.Gauge
	runsTotal  prometheus.Counter

	// Sweep metrics
	sweepQueueSize     prometheus.Gauge
	sweepJobs          *prometheus.CounterVec
	sweepActiveWorkers prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fedbench",
		subsystem:        "convergence",
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
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.roundsObserved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rounds_observed_total",
		Help:      "Total number of objective records fed to convergence trackers",
	})

	m.stopDecisions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stop_decisions_total",
		Help:      "Stop decisions by reason (diverged, plateau, max_runs, timeout)",
	}, []string{"reason"})

	m.lastProgress = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_progress",
		Help:      "Progress estimate reported by the most recent convergence check",
	})

	m.lastObjective = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_objective_value",
		Help:      "Most recent monitored objective value",
	})

	m.progressWindowSz = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "progress_window_size",
		Help:      "Number of deltas held in the most recently used progress window",
	})

	m.evaluations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "evaluation",
		Name:      "evaluations_total",
		Help:      "Total number of model evaluations performed by the metric aggregator",
	})

	m.evaluationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "evaluation",
		Name:      "latency_milliseconds",
		Help:      "Histogram of full evaluation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.undefinedClientMetrics = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "evaluation",
		Name:      "undefined_client_metrics_total",
		Help:      "Per-client metric evaluations that were undefined and skipped from averages",
	})

	m.evaluationErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "evaluation",
		Name:      "errors_total",
		Help:      "Fatal evaluation errors by kind",
	}, []string{"kind"})

	m.definedClientsPerRound = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "evaluation",
		Name:      "defined_clients",
		Help:      "Number of clients with a defined metric per evaluation",
		Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10, 16, 32},
	})

	m.strategyRoundLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "solver",
		Name:      "round_latency_milliseconds",
		Help:      "Histogram of strategy round latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.strategyRoundsPerformed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "solver",
		Name:      "rounds_performed_total",
		Help:      "Total number of federated rounds performed by solvers",
	})

	m.activeRuns = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "runs",
		Name:      "active",
		Help:      "Number of registered runs that have not stopped",
	})

	m.runsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "runs",
		Name:      "created_total",
		Help:      "Total number of runs created",
	})

	m.sweepQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "sweep",
		Name:      "queue_size",
		Help:      "Number of grid points waiting for a worker",
	})

	m.sweepJobs = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "sweep",
			Name:      "jobs_total",
			Help:      "Total number of finished grid points by status",
		},
		[]string{"status"},
	)

	m.sweepActiveWorkers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "sweep",
		Name:      "active_workers",
		Help:      "Number of running sweep workers",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: "http",
			Name:      "request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// Convergence Metrics Functions.

// RecordRoundObserved increments the observed rounds counter and tracks the latest value.
func RecordRoundObserved(objective float64) {
	globalManager.roundsObserved.Inc()
	globalManager.lastObjective.Set(objective)
}

// RecordStopDecision increments the stop counter for reason.
func RecordStopDecision(reason string) {
	globalManager.stopDecisions.WithLabelValues(reason).Inc()
}

// UpdateProgress sets the last reported progress.
func UpdateProgress(progress float64) {
	globalManager.lastProgress.Set(progress)
}

// UpdateProgressWindowSize sets the size of the last used progress window.
func UpdateProgressWindowSize(size int) {
	globalManager.progressWindowSz.Set(float64(size))
}

// Evaluation Metrics Functions.

// RecordEvaluation records one aggregator call with its latency and defined client count.
func RecordEvaluation(latencyMs float64, definedClients int) {
	globalManager.evaluations.Inc()
	globalManager.evaluationLatency.Observe(latencyMs)
	globalManager.definedClientsPerRound.Observe(float64(definedClients))
}

// RecordUndefinedClientMetric increments the undefined client metric counter.
func RecordUndefinedClientMetric() {
	globalManager.undefinedClientMetrics.Inc()
}

// RecordEvaluationError increments the evaluation error counter for kind.
func RecordEvaluationError(kind string) {
	globalManager.evaluationErrors.WithLabelValues(kind).Inc()
}

// Solver Metrics Functions.

// RecordStrategyRound records one performed federated round.
func RecordStrategyRound(latencyMs float64) {
	globalManager.strategyRoundsPerformed.Inc()
	globalManager.strategyRoundLatency.Observe(latencyMs)
}

// Run Metrics Functions.

// RecordRunCreated increments the created runs counter.
func RecordRunCreated() {
	globalManager.runsTotal.Inc()
}

// UpdateActiveRuns sets the number of active runs.
func UpdateActiveRuns(count int) {
	globalManager.activeRuns.Set(float64(count))
}

// Sweep Metrics Functions.

// UpdateSweepQueueSize sets the number of queued grid points.
func UpdateSweepQueueSize(size int) {
	globalManager.sweepQueueSize.Set(float64(size))
}

// RecordSweepJob increments the finished jobs counter for status.
func RecordSweepJob(status string) {
	globalManager.sweepJobs.WithLabelValues(status).Inc()
}

// AddSweepWorkers adjusts the running workers gauge by delta.
func AddSweepWorkers(delta int) {
	globalManager.sweepActiveWorkers.Add(float64(delta))
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

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
