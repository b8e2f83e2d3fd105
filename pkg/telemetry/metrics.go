package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the chainburn engine (§5
// "execution metrics": actions executed, rollback count, plan duration).
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	// Step metrics (one engine.Step dispatched from a Plan)
	stepsExecuted *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec

	// Package metrics
	packagesManaged *prometheus.GaugeVec
	packageState    *prometheus.GaugeVec

	// Dispatch metrics (local or elevated-companion RPC dispatch)
	dispatchCalls    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchErrors   *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// Rollback metrics
	rollbacksTriggered *prometheus.CounterVec

	// System metrics
	activeRuns   prometheus.Gauge
	queuedSteps  prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Run metrics
		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of bundle runs started",
			},
			[]string{"bundle_id"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of bundle runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of a bundle run (Detect+Plan+Execute) in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		// Step metrics
		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_executed_total",
				Help:      "Total number of plan steps executed",
			},
			[]string{"action", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of a single plan step's dispatch in seconds",
				Buckets:   buckets,
			},
			[]string{"action", "package_kind"},
		),

		// Package metrics
		packagesManaged: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "packages_managed",
				Help:      "Current number of packages in the chain, by kind and current state",
			},
			[]string{"kind", "state"},
		),
		packageState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "package_state",
				Help:      "Current state of a package (1=present, 0=absent)",
			},
			[]string{"package_id", "kind"},
		),

		// Dispatch metrics
		dispatchCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_calls_total",
				Help:      "Total number of package action dispatches",
			},
			[]string{"target", "action"},
		),
		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_call_duration_seconds",
				Help:      "Duration of a package action dispatch in seconds",
				Buckets:   buckets,
			},
			[]string{"target", "action"},
		),
		dispatchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_errors_total",
				Help:      "Total number of package action dispatch errors",
			},
			[]string{"target", "action"},
		),

		// Error metrics
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		// Rollback metrics
		rollbacksTriggered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollbacks_triggered_total",
				Help:      "Total number of rollbacks triggered by a failed step",
			},
			[]string{"bundle_id"},
		),

		// System metrics
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Current number of active bundle runs",
			},
		),
		queuedSteps: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queued_steps",
				Help:      "Current number of plan steps not yet dispatched",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.stepsExecuted,
		m.stepDuration,
		m.packagesManaged,
		m.packageState,
		m.dispatchCalls,
		m.dispatchDuration,
		m.dispatchErrors,
		m.errorsByClass,
		m.errorsByCode,
		m.rollbacksTriggered,
		m.activeRuns,
		m.queuedSteps,
	)

	return m, nil
}

// Run Metrics

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted(bundleID string) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(bundleID).Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// Step Metrics

// RecordStepExecution records the dispatch of one plan step.
func (m *Metrics) RecordStepExecution(action, status string, duration time.Duration, packageKind string) {
	if m.stepsExecuted == nil {
		return
	}
	m.stepsExecuted.WithLabelValues(action, status).Inc()
	m.stepDuration.WithLabelValues(action, packageKind).Observe(duration.Seconds())
}

// Package Metrics

// SetPackageCount sets the current count of packages in a given kind/state.
func (m *Metrics) SetPackageCount(kind, state string, count float64) {
	if m.packagesManaged == nil {
		return
	}
	m.packagesManaged.WithLabelValues(kind, state).Set(count)
}

// SetPackageState sets whether a specific package is currently present.
func (m *Metrics) SetPackageState(packageID, kind string, present bool) {
	if m.packageState == nil {
		return
	}
	value := 0.0
	if present {
		value = 1.0
	}
	m.packageState.WithLabelValues(packageID, kind).Set(value)
}

// Dispatch Metrics

// RecordDispatchCall records a package action dispatch and its duration.
// target is "local" or "elevated".
func (m *Metrics) RecordDispatchCall(target, action string, duration time.Duration) {
	if m.dispatchCalls == nil {
		return
	}
	m.dispatchCalls.WithLabelValues(target, action).Inc()
	m.dispatchDuration.WithLabelValues(target, action).Observe(duration.Seconds())
}

// RecordDispatchError records a failed package action dispatch.
func (m *Metrics) RecordDispatchError(target, action string) {
	if m.dispatchErrors == nil {
		return
	}
	m.dispatchErrors.WithLabelValues(target, action).Inc()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Rollback Metrics

// RecordRollback records a rollback triggered for a bundle run.
func (m *Metrics) RecordRollback(bundleID string) {
	if m.rollbacksTriggered == nil {
		return
	}
	m.rollbacksTriggered.WithLabelValues(bundleID).Inc()
}

// System Metrics

// SetActiveRuns sets the current number of active runs.
func (m *Metrics) SetActiveRuns(count float64) {
	if m.activeRuns == nil {
		return
	}
	m.activeRuns.Set(count)
}

// SetQueuedSteps sets the current number of steps not yet dispatched.
func (m *Metrics) SetQueuedSteps(count float64) {
	if m.queuedSteps == nil {
		return
	}
	m.queuedSteps.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
