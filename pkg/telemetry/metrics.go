package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the opsforge runtime.
type Metrics struct {
	config MetricsConfig

	// Execution metrics
	executionsStarted   *prometheus.CounterVec
	executionsCompleted *prometheus.CounterVec
	executionDuration   *prometheus.HistogramVec

	// Step metrics
	stepsExecuted *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec

	// Template and loop metrics
	loopExpansions     *prometheus.CounterVec
	templateUnresolved *prometheus.CounterVec

	// Catalog metrics
	toolsLoaded     *prometheus.CounterVec
	catalogReloads  *prometheus.CounterVec
	reloadErrors    prometheus.Counter
	registeredTools *prometheus.GaugeVec

	// Discovery metrics
	serviceUp           *prometheus.GaugeVec
	healthChecks        *prometheus.CounterVec
	breakerTransitions  *prometheus.CounterVec
	checkDuration       *prometheus.HistogramVec
	serviceCalls        *prometheus.CounterVec
	serviceCallDuration *prometheus.HistogramVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// System metrics
	activeExecutions prometheus.Gauge

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

		// Execution metrics
		executionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_started_total",
				Help:      "Total number of plan executions started",
			},
			[]string{"plan"},
		),
		executionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_completed_total",
				Help:      "Total number of plan executions completed",
			},
			[]string{"status"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Duration of plan executions in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		// Step metrics
		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_executed_total",
				Help:      "Total number of steps executed",
			},
			[]string{"tool", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of step execution in seconds",
				Buckets:   buckets,
			},
			[]string{"tool"},
		),

		// Template and loop metrics
		loopExpansions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loop_expansions_total",
				Help:      "Total number of fan-out expansions performed",
			},
			[]string{"tool"},
		),
		templateUnresolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "template_unresolved_total",
				Help:      "Total number of template references left unresolved",
			},
			[]string{"tool"},
		),

		// Catalog metrics
		toolsLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "tools_loaded_total",
				Help:      "Total number of tool definitions loaded across reloads",
			},
			[]string{"source"},
		),
		catalogReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "reloads_total",
				Help:      "Total number of catalog reloads",
			},
			[]string{"result"},
		),
		reloadErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "reload_errors_total",
				Help:      "Total number of catalog files skipped due to errors",
			},
		),
		registeredTools: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "registered_tools",
				Help:      "Current number of registered tools in the active set",
			},
			[]string{"source"},
		),

		// Discovery metrics
		serviceUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "service_up",
				Help:      "Service health (1=healthy, 0.5=degraded, 0=unhealthy)",
			},
			[]string{"service"},
		),
		healthChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "health_checks_total",
				Help:      "Total number of health checks performed",
			},
			[]string{"service", "result"},
		),
		breakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "breaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"service", "to_state"},
		),
		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "check_duration_seconds",
				Help:      "Duration of health checks in seconds",
				Buckets:   buckets,
			},
			[]string{"service"},
		),
		serviceCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "service_calls_total",
				Help:      "Total number of downstream service calls",
			},
			[]string{"service", "result"},
		),
		serviceCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "service_call_duration_seconds",
				Help:      "Duration of downstream service calls in seconds",
				Buckets:   buckets,
			},
			[]string{"service"},
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

		// System metrics
		activeExecutions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_executions",
				Help:      "Current number of active plan executions",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.executionsStarted,
		m.executionsCompleted,
		m.executionDuration,
		m.stepsExecuted,
		m.stepDuration,
		m.loopExpansions,
		m.templateUnresolved,
		m.toolsLoaded,
		m.catalogReloads,
		m.reloadErrors,
		m.registeredTools,
		m.serviceUp,
		m.healthChecks,
		m.breakerTransitions,
		m.checkDuration,
		m.serviceCalls,
		m.serviceCallDuration,
		m.errorsByClass,
		m.errorsByCode,
		m.activeExecutions,
	)

	return m, nil
}

// Execution Metrics

// RecordExecutionStarted increments the counter for started executions.
func (m *Metrics) RecordExecutionStarted(plan string) {
	if m.executionsStarted == nil {
		return
	}
	m.executionsStarted.WithLabelValues(plan).Inc()
	m.activeExecutions.Inc()
}

// RecordExecutionCompleted records a completed execution with its status and duration.
func (m *Metrics) RecordExecutionCompleted(status string, duration time.Duration) {
	if m.executionsCompleted == nil {
		return
	}
	m.executionsCompleted.WithLabelValues(status).Inc()
	m.executionDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeExecutions.Dec()
}

// Step Metrics

// RecordStepExecution records the execution of a single concrete step.
func (m *Metrics) RecordStepExecution(tool, status string, duration time.Duration) {
	if m.stepsExecuted == nil {
		return
	}
	m.stepsExecuted.WithLabelValues(tool, status).Inc()
	m.stepDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordLoopExpansion records a fan-out expansion of a step.
func (m *Metrics) RecordLoopExpansion(tool string, items int) {
	if m.loopExpansions == nil {
		return
	}
	m.loopExpansions.WithLabelValues(tool).Add(float64(items))
}

// RecordUnresolvedReferences records template references that could not be resolved.
func (m *Metrics) RecordUnresolvedReferences(tool string, count int) {
	if m.templateUnresolved == nil || count == 0 {
		return
	}
	m.templateUnresolved.WithLabelValues(tool).Add(float64(count))
}

// Catalog Metrics

// RecordCatalogReload records a catalog reload and its outcome.
func (m *Metrics) RecordCatalogReload(result string, loaded map[string]int, skipped int) {
	if m.catalogReloads == nil {
		return
	}
	m.catalogReloads.WithLabelValues(result).Inc()
	for source, count := range loaded {
		m.toolsLoaded.WithLabelValues(source).Add(float64(count))
		m.registeredTools.WithLabelValues(source).Set(float64(count))
	}
	if skipped > 0 {
		m.reloadErrors.Add(float64(skipped))
	}
}

// Discovery Metrics

// RecordHealthCheck records the result of a service health check.
func (m *Metrics) RecordHealthCheck(service, result string, duration time.Duration) {
	if m.healthChecks == nil {
		return
	}
	m.healthChecks.WithLabelValues(service, result).Inc()
	m.checkDuration.WithLabelValues(service).Observe(duration.Seconds())

	var up float64
	switch result {
	case "healthy":
		up = 1.0
	case "degraded":
		up = 0.5
	}
	m.serviceUp.WithLabelValues(service).Set(up)
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(service, toState string) {
	if m.breakerTransitions == nil {
		return
	}
	m.breakerTransitions.WithLabelValues(service, toState).Inc()
}

// RecordServiceCall records a downstream service call and its outcome.
func (m *Metrics) RecordServiceCall(service, result string, duration time.Duration) {
	if m.serviceCalls == nil {
		return
	}
	m.serviceCalls.WithLabelValues(service, result).Inc()
	m.serviceCallDuration.WithLabelValues(service).Observe(duration.Seconds())
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
