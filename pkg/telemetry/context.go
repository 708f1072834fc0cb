package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the logger, tracer, metrics, and event publisher
// behind one handle. Components receive it whole so instrumentation
// stays consistent across the runtime.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

type telemetryContextKey struct{}

// NewTelemetry validates cfg and constructs the full stack. Any
// component failing to initialize fails the whole constructor.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext stores the telemetry handle and its logger in ctx.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext returns the telemetry handle carried by ctx, or
// nil when none is set.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown stops the event pipeline and the tracer, newest first. The
// metrics endpoint keeps serving so late scrapes still land.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}
	return t.Tracer.Shutdown(ctx)
}

// Flush pushes pending spans to the exporter without shutting down.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer exposes the scrape endpoint when metrics are
// enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// InstrumentedContext carries the span, scoped logger, and timer for
// one in-flight operation.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation opens a span, derives an operation-scoped logger with
// trace correlation fields, and starts a timer. Without telemetry in
// ctx it degrades to a logger and timer only.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	logger := tel.Logger.WithField("operation", operation)
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End closes the operation, marking the span failed when err is
// non-nil.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// WithExecutionContext instruments the start of a plan execution: it
// opens the execution span, scopes the logger, bumps the started
// counter, and publishes the started event. Pair with
// EndExecutionContext.
func WithExecutionContext(ctx context.Context, executionID, plan string, steps int) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartExecutionSpan(ctx, executionID, plan)

	logger := tel.Logger.WithExecutionID(executionID).WithField("plan", plan)
	spanCtx = logger.WithContext(spanCtx)

	tel.Metrics.RecordExecutionStarted(plan)
	_ = tel.Events.PublishExecutionStarted(executionID, plan, steps)

	// The span and timer travel in the context so the matching End
	// call can close them out.
	spanCtx = context.WithValue(spanCtx, executionSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, executionTimerKey{}, NewTimer())

	return spanCtx
}

type executionSpanKey struct{}
type executionTimerKey struct{}

// EndExecutionContext closes the execution span and records the final
// status, duration, and completion or failure event.
func EndExecutionContext(ctx context.Context, executionID, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(executionSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(executionTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	tel.Metrics.RecordExecutionCompleted(status, duration)

	if err != nil {
		_ = tel.Events.PublishExecutionFailed(executionID, err.Error())
	} else {
		_ = tel.Events.PublishExecutionCompleted(executionID, status, duration)
	}
}

// WithStepContext instruments one plan step: step span, scoped logger,
// started event, and a timer for the matching EndStepContext.
func WithStepContext(ctx context.Context, executionID string, stepIndex int, tool string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartStepSpan(ctx, executionID, stepIndex, tool)

	logger := tel.Logger.
		WithExecutionID(executionID).
		WithStepIndex(stepIndex).
		WithTool(tool)
	spanCtx = logger.WithContext(spanCtx)

	_ = tel.Events.PublishStepStarted(executionID, stepIndex, tool)

	spanCtx = context.WithValue(spanCtx, stepSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, stepTimerKey{}, NewTimer())

	return spanCtx
}

type stepSpanKey struct{}
type stepTimerKey struct{}

// EndStepContext closes the step span and records the step outcome in
// metrics and events.
func EndStepContext(ctx context.Context, executionID string, stepIndex int, tool, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(stepSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(stepTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	tel.Metrics.RecordStepExecution(tool, status, duration)

	if err != nil {
		_ = tel.Events.PublishStepFailed(executionID, stepIndex, tool, err.Error())
	} else {
		_ = tel.Events.PublishStepCompleted(executionID, stepIndex, tool, duration)
	}
}

// RecordServiceOperation wraps a downstream call in a service span and
// latency observation. The call runs even when ctx carries no
// telemetry; fn's error passes through either way.
func RecordServiceOperation(ctx context.Context, service, path string, fn func() error) error {
	tel := FromTelemetryContext(ctx)

	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartServiceCallSpan(ctx, service, path)
		defer span.End()
	}

	timer := NewTimer()
	err := fn()

	if tel != nil {
		duration := timer.Duration()
		result := "success"
		if err != nil {
			result = "error"
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		tel.Metrics.RecordServiceCall(service, result, duration)
	}

	return err
}
