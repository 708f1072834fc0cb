// Package telemetry provides observability instrumentation for the opsforge runtime.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging plan executions.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "opsforge"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("engine")
//	logger = logger.WithExecutionID("exec-123").WithTool("restart_service")
//	logger.Info("Dispatching step")
//	logger.WithError(err).Error("Step failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into execution flow and downstream service latency:
//
//	ctx, span := tel.Tracer.StartExecutionSpan(ctx, executionID, planName)
//	defer span.End()
//
//	ctx, stepSpan := tel.Tracer.StartStepSpan(ctx, executionID, idx, tool)
//	defer stepSpan.End()
//
//	if err != nil {
//	    telemetry.RecordError(stepSpan, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development), None (testing)
//
// # Metrics
//
// Prometheus metrics track runtime behavior and performance:
//
//	tel.Metrics.RecordExecutionStarted("patch-fleet")
//	tel.Metrics.RecordExecutionCompleted("completed", duration)
//	tel.Metrics.RecordStepExecution("restart_service", "completed", duration)
//	tel.Metrics.RecordLoopExpansion("restart_service", 3)
//	tel.Metrics.RecordHealthCheck("executor", "healthy", duration)
//	tel.Metrics.RecordBreakerTransition("executor", "open")
//	tel.Metrics.RecordError("unavailable", "SERVICE_UNAVAILABLE")
//
// Metrics are exposed via HTTP at /metrics (default: :9464/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	tel.Events.PublishExecutionStarted(executionID, planName, steps)
//	tel.Events.PublishStepFailed(executionID, idx, tool, reason)
//	tel.Events.PublishServiceStateChanged("executor", "closed", "open")
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByExecutionID, FilterByService
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Execution context
//	ctx = telemetry.WithExecutionContext(ctx, executionID, planName, steps)
//	defer telemetry.EndExecutionContext(ctx, executionID, status, err)
//
//	// Step context
//	ctx = telemetry.WithStepContext(ctx, executionID, idx, tool)
//	defer telemetry.EndStepContext(ctx, executionID, idx, tool, status, err)
//
//	// Downstream service call
//	err := telemetry.RecordServiceOperation(ctx, "executor", "/api/v1/commands", func() error {
//	    return client.Call(ctx, req)
//	})
//
// # Key Metrics
//
//   - opsforge_executions_started_total{plan}
//   - opsforge_executions_completed_total{status}
//   - opsforge_execution_duration_seconds{status}
//   - opsforge_steps_executed_total{tool,status}
//   - opsforge_step_duration_seconds{tool}
//   - opsforge_loop_expansions_total{tool}
//   - opsforge_template_unresolved_total{tool}
//   - opsforge_catalog_tools_loaded_total{source}
//   - opsforge_catalog_reloads_total{result}
//   - opsforge_catalog_registered_tools{source}
//   - opsforge_discovery_service_up{service}
//   - opsforge_discovery_health_checks_total{service,result}
//   - opsforge_discovery_breaker_transitions_total{service,to_state}
//   - opsforge_active_executions
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("telemetry shutdown error: %v", err)
//	}
//
// # Security Considerations
//
//   - Never log sensitive data (credentials, keys, tokens)
//   - Use secure connections (TLS) for trace exporters in production
//   - Limit metrics endpoint access via network policies
package telemetry
