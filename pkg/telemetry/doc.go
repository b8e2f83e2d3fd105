// Package telemetry provides comprehensive observability instrumentation for Chainburn.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging bundle runs.
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
//	cfg.ServiceName = "chainburn"
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
//	logger := tel.Logger.NewComponentLogger("executor")
//	logger = logger.WithRunID("run-123").WithPackageID("MainAppMsi")
//	logger.Info("Starting package install")
//	logger.WithError(err).Error("Install failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into a bundle run's dispatch flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	// Add attributes
//	span.SetAttributes(
//	    attribute.String("package.id", packageID),
//	    attribute.String("operation", "install"),
//	)
//
//	// Record events
//	span.AddEvent("validation.complete")
//
//	// Record errors
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// Prometheus metrics track run behavior and performance:
//
//	// Record run execution
//	tel.Metrics.RecordRunStarted(bundleID)
//	tel.Metrics.RecordRunCompleted("succeeded", duration)
//
//	// Record step execution
//	tel.Metrics.RecordStepExecution("install", "succeeded", duration, "msi")
//
//	// Record dispatch calls
//	tel.Metrics.RecordDispatchCall("elevated", "install", duration)
//
//	// Record errors
//	tel.Metrics.RecordError("transient", "TIMEOUT")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	// Publish events
//	tel.Events.PublishRunStarted(runID, bundleID)
//	tel.Events.PublishStepCompleted(runID, stepID, packageID, duration)
//	tel.Events.PublishRollbackTriggered(packageID, rollbackDepth)
//
//	// Subscribe to events
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByRunID, FilterByPackageID
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Instrument an operation
//	ic := telemetry.StartOperation(ctx, "plan.execute",
//	    attribute.String("run.id", runID))
//	defer ic.End(err)
//
//	ic.Logger.Info("Executing plan")
//
//	// Run context
//	ctx = telemetry.WithRunContext(ctx, runID, bundleID)
//	defer telemetry.EndRunContext(ctx, runID, status, err)
//
//	// Step context
//	ctx = telemetry.WithStepContext(ctx, runID, stepID, packageID, operation)
//	defer telemetry.EndStepContext(ctx, runID, stepID, packageID, operation, packageKind, status, err)
//
//	// Dispatch operation
//	err := telemetry.RecordDispatchOperation(ctx, "elevated", "install", func() error {
//	    return dispatcher.Execute(ctx, pkg)
//	})
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
//	// Custom configuration
//	cfg := &telemetry.Config{
//	    ServiceName: "chainburn",
//	    ServiceVersion: "1.0.0",
//	    Environment: "staging",
//	    Logging: telemetry.LoggingConfig{
//	        Level: "info",
//	        Format: "json",
//	    },
//	    Tracing: telemetry.TracingConfig{
//	        Enabled: true,
//	        Exporter: "otlp",
//	        Endpoint: "otel-collector:4317",
//	        SamplingRate: 0.1,
//	    },
//	    Metrics: telemetry.MetricsConfig{
//	        Enabled: true,
//	        ListenAddress: ":9090",
//	    },
//	}
//
// # Performance Considerations
//
// The telemetry system is designed for minimal overhead:
//
//  - Structured logging uses zerolog's zero-allocation approach
//  - Tracing uses sampling to reduce data volume in production
//  - Metrics use Prometheus's efficient storage format
//  - Events are buffered and batched to reduce I/O
//  - All operations are non-blocking when possible
//
// Typical overhead: <1% CPU, <10MB memory for moderate workloads
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// This ensures:
//  - All buffered events are published
//  - All pending traces are exported
//  - Metrics are finalized
//
// # Integration with the Chainburn Engine
//
// The engine components integrate with telemetry when available:
//
//  1. Run execution: Automatic run-level tracing and metrics
//  2. Steps: Per-step tracing with package context
//  3. Dispatch: Local/elevated dispatch call tracking and error classification
//  4. Rollback: Rollback events and metrics when a step fails mid-chain
//  5. Policy: Policy violation events from the approval gate
//
// # Exporters
//
// Tracing supports multiple exporters:
//
//  - "stdout": Print traces to stdout (development)
//  - "otlp": Export via OTLP/gRPC (production, works with collectors)
//  - "none": Generate traces but don't export (testing)
//
// Configure via TracingConfig.Exporter and TracingConfig.Endpoint
//
// # Common Metrics
//
// Key metrics exposed:
//
//  - chainburn_runs_started_total{bundle_id}
//  - chainburn_runs_completed_total{status}
//  - chainburn_run_duration_seconds{status}
//  - chainburn_steps_executed_total{action,status}
//  - chainburn_step_duration_seconds{action,package_kind}
//  - chainburn_dispatch_calls_total{target,action}
//  - chainburn_dispatch_call_duration_seconds{target,action}
//  - chainburn_errors_by_class_total{class}
//  - chainburn_rollbacks_triggered_total{bundle_id}
//  - chainburn_active_runs
//
// # Best Practices
//
//  1. Always use context to propagate telemetry
//  2. Use component-specific loggers for clarity
//  3. Add meaningful attributes to spans
//  4. Record both success and failure metrics
//  5. Use appropriate log levels
//  6. Filter events to avoid overwhelming subscribers
//  7. Monitor telemetry overhead in production
//  8. Configure sampling for high-volume systems
//  9. Always call defer span.End() after starting a span
//  10. Shut down gracefully to avoid data loss
//
// # Security Considerations
//
//  - Never log sensitive data (credentials, keys, tokens)
//  - Sanitize package IDs if they contain PII
//  - Use secure connections (TLS) for trace exporters in production
//  - Limit metrics endpoint access via network policies
//  - Consider event data before adding to audit logs
//
package telemetry
