package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/chainburn/chainburn/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	// Create configuration
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "chainburn"
	cfg.ServiceVersion = "1.0.0"

	// Initialize telemetry
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	// Start metrics server (non-blocking)
	if err := tel.StartMetricsServer(); err != nil {
		panic(err)
	}

	// Add telemetry to context
	ctx := tel.WithContext(context.Background())

	// Use telemetry
	logger := telemetry.FromContext(ctx)
	logger.Info("Engine started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific logger
	logger := tel.Logger.NewComponentLogger("executor")

	// Add context fields
	logger = logger.WithFields(map[string]interface{}{
		"run_id":     "run-123",
		"package_id": "MainAppMsi",
	})

	// Log at different levels
	logger.Debug("Starting package install")
	logger.Info("Package installed successfully")
	logger.Warn("Package left a pending restart")

	// Log with error
	err := fmt.Errorf("network timeout")
	logger.WithError(err).Error("Failed to download payload")

	// Output varies, no output specified
}

// Example_distributedTracing demonstrates distributed tracing usage.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "execute_plan")
	defer span.End()

	// Add attributes
	span.SetAttributes(
		attribute.String("plan.id", "plan-789"),
		attribute.Int("plan.steps", 5),
	)

	// Add event
	span.AddEvent("validation.complete")

	// Nested span
	ctx, childSpan := tel.Tracer.Start(ctx, "dispatch_package")
	defer childSpan.End()

	childSpan.SetAttributes(
		attribute.String("package.id", "MainAppMsi"),
		attribute.String("operation", "install"),
	)

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// Record success
	telemetry.RecordSuccess(childSpan)

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Record run metrics
	tel.Metrics.RecordRunStarted("MainBundle")

	// Simulate run execution
	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordRunCompleted("succeeded", duration)

	// Record step metrics
	tel.Metrics.RecordStepExecution(
		"install",           // action
		"succeeded",         // status
		25*time.Millisecond, // duration
		"msi",               // package kind
	)

	// Record dispatch metrics
	tel.Metrics.RecordDispatchCall("elevated", "install", 15*time.Millisecond)

	// Record error metrics
	tel.Metrics.RecordError("transient", "TIMEOUT")

	// Set package counts
	tel.Metrics.SetPackageCount("msi", "present", 10)
	tel.Metrics.SetPackageCount("exe", "absent", 5)

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous for example

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe to events
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	// Publish events
	tel.Events.PublishRunStarted("run-123", "MainBundle")
	tel.Events.PublishStepStarted("run-123", "step-1", "MainAppMsi", "install")
	tel.Events.PublishStepCompleted("run-123", "step-1", "MainAppMsi", 25*time.Millisecond)

	// Output varies due to async nature, no output specified
}

// Example_runInstrumentation demonstrates instrumenting a complete run.
func Example_runInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start run context
	runID := "run-123"
	bundleID := "MainBundle"
	ctx = telemetry.WithRunContext(ctx, runID, bundleID)

	// Execute run (simulated)
	executeRun(ctx, runID)

	// End run context
	telemetry.EndRunContext(ctx, runID, "succeeded", nil)

	fmt.Println("Run instrumentation complete")
	// Output: Run instrumentation complete
}

func executeRun(ctx context.Context, runID string) {
	// Simulate step dispatch
	stepID := "step-1"
	packageID := "MainAppMsi"
	operation := "install"

	ctx = telemetry.WithStepContext(ctx, runID, stepID, packageID, operation)

	// Get logger from context
	logger := telemetry.FromContext(ctx)
	logger.Info("Dispatching step")

	// Simulate work
	time.Sleep(10 * time.Millisecond)

	// End step context
	telemetry.EndStepContext(ctx, runID, stepID, packageID, operation, "msi", "succeeded", nil)
}

// Example_dispatchInstrumentation demonstrates instrumenting dispatch calls.
func Example_dispatchInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Add dispatch target context
	ctx = telemetry.WithDispatchContext(ctx, "elevated", "install")

	// Record dispatch operation
	err := telemetry.RecordDispatchOperation(ctx, "elevated", "install", func() error {
		// Simulate companion RPC round trip
		time.Sleep(15 * time.Millisecond)
		return nil
	})

	if err == nil {
		fmt.Println("Dispatch operation completed successfully")
	}

	// Output: Dispatch operation completed successfully
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start instrumented operation
	ic := telemetry.StartOperation(ctx, "validate_manifest",
		attribute.String("manifest.path", "/etc/chainburn/manifest.cue"),
	)
	defer ic.End(nil)

	// Use the instrumented context
	ic.Logger.Info("Validating manifest")

	// Simulate validation
	time.Sleep(5 * time.Millisecond)

	ic.Logger.Debug("Manifest validation complete")

	fmt.Println("Operation instrumentation complete")
	// Output: Operation instrumentation complete
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Subscribe with level filter (only warnings and errors)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	// Subscribe with type filter (only rollback events)
	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Rollback event: %s\n", event.Message)
	}, telemetry.FilterByType("rollback.triggered"))

	// Publish various events
	tel.Events.PublishRunStarted("run-123", "MainBundle") // Info - filtered by level filter
	tel.Events.PublishRollbackTriggered("MainAppMsi", 3)  // Warning - passes level filter
	tel.Events.PublishRunFailed("run-123", "error")       // Error - passes level filter

	// Output varies, no output specified
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	// Customize for your environment
	cfg.ServiceName = "chainburn"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	// Configure OTLP exporter
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "otel-collector.monitoring.svc.cluster.local:4317"
	cfg.Tracing.SamplingRate = 0.1 // 10% sampling
	cfg.Tracing.Insecure = false   // Use TLS in production

	// Configure metrics
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "chainburn"

	// Configure events
	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}

// Example_errorRecording demonstrates error recording with proper classification.
func Example_errorRecording() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	// Start a span
	ctx, span := tel.Tracer.Start(ctx, "risky_operation")
	defer span.End()

	// Simulate an error
	err := fmt.Errorf("connection timeout")

	if err != nil {
		// Record error on span
		telemetry.RecordError(span, err)

		// Record error metric with classification
		tel.Metrics.RecordError("transient", "TIMEOUT")

		// Log error
		logger := telemetry.FromContext(ctx)
		logger.WithError(err).Error("Dispatch failed")
	}

	fmt.Println("Error recording complete")
	// Output: Error recording complete
}

// Example_multipleComponents demonstrates telemetry in a multi-component system.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	// Component-specific loggers
	executorLogger := tel.Logger.NewComponentLogger("executor")
	plannerLogger := tel.Logger.NewComponentLogger("planner")
	searchLogger := tel.Logger.NewComponentLogger("search")

	executorLogger.Info("Executor initialized")
	plannerLogger.Info("Building execution plan")
	searchLogger.Info("Running search declarations")

	fmt.Println("Multi-component logging complete")
	// Output: Multi-component logging complete
}
