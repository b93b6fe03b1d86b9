// Package observability provides OpenTelemetry tracing and metrics for the
// supervisor, plus the health report served by the management API.
//
// Setup wires both exporters from the telemetry config section:
//
//	shutdown, err := observability.Setup(ctx, cfg.Telemetry, "primepos-supervisor", version.GetShortVersion(), cfg.Environment)
//	defer shutdown(ctx)
//
// Supervisor metrics:
//
//	metrics, err := observability.NewMetrics(observability.Meter("primepos-supervisor"))
//	metrics.RecordStart(ctx, "primepos", 0)
//	metrics.RecordExit(ctx, "primepos", 0, exitCode, uptime)
//
// Health:
//
//	health := observability.NewServiceHealth("primepos-supervisor", "1.0.0")
//	health.AddComponent(observability.FromComponent(manager.Health(ctx)))
package observability
