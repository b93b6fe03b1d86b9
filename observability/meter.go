package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/kbukum/primepos-supervisor/logger"
)

// InitMeter installs a global meter provider pushing to cfg.Endpoint over
// OTLP/HTTP every cfg.Interval. The caller shuts the provider down on exit.
func InitMeter(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments recorded by the supervisor and its API.
type Metrics struct {
	processStarts     metric.Int64Counter
	processRestarts   metric.Int64Counter
	processCrashLoops metric.Int64Counter
	processOnline     metric.Int64UpDownCounter
	processUptime     metric.Float64Histogram
	requestTotal      metric.Int64Counter
	requestDuration   metric.Float64Histogram
	errorTotal        metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	processStarts, err := meter.Int64Counter("process.starts",
		metric.WithDescription("Number of process launches"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating process.starts counter: %w", err)
	}

	processRestarts, err := meter.Int64Counter("process.restarts",
		metric.WithDescription("Number of automatic and requested restarts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating process.restarts counter: %w", err)
	}

	processCrashLoops, err := meter.Int64Counter("process.crash_loops",
		metric.WithDescription("Number of instances given up on after too many unstable restarts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating process.crash_loops counter: %w", err)
	}

	processOnline, err := meter.Int64UpDownCounter("process.online",
		metric.WithDescription("Number of instances currently online"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating process.online gauge: %w", err)
	}

	processUptime, err := meter.Float64Histogram("process.uptime",
		metric.WithDescription("Uptime of exited processes in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating process.uptime histogram: %w", err)
	}

	requestTotal, err := meter.Int64Counter("request.total",
		metric.WithDescription("Total number of management API requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.total counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram("request.duration",
		metric.WithDescription("Duration of management API requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.duration histogram: %w", err)
	}

	errorTotal, err := meter.Int64Counter("error.total",
		metric.WithDescription("Total errors by type and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}

	return &Metrics{
		processStarts:     processStarts,
		processRestarts:   processRestarts,
		processCrashLoops: processCrashLoops,
		processOnline:     processOnline,
		processUptime:     processUptime,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		errorTotal:        errorTotal,
	}, nil
}

func appAttrs(app string, instance int) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String(AttrApp, app),
		attribute.Int(AttrInstance, instance),
	)
}

// RecordStart counts a process launch.
func (m *Metrics) RecordStart(ctx context.Context, app string, instance int) {
	m.processStarts.Add(ctx, 1, appAttrs(app, instance))
}

// RecordRestart counts a restart; reason is "crash", "exit" or "request".
func (m *Metrics) RecordRestart(ctx context.Context, app string, instance int, reason string) {
	m.processRestarts.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrApp, app),
		attribute.Int(AttrInstance, instance),
		attribute.String("reason", reason),
	))
}

// RecordCrashLoop counts an instance that reached its restart ceiling.
func (m *Metrics) RecordCrashLoop(ctx context.Context, app string, instance int) {
	m.processCrashLoops.Add(ctx, 1, appAttrs(app, instance))
}

// RecordOnline moves the online gauge by delta (+1 or -1).
func (m *Metrics) RecordOnline(ctx context.Context, app string, delta int64) {
	m.processOnline.Add(ctx, delta, metric.WithAttributes(attribute.String(AttrApp, app)))
}

// RecordExit records the uptime of a process that exited with exitCode.
func (m *Metrics) RecordExit(ctx context.Context, app string, instance, exitCode int, uptime time.Duration) {
	m.processUptime.Record(ctx, uptime.Seconds(), metric.WithAttributes(
		attribute.String(AttrApp, app),
		attribute.Int(AttrInstance, instance),
		attribute.Int(AttrExitCode, exitCode),
	))
}

// RecordRequest records a completed management API request.
func (m *Metrics) RecordRequest(ctx context.Context, route, status string, duration time.Duration) {
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String(AttrStatus, status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("route", route),
	))
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}
