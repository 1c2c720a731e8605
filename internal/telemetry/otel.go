package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InstrumentationName is the meter and tracer name used by storyscope.
const InstrumentationName = "github.com/vampirenirmal/storyscope"

// OTelSink records run and component metrics through an OpenTelemetry meter.
type OTelSink struct {
	runs      metric.Int64Counter
	failures  metric.Int64Counter
	findings  metric.Int64Counter
	durations metric.Float64Histogram
	scores    metric.Int64Histogram
}

// NewOTelSink creates the instruments on meter. A nil meter uses the global
// meter provider.
func NewOTelSink(meter metric.Meter) (*OTelSink, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}
	s := &OTelSink{}
	var err error
	if s.runs, err = meter.Int64Counter("storyscope.analysis.runs",
		metric.WithDescription("Completed analysis runs")); err != nil {
		return nil, fmt.Errorf("creating runs counter: %w", err)
	}
	if s.failures, err = meter.Int64Counter("storyscope.analysis.failures",
		metric.WithDescription("Analysis runs that returned an error")); err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}
	if s.findings, err = meter.Int64Counter("storyscope.component.findings",
		metric.WithDescription("Findings produced per component")); err != nil {
		return nil, fmt.Errorf("creating findings counter: %w", err)
	}
	if s.durations, err = meter.Float64Histogram("storyscope.component.duration",
		metric.WithDescription("Component execution time"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	if s.scores, err = meter.Int64Histogram("storyscope.analysis.score",
		metric.WithDescription("Overall story quality score")); err != nil {
		return nil, fmt.Errorf("creating score histogram: %w", err)
	}
	return s, nil
}

func (s *OTelSink) RecordComponent(ctx context.Context, stats ComponentStats) {
	attrs := metric.WithAttributes(attribute.String("component", stats.Component))
	s.findings.Add(ctx, int64(stats.Findings), attrs)
	s.durations.Record(ctx, float64(stats.Duration.Microseconds())/1000, attrs)
}

func (s *OTelSink) RecordRun(ctx context.Context, stats RunStats) {
	if stats.Err != nil {
		s.failures.Add(ctx, 1)
		return
	}
	s.runs.Add(ctx, 1)
	s.scores.Record(ctx, int64(stats.Score))
}

// ExportConfig selects the OTLP/HTTP collector spans and metrics are
// exported to.
type ExportConfig struct {
	Endpoint    string
	ServiceName string
	// MetricInterval is how often metrics are pushed. Zero uses the SDK default.
	MetricInterval time.Duration
}

// Setup installs OTLP trace and meter providers for the service. Export is
// opt-in: with an empty endpoint it returns a no-op shutdown function and the
// global providers are left alone.
//
// The returned shutdown function flushes pending spans and metrics and should
// be deferred by the caller.
func Setup(ctx context.Context, cfg ExportConfig) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if cfg.Endpoint == "" {
		return noop, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return noop, fmt.Errorf("creating telemetry resource: %w", err)
	}
	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("creating trace exporter: %w", err)
	}
	metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("creating metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricInterval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}, nil
}
