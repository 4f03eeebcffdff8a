package main

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
	"github.com/AntonStoeckl/datamapper-go/example/config"
	"github.com/AntonStoeckl/datamapper-go/oteladapters"
)

const metricExportInterval = 5 * time.Second

// Observability holds the adapters handed to repositories and storages.
// A zero Observability disables all of them.
type Observability struct {
	ContextualLogger datamapper.ContextualLogger
	MetricsCollector datamapper.MetricsCollector
	TracingCollector datamapper.TracingCollector

	shutdown []func(ctx context.Context) error
}

// NewObservability sets up global OpenTelemetry providers exporting via OTLP gRPC and wraps them in
// the datamapper adapters.
func NewObservability(ctx context.Context, cfg config.ObservabilityConfig) (*Observability, error) {
	if !cfg.Enabled {
		return &Observability{}, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)))
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(cfg.TracesEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := trace.NewTracerProvider(trace.WithBatcher(traceExporter), trace.WithResource(res))

	metricExporter, err := otlpmetricgrpc.New(
		ctx,
		otlpmetricgrpc.WithEndpoint(cfg.MetricsEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, errors.Join(err, tracerProvider.Shutdown(ctx))
	}

	meterProvider := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(metricExportInterval))),
		metric.WithResource(res),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Observability{
		ContextualLogger: oteladapters.NewSlogBridgeLogger(cfg.ServiceName),
		MetricsCollector: oteladapters.NewMetricsCollector(otel.Meter(cfg.ServiceName)),
		TracingCollector: oteladapters.NewTracingCollector(otel.Tracer(cfg.ServiceName)),
		shutdown:         []func(ctx context.Context) error{tracerProvider.Shutdown, meterProvider.Shutdown},
	}, nil
}

// RepositoryOptions returns the repository options for the configured adapters.
func (o *Observability) RepositoryOptions() []datamapper.Option {
	var options []datamapper.Option

	if o.ContextualLogger != nil {
		options = append(options, datamapper.WithContextualLogger(o.ContextualLogger))
	}

	if o.MetricsCollector != nil {
		options = append(options, datamapper.WithMetrics(o.MetricsCollector))
	}

	if o.TracingCollector != nil {
		options = append(options, datamapper.WithTracing(o.TracingCollector))
	}

	return options
}

// Shutdown flushes and stops the providers.
func (o *Observability) Shutdown(ctx context.Context) error {
	var err error
	for _, shutdown := range o.shutdown {
		err = errors.Join(err, shutdown(ctx))
	}

	return err
}
