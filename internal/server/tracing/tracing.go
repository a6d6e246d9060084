// Package tracing configures the OpenTelemetry tracer provider.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dmitrijs2005/securenotes/internal/logging"
)

const serviceName = "securenotes"

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

var newExporter = func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	return otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
}

// Init installs a global tracer provider exporting to endpoint over OTLP
// HTTP. An empty endpoint leaves the no-op provider in place.
func Init(ctx context.Context, endpoint string, logger logging.Logger) (ShutdownFunc, error) {
	if endpoint == "" {
		logger.Info(ctx, "Tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(tp)

	logger.Info(ctx, "Tracing enabled", "endpoint", endpoint)
	return tp.Shutdown, nil
}
