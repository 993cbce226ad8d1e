// Package observability provides OpenTelemetry integration for the
// optimization engine: distributed tracing, metrics export, structured
// logging, and an audit trail for iteration-level decisions.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

var globalTracerProvider *sdktrace.TracerProvider

// InitTracing initializes OpenTelemetry tracing. When consoleExport is true,
// spans are additionally printed to stdout, useful for local runs of the
// optimizer without a collector.
func InitTracing(serviceName string, consoleExport bool) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))

	if consoleExport {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		tp.RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	globalTracerProvider = tp
	return tp, nil
}

// GetTracer returns a tracer from the current global tracer provider.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartIterationSpan starts a span covering one optimizer iteration.
func StartIterationSpan(ctx context.Context, taskID string, iterID int) (context.Context, trace.Span) {
	tracer := GetTracer("mfbo.optimizer")
	ctx, span := tracer.Start(ctx, "mfbo.iteration", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String("mfbo.task_id", taskID),
		attribute.Int("mfbo.iter_id", iterID),
	)
	return ctx, span
}

// EndSpan records err (if any) on span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Shutdown gracefully shuts down the tracer provider.
func Shutdown(ctx context.Context) error {
	if globalTracerProvider != nil {
		return globalTracerProvider.Shutdown(ctx)
	}
	return nil
}
