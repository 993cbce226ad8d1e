package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

var globalMeterProvider *sdkmetric.MeterProvider

// InitMetrics initializes OpenTelemetry metrics with Prometheus export.
func InitMetrics(serviceName string) (*sdkmetric.MeterProvider, error) {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)
	globalMeterProvider = provider
	return provider, nil
}

// GetMeter returns a meter from the current global meter provider.
func GetMeter(name string) metric.Meter {
	return otel.Meter(name)
}

// OptimizerMetrics tracks the counters and histograms exported while an
// optimizer run progresses.
type OptimizerMetrics struct {
	iterationCounter  metric.Int64Counter
	evaluationCounter metric.Int64Counter
	evalQueueWait     metric.Float64Histogram
	surrogateTrainDur metric.Float64Histogram
}

// NewOptimizerMetrics creates the metric instruments used by the optimizer
// loop and evaluator manager.
func NewOptimizerMetrics() (*OptimizerMetrics, error) {
	meter := GetMeter("mfbo.optimizer")

	iterationCounter, err := meter.Int64Counter(
		"mfbo.iterations",
		metric.WithDescription("Total number of completed optimizer iterations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create iteration counter: %w", err)
	}

	evaluationCounter, err := meter.Int64Counter(
		"mfbo.evaluations",
		metric.WithDescription("Total number of configuration evaluations dispatched"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluation counter: %w", err)
	}

	evalQueueWait, err := meter.Float64Histogram(
		"mfbo.evaluator.queue_wait",
		metric.WithDescription("Time spent waiting for a free evaluator slot"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue wait histogram: %w", err)
	}

	surrogateTrainDur, err := meter.Float64Histogram(
		"mfbo.surrogate.train_duration",
		metric.WithDescription("Surrogate training duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create surrogate training histogram: %w", err)
	}

	return &OptimizerMetrics{
		iterationCounter:  iterationCounter,
		evaluationCounter: evaluationCounter,
		evalQueueWait:     evalQueueWait,
		surrogateTrainDur: surrogateTrainDur,
	}, nil
}

// RecordIteration increments the completed-iteration counter.
func (m *OptimizerMetrics) RecordIteration(ctx context.Context, taskID string) {
	m.iterationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("task_id", taskID)))
}

// RecordEvaluation increments the evaluation counter with an outcome label.
func (m *OptimizerMetrics) RecordEvaluation(ctx context.Context, outcome string) {
	m.evaluationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordQueueWait records time spent blocked on an evaluator slot.
func (m *OptimizerMetrics) RecordQueueWait(ctx context.Context, ms float64) {
	m.evalQueueWait.Record(ctx, ms)
}

// RecordSurrogateTrainDuration records surrogate retraining latency.
func (m *OptimizerMetrics) RecordSurrogateTrainDuration(ctx context.Context, ms float64) {
	m.surrogateTrainDur.Record(ctx, ms)
}

// ShutdownMetrics gracefully shuts down the meter provider.
func ShutdownMetrics(ctx context.Context) error {
	if globalMeterProvider != nil {
		return globalMeterProvider.Shutdown(ctx)
	}
	return nil
}
