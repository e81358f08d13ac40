package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider      *metric.MeterProvider
	meter              otelmetric.Meter
	generationCounter  otelmetric.Int64Counter
	generationDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	generationCounter, _ := meter.Int64Counter(
		"generations.processed",
		otelmetric.WithDescription("Number of generation requests processed"),
	)

	generationDuration, _ := meter.Float64Histogram(
		"generations.duration",
		otelmetric.WithDescription("End-to-end generation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:      provider,
		meter:              meter,
		generationCounter:  generationCounter,
		generationDuration: generationDuration,
	}
}

func (o *Observability) RecordGeneration(ctx context.Context, state string) {
	if o.generationCounter != nil {
		o.generationCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("state", state),
		))
	}
}

func (o *Observability) RecordGenerationDuration(ctx context.Context, duration time.Duration, state string) {
	if o.generationDuration != nil {
		o.generationDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("state", state),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
