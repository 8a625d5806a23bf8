// Package otelmetric exports epoch metrics through OpenTelemetry.
package otelmetric

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/crimson-sun/logkey/internal/model"
)

const (
	scopeName       = "github.com/crimson-sun/logkey"
	defaultInterval = 15 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Option configures the OTLP exporter.
type Option func(*options)

type options struct {
	insecure bool
	interval time.Duration
	service  string
}

// WithInsecure disables TLS for the OTLP connection.
func WithInsecure() Option {
	return func(o *options) { o.insecure = true }
}

// WithInterval sets the export period. Default: 15s.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithServiceName sets the service.name resource attribute. Default: logkey.
func WithServiceName(name string) Option {
	return func(o *options) { o.service = name }
}

// Output records each epoch as OpenTelemetry instruments: the loss as a
// gauge, epochs and samples as counters, and epoch wall time as a histogram.
type Output struct {
	provider *sdkmetric.MeterProvider
	loss     metric.Float64Gauge
	epochs   metric.Int64Counter
	samples  metric.Int64Counter
	duration metric.Float64Histogram
}

// New exports to an OTLP/gRPC collector at endpoint (host:port).
func New(ctx context.Context, endpoint string, opts ...Option) (*Output, error) {
	o := options{interval: defaultInterval, service: "logkey"}
	for _, opt := range opts {
		opt(&o)
	}
	expOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint)}
	if o.insecure {
		expOpts = append(expOpts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, expOpts...)
	if err != nil {
		return nil, fmt.Errorf("otel output: create exporter: %w", err)
	}
	return NewWithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(o.interval)), o.service)
}

// NewWithReader records into a caller-supplied reader.
func NewWithReader(reader sdkmetric.Reader, service string) (*Output, error) {
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", service))),
		sdkmetric.WithReader(reader),
	)
	meter := provider.Meter(scopeName)

	out := &Output{provider: provider}
	var err error
	if out.loss, err = meter.Float64Gauge("logkey.train.loss",
		metric.WithDescription("Mean training loss of the last completed epoch"),
	); err != nil {
		return nil, fmt.Errorf("otel output: %w", err)
	}
	if out.epochs, err = meter.Int64Counter("logkey.train.epochs",
		metric.WithDescription("Completed training epochs"),
		metric.WithUnit("{epoch}"),
	); err != nil {
		return nil, fmt.Errorf("otel output: %w", err)
	}
	if out.samples, err = meter.Int64Counter("logkey.train.samples",
		metric.WithDescription("Training samples processed"),
		metric.WithUnit("{sample}"),
	); err != nil {
		return nil, fmt.Errorf("otel output: %w", err)
	}
	if out.duration, err = meter.Float64Histogram("logkey.train.epoch.duration",
		metric.WithDescription("Epoch wall time"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("otel output: %w", err)
	}
	return out, nil
}

func (o *Output) Write(ctx context.Context, m model.EpochMetric) error {
	attrs := metric.WithAttributes(
		attribute.String("run_id", m.RunID),
		attribute.String("tag", m.Tag),
	)
	o.loss.Record(ctx, m.Loss, attrs)
	o.epochs.Add(ctx, 1, attrs)
	o.samples.Add(ctx, int64(m.Samples), attrs)
	o.duration.Record(ctx, m.Duration.Seconds(), attrs)
	return nil
}

// Close flushes pending data and shuts the provider down.
func (o *Output) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := o.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("otel output: shutdown: %w", err)
	}
	return nil
}
