// Package telemetry configures OpenTelemetry tracing for the service.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

type Options struct {
	ServiceName string
	// Endpoint is the OTLP gRPC collector address. Tracing is disabled when
	// it is empty.
	Endpoint    string
	Insecure    bool
	SampleRatio float64
	Logger      *zap.Logger
}

type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// Setup installs the global tracer provider and W3C propagators. Exporter
// errors are logged and leave tracing disabled; they never stop the service.
func Setup(ctx context.Context, opts Options) ShutdownFunc {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if opts.Endpoint == "" {
		return noop
	}

	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		logger.Warn("otel exporter unavailable", zap.String("endpoint", opts.Endpoint), zap.Error(err))
		return noop
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(opts.ServiceName)))
	if err != nil {
		logger.Warn("otel resource error", zap.Error(err))
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(opts.SampleRatio)))),
	)
	otel.SetTracerProvider(provider)
	logger.Info("tracing enabled", zap.String("endpoint", opts.Endpoint))
	return provider.Shutdown
}

func sampleRatio(ratio float64) float64 {
	switch {
	case ratio <= 0:
		return 0
	case ratio > 1:
		return 1
	default:
		return ratio
	}
}
