package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
)

const tracerName = "github.com/spec-kit/support-desk"

// SetupTracing installs an OTLP trace exporter when an endpoint is
// configured. The returned function flushes and stops it.
func SetupTracing(ctx context.Context, app config.AppConfig, cfg config.TelemetryConfig, logger *zap.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if cfg.OTLPEndpoint == "" {
		return noop
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		logger.Warn("otel exporter error", zap.Error(err))
		return noop
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(app.Name),
		semconv.ServiceVersion(app.Version),
		semconv.DeploymentEnvironment(app.Env),
	))
	if err != nil {
		logger.Warn("otel resource error", zap.Error(err))
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	logger.Info("tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))
	return provider.Shutdown
}

// Tracer returns the service tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
