// Package telemetry configures OpenTelemetry tracing for the gateway.
package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.25.0"
)

const defaultServiceName = "guarantee-gateway"

// Config selects where spans go. An empty Endpoint keeps spans in a local
// provider with no exporter.
type Config struct {
	ServiceName string
	Endpoint    string
	Insecure    bool
	Timeout     time.Duration
}

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

// Init installs the global tracer provider and propagator.
func Init(ctx context.Context, cfg Config, logger *slog.Logger) (Shutdown, error) {
	if logger == nil {
		logger = slog.Default()
	}
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = defaultServiceName
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName(name)),
	)
	if err != nil {
		logger.Warn("otel resource", slog.Any("error", err))
		if res == nil {
			res = resource.Default()
		}
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint != "" {
		exporter, err := newExporter(ctx, endpoint, cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Info("otlp trace exporter enabled", slog.String("endpoint", endpoint))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	return tp.Shutdown, nil
}

// newExporter accepts either host:port or a full URL. A URL without a path
// posts to the default /v1/traces.
func newExporter(ctx context.Context, endpoint string, cfg Config) (*otlptrace.Exporter, error) {
	insecure := cfg.Insecure
	var opts []otlptracehttp.Option
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(u.Host))
		if u.Path != "" && u.Path != "/" {
			opts = append(opts, otlptracehttp.WithURLPath(u.Path))
		}
		insecure = insecure || u.Scheme == "http"
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(cfg.Timeout))
	}
	return otlptracehttp.New(ctx, opts...)
}

// HTTPMiddleware instruments inbound HTTP handlers.
func HTTPMiddleware(operation string) func(http.Handler) http.Handler {
	if strings.TrimSpace(operation) == "" {
		operation = defaultServiceName
	}
	return otelhttp.NewMiddleware(operation)
}
