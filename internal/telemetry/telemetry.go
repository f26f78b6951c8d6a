// Package telemetry wires the global OpenTelemetry trace provider for the
// video pipeline. Tracing is opt-in: without an OTLP endpoint the service
// runs untraced.
package telemetry

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	endpointEnv   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	sampleRateEnv = "TRACE_SAMPLE_RATE"

	defaultSampleRate = 0.1
	exportTimeout     = 3 * time.Second
	setupTimeout      = 5 * time.Second
)

func noopShutdown(context.Context) error { return nil }

// Init installs the tracer provider and W3C propagators. The returned
// shutdown flushes pending spans; it is safe to call even when tracing was
// never enabled. Exporter failures are swallowed so a broken collector
// cannot keep the service from starting.
func Init(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	endpoint := strings.TrimSpace(os.Getenv(endpointEnv))
	if endpoint == "" {
		return noopShutdown, nil
	}
	// The HTTP exporter wants host:port without a scheme.
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")

	setupCtx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	exporter, err := otlptracehttp.New(setupCtx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithTimeout(exportTimeout),
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{Enabled: false}),
	)
	if err != nil {
		return noopShutdown, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate()))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return provider.Shutdown, nil
}

// sampleRate reads TRACE_SAMPLE_RATE as a ratio in [0,1]. Out-of-range or
// unparsable values fall back to the default.
func sampleRate() float64 {
	raw := strings.TrimSpace(os.Getenv(sampleRateEnv))
	if raw == "" {
		return defaultSampleRate
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate < 0 || rate > 1 {
		return defaultSampleRate
	}
	return rate
}
