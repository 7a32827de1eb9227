package gateway

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InitTracer wires an OTLP-over-HTTP exporter into a global TracerProvider
// tagged with service/version resource attributes, the shape
// hanpama-protograph's internal/otel.Setup uses, adapted from a gRPC
// exporter to otlptracehttp (the teacher's declared dependency). Returns a
// shutdown func that flushes and stops the provider; call it during the
// gateway's graceful shutdown.
func InitTracer(ctx context.Context, serviceName, serviceVersion string) (func(context.Context) error, error) {
	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// otelTransport wraps http.DefaultTransport with otelhttp so outbound
// subgraph fetches (federation/executor) get a span nested under
// whatever span gateway.Gateway.ServeHTTP started.
func otelTransport() http.RoundTripper {
	return otelhttp.NewTransport(http.DefaultTransport)
}
