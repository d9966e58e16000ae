package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/curlew-io/curlew/engine"

// Tracer provides OpenTelemetry instrumentation for transfers: one
// client span per perform, annotated with standard HTTP attributes.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer with the given tracer provider.
// If provider is nil, the global tracer provider is used.
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	return &Tracer{tracer: provider.Tracer(instrumentationName)}
}

// start opens a span for one transfer and returns the updated context
// plus a completion func recording the result.
func (t *Tracer) start(ctx context.Context, method, url string) (context.Context, func(Code, int)) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("HTTP %s", method),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", url),
	)

	return ctx, func(code Code, status int) {
		defer span.End()

		if code != CodeOK {
			span.SetStatus(codes.Error, code.String())
			return
		}

		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= 400 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
	}
}
