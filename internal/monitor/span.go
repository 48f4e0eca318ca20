package monitor

import (
	"context"

	otelcodes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// EndSpan records err on the span and ends it; used as `defer func() { monitor.EndSpan(span, err) }()`
func EndSpan(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, Result(err))
	}
	span.End()
}

// SpanFromContext returns the active span
func SpanFromContext(ctx context.Context) oteltrace.Span {
	return oteltrace.SpanFromContext(ctx)
}
