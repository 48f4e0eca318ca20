package monitor

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"mall/internal/config"
)

// Tracer 链路追踪器
type Tracer struct {
	enabled  bool
	provider *trace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewTracer 创建链路追踪器；启用时注册全局 TracerProvider，服务层通过 otel.Tracer 取用
func NewTracer(cfg config.TracingConfig, environment string) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{tracer: otel.Tracer(cfg.ServiceName)}, nil
	}

	exporter, err := jaeger.New(
		jaeger.WithCollectorEndpoint(
			jaeger.WithEndpoint(cfg.Endpoint),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create jaeger exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.DeploymentEnvironmentKey.String(environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.SampleRate))),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{
		enabled:  true,
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
	}, nil
}

// StartHTTPSpan 开始一个HTTP请求的span，从请求头提取上游追踪上下文
func (t *Tracer) StartHTTPSpan(ctx context.Context, route string, r *http.Request) (context.Context, oteltrace.Span) {
	if !t.enabled {
		return ctx, oteltrace.SpanFromContext(ctx)
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))
	return t.tracer.Start(ctx, fmt.Sprintf("%s %s", r.Method, route),
		oteltrace.WithSpanKind(oteltrace.SpanKindServer),
		oteltrace.WithAttributes(
			semconv.HTTPMethodKey.String(r.Method),
			semconv.HTTPTargetKey.String(route),
			semconv.HTTPUserAgentKey.String(r.UserAgent()),
		),
	)
}

// EndHTTPSpan 记录状态码并结束span
func (t *Tracer) EndHTTPSpan(span oteltrace.Span, status int) {
	if !t.enabled {
		return
	}
	span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
	if status >= http.StatusInternalServerError {
		span.SetStatus(otelcodes.Error, fmt.Sprintf("HTTP %d", status))
	}
	span.End()
}

// Shutdown 关闭追踪器
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.enabled || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// TraceID 获取追踪ID
func TraceID(ctx context.Context) string {
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
