// Copyright 2026 fanjia1024
// OpenTelemetry integration for distributed tracing

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartTurnSpan 开始一轮对话处理 span
func StartTurnSpan(ctx context.Context, sessionID string, privacy bool) (context.Context, trace.Span) {
	tracer := otel.Tracer("assistant-core")
	ctx, span := tracer.Start(ctx, "turn.process",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Bool("turn.privacy", privacy),
		),
	)
	return ctx, span
}

// StartGenerateSpan 开始一次生成后端调用 span
func StartGenerateSpan(ctx context.Context, provider string, round int) (context.Context, trace.Span) {
	tracer := otel.Tracer("assistant-core")
	ctx, span := tracer.Start(ctx, "provider.generate",
		trace.WithAttributes(
			attribute.String("provider.name", provider),
			attribute.Int("loop.round", round),
		),
	)
	return ctx, span
}

// StartCapabilitySpan 开始一次能力调用 span
func StartCapabilitySpan(ctx context.Context, name string) (context.Context, trace.Span) {
	tracer := otel.Tracer("assistant-core")
	ctx, span := tracer.Start(ctx, "capability.invoke",
		trace.WithAttributes(
			attribute.String("capability.name", name),
		),
	)
	return ctx, span
}
