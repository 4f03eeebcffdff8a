package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
)

const statusAttribute = "status"

// TracingCollector implements datamapper.TracingCollector with an OpenTelemetry tracer.
// The context returned by StartSpan carries the span, so SQL issued by the storage and
// records logged through SlogBridgeLogger are correlated with it.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a tracing collector using tracer, usually obtained from a TracerProvider.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, datamapper.SpanContext) {
	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attributes(attrs)...))

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan sets the final attributes and status, then ends the span.
// Span contexts not created by this collector are ignored.
func (t *TracingCollector) FinishSpan(spanCtx datamapper.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	otelSpanCtx.span.SetAttributes(attributes(attrs)...)
	otelSpanCtx.SetStatus(status)
	otelSpanCtx.span.End()
}

var _ datamapper.TracingCollector = (*TracingCollector)(nil)

// OTelSpanContext implements datamapper.SpanContext by wrapping an OpenTelemetry span.
type OTelSpanContext struct {
	span trace.Span
}

// SetStatus maps datamapper.StatusSuccess to codes.Ok and datamapper.StatusError to codes.Error.
// Any other status is recorded as a "status" attribute.
func (s *OTelSpanContext) SetStatus(status string) {
	switch status {
	case datamapper.StatusSuccess:
		s.span.SetStatus(codes.Ok, "")
	case datamapper.StatusError:
		s.span.SetStatus(codes.Error, "operation failed")
	default:
		s.span.SetAttributes(attribute.String(statusAttribute, status))
	}
}

func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var _ datamapper.SpanContext = (*OTelSpanContext)(nil)
