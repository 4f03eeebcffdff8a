package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/datamapper-go/oteladapters"
)

func Test_TracingCollector_StartSpan_And_FinishSpan_Success(t *testing.T) {
	// arrange
	exporter := tracetest.NewInMemoryExporter()
	collector := givenTracingCollector(exporter)

	// act
	ctx, spanCtx := collector.StartSpan(context.Background(), "datamapper.save", map[string]string{"role": "Order"})
	collector.FinishSpan(spanCtx, "success", map[string]string{"changed_fields": "2"})

	// assert
	assert.NotNil(t, ctx)
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "datamapper.save", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assertSpanHasAttribute(t, spans[0], "role", "Order")
	assertSpanHasAttribute(t, spans[0], "changed_fields", "2")
}

func Test_TracingCollector_FinishSpan_Error(t *testing.T) {
	// arrange
	exporter := tracetest.NewInMemoryExporter()
	collector := givenTracingCollector(exporter)
	_, spanCtx := collector.StartSpan(context.Background(), "datamapper.remove", nil)

	// act
	collector.FinishSpan(spanCtx, "error", map[string]string{"error": "connection reset"})

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "operation failed", spans[0].Status.Description)
	assertSpanHasAttribute(t, spans[0], "error", "connection reset")
}

func Test_TracingCollector_When_StatusIsUnknown_RecordsItAsAttribute(t *testing.T) {
	// arrange
	exporter := tracetest.NewInMemoryExporter()
	collector := givenTracingCollector(exporter)
	_, spanCtx := collector.StartSpan(context.Background(), "datamapper.count", nil)

	// act
	collector.FinishSpan(spanCtx, "skipped", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assertSpanHasAttribute(t, spans[0], "status", "skipped")
}

func Test_TracingCollector_StartSpan_NestsUnderTheParentSpan(t *testing.T) {
	// arrange
	exporter := tracetest.NewInMemoryExporter()
	collector := givenTracingCollector(exporter)
	parentCtx, parent := collector.StartSpan(context.Background(), "checkout", nil)

	// act
	_, child := collector.StartSpan(parentCtx, "datamapper.save", nil)
	collector.FinishSpan(child, "success", nil)
	collector.FinishSpan(parent, "success", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

func Test_OTelSpanContext_AddAttribute(t *testing.T) {
	// arrange
	exporter := tracetest.NewInMemoryExporter()
	collector := givenTracingCollector(exporter)
	_, spanCtx := collector.StartSpan(context.Background(), "datamapper.find_all", nil)

	// act
	spanCtx.AddAttribute("rows", "3")
	collector.FinishSpan(spanCtx, "success", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assertSpanHasAttribute(t, spans[0], "rows", "3")
}

func givenTracingCollector(exporter *tracetest.InMemoryExporter) *oteladapters.TracingCollector {
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))

	return oteladapters.NewTracingCollector(provider.Tracer("test"))
}

func assertSpanHasAttribute(t *testing.T, span tracetest.SpanStub, key, expected string) {
	t.Helper()

	for _, attr := range span.Attributes {
		if attr.Key == attribute.Key(key) {
			assert.Equal(t, expected, attr.Value.AsString(), "attribute %s", key)
			return
		}
	}

	t.Errorf("span %s has no attribute %s", span.Name, key)
}
