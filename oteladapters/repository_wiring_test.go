package oteladapters_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
	"github.com/AntonStoeckl/datamapper-go/datamapper/memengine"
	"github.com/AntonStoeckl/datamapper-go/example/shop"
	"github.com/AntonStoeckl/datamapper-go/oteladapters"
)

func Test_Repository_WithOpenTelemetryAdapters(t *testing.T) {
	// arrange
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	var buf bytes.Buffer

	storage, err := memengine.NewStorage([]string{shop.ColID}, memengine.WithAutoIncrement(shop.ColID))
	require.NoError(t, err)

	repository, err := datamapper.NewRepository(
		datamapper.NewSession(),
		shop.NewOrderMapper(),
		storage,
		datamapper.WithTracing(givenTracingCollector(exporter)),
		datamapper.WithMetrics(givenMetricsCollector(reader)),
		datamapper.WithContextualLogger(oteladapters.NewSlogBridgeLoggerWithHandler(slog.NewJSONHandler(&buf, nil))),
	)
	require.NoError(t, err)

	// act
	err = repository.Save(ctx, shop.NewOrder(100, time.Now()))

	// assert
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "datamapper.save", spans[0].Name)
	assertSpanHasAttribute(t, spans[0], "role", shop.KindOrder)

	histogram := collectMetric(t, reader, datamapper.MetricOperationDuration).Data.(metricdata.Histogram[float64])
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)

	assert.Contains(t, buf.String(), "repository operation: entity inserted")
}
