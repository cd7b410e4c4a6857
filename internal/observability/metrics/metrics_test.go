package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("kind", "INVOICE"),
		attribute.String("textbook_id", "456"),
		attribute.String("reason", "insufficient_stock"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "textbook_id" {
			t.Fatalf("textbook_id must be dropped")
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordDocumentCreated(context.Background(), "INVOICE")
	m.ObserveTx(context.Background(), "create_document", "ok", time.Millisecond)
}

func TestCountersAreExported(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "test"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordDocumentCreated(ctx, "INVOICE")
	m.RecordDocumentCreated(ctx, "INVOICE")
	m.RecordStockRejection(ctx, "insufficient_stock")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[metric.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), totals["bookledger_documents_created_total"])
	assert.Equal(t, int64(1), totals["bookledger_stock_rejections_total"])
}
