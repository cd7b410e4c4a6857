package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes ledger instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	documentsCreated metric.Int64Counter
	documentsVoided  metric.Int64Counter
	paymentsRecorded metric.Int64Counter
	paymentsReversed metric.Int64Counter
	returnsCreated   metric.Int64Counter
	stockRejections  metric.Int64Counter
	txRetries        metric.Int64Counter
	txDuration       metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)

	return provider, nil
}

// New configures the ledger instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "bookledger"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	var err error
	if m.documentsCreated, err = meter.Int64Counter("bookledger_documents_created_total"); err != nil {
		return nil, err
	}
	if m.documentsVoided, err = meter.Int64Counter("bookledger_documents_voided_total"); err != nil {
		return nil, err
	}
	if m.paymentsRecorded, err = meter.Int64Counter("bookledger_payments_recorded_total"); err != nil {
		return nil, err
	}
	if m.paymentsReversed, err = meter.Int64Counter("bookledger_payments_reversed_total"); err != nil {
		return nil, err
	}
	if m.returnsCreated, err = meter.Int64Counter("bookledger_returns_created_total"); err != nil {
		return nil, err
	}
	if m.stockRejections, err = meter.Int64Counter("bookledger_stock_rejections_total"); err != nil {
		return nil, err
	}
	if m.txRetries, err = meter.Int64Counter("bookledger_tx_retries_total"); err != nil {
		return nil, err
	}
	if m.txDuration, err = meter.Float64Histogram("bookledger_tx_duration_seconds", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) RecordDocumentCreated(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.documentsCreated.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("kind", kind))...))
}

func (m *Metrics) RecordDocumentVoided(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.documentsVoided.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("kind", kind))...))
}

func (m *Metrics) RecordPayment(ctx context.Context, direction, mode string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("direction", direction),
		attribute.String("mode", mode),
	)
	m.paymentsRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordPaymentReversed(ctx context.Context, direction string) {
	if m == nil {
		return
	}
	m.paymentsReversed.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("direction", direction))...))
}

func (m *Metrics) RecordReturn(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.returnsCreated.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("kind", kind))...))
}

// RecordStockRejection counts requests refused for insufficient stock or return limits.
func (m *Metrics) RecordStockRejection(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.stockRejections.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("reason", reason))...))
}

func (m *Metrics) RecordTxRetry(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.txRetries.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("operation", operation))...))
}

func (m *Metrics) ObserveTx(ctx context.Context, operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.txDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"kind":      {},
	"direction": {},
	"mode":      {},
	"reason":    {},
	"operation": {},
	"outcome":   {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
