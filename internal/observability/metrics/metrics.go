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

// Metrics exposes application-level instruments.
type Metrics struct {
	webhooksReceived metric.Int64Counter
	webhooksRejected metric.Int64Counter
	ordersSynced     metric.Int64Counter
	inventoryPushes  metric.Int64Counter
	posCalls         metric.Int64Counter
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
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "posbridge"
	}
	meter := provider.Meter(name)

	webhooksReceived, err := meter.Int64Counter("posbridge_webhooks_received_total")
	if err != nil {
		return nil, err
	}
	webhooksRejected, err := meter.Int64Counter("posbridge_webhooks_rejected_total")
	if err != nil {
		return nil, err
	}
	ordersSynced, err := meter.Int64Counter("posbridge_orders_synced_total")
	if err != nil {
		return nil, err
	}
	inventoryPushes, err := meter.Int64Counter("posbridge_inventory_pushes_total")
	if err != nil {
		return nil, err
	}
	posCalls, err := meter.Int64Counter("posbridge_pos_calls_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		webhooksReceived: webhooksReceived,
		webhooksRejected: webhooksRejected,
		ordersSynced:     ordersSynced,
		inventoryPushes:  inventoryPushes,
		posCalls:         posCalls,
	}, nil
}

// RecordWebhookReceived increments accepted webhook deliveries.
func (m *Metrics) RecordWebhookReceived(ctx context.Context, topic string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("topic", strings.TrimSpace(topic)))
	m.webhooksReceived.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordWebhookRejected increments rejected webhook deliveries.
func (m *Metrics) RecordWebhookRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.webhooksRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOrderSynced increments order sync attempts by final state.
func (m *Metrics) RecordOrderSynced(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.ordersSynced.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInventoryPush increments reconciliation results by bucket.
func (m *Metrics) RecordInventoryPush(ctx context.Context, bucket string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("bucket", strings.TrimSpace(bucket)))
	m.inventoryPushes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPOSCall increments POS protocol calls by operation and result.
func (m *Metrics) RecordPOSCall(ctx context.Context, operation, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.posCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"topic":       {},
	"reason":      {},
	"outcome":     {},
	"bucket":      {},
	"operation":   {},
	"result":      {},
	"endpoint":    {},
	"status_code": {},
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
