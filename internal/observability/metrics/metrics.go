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
	ordersCreated    metric.Int64Counter
	orderTransitions metric.Int64Counter
	paymentsRecorded metric.Int64Counter
	ledgerEntries    metric.Int64Counter
	hubEvictions     metric.Int64Counter
	eventsDropped    metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
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
		name = "kasir"
	}
	meter := provider.Meter(name)

	ordersCreated, err := meter.Int64Counter("kasir_orders_created_total")
	if err != nil {
		return nil, err
	}
	orderTransitions, err := meter.Int64Counter("kasir_order_transitions_total")
	if err != nil {
		return nil, err
	}
	paymentsRecorded, err := meter.Int64Counter("kasir_payments_recorded_total")
	if err != nil {
		return nil, err
	}
	ledgerEntries, err := meter.Int64Counter("kasir_ledger_entries_total")
	if err != nil {
		return nil, err
	}
	hubEvictions, err := meter.Int64Counter("kasir_hub_evictions_total")
	if err != nil {
		return nil, err
	}
	eventsDropped, err := meter.Int64Counter("kasir_events_dropped_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("kasir_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("kasir_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ordersCreated:    ordersCreated,
		orderTransitions: orderTransitions,
		paymentsRecorded: paymentsRecorded,
		ledgerEntries:    ledgerEntries,
		hubEvictions:     hubEvictions,
		eventsDropped:    eventsDropped,
		rateLimitDenied:  rateLimitDenied,
		rateLimitAllowed: rateLimitAllowed,
	}, nil
}

// RecordOrderCreated increments created order counts.
func (m *Metrics) RecordOrderCreated(ctx context.Context, orderType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("order_type", strings.TrimSpace(orderType)))
	m.ordersCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOrderTransition increments order status transition counts.
func (m *Metrics) RecordOrderTransition(ctx context.Context, from, to, trigger string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_status", strings.TrimSpace(from)),
		attribute.String("to_status", strings.TrimSpace(to)),
		attribute.String("trigger", strings.TrimSpace(trigger)),
	)
	m.orderTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPayment increments recorded payment counts.
func (m *Metrics) RecordPayment(ctx context.Context, method, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("method", strings.TrimSpace(method)),
		attribute.String("kind", strings.TrimSpace(kind)),
	)
	m.paymentsRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLedgerEntry increments ledger entry counts.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, sourceType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source_type", strings.TrimSpace(sourceType)))
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordHubEviction increments forced disconnect counts.
func (m *Metrics) RecordHubEviction(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.hubEvictions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEventDropped increments events that a sink could not accept.
func (m *Metrics) RecordEventDropped(ctx context.Context, sink, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("sink", strings.TrimSpace(sink)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.eventsDropped.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
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

// outlet_id is excluded; the outlet set is unbounded.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"order_type":  {},
	"from_status": {},
	"to_status":   {},
	"trigger":     {},
	"method":      {},
	"kind":        {},
	"source_type": {},
	"reason":      {},
	"sink":        {},
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
