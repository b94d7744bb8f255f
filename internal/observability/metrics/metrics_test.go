package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("outlet_id", "123"),
		attribute.String("method", "CASH"),
		attribute.String("order_id", "456"),
		attribute.String("reason", "buffer_full"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "method" && attrs[1].Key != "method" {
		t.Fatalf("expected method to be retained")
	}
	if attrs[0].Key != "reason" && attrs[1].Key != "reason" {
		t.Fatalf("expected reason to be retained")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordOrderCreated(ctx, "DINE_IN")
	m.RecordPayment(ctx, "CASH", "payment")
	m.RecordHubEviction(ctx, "buffer_full")
	m.RecordEventDropped(ctx, "hub", "queue_full")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "kasir-test"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordOrderTransition(context.Background(), "READY", "COMPLETED", "payment")
}
