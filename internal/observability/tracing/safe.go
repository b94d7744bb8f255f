package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var allowedSpanKeys = map[attribute.Key]struct{}{
	"http.method":             {},
	"http.route":              {},
	"http.status_code":        {},
	"http.server_duration_ms": {},
	"request_id":              {},
	"outlet_id":               {},
	"order_id":                {},
	"order.status":            {},
	"payment.method":          {},
	"event.type":              {},
}

// ExtractContext pulls the remote span context from carrier headers.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// SafeAttributes drops keys outside the allow-list so tokens and amounts never reach spans.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedSpanKeys[attr.Key]; !ok {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces err to its message with credentials removed.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, marker := range []string{"bearer ", "access_token=", "password"} {
		if idx := strings.Index(lower, marker); idx >= 0 {
			msg = msg[:idx] + "[redacted]"
			break
		}
	}
	return errors.New(msg)
}
