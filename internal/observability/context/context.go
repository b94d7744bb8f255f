package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type outletIDKey struct{}
type actorKey struct{}

type actor struct {
	typ string
	id  string
}

// WithRequestID stores the request correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithOutletID stores the outlet id used for log correlation.
func WithOutletID(ctx context.Context, outletID string) context.Context {
	return context.WithValue(ctx, outletIDKey{}, strings.TrimSpace(outletID))
}

func OutletIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(outletIDKey{}).(string)
	return value
}

// WithActor stores the authenticated actor for log correlation.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{
		typ: strings.TrimSpace(actorType),
		id:  strings.TrimSpace(actorID),
	})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return value.typ, value.id
}
