package outletcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// OutletContextKey is the request context key for the outlet named by the route.
type OutletContextKey struct{}

// WithOutletID stores the outlet ID in the context.
func WithOutletID(ctx context.Context, outletID snowflake.ID) context.Context {
	return context.WithValue(ctx, OutletContextKey{}, outletID)
}

// OutletIDFromContext returns the outlet ID from context, if set.
func OutletIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	switch typed := ctx.Value(OutletContextKey{}).(type) {
	case snowflake.ID:
		return typed, typed != 0
	case int64:
		return snowflake.ID(typed), typed != 0
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil && parsed != 0 {
			return parsed, true
		}
	}
	return 0, false
}
