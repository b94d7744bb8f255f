package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Claims is the verified identity of the caller, rebuilt on every request.
type Claims struct {
	UserID    snowflake.ID
	Role      Role
	OutletID  snowflake.ID
	ExpiresAt time.Time
}

// CanAccessOutlet reports whether the caller may act on outletID.
func (c Claims) CanAccessOutlet(outletID snowflake.ID) bool {
	if c.Role.Has(CapBypassOutletScope) {
		return true
	}
	return outletID != 0 && c.OutletID == outletID
}

// Verifier checks a raw bearer credential and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, raw string) (Claims, error)
}

type claimsKey struct{}

func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	if ctx == nil {
		return Claims{}, false
	}
	claims, ok := ctx.Value(claimsKey{}).(Claims)
	return claims, ok
}
