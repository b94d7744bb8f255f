package authorization

import (
	"context"
	"errors"

	authdomain "github.com/smallbiznis/kasir/internal/auth/domain"
)

var (
	ErrInvalidRole   = errors.New("invalid_role")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

// Service decides whether a role may perform an action on an object.
// Outlet scoping is checked separately on the claims.
type Service interface {
	Authorize(ctx context.Context, role authdomain.Role, object string, action string) error
}
