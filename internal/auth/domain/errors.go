package domain

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidRole     = errors.New("invalid_role")
	ErrMissingSecret   = errors.New("missing_jwt_secret")
)
