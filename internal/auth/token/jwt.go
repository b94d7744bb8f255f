package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/kasir/internal/auth/domain"
	"github.com/smallbiznis/kasir/internal/clock"
)

const defaultTTL = 12 * time.Hour

type Config struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Leeway time.Duration
}

type sessionClaims struct {
	Role     string `json:"role"`
	OutletID string `json:"outlet_id,omitempty"`
	jwt.RegisteredClaims
}

// JWT verifies and signs HS256 session tokens.
type JWT struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
	parser *jwt.Parser
}

func New(cfg Config, clk clock.Clock) (*JWT, error) {
	if len(cfg.Secret) == 0 {
		return nil, domain.ErrMissingSecret
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(clk.Now),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return &JWT{
		secret: cfg.Secret,
		issuer: issuer,
		ttl:    ttl,
		clock:  clk,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Verify implements domain.Verifier. Every failure wraps ErrUnauthenticated.
func (j *JWT) Verify(_ context.Context, raw string) (domain.Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Claims{}, fmt.Errorf("%w: missing credential", domain.ErrUnauthenticated)
	}

	var parsed sessionClaims
	_, err := j.parser.ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return j.secret, nil
	})
	if err != nil {
		return domain.Claims{}, fmt.Errorf("%w: %s", domain.ErrUnauthenticated, reason(err))
	}

	userID, err := snowflake.ParseString(parsed.Subject)
	if err != nil || userID == 0 {
		return domain.Claims{}, fmt.Errorf("%w: invalid subject", domain.ErrUnauthenticated)
	}
	role, err := domain.ParseRole(parsed.Role)
	if err != nil {
		return domain.Claims{}, fmt.Errorf("%w: invalid role", domain.ErrUnauthenticated)
	}

	var outletID snowflake.ID
	if parsed.OutletID != "" {
		outletID, err = snowflake.ParseString(parsed.OutletID)
		if err != nil {
			return domain.Claims{}, fmt.Errorf("%w: invalid outlet", domain.ErrUnauthenticated)
		}
	}
	if outletID == 0 && !role.Has(domain.CapBypassOutletScope) {
		return domain.Claims{}, fmt.Errorf("%w: missing outlet", domain.ErrUnauthenticated)
	}

	claims := domain.Claims{
		UserID:   userID,
		Role:     role,
		OutletID: outletID,
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time.UTC()
	}
	return claims, nil
}

// Sign issues a token for claims. A zero ExpiresAt uses the configured TTL.
func (j *JWT) Sign(claims domain.Claims) (string, error) {
	if claims.UserID == 0 || !claims.Role.Valid() {
		return "", domain.ErrInvalidRole
	}
	now := j.clock.Now()
	expiresAt := claims.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(j.ttl)
	}

	payload := sessionClaims{
		Role: string(claims.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID.String(),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if claims.OutletID != 0 {
		payload.OutletID = claims.OutletID.String()
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(j.secret)
}

func reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "invalid signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "invalid issuer"
	default:
		return "invalid token"
	}
}
