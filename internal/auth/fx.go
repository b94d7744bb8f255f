package auth

import (
	"github.com/smallbiznis/kasir/internal/auth/domain"
	"github.com/smallbiznis/kasir/internal/auth/token"
	"github.com/smallbiznis/kasir/internal/clock"
	"github.com/smallbiznis/kasir/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(NewJWT),
	fx.Provide(func(j *token.JWT) domain.Verifier { return j }),
)

func NewJWT(cfg config.Config, clk clock.Clock) (*token.JWT, error) {
	return token.New(token.Config{
		Secret: []byte(cfg.AuthJWTSecret),
		Issuer: cfg.AuthJWTIssuer,
		TTL:    cfg.AuthJWTTokenTTL,
	}, clk)
}
