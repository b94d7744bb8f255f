package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/kasir/internal/auth/domain"
	obscontext "github.com/smallbiznis/kasir/internal/observability/context"
	"github.com/smallbiznis/kasir/internal/observability/logger"
	"github.com/smallbiznis/kasir/internal/outletcontext"
	"go.uber.org/zap"
)

const (
	accessTokenQuery = "access_token"
	bearerPrefix     = "bearer "
)

// Authenticate verifies the bearer session token on every API request.
func (s *Server) Authenticate() gin.HandlerFunc {
	return s.authenticate(false)
}

// AuthenticateSocket also accepts the access_token query parameter, since
// browsers cannot set headers on a websocket handshake.
func (s *Server) AuthenticateSocket() gin.HandlerFunc {
	return s.authenticate(true)
}

func (s *Server) authenticate(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" && allowQuery {
			raw = strings.TrimSpace(c.Query(accessTokenQuery))
		}
		if raw == "" {
			AbortWithError(c, authdomain.ErrUnauthenticated)
			return
		}

		claims, err := s.verifier.Verify(c.Request.Context(), raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := authdomain.WithClaims(c.Request.Context(), claims)
		ctx = obscontext.WithActor(ctx, strings.ToLower(claims.Role.String()), claims.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OutletScope binds the :outlet_id path segment to the request once the
// caller is allowed to act on it.
func (s *Server) OutletScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authdomain.ClaimsFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, authdomain.ErrUnauthenticated)
			return
		}

		outletID, err := parseSnowflakeParam(c.Param("outlet_id"))
		if err != nil {
			AbortWithError(c, newValidationError("outlet_id", "invalid_outlet_id", "invalid outlet id"))
			return
		}
		if !claims.CanAccessOutlet(outletID) {
			logger.FromContext(c.Request.Context()).Warn("outlet access denied",
				zap.String("requested_outlet_id", outletID.String()),
				zap.String("role", claims.Role.String()),
			)
			AbortWithError(c, authdomain.ErrForbidden)
			return
		}

		ctx := outletcontext.WithOutletID(c.Request.Context(), outletID)
		ctx = obscontext.WithOutletID(ctx, outletID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) OrderCreateRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		outletID, _ := outletcontext.OutletIDFromContext(ctx)

		res, err := s.limiter.AllowOrderCreate(ctx, outletID)
		if err != nil {
			logger.FromContext(ctx).Warn("order create rate limit check failed", zap.Error(err))
		}
		if res != nil && !res.Allowed {
			retry := int(res.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

// PaymentLock keeps two tills from tendering the same order concurrently.
func (s *Server) PaymentLock() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		release, ok, err := s.limiter.LockPayment(ctx, strings.TrimSpace(c.Param("order_id")))
		if err != nil {
			logger.FromContext(ctx).Warn("payment lock unavailable", zap.Error(err))
		}
		if !ok {
			c.Header("Retry-After", "1")
			AbortWithError(c, ErrPaymentInProgress)
			return
		}
		defer release()
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}
