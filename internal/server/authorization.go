package server

import (
	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/kasir/internal/auth/domain"
)

func (s *Server) authorizeOutletAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeOutletActionWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// authorizeOutletActionWithContext runs after OutletScope, so the outlet is
// already checked against the claims and only the role policy remains.
func (s *Server) authorizeOutletActionWithContext(c *gin.Context, object string, action string) error {
	claims, ok := authdomain.ClaimsFromContext(c.Request.Context())
	if !ok {
		return authdomain.ErrUnauthenticated
	}
	return s.authz.Authorize(c.Request.Context(), claims.Role, object, action)
}
