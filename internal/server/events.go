package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/smallbiznis/kasir/internal/events"
	"github.com/smallbiznis/kasir/internal/observability/logger"
	"github.com/smallbiznis/kasir/internal/outletcontext"
	"go.uber.org/zap"
)

type pollEventsResponse struct {
	Events    []events.Event `json:"events"`
	LastSeq   uint64         `json:"last_seq"`
	Truncated bool           `json:"truncated"`
}

// PollEvents is the fallback for clients that cannot hold a socket open.
// Truncated tells the caller some events after its cursor were evicted and
// it should reload orders instead of replaying.
func (s *Server) PollEvents(c *gin.Context) {
	after, err := parseOptionalUint64(c.Query("after"))
	if err != nil {
		AbortWithError(c, newValidationError("after", "invalid_after", "invalid cursor"))
		return
	}
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	outletID, _ := outletcontext.OutletIDFromContext(c.Request.Context())
	items, truncated := s.feed.Since(outletID, after, limit)

	last := after
	if len(items) > 0 {
		last = items[len(items)-1].Seq
	}

	c.JSON(http.StatusOK, gin.H{"data": pollEventsResponse{
		Events:    items,
		LastSeq:   last,
		Truncated: truncated,
	}})
}

func (s *Server) ServeOrderSocket(c *gin.Context) {
	ctx := c.Request.Context()
	outletID, _ := outletcontext.OutletIDFromContext(ctx)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already replied to the client.
		logger.FromContext(ctx).Debug("websocket upgrade failed", zap.Error(err))
		c.Abort()
		return
	}

	if _, err := s.hub.Attach(conn, outletID); err != nil {
		logger.FromContext(ctx).Warn("websocket attach failed", zap.Error(err))
	}
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := len(allowed) == 0
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			allowAll = true
		}
		set[strings.ToLower(origin)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
