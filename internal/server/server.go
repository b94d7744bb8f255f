package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/smallbiznis/kasir/internal/auth"
	authdomain "github.com/smallbiznis/kasir/internal/auth/domain"
	"github.com/smallbiznis/kasir/internal/authorization"
	"github.com/smallbiznis/kasir/internal/catalog"
	"github.com/smallbiznis/kasir/internal/config"
	"github.com/smallbiznis/kasir/internal/events"
	"github.com/smallbiznis/kasir/internal/ledger"
	"github.com/smallbiznis/kasir/internal/observability"
	obslogger "github.com/smallbiznis/kasir/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/kasir/internal/observability/metrics"
	obstracing "github.com/smallbiznis/kasir/internal/observability/tracing"
	"github.com/smallbiznis/kasir/internal/order"
	orderdomain "github.com/smallbiznis/kasir/internal/order/domain"
	"github.com/smallbiznis/kasir/internal/payment"
	paymentdomain "github.com/smallbiznis/kasir/internal/payment/domain"
	"github.com/smallbiznis/kasir/internal/ratelimit"
	"github.com/smallbiznis/kasir/internal/realtime"
	"github.com/smallbiznis/kasir/internal/redisx"
	"github.com/smallbiznis/kasir/internal/tax"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	auth.Module,
	authorization.Module,
	catalog.Module,
	tax.Module,
	ledger.Module,
	order.Module,
	payment.Module,
	redisx.Module,
	events.Module,
	realtime.Module,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	Config      config.Config
	ObsConfig   observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func NewEngine(p EngineParams) *gin.Engine {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(p.Config.CORSAllowedOrigins))
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           p.ObsConfig.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(p.HTTPMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// corsMiddleware answers preflight requests itself so they never reach the
// auth gate.
func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           600,
	})
	return func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)
		if ctx.Request.Method == http.MethodOptions && ctx.GetHeader("Access-Control-Request-Method") != "" {
			ctx.AbortWithStatus(http.StatusNoContent)
		}
	}
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	verifier   authdomain.Verifier
	authz      authorization.Service
	orderSvc   orderdomain.Service
	paymentSvc paymentdomain.Service
	feed       *events.Feed
	hub        *realtime.Hub
	limiter    *ratelimit.OrderLimiter
	obsMetrics *obsmetrics.Metrics
	upgrader   websocket.Upgrader
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Verifier   authdomain.Verifier
	Authz      authorization.Service
	OrderSvc   orderdomain.Service
	PaymentSvc paymentdomain.Service
	Feed       *events.Feed
	Hub        *realtime.Hub
	Limiter    *ratelimit.OrderLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		verifier:   p.Verifier,
		authz:      p.Authz,
		orderSvc:   p.OrderSvc,
		paymentSvc: p.PaymentSvc,
		feed:       p.Feed,
		hub:        p.Hub,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
		upgrader:   newUpgrader(p.Cfg.CORSAllowedOrigins),
	}
}

func (s *Server) RegisterRoutes() {
	s.registerAPIRoutes()
	s.registerSocketRoutes()
}

func (s *Server) registerAPIRoutes() {
	outlet := s.engine.Group("/api/outlets/:outlet_id")
	outlet.Use(s.Authenticate(), s.OutletScope())

	// -------- Orders --------
	outlet.POST("/orders", s.authorizeOutletAction(authorization.ObjectOrder, authorization.ActionOrderCreate), s.OrderCreateRateLimit(), s.CreateOrder)
	outlet.GET("/orders", s.authorizeOutletAction(authorization.ObjectOrder, authorization.ActionOrderView), s.ListOrders)
	outlet.GET("/orders/:order_id", s.authorizeOutletAction(authorization.ObjectOrder, authorization.ActionOrderView), s.GetOrder)
	outlet.POST("/orders/:order_id/status", s.authorizeOutletAction(authorization.ObjectOrder, authorization.ActionOrderStatus), s.UpdateOrderStatus)
	outlet.POST("/orders/:order_id/cancel", s.authorizeOutletAction(authorization.ObjectOrder, authorization.ActionOrderCancel), s.CancelOrder)
	outlet.POST("/orders/:order_id/items/:item_id/kitchen-status", s.authorizeOutletAction(authorization.ObjectOrderItem, authorization.ActionOrderKitchen), s.UpdateItemKitchenStatus)

	// -------- Payments --------
	outlet.POST("/orders/:order_id/payments", s.authorizeOutletAction(authorization.ObjectPayment, authorization.ActionPaymentAdd), s.PaymentLock(), s.AddPayment)
	outlet.GET("/orders/:order_id/payments", s.authorizeOutletAction(authorization.ObjectPayment, authorization.ActionPaymentView), s.ListPayments)
	outlet.POST("/orders/:order_id/payments/:payment_id/refund", s.authorizeOutletAction(authorization.ObjectPayment, authorization.ActionPaymentRefund), s.PaymentLock(), s.RefundPayment)

	// -------- Events --------
	outlet.GET("/events", s.authorizeOutletAction(authorization.ObjectEvent, authorization.ActionEventView), s.PollEvents)
}

func (s *Server) registerSocketRoutes() {
	ws := s.engine.Group("/ws/outlets/:outlet_id")
	ws.Use(s.AuthenticateSocket(), s.OutletScope())
	ws.GET("/orders", s.authorizeOutletAction(authorization.ObjectEvent, authorization.ActionEventView), s.ServeOrderSocket)
}
