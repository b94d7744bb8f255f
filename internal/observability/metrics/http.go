package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics exposes Prometheus request instruments scraped from /metrics.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers request instruments on the default registerer.
func NewHTTPMetrics() *HTTPMetrics {
	return NewHTTPMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewHTTPMetricsWithRegisterer(reg prometheus.Registerer) *HTTPMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kasir_http_requests_total",
		Help: "Counts HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kasir_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	requests = registerOrExisting(reg, requests).(*prometheus.CounterVec)
	duration = registerOrExisting(reg, duration).(*prometheus.HistogramVec)

	return &HTTPMetrics{requests: requests, duration: duration}
}

// GinMiddleware observes every request except websocket upgrades, which
// stay open for the life of the connection.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil || isUpgrade(c) {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		method := strings.ToUpper(c.Request.Method)
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// HubStats is the read-only view of the notification hub used for gauges.
type HubStats interface {
	RoomCount() int
	ClientCount() int
}

// RegisterHubGauges exposes live room and connection counts.
func RegisterHubGauges(reg prometheus.Registerer, stats HubStats) {
	if reg == nil || stats == nil {
		return
	}
	rooms := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "kasir_hub_rooms",
		Help: "Outlet rooms with at least one live connection.",
	}, func() float64 { return float64(stats.RoomCount()) })
	clients := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "kasir_hub_connections",
		Help: "Live connections registered with the hub.",
	}, func() float64 { return float64(stats.ClientCount()) })

	registerOrExisting(reg, rooms)
	registerOrExisting(reg, clients)
}

func registerOrExisting(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}

func isUpgrade(c *gin.Context) bool {
	return strings.EqualFold(strings.TrimSpace(c.GetHeader("Upgrade")), "websocket")
}
