package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticHubStats struct {
	rooms   int
	clients int
}

func (s staticHubStats) RoomCount() int   { return s.rooms }
func (s staticHubStats) ClientCount() int { return s.clients }

func TestGinMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewHTTPMetricsWithRegisterer(reg)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(m.requests.WithLabelValues("GET", "/health", "200")))
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewHTTPMetricsWithRegisterer(reg)
	second := NewHTTPMetricsWithRegisterer(reg)
	assert.Same(t, first.requests, second.requests)
}

func TestRegisterHubGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterHubGauges(reg, staticHubStats{rooms: 2, clients: 5})

	count, err := testutil.GatherAndCount(reg, "kasir_hub_rooms", "kasir_hub_connections")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
