package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	authdomain "github.com/smallbiznis/kasir/internal/auth/domain"
	"github.com/smallbiznis/kasir/internal/auth/token"
	"github.com/smallbiznis/kasir/internal/authorization"
	"github.com/smallbiznis/kasir/internal/clock"
	"github.com/smallbiznis/kasir/internal/config"
	"github.com/smallbiznis/kasir/internal/events"
	"github.com/smallbiznis/kasir/internal/observability"
	orderdomain "github.com/smallbiznis/kasir/internal/order/domain"
	paymentdomain "github.com/smallbiznis/kasir/internal/payment/domain"
	"github.com/smallbiznis/kasir/internal/ratelimit"
	"github.com/smallbiznis/kasir/internal/realtime"
	"github.com/smallbiznis/kasir/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	outletA = snowflake.ID(10)
	outletB = snowflake.ID(20)
)

type fakeOrderService struct {
	created   []orderdomain.CreateOrderRequest
	statuses  []string
	cancelled int
	err       error
}

func (f *fakeOrderService) Create(_ context.Context, req orderdomain.CreateOrderRequest) (*orderdomain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, req)
	return &orderdomain.Order{ID: 500, Status: orderdomain.StatusNew, CreatedBy: req.CashierID}, nil
}

func (f *fakeOrderService) Get(context.Context, string) (*orderdomain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &orderdomain.Order{ID: 500, Status: orderdomain.StatusNew}, nil
}

func (f *fakeOrderService) List(context.Context, orderdomain.ListOrderRequest) (orderdomain.ListOrderResponse, error) {
	return orderdomain.ListOrderResponse{}, f.err
}

func (f *fakeOrderService) UpdateStatus(_ context.Context, req orderdomain.UpdateStatusRequest) (*orderdomain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.statuses = append(f.statuses, req.Status)
	return &orderdomain.Order{ID: 500, Status: orderdomain.StatusPreparing}, nil
}

func (f *fakeOrderService) Cancel(context.Context, orderdomain.CancelOrderRequest) (*orderdomain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.cancelled++
	return &orderdomain.Order{ID: 500, Status: orderdomain.StatusCancelled}, nil
}

func (f *fakeOrderService) UpdateItemKitchenStatus(context.Context, orderdomain.UpdateItemKitchenStatusRequest) (*orderdomain.OrderItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &orderdomain.OrderItem{}, nil
}

type fakePaymentService struct {
	err error
}

func (f *fakePaymentService) AddPayment(context.Context, paymentdomain.AddPaymentRequest) (*paymentdomain.PaymentResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &paymentdomain.PaymentResult{}, nil
}

func (f *fakePaymentService) Refund(context.Context, paymentdomain.RefundRequest) (*paymentdomain.PaymentResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &paymentdomain.PaymentResult{}, nil
}

func (f *fakePaymentService) List(context.Context, string) ([]paymentdomain.Payment, error) {
	return nil, f.err
}

func (f *fakePaymentService) Summary(context.Context, string) (*paymentdomain.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &paymentdomain.Summary{OrderID: 500, Total: 50000, Remaining: 50000}, nil
}

type testServer struct {
	engine   *gin.Engine
	jwt      *token.JWT
	orders   *fakeOrderService
	payments *fakePaymentService
	feed     *events.Feed
	clock    *clock.FakeClock
}

func newTestServer(t *testing.T, limiter *ratelimit.OrderLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	jwt, err := token.New(token.Config{Secret: []byte("test-secret"), Issuer: "kasir"}, clk)
	require.NoError(t, err)

	conn, err := db.NewTest()
	require.NoError(t, err)
	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})

	cfg := config.Config{Environment: "test"}
	engine := NewEngine(EngineParams{Config: cfg, ObsConfig: observability.Config{}})

	ts := &testServer{
		engine:   engine,
		jwt:      jwt,
		orders:   &fakeOrderService{},
		payments: &fakePaymentService{},
		feed:     events.NewFeed(8),
		clock:    clk,
	}
	srv := NewServer(ServerParams{
		Gin:        engine,
		Cfg:        cfg,
		Verifier:   jwt,
		Authz:      authz,
		OrderSvc:   ts.orders,
		PaymentSvc: ts.payments,
		Feed:       ts.feed,
		Hub:        realtime.NewHub(zap.NewNop(), realtime.Config{}, nil),
		Limiter:    limiter,
	})
	srv.RegisterRoutes()
	return ts
}

func (ts *testServer) token(t *testing.T, role authdomain.Role, outletID snowflake.ID) string {
	t.Helper()
	raw, err := ts.jwt.Sign(authdomain.Claims{UserID: 7, Role: role, OutletID: outletID})
	require.NoError(t, err)
	return raw
}

func (ts *testServer) do(method, path, tok, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

const createBody = `{"type":"DINE_IN","items":[{"product_id":"1","quantity":1}]}`

func ordersPath(outlet snowflake.ID) string {
	return fmt.Sprintf("/api/outlets/%s/orders", outlet)
}

func TestMissingTokenIsUnauthenticated(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, ordersPath(outletA), "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeError(t, w).Type)
}

func TestExpiredTokenIsUnauthenticated(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, authdomain.RoleCashier, outletA)
	ts.clock.Advance(13 * time.Hour)

	w := ts.do(http.MethodGet, ordersPath(outletA), tok, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMalformedTokenIsUnauthenticated(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(http.MethodGet, ordersPath(outletA), "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCashierCannotReachOtherOutlet(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, authdomain.RoleCashier, outletA)

	w := ts.do(http.MethodPost, ordersPath(outletB), tok, createBody)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decodeError(t, w).Type)
	assert.Empty(t, ts.orders.created)
}

func TestOwnerBypassesOutletScope(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, authdomain.RoleOwner, 0)

	w := ts.do(http.MethodPost, ordersPath(outletB), tok, createBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, ts.orders.created, 1)
	assert.Equal(t, snowflake.ID(7), ts.orders.created[0].CashierID)
}

func TestKitchenCannotCreateOrders(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, authdomain.RoleKitchen, outletA)

	w := ts.do(http.MethodPost, ordersPath(outletA), tok, createBody)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodGet, ordersPath(outletA), tok, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestKitchenCannotCancelThroughStatusRoute(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, authdomain.RoleKitchen, outletA)

	w := ts.do(http.MethodPost, ordersPath(outletA)+"/500/status", tok, `{"status":"CANCELLED"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decodeError(t, w).Type)

	w = ts.do(http.MethodPost, ordersPath(outletA)+"/500/status", tok, `{"status":" cancelled "}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodPost, ordersPath(outletA)+"/500/cancel", tok, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, ts.orders.statuses)
	assert.Zero(t, ts.orders.cancelled)

	w = ts.do(http.MethodPost, ordersPath(outletA)+"/500/status", tok, `{"status":"PREPARING"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"PREPARING"}, ts.orders.statuses)
}

func TestCashierMayCancelThroughStatusRoute(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, authdomain.RoleCashier, outletA)

	w := ts.do(http.MethodPost, ordersPath(outletA)+"/500/status", tok, `{"status":"CANCELLED"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"CANCELLED"}, ts.orders.statuses)
}

func TestCashierCannotRefund(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, authdomain.RoleCashier, outletA)

	w := ts.do(http.MethodPost, ordersPath(outletA)+"/500/payments/600/refund", tok, `{"reason":"wrong item"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	manager := ts.token(t, authdomain.RoleManager, outletA)
	w = ts.do(http.MethodPost, ordersPath(outletA)+"/500/payments/600/refund", manager, `{"reason":"wrong item"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestInvalidOutletParam(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, authdomain.RoleOwner, 0)

	w := ts.do(http.MethodGet, "/api/outlets/abc/orders", tok, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "outlet_id", payload.Errors[0].Field)
}

func TestMalformedBodyIsValidationError(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, authdomain.RoleCashier, outletA)

	w := ts.do(http.MethodPost, ordersPath(outletA), tok, `{"items":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decodeError(t, w).Type)
}

func TestDomainErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		status    int
		errType   string
		field     string
		current   string
		requested string
	}{
		{
			name:    "unknown product",
			err:     &orderdomain.ItemError{Index: 2, Field: "product_id", Err: orderdomain.ErrInvalidID},
			status:  http.StatusBadRequest,
			errType: "validation_error",
			field:   "items[2].product_id",
		},
		{
			name:      "invalid transition",
			err:       &orderdomain.InvalidTransitionError{From: "NEW", To: "READY"},
			status:    http.StatusConflict,
			errType:   "invalid_transition",
			current:   "NEW",
			requested: "READY",
		},
		{
			name:    "overpay",
			err:     &paymentdomain.OverpayError{Requested: 60000, Remaining: 50000},
			status:  http.StatusUnprocessableEntity,
			errType: "payment_rejected",
			field:   "amount",
		},
		{
			name:    "underpay",
			err:     &paymentdomain.UnderpayError{Amount: 50000, Received: 20000},
			status:  http.StatusUnprocessableEntity,
			errType: "payment_rejected",
			field:   "amount_received",
		},
		{
			name:    "not found",
			err:     orderdomain.ErrNotFound,
			status:  http.StatusNotFound,
			errType: "not_found",
		},
		{
			name:    "has payments",
			err:     orderdomain.ErrOrderHasPayments,
			status:  http.StatusBadRequest,
			errType: "validation_error",
		},
		{
			name:    "unexpected",
			err:     fmt.Errorf("db down"),
			status:  http.StatusInternalServerError,
			errType: "internal_error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.errType, payload.Type)
			if tc.field != "" {
				require.NotEmpty(t, payload.Errors)
				assert.Equal(t, tc.field, payload.Errors[0].Field)
			}
			assert.Equal(t, tc.current, payload.Current)
			assert.Equal(t, tc.requested, payload.Requested)
			assert.NotEmpty(t, payload.Message)
		})
	}
}

func TestInvalidTransitionResponseBody(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.orders.err = &orderdomain.InvalidTransitionError{From: "NEW", To: "READY"}
	tok := ts.token(t, authdomain.RoleKitchen, outletA)

	w := ts.do(http.MethodPost, ordersPath(outletA)+"/500/status", tok, `{"status":"READY"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	payload := decodeError(t, w)
	assert.Equal(t, "NEW", payload.Current)
	assert.Equal(t, "READY", payload.Requested)
}

func TestListPaymentsIncludesSummary(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, authdomain.RoleCashier, outletA)

	w := ts.do(http.MethodGet, ordersPath(outletA)+"/500/payments", tok, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Payments []json.RawMessage `json:"payments"`
			Summary  struct {
				Remaining int64 `json:"remaining"`
			} `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data.Payments)
	assert.Equal(t, int64(50000), resp.Data.Summary.Remaining)
}

func TestPollEventsScopedToOutlet(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.feed.Append(events.Event{Type: events.OrderCreated, OutletID: outletA})
	ts.feed.Append(events.Event{Type: events.OrderCreated, OutletID: outletB})
	ts.feed.Append(events.Event{Type: events.OrderStatusChanged, OutletID: outletA})

	tok := ts.token(t, authdomain.RoleKitchen, outletA)
	w := ts.do(http.MethodGet, fmt.Sprintf("/api/outlets/%s/events?after=0", outletA), tok, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data pollEventsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Events, 2)
	for _, ev := range resp.Data.Events {
		assert.Equal(t, outletA, ev.OutletID)
	}
	assert.Equal(t, resp.Data.Events[1].Seq, resp.Data.LastSeq)
	assert.False(t, resp.Data.Truncated)

	w = ts.do(http.MethodGet, fmt.Sprintf("/api/outlets/%s/events?after=x", outletA), tok, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderCreateRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := ratelimit.NewOrderLimiter(ratelimit.Params{
		Config: config.Config{RateLimit: config.RateLimitConfig{
			Enabled:          true,
			OrderCreateRate:  0.01,
			OrderCreateBurst: 1,
		}},
		Log:    zap.NewNop(),
		Client: client,
	})
	require.NotNil(t, limiter)

	ts := newTestServer(t, limiter)
	tok := ts.token(t, authdomain.RoleCashier, outletA)

	w := ts.do(http.MethodPost, ordersPath(outletA), tok, createBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(http.MethodPost, ordersPath(outletA), tok, createBody)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Len(t, ts.orders.created, 1)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://pos.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://pos.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker(nil)(req))
}

func TestQueryTokenRejectedOutsideSocketRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, authdomain.RoleCashier, outletA)

	w := ts.do(http.MethodGet, ordersPath(outletA)+"?access_token="+tok, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, ordersPath(outletA)+"?access_token="+tok, "", createBody)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, ts.orders.created)
}

func TestSocketRouteAcceptsQueryToken(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, authdomain.RoleKitchen, outletA)

	// No upgrade headers, so auth passes and the handshake itself is refused.
	w := ts.do(http.MethodGet, fmt.Sprintf("/ws/outlets/%s/orders?access_token=%s", outletA, tok), "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodGet, fmt.Sprintf("/ws/outlets/%s/orders", outletA), "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken(""))
}
