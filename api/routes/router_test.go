package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/computers-backend/internal/checkout"
	pkgAuth "github.com/angelmondragon/computers-backend/pkg/auth"
	"github.com/angelmondragon/computers-backend/pkg/config"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	"github.com/angelmondragon/computers-backend/pkg/logger"
	"github.com/angelmondragon/computers-backend/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type memoryRedis struct {
	stubPinger
	data map[string]string
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key], _ = value.(string)
	return nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("idem:%s:%s", scope, id)
}

type countingCheckout struct {
	calls int
}

func (c *countingCheckout) Execute(context.Context, checkout.CheckoutInput) (*checkout.Result, error) {
	c.calls++
	return &checkout.Result{OrderID: uuid.New()}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:   config.AppConfig{Env: "dev"},
		JWT:   config.JWTConfig{Secret: "secret", Issuer: "computers", ExpirationMinutes: 30},
		Redis: config.RedisConfig{IdempotencyTTL: time.Hour},
	}
}

func newTestRouter(t *testing.T, co checkout.Service) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	metrics.NewOrderMetrics(reg).IncTransition("order_created", "ok")
	redisStub := &memoryRedis{data: map[string]string{}}
	return NewRouter(cfg, logger.Nop(), stubPinger{}, redisStub, nil, co, nil, reg), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "user@example.com",
		Role:   role,
		JTI:    uuid.NewString(),
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, resp.Code, path)
		require.NotEmpty(t, resp.Header().Get("X-Request-Id"))
	}
}

func TestMetricsRoute(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "order_transitions_total")
}

func TestBuyerRoutesRequireAuth(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAdminRoutesRejectBuyers(t *testing.T) {
	router, cfg := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders/statuses", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusForbidden, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders/statuses", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.ActorRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestCheckoutIsIdempotent(t *testing.T) {
	co := &countingCheckout{}
	router, cfg := newTestRouter(t, co)
	auth := bearer(t, cfg, enums.ActorRoleBuyer)
	body := `{"items":[{"item_type":"COMPONENT","product_id":"` + uuid.NewString() + `","quantity":1}],"payment_method":"BANK_TRANSFER"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Authorization", auth)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code, "missing Idempotency-Key")
	require.Zero(t, co.calls)

	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
		req.Header.Set("Authorization", auth)
		req.Header.Set("Idempotency-Key", "checkout-1")
		resp = httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		require.Equal(t, http.StatusCreated, resp.Code)
	}
	require.Equal(t, 1, co.calls)
}
