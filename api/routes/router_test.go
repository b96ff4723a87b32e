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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/dashboard"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryRedis struct {
	stubPinger
	data   map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key], _ = value.(string)
	return nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("idem:%s:%s", scope, id)
}

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.counts[scope]++
	return m.counts[scope] <= limit, m.counts[scope], nil
}

type stubCatalog struct{}

func (stubCatalog) GetProduct(context.Context, uuid.UUID) (*models.Product, error) { return nil, nil }
func (stubCatalog) GetVariant(context.Context, uuid.UUID) (*models.ProductVariant, error) {
	return nil, nil
}
func (stubCatalog) ResolvePrice(context.Context, uuid.UUID, *uuid.UUID) (*catalog.PriceQuote, error) {
	return nil, nil
}
func (stubCatalog) List(_ context.Context, _ catalog.ListFilter, params pagination.Params) (*catalog.ListResult, error) {
	return &catalog.ListResult{Params: params.Normalize()}, nil
}
func (stubCatalog) GetBySlug(context.Context, string) (*models.Product, error) {
	return &models.Product{ID: uuid.New(), Slug: "camiseta"}, nil
}
func (stubCatalog) ListCategories(context.Context) ([]models.Category, error) {
	return []models.Category{{ID: uuid.New(), Slug: "roupas"}}, nil
}
func (stubCatalog) GetCategory(_ context.Context, slug string) (*models.Category, error) {
	if slug != "roupas" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	return &models.Category{ID: uuid.New(), Slug: slug}, nil
}

type stubDashboard struct{}

func (stubDashboard) Stats(context.Context) (*dashboard.Stats, error) {
	return &dashboard.Stats{TotalOrders: 3, TotalRevenue: decimal.RequireFromString("75")}, nil
}

type stubCart struct {
	lastOwner types.Identity
}

func (s *stubCart) GetOrCreate(context.Context, types.Identity) (*models.Cart, error) { return nil, nil }
func (s *stubCart) AddLine(context.Context, types.Identity, cart.AddLineInput) (*models.CartLine, error) {
	return &models.CartLine{}, nil
}
func (s *stubCart) UpdateLine(context.Context, types.Identity, uuid.UUID, int) (*models.CartLine, error) {
	return &models.CartLine{}, nil
}
func (s *stubCart) RemoveLine(context.Context, types.Identity, uuid.UUID) error { return nil }
func (s *stubCart) Clear(context.Context, types.Identity) error                 { return nil }
func (s *stubCart) View(_ context.Context, identity types.Identity) (*cart.View, error) {
	s.lastOwner = identity
	return &cart.View{}, nil
}

type stubCoupons struct{}

func (stubCoupons) Evaluate(_ context.Context, code string, _ decimal.Decimal, _ time.Time) (coupons.Evaluation, error) {
	return coupons.Evaluation{Code: code, Discount: decimal.Zero, Reason: coupons.ReasonNotFound}, nil
}
func (stubCoupons) EvaluateTx(context.Context, *gorm.DB, string, decimal.Decimal, time.Time) (coupons.Evaluation, error) {
	return coupons.Evaluation{}, nil
}
func (stubCoupons) Redeem(context.Context, *gorm.DB, uuid.UUID) error { return nil }
func (stubCoupons) Create(context.Context, coupons.CreateInput) (*models.Coupon, error) {
	return &models.Coupon{ID: uuid.New()}, nil
}
func (stubCoupons) List(context.Context, pagination.Params) ([]models.Coupon, int64, error) {
	return nil, 0, nil
}

type stubCheckout struct {
	calls int
}

func (s *stubCheckout) Checkout(context.Context, checkout.Input) (*checkout.Result, error) {
	s.calls++
	return &checkout.Result{Order: &models.Order{ID: uuid.New(), Status: enums.OrderStatusPending}}, nil
}

type stubOrders struct{}

func (stubOrders) Get(_ context.Context, id uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: id}, nil
}
func (stubOrders) GetForOwner(_ context.Context, _ types.Identity, id uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: id}, nil
}
func (stubOrders) ListForOwner(_ context.Context, _ types.Identity, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{Params: params}, nil
}
func (stubOrders) List(_ context.Context, params pagination.Params, _ *enums.OrderStatus) (*orders.OrderList, error) {
	return &orders.OrderList{Params: params}, nil
}
func (stubOrders) UpdateStatus(_ context.Context, id uuid.UUID, status string) (*models.Order, error) {
	return &models.Order{ID: id, Status: enums.OrderStatus(status)}, nil
}
func (stubOrders) Cancel(_ context.Context, _ types.Identity, id uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: id, Status: enums.OrderStatusCancelled}, nil
}

type harness struct {
	handler  http.Handler
	cfg      *config.Config
	cart     *stubCart
	checkout *stubCheckout
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		App:     config.AppConfig{Env: "test"},
		JWT:     config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 60},
		Session: config.SessionConfig{CookieName: "sf_session", TTL: time.Hour},
		Checkout: config.CheckoutConfig{
			IdempotencyTTL:  time.Hour,
			RateLimitWindow: time.Minute,
			RateLimit:       3,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "storefront_test_total", Help: "test"}))

	h := &harness{cfg: cfg, cart: &stubCart{}, checkout: &stubCheckout{}}
	h.handler = NewRouter(cfg, nil, stubPinger{}, newMemoryRedis(), reg,
		stubCatalog{}, h.cart, stubCoupons{}, h.checkout, stubOrders{}, stubDashboard{})
	return h
}

func (h *harness) token(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(h.cfg.JWT, time.Now(), auth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/health/live", "/health/ready"} {
		if resp := h.do(httptest.NewRequest(http.MethodGet, path, nil)); resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
	resp := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "storefront_test_total") {
		t.Fatalf("unexpected metrics response %d", resp.Code)
	}
}

func TestPublicCatalogRoutes(t *testing.T) {
	h := newHarness(t)
	if resp := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/products?page=1", nil)); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/products/camiseta", nil)); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	for path, want := range map[string]int{
		"/api/v1/categories":               http.StatusOK,
		"/api/v1/categories/roupas":        http.StatusOK,
		"/api/v1/categories/nada":          http.StatusNotFound,
		"/api/v1/products/category/roupas": http.StatusOK,
		"/api/v1/products/category/nada":   http.StatusNotFound,
	} {
		if resp := h.do(httptest.NewRequest(http.MethodGet, path, nil)); resp.Code != want {
			t.Fatalf("%s: expected %d got %d", path, want, resp.Code)
		}
	}
}

func TestCartMintsSessionForAnonymousCallers(t *testing.T) {
	h := newHarness(t)
	resp := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	sid := resp.Header().Get("X-Session-Id")
	if sid == "" || h.cart.lastOwner.SessionID != sid {
		t.Fatalf("expected minted session %q to own the cart, got %+v", sid, h.cart.lastOwner)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-Session-Id", sid)
	resp = h.do(req)
	if resp.Header().Get("X-Session-Id") != "" || h.cart.lastOwner.SessionID != sid {
		t.Fatalf("expected existing session reused")
	}
}

func TestCheckoutIsIdempotentThroughRouter(t *testing.T) {
	h := newHarness(t)
	body := `{"payment_method":"pix"}`

	var first string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
		req.Header.Set("X-Session-Id", "sess-1")
		req.Header.Set("Idempotency-Key", "order-attempt-1")
		resp := h.do(req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d: %s", i, resp.Code, resp.Body.String())
		}
		if i == 0 {
			first = resp.Body.String()
		} else if resp.Body.String() != first {
			t.Fatalf("expected replayed body")
		}
	}
	if h.checkout.calls != 1 {
		t.Fatalf("expected one checkout execution, got %d", h.checkout.calls)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("X-Session-Id", "sess-1")
	if resp := h.do(req); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected missing idempotency key to fail, got %d", resp.Code)
	}
}

func TestCheckoutIsRateLimited(t *testing.T) {
	h := newHarness(t)
	var last int
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
		req.Header.Set("X-Session-Id", "sess-rl")
		req.Header.Set("Idempotency-Key", fmt.Sprintf("key-%d", i))
		last = h.do(req).Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected fourth checkout to be limited, got %d", last)
	}
}

func TestOrderRoutesRequireAuth(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-Session-Id", "sess-1")
	if resp := h.do(req); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+h.token(t, enums.UserRoleCustomer))
	if resp := h.do(req); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	h := newHarness(t)
	orderPath := "/api/v1/admin/orders/" + uuid.NewString() + "/status"

	req := httptest.NewRequest(http.MethodPut, orderPath, strings.NewReader(`{"status":"shipped"}`))
	req.Header.Set("Authorization", "Bearer "+h.token(t, enums.UserRoleCustomer))
	if resp := h.do(req); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPut, orderPath, strings.NewReader(`{"status":"shipped"}`))
	req.Header.Set("Authorization", "Bearer "+h.token(t, enums.UserRoleAdmin))
	resp := h.do(req)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"shipped"`) {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminDashboardStatsRoute(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard/stats", nil)
	req.Header.Set("Authorization", "Bearer "+h.token(t, enums.UserRoleCustomer))
	if resp := h.do(req); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard/stats", nil)
	req.Header.Set("Authorization", "Bearer "+h.token(t, enums.UserRoleAdmin))
	resp := h.do(req)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"total_revenue":"75.00"`) {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}
