package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/dashboard"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// RedisStore is what the router needs from Redis: readiness, idempotency
// records and rate-limit counters.
type RedisStore interface {
	redis.Pinger
	redis.IdempotencyStore
	redis.RateLimiter
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	gatherer prometheus.Gatherer,
	catalogService catalog.Service,
	cartService cart.Service,
	couponService coupons.Service,
	checkoutService checkout.Service,
	ordersService orders.Service,
	dashboardService dashboard.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		chimw.RealIP,
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.Checkout.RateLimitWindow,
		cfg.Checkout.RateLimit,
	)
	idempotent := middleware.Idempotency(redisStore, cfg.Checkout.IdempotencyTTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, dbP, redisStore, logg))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(auth.NewVerifier(cfg.JWT), logg))
		r.Use(middleware.Session(cfg.Session, logg))

		r.Get("/categories", controllers.CategoryList(catalogService, logg))
		r.Get("/categories/{slug}", controllers.CategoryBySlug(catalogService, logg))
		r.Get("/products", controllers.ProductList(catalogService, logg))
		r.Get("/products/category/{slug}", controllers.ProductsByCategory(catalogService, logg))
		r.Get("/products/{slug}", controllers.ProductBySlug(catalogService, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.EnsureSession(cfg.Session, logg))
			r.Get("/", controllers.CartView(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Post("/lines", controllers.CartAddLine(cartService, logg))
			r.Put("/lines/{lineId}", controllers.CartUpdateLine(cartService, logg))
			r.Delete("/lines/{lineId}", controllers.CartRemoveLine(cartService, logg))
			r.Post("/coupon", controllers.CartCouponPreview(cartService, couponService, logg))
		})

		r.With(
			middleware.RateLimit(checkoutPolicy, redisStore, logg),
			idempotent,
		).Post("/checkout", controllers.Checkout(checkoutService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Use(middleware.RequireAuth(logg))
			r.Get("/", controllers.OrderList(ordersService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersService, logg))
			r.With(idempotent).Put("/{orderId}/cancel", controllers.OrderCancel(ordersService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Get("/dashboard/stats", controllers.AdminDashboardStats(dashboardService, logg))
			r.Get("/orders", controllers.AdminOrderList(ordersService, logg))
			r.Get("/orders/{orderId}", controllers.AdminOrderDetail(ordersService, logg))
			r.Put("/orders/{orderId}/status", controllers.AdminOrderUpdateStatus(ordersService, logg))
			r.Get("/coupons", controllers.AdminCouponList(couponService, logg))
			r.Post("/coupons", controllers.AdminCouponCreate(couponService, logg))
		})
	})

	return r
}
