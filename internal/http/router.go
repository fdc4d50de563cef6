package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Sessions       *session.Manager
	Checkout       CheckoutService
	Orders         orders.Repository
	Pricing        pricing.Policy
	Logger         *zap.Logger
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	cartHandler := NewCartHandler(cfg.Pricing, cfg.RequestTimeout, cfg.Logger)
	sessionHandler := NewSessionHandler(cfg.Sessions, cfg.RequestTimeout, cfg.Logger)
	checkoutHandler := NewCheckoutHandler(cfg.Checkout, cfg.RequestTimeout, cfg.Logger)
	ordersHandler := NewOrdersHandler(cfg.Orders, cfg.RequestTimeout, cfg.Logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(MaxBodyBytes(cfg.MaxBodyBytes))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(cfg.Sessions, cfg.Logger))

		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessionHandler.Current)
			r.Post("/login", sessionHandler.Login)
			r.Post("/logout", sessionHandler.Logout)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Get("/quote", cartHandler.Quote)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		})
		r.Post("/checkout", checkoutHandler.Checkout)
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.ListOrders)
			r.Get("/{id}", ordersHandler.GetOrder)
		})
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
}
