package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	orders  orders.Repository
	timeout time.Duration
	logger  *zap.Logger
}

func NewOrdersHandler(repo orders.Repository, timeout time.Duration, log *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		orders:  repo,
		timeout: timeout,
		logger:  log,
	}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "authentication_required", "authentication required")
		return
	}

	list, err := h.orders.ListOrdersByUserID(ctx, user.ID)
	if err != nil {
		h.respondOrdersError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GET /api/v1/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "authentication_required", "authentication required")
		return
	}

	order, err := h.orders.GetOrderByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.respondOrdersError(w, err)
		return
	}
	// other users' orders are reported as missing
	if order.UserID != user.ID {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) respondOrdersError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, orders.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "unavailable", "orders are unavailable, try again")
	default:
		h.logger.Error("orders request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
