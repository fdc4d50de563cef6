package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CheckoutService interface {
	Checkout(ctx context.Context, cart checkout.CartSource, user *domain.User) (*checkout.Receipt, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCheckoutHandler(svc CheckoutService, timeout time.Duration, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		timeout:  timeout,
		logger:   log,
	}
}

type CheckoutResponseDTO struct {
	OrderID string          `json:"order_id"`
	Status  string          `json:"status"`
	Total   decimal.Decimal `json:"total"`
	Order   *domain.Order   `json:"order"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if s == nil {
		respondError(w, http.StatusBadRequest, "invalid_session", "missing session")
		return
	}

	receipt, err := h.checkout.Checkout(ctx, s.Cart, s.User())
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		OrderID: receipt.OrderID,
		Status:  receipt.State.String(),
		Total:   receipt.Total,
		Order:   receipt.Order,
	})
}
