package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CartHandler struct {
	policy  pricing.Policy
	timeout time.Duration
	logger  *zap.Logger
}

func NewCartHandler(policy pricing.Policy, timeout time.Duration, log *zap.Logger) *CartHandler {
	return &CartHandler{
		policy:  policy,
		timeout: timeout,
		logger:  log,
	}
}

type AddItemRequestDTO struct {
	ProductID int64       `json:"product_id" validate:"required,gt=0"`
	Quantity  *int        `json:"quantity" validate:"omitempty,min=1,max=99"`
	Size      domain.Size `json:"size" validate:"max=8"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity" validate:"min=0,max=99"`
}

// CartLineDTO is a cart line with the colour of its category tag.
type CartLineDTO struct {
	domain.LineItem
	Badge string `json:"badge"`
}

type CartResponseDTO struct {
	Items     []CartLineDTO   `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

func newCartResponse(c domain.Cart) CartResponseDTO {
	lines := make([]CartLineDTO, len(c.Items))
	for i, it := range c.Items {
		lines[i] = CartLineDTO{LineItem: it, Badge: it.Category.Badge()}
	}
	return CartResponseDTO{Items: lines, Total: c.Total, ItemCount: c.ItemCount}
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if s == nil {
		respondError(w, http.StatusBadRequest, "invalid_session", "missing session")
		return
	}

	var req AddItemRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	if err := s.Cart.AddItem(ctx, req.ProductID, quantity, req.Size); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, newCartResponse(s.Cart.Snapshot()))
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	if s == nil {
		respondError(w, http.StatusBadRequest, "invalid_session", "missing session")
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(s.Cart.Snapshot()))
}

// PUT /api/v1/cart/items/{product_id}?size=
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if s == nil {
		respondError(w, http.StatusBadRequest, "invalid_session", "missing session")
		return
	}

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	size := domain.Size(r.URL.Query().Get("size"))
	if err := s.Cart.UpdateQuantity(ctx, productID, req.Quantity, size); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(s.Cart.Snapshot()))
}

// DELETE /api/v1/cart/items/{product_id}?size=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if s == nil {
		respondError(w, http.StatusBadRequest, "invalid_session", "missing session")
		return
	}

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	size := domain.Size(r.URL.Query().Get("size"))
	if err := s.Cart.RemoveItem(ctx, productID, size); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(s.Cart.Snapshot()))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if s == nil {
		respondError(w, http.StatusBadRequest, "invalid_session", "missing session")
		return
	}

	if err := s.Cart.Clear(ctx); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(s.Cart.Snapshot()))
}

// GET /api/v1/cart/quote
func (h *CartHandler) Quote(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	if s == nil {
		respondError(w, http.StatusBadRequest, "invalid_session", "missing session")
		return
	}
	respondJSON(w, http.StatusOK, h.policy.Quote(s.Cart.Snapshot().Items, decimal.Zero))
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productIDStr := chi.URLParam(r, "product_id")
	productID, err := strconv.ParseInt(productIDStr, 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
