package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	handler  http.Handler
	sessions *session.Manager
	catalog  *inventory.MemoryStore
	orders   *orders.MemoryRepository
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	catalog := inventory.NewMemoryStore(
		&domain.Product{ID: 7, Name: "Canvas Slip-On", Price: decimal.NewFromInt(19990), Category: domain.CategoryCasual, Stock: 5},
		&domain.Product{
			ID:       9,
			Name:     "Trail Runner",
			Price:    decimal.NewFromInt(45990),
			Category: domain.CategoryRunning,
			StockBySize: []domain.SizeStock{
				{Size: "41", Stock: 4, InventoryRecordID: 901},
				{Size: "42", Stock: 2, InventoryRecordID: 902},
			},
		},
	)
	repo := orders.NewMemoryRepository()
	orch, err := checkout.NewOrchestrator(catalog, repo, events.NopPublisher{}, checkout.DefaultConfig(), log)
	require.NoError(t, err)
	sessions := session.NewManager(storage.NewMemoryStore(), catalog, log)

	return &testServer{
		handler: NewRouter(RouterConfig{
			Sessions:       sessions,
			Checkout:       orch,
			Orders:         repo,
			Pricing:        pricing.DefaultPolicy(),
			Logger:         log,
			RequestTimeout: 5 * time.Second,
			MaxBodyBytes:   1 << 10,
		}),
		sessions: sessions,
		catalog:  catalog,
		orders:   repo,
	}
}

func (s *testServer) do(t *testing.T, method, path, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) domain.Cart {
	t.Helper()
	var c domain.Cart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&c))
	return c
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	return e
}

const loginBody = `{"id":"u1","nombre":"Ana Pérez","email":"ana@example.com","direccion":"Av. Providencia 123"}`

func TestHealth(t *testing.T) {
	srv := setupServer(t)
	rec := srv.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSessionHeaderIsMinted(t *testing.T) {
	srv := setupServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/cart/items", "", `{"product_id":7}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := rec.Header().Get(SessionHeader)
	assert.NotEmpty(t, id)

	rec = srv.do(t, http.MethodGet, "/api/v1/cart", id, "")
	assert.Equal(t, id, rec.Header().Get(SessionHeader))
	assert.Equal(t, 1, decodeCart(t, rec).ItemCount)
}

func TestReadOnlyRequestsKeepNoSession(t *testing.T) {
	srv := setupServer(t)

	rec := srv.do(t, http.MethodGet, "/api/v1/cart", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(SessionHeader))
	assert.True(t, decodeCart(t, rec).IsEmpty())

	for _, id := range []string{"a", "b", "c"} {
		rec = srv.do(t, http.MethodGet, "/api/v1/cart", id, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, id, rec.Header().Get(SessionHeader))
	}
	assert.Zero(t, srv.sessions.Len())

	srv.do(t, http.MethodPost, "/api/v1/cart/items", "a", `{"product_id":7}`)
	assert.Equal(t, 1, srv.sessions.Len())
}

func TestAddItem_DefaultsToOne(t *testing.T) {
	srv := setupServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/cart/items", "s1", `{"product_id":7}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	c := decodeCart(t, rec)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(19990).Equal(c.Total))
}

func TestGetCart_LinesCarryBadge(t *testing.T) {
	srv := setupServer(t)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/v1/cart/items", "s1", `{"product_id":9,"size":"41"}`).Code)

	rec := srv.do(t, http.MethodGet, "/api/v1/cart", "s1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CartResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, domain.CategoryRunning, resp.Items[0].Category)
	assert.Equal(t, "blue", resp.Items[0].Badge)
	assert.Equal(t, 1, resp.ItemCount)
}

func TestAddItem_NumericSize(t *testing.T) {
	srv := setupServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/cart/items", "s1", `{"product_id":9,"quantity":2,"size":42}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	c := decodeCart(t, rec)
	require.Len(t, c.Items, 1)
	assert.Equal(t, domain.Size("42"), c.Items[0].Size)
	assert.Equal(t, int64(902), c.Items[0].InventoryRecordID)
}

func TestAddItem_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"insufficient stock", `{"product_id":7,"quantity":6}`, http.StatusConflict, "insufficient_stock"},
		{"unknown size", `{"product_id":9,"size":"44"}`, http.StatusConflict, "insufficient_stock"},
		{"unknown product", `{"product_id":404}`, http.StatusNotFound, "not_found"},
		{"missing product", `{"quantity":1}`, http.StatusBadRequest, "invalid_argument"},
		{"zero quantity", `{"product_id":7,"quantity":0}`, http.StatusBadRequest, "invalid_argument"},
		{"too many", `{"product_id":7,"quantity":100}`, http.StatusBadRequest, "invalid_argument"},
		{"bad json", `{"product_id":`, http.StatusBadRequest, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := setupServer(t)
			rec := srv.do(t, http.MethodPost, "/api/v1/cart/items", "s1", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestAddItem_BodyTooLarge(t *testing.T) {
	srv := setupServer(t)
	body := `{"product_id":7,"size":"` + strings.Repeat("x", 2048) + `"}`
	rec := srv.do(t, http.MethodPost, "/api/v1/cart/items", "s1", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUpdateAndRemove(t *testing.T) {
	srv := setupServer(t)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/v1/cart/items", "s1", `{"product_id":9,"size":"41"}`).Code)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/v1/cart/items", "s1", `{"product_id":7}`).Code)

	rec := srv.do(t, http.MethodPut, "/api/v1/cart/items/9?size=41", "s1", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decodeCart(t, rec).ItemCount)

	rec = srv.do(t, http.MethodPut, "/api/v1/cart/items/9?size=41", "s1", `{"quantity":5}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, http.MethodPut, "/api/v1/cart/items/9?size=42", "s1", `{"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodDelete, "/api/v1/cart/items/9?size=41", "s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	c := decodeCart(t, rec)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(7), c.Items[0].ProductID)

	// quantity 0 removes the line
	rec = srv.do(t, http.MethodPut, "/api/v1/cart/items/7", "s1", `{"quantity":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items)

	rec = srv.do(t, http.MethodDelete, "/api/v1/cart/items/abc", "s1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearCart(t *testing.T) {
	srv := setupServer(t)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/v1/cart/items", "s1", `{"product_id":7,"quantity":2}`).Code)

	rec := srv.do(t, http.MethodDelete, "/api/v1/cart", "s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items)
}

func TestQuote(t *testing.T) {
	srv := setupServer(t)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/v1/cart/items", "s1", `{"product_id":7,"quantity":2}`).Code)

	rec := srv.do(t, http.MethodGet, "/api/v1/cart/quote", "s1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var q pricing.Quote
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&q))
	assert.True(t, decimal.NewFromInt(39980).Equal(q.Subtotal))
	assert.True(t, decimal.NewFromInt(3000).Equal(q.ShippingFee))
	assert.True(t, decimal.NewFromInt(42980).Equal(q.Total))
	assert.Equal(t, 2, q.ItemCount)
}

func TestCheckout_RequiresLogin(t *testing.T) {
	srv := setupServer(t)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/v1/cart/items", "s1", `{"product_id":7}`).Code)

	rec := srv.do(t, http.MethodPost, "/api/v1/checkout", "s1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "authentication_required", e.Code)
	assert.Equal(t, "authentication required", e.Error)
}

func TestLoginCheckoutAndOrders(t *testing.T) {
	srv := setupServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/session/login", "s1", loginBody)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/v1/cart/items", "s1", `{"product_id":9,"size":"42","quantity":2}`).Code)

	rec = srv.do(t, http.MethodPost, "/api/v1/checkout", "s1", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp CheckoutResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "SUCCEEDED", resp.Status)
	assert.True(t, decimal.NewFromInt(91980).Equal(resp.Total))
	assert.Equal(t, "Av. Providencia 123", resp.Order.ShippingAddress)

	// cart cleared, stock taken
	rec = srv.do(t, http.MethodGet, "/api/v1/cart", "s1", "")
	assert.Empty(t, decodeCart(t, rec).Items)
	p, err := srv.catalog.GetProductByID(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Available("42"))

	rec = srv.do(t, http.MethodGet, "/api/v1/orders", "s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, resp.OrderID, list[0].ID)

	rec = srv.do(t, http.MethodGet, "/api/v1/orders/"+resp.OrderID, "s1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// another user cannot see it
	rec = srv.do(t, http.MethodPost, "/api/v1/session/login", "s2", `{"id":"u2","nombre":"Bo","email":"bo@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(t, http.MethodGet, "/api/v1/orders/"+resp.OrderID, "s2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckout_EmptyCart(t *testing.T) {
	srv := setupServer(t)
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/v1/session/login", "s1", loginBody).Code)

	rec := srv.do(t, http.MethodPost, "/api/v1/checkout", "s1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cart is empty", decodeError(t, rec).Error)
}

func TestLogin_Invalid(t *testing.T) {
	srv := setupServer(t)
	rec := srv.do(t, http.MethodPost, "/api/v1/session/login", "s1", `{"id":"u1","nombre":"Ana","email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Details, "email")
}

func TestLogout(t *testing.T) {
	srv := setupServer(t)
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/v1/session/login", "s1", loginBody).Code)
	require.Equal(t, http.StatusCreated, srv.do(t, http.MethodPost, "/api/v1/cart/items", "s1", `{"product_id":7}`).Code)

	rec := srv.do(t, http.MethodPost, "/api/v1/session/logout", "s1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/session", "s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SessionResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Nil(t, resp.User)
	assert.Empty(t, resp.Cart.Items)

	rec = srv.do(t, http.MethodGet, "/api/v1/orders", "s1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusForKind(t *testing.T) {
	tests := map[domain.ErrorKind]int{
		domain.KindNotFound:               http.StatusNotFound,
		domain.KindInsufficientStock:      http.StatusConflict,
		domain.KindInvalidArgument:        http.StatusBadRequest,
		domain.KindAuthenticationRequired: http.StatusUnauthorized,
		domain.KindConflict:               http.StatusConflict,
		domain.KindReservation:            http.StatusBadGateway,
		domain.KindOrderCreation:          http.StatusBadGateway,
		domain.KindPersistence:            http.StatusServiceUnavailable,
		domain.KindUnavailable:            http.StatusServiceUnavailable,
		domain.KindUnknown:                http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, statusForKind(kind), kind.String())
	}
}

func TestRespondDomainError_HidesUnknown(t *testing.T) {
	rec := httptest.NewRecorder()
	respondDomainError(rec, zap.NewNop(), errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "internal_error", e.Code)
	assert.NotContains(t, e.Error, "pq")
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	h := RequestLogger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write(bytes.Repeat([]byte("x"), 3))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "xxx", rec.Body.String())
}
