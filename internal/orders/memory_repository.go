package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

// MemoryRepository keeps orders in process, for local runs.
type MemoryRepository struct {
	mu         sync.RWMutex
	orders     map[string]*domain.Order
	byCheckout map[string]string
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:     make(map[string]*domain.Order),
		byCheckout: make(map[string]string),
	}
}

func (m *MemoryRepository) CreateOrder(_ context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if draft.CheckoutID != "" {
		if _, exists := m.byCheckout[draft.CheckoutID]; exists {
			return nil, ErrDuplicateCheckout
		}
	}

	order := &domain.Order{
		ID:         uuid.New().String(),
		OrderDraft: draft,
		CreatedAt:  time.Now().UTC(),
	}
	order.Items = append([]domain.LineItem(nil), draft.Items...)
	m.orders[order.ID] = order
	if draft.CheckoutID != "" {
		m.byCheckout[draft.CheckoutID] = order.ID
	}

	c := *order
	return &c, nil
}

func (m *MemoryRepository) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	c := *order
	return &c, nil
}

func (m *MemoryRepository) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*domain.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			c := *o
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}
