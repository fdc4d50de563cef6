// Package cart holds the authoritative shopping cart of one session.
//
// A Store owns its line items, at most one per (product, size). Every
// mutation is checked against live stock and is written to durable storage
// before it becomes visible. Totals are never stored; Snapshot derives them.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
)

type Store struct {
	mu     sync.Mutex
	key    string
	kv     storage.KeyValue
	lookup inventory.Lookup
	logger *zap.Logger
	items  []domain.LineItem
}

// NewStore builds a store persisted under key and loads whatever is stored
// there. Unreadable data yields an empty cart.
func NewStore(ctx context.Context, key string, kv storage.KeyValue, lookup inventory.Lookup, log *zap.Logger) *Store {
	s := &Store{
		key:    key,
		kv:     kv,
		lookup: lookup,
		logger: log.With(zap.String("cart_key", key)),
	}
	s.items = s.load(ctx)
	return s
}

// Reload replaces the in-memory cart with the persisted one.
func (s *Store) Reload(ctx context.Context) {
	items := s.load(ctx)
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

// AddItem adds quantity units of (productID, size). The whole add is refused
// when the line would end up above the available stock.
func (s *Store) AddItem(ctx context.Context, productID int64, quantity int, size domain.Size) error {
	const op = "cart.add"
	if quantity < 1 {
		return domain.NewError(domain.KindInvalidArgument, op, "quantity must be at least 1", nil)
	}

	product, err := s.lookup.GetProductByID(ctx, productID)
	if err != nil {
		return s.lookupError(ctx, op, productID, err)
	}
	available := product.Available(size)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneItems(s.items)
	idx := indexOf(next, productID, size)
	want := quantity
	if idx >= 0 {
		want += next[idx].Quantity
	}
	if want > available {
		return s.insufficient(ctx, op, product.Name, size, want, available)
	}

	if idx >= 0 {
		next[idx].Quantity = want
	} else {
		next = append(next, domain.NewLineItem(product, size, quantity))
	}
	if err := s.commit(ctx, op, next); err != nil {
		return err
	}

	logger.WithTrace(ctx, s.logger).Info("item added",
		zap.Int64("product_id", productID),
		zap.String("size", size.String()),
		zap.Int("quantity", want))
	return nil
}

// UpdateQuantity sets the line's quantity. Zero or less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID int64, quantity int, size domain.Size) error {
	const op = "cart.update"
	if quantity <= 0 {
		return s.RemoveItem(ctx, productID, size)
	}

	product, err := s.lookup.GetProductByID(ctx, productID)
	if err != nil {
		return s.lookupError(ctx, op, productID, err)
	}
	available := product.Available(size)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneItems(s.items)
	idx := indexOf(next, productID, size)
	if idx < 0 {
		return domain.NewError(domain.KindNotFound, op, "item is not in the cart", nil)
	}
	if quantity > available {
		return s.insufficient(ctx, op, product.Name, size, quantity, available)
	}

	next[idx].Quantity = quantity
	if err := s.commit(ctx, op, next); err != nil {
		return err
	}

	logger.WithTrace(ctx, s.logger).Info("quantity updated",
		zap.Int64("product_id", productID),
		zap.String("size", size.String()),
		zap.Int("quantity", quantity))
	return nil
}

// RemoveItem drops the (productID, size) line. Removing a line that is not
// there succeeds without touching storage.
func (s *Store) RemoveItem(ctx context.Context, productID int64, size domain.Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := indexOf(s.items, productID, size)
	if idx < 0 {
		return nil
	}

	next := make([]domain.LineItem, 0, len(s.items)-1)
	next = append(next, s.items[:idx]...)
	next = append(next, s.items[idx+1:]...)
	if err := s.commit(ctx, "cart.remove", next); err != nil {
		return err
	}

	logger.WithTrace(ctx, s.logger).Info("item removed",
		zap.Int64("product_id", productID),
		zap.String("size", size.String()))
	return nil
}

// Clear empties the cart. Memory is cleared even when saving the empty cart
// fails; the error is still returned.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	if err := s.persist(ctx, nil); err != nil {
		logger.WithTrace(ctx, s.logger).Error("failed to persist cleared cart", zap.Error(err))
		return domain.NewError(domain.KindPersistence, "cart.clear", "cart could not be saved", err)
	}
	logger.WithTrace(ctx, s.logger).Info("cart cleared")
	return nil
}

// Consume takes ordered quantities out of the cart, as after a checkout.
// Lines added or raised since the order was taken keep the difference. Like
// Clear, memory is updated even when saving fails.
func (s *Store) Consume(ctx context.Context, ordered []domain.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneItems(s.items)
	for _, it := range ordered {
		idx := indexOf(next, it.ProductID, it.Size)
		if idx < 0 {
			continue
		}
		if next[idx].Quantity <= it.Quantity {
			next = append(next[:idx], next[idx+1:]...)
			continue
		}
		next[idx].Quantity -= it.Quantity
	}

	s.items = next
	if err := s.persist(ctx, next); err != nil {
		logger.WithTrace(ctx, s.logger).Error("failed to persist consumed cart", zap.Error(err))
		return domain.NewError(domain.KindPersistence, "cart.consume", "cart could not be saved", err)
	}
	logger.WithTrace(ctx, s.logger).Info("ordered items removed from cart",
		zap.Int("ordered_lines", len(ordered)),
		zap.Int("remaining_lines", len(next)))
	return nil
}

// Snapshot returns a copy of the items with derived totals.
func (s *Store) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.NewCart(cloneItems(s.items))
}

// commit persists next and only then makes it the current cart.
// Callers hold mu.
func (s *Store) commit(ctx context.Context, op string, next []domain.LineItem) error {
	if err := s.persist(ctx, next); err != nil {
		logger.WithTrace(ctx, s.logger).Error("failed to persist cart", zap.String("op", op), zap.Error(err))
		return domain.NewError(domain.KindPersistence, op, "cart could not be saved", err)
	}
	s.items = next
	return nil
}

func (s *Store) lookupError(ctx context.Context, op string, productID int64, err error) error {
	log := logger.WithTrace(ctx, s.logger).With(zap.Int64("product_id", productID))
	if errors.Is(err, inventory.ErrProductNotFound) {
		log.Warn("product not found")
		return domain.NewError(domain.KindNotFound, op, fmt.Sprintf("product %d not found", productID), err)
	}
	log.Error("inventory lookup failed", zap.Error(err))
	return domain.NewError(domain.KindUnavailable, op, "inventory is unavailable, try again", err)
}

func (s *Store) insufficient(ctx context.Context, op, name string, size domain.Size, want, available int) error {
	logger.WithTrace(ctx, s.logger).Warn("insufficient stock",
		zap.String("product", name),
		zap.String("size", size.String()),
		zap.Int("requested", want),
		zap.Int("available", available))
	return domain.NewError(domain.KindInsufficientStock, op, insufficientReason(name, size, available), inventory.ErrInsufficientStock)
}

func insufficientReason(name string, size domain.Size, available int) string {
	if size == domain.NoSize {
		return fmt.Sprintf("insufficient stock for %s: %d available", name, available)
	}
	return fmt.Sprintf("insufficient stock for %s size %s: %d available", name, size, available)
}

func indexOf(items []domain.LineItem, productID int64, size domain.Size) int {
	for i := range items {
		if items[i].Matches(productID, size) {
			return i
		}
	}
	return -1
}

func cloneItems(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	copy(out, items)
	return out
}
