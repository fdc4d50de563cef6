// Package inventory is the storefront's view of the stock backend: product
// lookup, absolute stock updates and the stock arithmetic checkout relies on.
package inventory

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Common errors returned by inventory adapters
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnknownSize       = errors.New("size not stocked for product")
)

type Lookup interface {
	// GetProductByID returns ErrProductNotFound for unknown ids.
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
}

type Mutator interface {
	// UpdateProductStock overwrites the fields set in update.
	UpdateProductStock(ctx context.Context, id int64, update StockUpdate) error
}

type Service interface {
	Lookup
	Mutator
}

// StockUpdate carries absolute stock values. Nil fields are left alone.
type StockUpdate struct {
	Stock       *int               `json:"stock,omitempty"`
	StockBySize []domain.SizeStock `json:"stockBySize,omitempty"`
}

// SnapshotOf returns the update that restores p's current stock.
func SnapshotOf(p *domain.Product) StockUpdate {
	stock := p.Stock
	u := StockUpdate{Stock: &stock}
	if p.HasSizes() {
		u.StockBySize = make([]domain.SizeStock, len(p.StockBySize))
		copy(u.StockBySize, p.StockBySize)
	}
	return u
}

// Apply writes update onto p.
func Apply(p *domain.Product, update StockUpdate) {
	if update.StockBySize != nil {
		p.StockBySize = make([]domain.SizeStock, len(update.StockBySize))
		copy(p.StockBySize, update.StockBySize)
	}
	if update.Stock != nil {
		p.Stock = *update.Stock
	}
}
