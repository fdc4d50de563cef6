package inventory

import (
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// CheckAvailable fails with ErrInsufficientStock when quantity units of size
// cannot be taken from p. The boundary is inclusive.
func CheckAvailable(p *domain.Product, size domain.Size, quantity int) error {
	if available := p.Available(size); quantity > available {
		return fmt.Errorf("%w: product %d size %q has %d, want %d",
			ErrInsufficientStock, p.ID, size, available, quantity)
	}
	return nil
}

// Decrement takes quantity units of size from p in place. A sized decrement
// replaces that size's entry and recomputes the scalar stock as the sum over
// all sizes; an unsized one lowers the scalar stock.
func Decrement(p *domain.Product, size domain.Size, quantity int) error {
	if err := CheckAvailable(p, size, quantity); err != nil {
		return err
	}

	if size == domain.NoSize || !p.HasSizes() {
		p.Stock -= quantity
		return nil
	}

	idx := -1
	for i := range p.StockBySize {
		if p.StockBySize[i].Size == size {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: product %d size %q", ErrUnknownSize, p.ID, size)
	}

	entry := p.StockBySize[idx]
	entry.Stock -= quantity
	p.StockBySize[idx] = entry
	p.Stock = SumSizes(p.StockBySize)
	return nil
}

func SumSizes(sizes []domain.SizeStock) int {
	total := 0
	for _, s := range sizes {
		total += s.Stock
	}
	return total
}

// Increment gives quantity units of size back to p in place. It is the
// inverse of Decrement for the same size.
func Increment(p *domain.Product, size domain.Size, quantity int) error {
	if size == domain.NoSize || !p.HasSizes() {
		p.Stock += quantity
		return nil
	}

	for i := range p.StockBySize {
		if p.StockBySize[i].Size == size {
			p.StockBySize[i].Stock += quantity
			p.Stock = SumSizes(p.StockBySize)
			return nil
		}
	}
	return fmt.Errorf("%w: product %d size %q", ErrUnknownSize, p.ID, size)
}
