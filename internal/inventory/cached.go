package inventory

import (
	"context"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CachedLookup collapses concurrent lookups of the same product into one
// backend call. Nothing is kept after the call returns, so every new caller
// still sees live stock.
type CachedLookup struct {
	next Lookup
	sfg  singleflight.Group
}

var _ Lookup = (*CachedLookup)(nil)

func NewCachedLookup(next Lookup) *CachedLookup {
	return &CachedLookup{next: next}
}

func (c *CachedLookup) GetProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	v, err, _ := c.sfg.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		return c.next.GetProductByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	// callers sharing the flight must not share the slice backing StockBySize
	return v.(*domain.Product).Clone(), nil
}
