package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// MemoryStore implements Service with an in-process catalogue
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]*domain.Product // productID -> product
}

var _ Service = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory inventory store
func NewMemoryStore(products ...*domain.Product) *MemoryStore {
	s := &MemoryStore{
		products: make(map[int64]*domain.Product),
	}
	for _, p := range products {
		s.SetProduct(p)
	}
	return s
}

// LoadSeedFile reads a JSON array of products into a new store.
func LoadSeedFile(path string) (*MemoryStore, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var products []*domain.Product
	if err := json.Unmarshal(b, &products); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return NewMemoryStore(products...), nil
}

// GetProductByID returns a copy of the stored product
func (s *MemoryStore) GetProductByID(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, ErrProductNotFound
	}
	return p.Clone(), nil
}

// UpdateProductStock overwrites stock with the values in update
func (s *MemoryStore) UpdateProductStock(_ context.Context, id int64, update StockUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[id]
	if !exists {
		return ErrProductNotFound
	}
	Apply(p, update)
	return nil
}

// SetProduct inserts or replaces a product (used for initialization)
func (s *MemoryStore) SetProduct(p *domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := p.Clone()
	if c.HasSizes() {
		c.Stock = SumSizes(c.StockBySize)
	}
	s.products[p.ID] = c
}

// Products lists the catalogue ordered by id
func (s *MemoryStore) Products() []*domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Product, 0, len(s.products))
	for _, p := range s.products {
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
