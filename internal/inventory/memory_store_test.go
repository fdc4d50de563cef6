package inventory

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *MemoryStore {
	t.Helper()
	return NewMemoryStore(
		&domain.Product{ID: 7, Name: "Canvas Slip-On", Price: decimal.NewFromInt(19990), Stock: 5},
		sized(),
	)
}

func TestGetProductByID(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	p, err := s.GetProductByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Canvas Slip-On", p.Name)

	_, err = s.GetProductByID(ctx, 999)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestGetProductByID_ReturnsCopy(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	p, err := s.GetProductByID(ctx, 9)
	require.NoError(t, err)
	p.StockBySize[0].Stock = 0
	p.Stock = 0

	again, err := s.GetProductByID(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 5, again.StockBySize[0].Stock)
	assert.Equal(t, 7, again.Stock)
}

func TestSetProduct_DerivesScalarFromSizes(t *testing.T) {
	s := NewMemoryStore()
	s.SetProduct(&domain.Product{
		ID:          3,
		Stock:       100,
		StockBySize: []domain.SizeStock{{Size: "40", Stock: 1}, {Size: "41", Stock: 2}},
	})

	p, err := s.GetProductByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestUpdateProductStock(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	stock := 1
	require.NoError(t, s.UpdateProductStock(ctx, 9, StockUpdate{
		Stock:       &stock,
		StockBySize: []domain.SizeStock{{Size: "41", Stock: 1}, {Size: "42", Stock: 0}},
	}))

	p, err := s.GetProductByID(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)
	assert.Equal(t, 0, p.Available("42"))

	// scalar only update keeps sizes
	stock = 4
	require.NoError(t, s.UpdateProductStock(ctx, 7, StockUpdate{Stock: &stock}))
	p, err = s.GetProductByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stock)

	assert.ErrorIs(t, s.UpdateProductStock(ctx, 999, StockUpdate{Stock: &stock}), ErrProductNotFound)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	seed := `[
		{"id": 1, "name": "Runner", "price": 45990, "category": "Running", "stock": 0,
		 "stockBySize": [{"size": 40, "stock": 2, "inventoryRecordId": 11}, {"size": 41, "stock": 3, "inventoryRecordId": 12}]},
		{"id": 2, "name": "Loafer", "price": "59990", "category": "formal", "stock": 4}
	]`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	s, err := LoadSeedFile(path)
	require.NoError(t, err)

	products := s.Products()
	require.Len(t, products, 2)
	assert.Equal(t, int64(1), products[0].ID)
	assert.Equal(t, 5, products[0].Stock)
	assert.Equal(t, domain.CategoryRunning, products[0].Category)
	assert.Equal(t, 3, products[0].Available("41"))
	assert.True(t, decimal.NewFromInt(59990).Equal(products[1].Price))

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestConcurrentUpdates(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			stock := n
			_ = s.UpdateProductStock(ctx, 7, StockUpdate{Stock: &stock})
			_, _ = s.GetProductByID(ctx, 7)
		}(i)
	}
	wg.Wait()

	p, err := s.GetProductByID(ctx, 7)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.Stock, 0)
	assert.Less(t, p.Stock, 50)
}
