package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowLookup struct {
	calls   atomic.Int32
	release chan struct{}
	product *domain.Product
}

func (s *slowLookup) GetProductByID(_ context.Context, id int64) (*domain.Product, error) {
	s.calls.Add(1)
	<-s.release
	if id != s.product.ID {
		return nil, ErrProductNotFound
	}
	return s.product.Clone(), nil
}

func TestCachedLookup_CollapsesConcurrentCalls(t *testing.T) {
	backend := &slowLookup{release: make(chan struct{}), product: sized()}
	lookup := NewCachedLookup(backend)

	const callers = 10
	results := make([]*domain.Product, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := lookup.GetProductByID(context.Background(), 9)
			if err == nil {
				results[i] = p
			}
		}(i)
	}

	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// give the remaining callers a moment to join the in-flight call
	time.Sleep(20 * time.Millisecond)
	close(backend.release)
	wg.Wait()

	assert.Less(t, backend.calls.Load(), int32(callers))
	for _, p := range results {
		require.NotNil(t, p)
	}
	results[0].StockBySize[0].Stock = -1
	assert.Equal(t, 5, results[1].StockBySize[0].Stock, "each caller gets its own copy")
}

func TestCachedLookup_DoesNotCacheAfterReturn(t *testing.T) {
	backend := &slowLookup{release: make(chan struct{}), product: sized()}
	close(backend.release)
	lookup := NewCachedLookup(backend)

	_, err := lookup.GetProductByID(context.Background(), 9)
	require.NoError(t, err)
	_, err = lookup.GetProductByID(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int32(2), backend.calls.Load())

	_, err = lookup.GetProductByID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}
