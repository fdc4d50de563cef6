package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"golang.org/x/sync/errgroup"
)

// validate re-reads every product and checks each line against a working
// copy, so two lines of one product share its stock. Nothing is written.
func (o *Orchestrator) validate(ctx context.Context, a *attempt) error {
	const op = "checkout.validate"

	a.productOrder = distinctProducts(a.cart.Items)
	fetched := make([]*domain.Product, len(a.productOrder))
	fetchErrs := make([]error, len(a.productOrder))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.LookupConcurrency)
	for i, id := range a.productOrder {
		g.Go(func() error {
			fetched[i], fetchErrs[i] = o.inventory.GetProductByID(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	a.working = make(map[int64]*domain.Product, len(a.productOrder))
	for i, id := range a.productOrder {
		if fetchErrs[i] == nil && fetched[i] != nil {
			a.working[id] = fetched[i]
		}
	}

	errByID := make(map[int64]error, len(a.productOrder))
	for i, id := range a.productOrder {
		errByID[id] = fetchErrs[i]
	}

	for _, line := range a.cart.Items {
		p, ok := a.working[line.ProductID]
		if !ok {
			err := errByID[line.ProductID]
			if err == nil || errors.Is(err, inventory.ErrProductNotFound) {
				return domain.NewError(domain.KindNotFound, op, "product unavailable: "+line.Name, err)
			}
			return domain.NewError(domain.KindUnavailable, op, reasonInventoryOffline, err)
		}
		if err := inventory.Decrement(p, line.Size, line.Quantity); err != nil {
			return domain.NewError(domain.KindInsufficientStock, op, insufficientReason(line), err)
		}
	}
	return nil
}

func distinctProducts(items []domain.LineItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}

func insufficientReason(line domain.LineItem) string {
	if line.Size == domain.NoSize {
		return "insufficient stock: " + line.Name
	}
	return fmt.Sprintf("insufficient stock: %s size %s", line.Name, line.Size)
}
