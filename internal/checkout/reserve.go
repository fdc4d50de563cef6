package checkout

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
)

// reserve writes each product's post-checkout stock, one absolute update per
// product in first-appearance order. A failed write undoes the earlier ones.
func (o *Orchestrator) reserve(ctx context.Context, a *attempt) error {
	const op = "checkout.reserve"

	for _, id := range a.productOrder {
		update := inventory.SnapshotOf(a.working[id])
		if err := o.inventory.UpdateProductStock(ctx, id, update); err != nil {
			logger.WithTrace(ctx, o.logger).Error("stock update failed",
				zap.String("checkout_id", a.id),
				zap.Int64("product_id", id),
				zap.Error(err))
			o.releaseStock(ctx, a)
			return domain.NewError(domain.KindReservation, op, reasonReservation, err)
		}
		a.applied = append(a.applied, id)
	}
	return nil
}

// releaseStock gives back what this attempt took from every applied product,
// newest first. Each product is re-read so writes made by others since the
// reservation survive. It keeps going past individual failures.
func (o *Orchestrator) releaseStock(ctx context.Context, a *attempt) {
	ctx = context.WithoutCancel(ctx)
	log := logger.WithTrace(ctx, o.logger).With(zap.String("checkout_id", a.id))

	for i := len(a.applied) - 1; i >= 0; i-- {
		id := a.applied[i]
		p, err := o.inventory.GetProductByID(ctx, id)
		if err != nil {
			log.Error("failed to re-read product for restore", zap.Int64("product_id", id), zap.Error(err))
			continue
		}
		for _, line := range a.cart.Items {
			if line.ProductID != id {
				continue
			}
			if err := inventory.Increment(p, line.Size, line.Quantity); err != nil {
				log.Error("failed to give back stock",
					zap.Int64("product_id", id),
					zap.String("size", line.Size.String()),
					zap.Error(err))
			}
		}
		if err := o.inventory.UpdateProductStock(ctx, id, inventory.SnapshotOf(p)); err != nil {
			log.Error("failed to restore stock", zap.Int64("product_id", id), zap.Error(err))
			continue
		}
		log.Info("stock restored", zap.Int64("product_id", id))
	}
	a.applied = nil
}
