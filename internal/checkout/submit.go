package checkout

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

func (o *Orchestrator) submit(ctx context.Context, a *attempt) (*domain.Order, error) {
	const op = "checkout.submit"

	order, err := o.orders.CreateOrder(ctx, o.draft(a))
	if err == nil && order == nil {
		err = errors.New("order backend returned no order")
	}
	if err != nil {
		o.releaseStock(ctx, a)
		return nil, domain.NewError(domain.KindOrderCreation, op, reasonOrderCreation, err)
	}
	return order, nil
}

func (o *Orchestrator) draft(a *attempt) domain.OrderDraft {
	quote := o.cfg.Policy.Quote(a.cart.Items, decimal.Zero)
	items := make([]domain.LineItem, len(a.cart.Items))
	copy(items, a.cart.Items)

	return domain.OrderDraft{
		CheckoutID:      a.id,
		UserID:          a.user.ID,
		UserName:        a.user.Nombre,
		UserEmail:       a.user.Email,
		Items:           items,
		Subtotal:        quote.Subtotal,
		Discount:        quote.Discount,
		ShippingFee:     quote.ShippingFee,
		Total:           quote.Total,
		Currency:        o.cfg.Currency,
		Status:          domain.OrderStatusPending,
		ShippingAddress: a.user.ShippingAddress(),
	}
}
