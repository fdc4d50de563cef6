// Package events announces placed orders to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

const EventTypeOrderPlaced = "OrderPlaced"

// OrderPlaced is emitted once per successful checkout.
type OrderPlaced struct {
	OrderID    string            `json:"order_id"`
	CheckoutID string            `json:"checkout_id"`
	UserID     string            `json:"user_id"`
	Items      []domain.LineItem `json:"items"`
	Total      decimal.Decimal   `json:"total"`
	Currency   string            `json:"currency"`
	PlacedAt   time.Time         `json:"placed_at"`
}

func NewOrderPlaced(order *domain.Order) OrderPlaced {
	return OrderPlaced{
		OrderID:    order.ID,
		CheckoutID: order.CheckoutID,
		UserID:     order.UserID,
		Items:      order.Items,
		Total:      order.Total,
		Currency:   order.Currency,
		PlacedAt:   order.CreatedAt,
	}
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, event OrderPlaced) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishOrderPlaced(context.Context, OrderPlaced) error { return nil }
func (NopPublisher) Close() error                                          { return nil }
