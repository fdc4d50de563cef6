package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderDraft is what checkout submits to the sales backend.
// CheckoutID identifies the checkout attempt and makes submission idempotent.
type OrderDraft struct {
	CheckoutID      string          `json:"checkoutId"`
	UserID          string          `json:"userId"`
	UserName        string          `json:"userName"`
	UserEmail       string          `json:"userEmail"`
	Items           []LineItem      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	ShippingFee     decimal.Decimal `json:"shippingFee"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress string          `json:"shippingAddress"`
}

type Order struct {
	ID string `json:"id"`
	OrderDraft
	CreatedAt time.Time `json:"createdAt"`
}
