// Package pricing derives cart totals. Every function is pure; the same
// items always produce the same figures regardless of order.
package pricing

import (
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	DefaultFreeShippingThreshold = decimal.NewFromInt(50000)
	DefaultFlatShippingFee       = decimal.NewFromInt(3000)
)

// Policy holds the shipping rule: orders above FreeShippingThreshold ship
// free, everything else pays FlatFee.
type Policy struct {
	FreeShippingThreshold decimal.Decimal
	FlatFee               decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		FreeShippingThreshold: DefaultFreeShippingThreshold,
		FlatFee:               DefaultFlatShippingFee,
	}
}

type Quote struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	ShippingFee decimal.Decimal `json:"shippingFee"`
	Total       decimal.Decimal `json:"total"`
	ItemCount   int             `json:"itemCount"`
}

func Subtotal(items []domain.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

func (p Policy) ShippingFee(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(p.FreeShippingThreshold) {
		return decimal.Zero
	}
	return p.FlatFee
}

func Total(subtotal, discount, shippingFee decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discount).Add(shippingFee)
}

// Quote prices items with the given discount. No discount engine exists yet,
// callers pass decimal.Zero.
func (p Policy) Quote(items []domain.LineItem, discount decimal.Decimal) Quote {
	subtotal := Subtotal(items)
	fee := p.ShippingFee(subtotal)
	count := 0
	for _, it := range items {
		count += it.Quantity
	}
	return Quote{
		Subtotal:    subtotal,
		Discount:    discount,
		ShippingFee: fee,
		Total:       Total(subtotal, discount, fee),
		ItemCount:   count,
	}
}
