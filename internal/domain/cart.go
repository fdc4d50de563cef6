package domain

import (
	"github.com/shopspring/decimal"
)

// LineItem is one cart row. ProductID and Size together identify it.
type LineItem struct {
	ProductID         int64           `json:"productId"`
	Size              Size            `json:"size,omitempty"`
	Name              string          `json:"name"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	ImageURL          string          `json:"imageUrl,omitempty"`
	Category          Category        `json:"category"`
	Quantity          int             `json:"quantity"`
	InventoryRecordID int64           `json:"inventoryRecordId,omitempty"`
}

func (li LineItem) Matches(productID int64, size Size) bool {
	return li.ProductID == productID && li.Size == size
}

func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// NewLineItem snapshots the product's display data for the cart.
func NewLineItem(p *Product, size Size, quantity int) LineItem {
	item := LineItem{
		ProductID: p.ID,
		Size:      size,
		Name:      p.Name,
		UnitPrice: p.Price,
		ImageURL:  p.ImageURL,
		Category:  p.Category,
		Quantity:  quantity,
	}
	if size != NoSize {
		if entry, ok := p.SizeEntry(size); ok {
			item.InventoryRecordID = entry.InventoryRecordID
		}
	}
	return item
}

// Cart is a read model: Total and ItemCount are derived from Items.
type Cart struct {
	Items     []LineItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

// NewCart derives the aggregates from items.
func NewCart(items []LineItem) Cart {
	c := Cart{Items: items, Total: decimal.Zero}
	if c.Items == nil {
		c.Items = []LineItem{}
	}
	for _, it := range c.Items {
		c.Total = c.Total.Add(it.LineTotal())
		c.ItemCount += it.Quantity
	}
	return c
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
