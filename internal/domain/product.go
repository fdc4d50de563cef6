package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Size is a shoe size label. The empty Size marks a sizeless product.
type Size string

const NoSize Size = ""

// UnmarshalJSON accepts both "42" and 42, the inventory backend sends either.
func (s *Size) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = NoSize
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Size(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid size %s: %w", data, err)
	}
	*s = Size(n.String())
	return nil
}

func (s Size) String() string {
	return string(s)
}

type SizeStock struct {
	Size              Size  `json:"size"`
	Stock             int   `json:"stock"`
	InventoryRecordID int64 `json:"inventoryRecordId,omitempty"`
}

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Category    Category        `json:"category"`
	Stock       int             `json:"stock"`
	StockBySize []SizeStock     `json:"stockBySize,omitempty"`
}

// HasSizes reports whether stock is tracked per size.
func (p *Product) HasSizes() bool {
	return len(p.StockBySize) > 0
}

// SizeEntry returns the stock entry for size, if any.
func (p *Product) SizeEntry(size Size) (SizeStock, bool) {
	for _, s := range p.StockBySize {
		if s.Size == size {
			return s, true
		}
	}
	return SizeStock{}, false
}

// Available returns the units that can be sold for size. A size that the
// product does not carry has nothing available; without a size, or for a
// product without size data, the scalar stock applies.
func (p *Product) Available(size Size) int {
	if size != NoSize && p.HasSizes() {
		entry, ok := p.SizeEntry(size)
		if !ok {
			return 0
		}
		return entry.Stock
	}
	return p.Stock
}

// Clone returns a deep copy so stock can be adjusted without aliasing.
func (p *Product) Clone() *Product {
	c := *p
	if p.StockBySize != nil {
		c.StockBySize = make([]SizeStock, len(p.StockBySize))
		copy(c.StockBySize, p.StockBySize)
	}
	return &c
}
