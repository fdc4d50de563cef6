package domain

import "strings"

type Category string

const (
	CategoryRunning Category = "running"
	CategoryCasual  Category = "casual"
	CategoryFormal  Category = "formal"
	CategoryBoots   Category = "boots"
	CategorySandals Category = "sandals"
	CategoryKids    Category = "kids"
	CategoryOther   Category = "other"
)

// ParseCategory maps a backend category label onto a known Category.
// Anything unrecognised becomes CategoryOther.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryRunning:
		return CategoryRunning
	case CategoryCasual:
		return CategoryCasual
	case CategoryFormal:
		return CategoryFormal
	case CategoryBoots:
		return CategoryBoots
	case CategorySandals:
		return CategorySandals
	case CategoryKids:
		return CategoryKids
	default:
		return CategoryOther
	}
}

// Badge returns the display colour used for the category tag.
func (c Category) Badge() string {
	switch c {
	case CategoryRunning:
		return "blue"
	case CategoryCasual:
		return "green"
	case CategoryFormal:
		return "black"
	case CategoryBoots:
		return "brown"
	case CategorySandals:
		return "orange"
	case CategoryKids:
		return "purple"
	case CategoryOther:
		return "gray"
	default:
		return "gray"
	}
}

func (c *Category) UnmarshalText(text []byte) error {
	*c = ParseCategory(string(text))
	return nil
}
