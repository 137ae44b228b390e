package catalog

import (
	"github.com/shopspring/decimal"
)

// CatalogItem is a purchasable item within a category.
//
// Item is the display name and doubles as the cart key: two categories that
// list the same display name share one cart quantity. The catalog data is
// expected to keep display names unique across categories.
type CatalogItem struct {
	Item     string          `json:"item"`
	Unit     string          `json:"unit,omitempty"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl,omitempty"`
}

// Key returns the cart join key for the item
func (i CatalogItem) Key() string {
	return i.Item
}

// Label returns the display label, "name / unit" when a unit is present
func (i CatalogItem) Label() string {
	if i.Unit == "" {
		return i.Item
	}
	return i.Item + " / " + i.Unit
}

// NormalizePrice clamps a price to be non-negative
func NormalizePrice(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}
