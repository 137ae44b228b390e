package cart

import (
	"github.com/erp/storefront/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// Line is a catalog item annotated with the chosen quantity. Qty is always >= 1.
type Line struct {
	catalog.CatalogItem
	Qty int `json:"qty"`
}

// Subtotal returns price x qty
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// Snapshot is a point-in-time view of the cart
type Snapshot struct {
	Lines []Line          `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// IsEmpty reports whether the snapshot has no lines
func (s Snapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}
