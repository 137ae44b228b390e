package order

import (
	"github.com/shopspring/decimal"

	appcatalog "github.com/erp/storefront/internal/application/catalog"
	"github.com/erp/storefront/internal/domain/cart"
	"github.com/erp/storefront/internal/domain/order"
)

// Review is the order summary shown before confirming
type Review struct {
	Lines []cart.Line     `json:"lines"`
	Total decimal.Decimal `json:"total"`
	Empty bool            `json:"empty"`
	Form  order.Form      `json:"form"`
}

func newReview(snap cart.Snapshot, form order.Form) *Review {
	return &Review{
		Lines: snap.Lines,
		Total: snap.Total,
		Empty: snap.IsEmpty(),
		Form:  form,
	}
}

// SubmitResult is returned after a successful submission
type SubmitResult struct {
	IdempotencyKey string `json:"idempotencyKey"`
	// Form is the reset form for the next order
	Form    order.Form       `json:"form"`
	Catalog appcatalog.State `json:"catalog"`
}
