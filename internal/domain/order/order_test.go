package order

import (
	"errors"
	"testing"

	"github.com/erp/storefront/internal/domain/cart"
	"github.com/erp/storefront/internal/domain/catalog"
	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotWith(lines ...cart.Line) cart.Snapshot {
	s := cart.NewStore()
	for _, l := range lines {
		s.SetQuantity(l.Item, l.CatalogItem, l.Qty)
	}
	return s.Snapshot()
}

func TestDefaultForm(t *testing.T) {
	user := &identity.UserIdentity{UserID: "U1", DisplayName: "Alice", CustomerName: "Shop A"}
	assert.Equal(t, Form{Name: "Shop A"}, DefaultForm(user))
	assert.Equal(t, Form{}, DefaultForm(nil))
}

func TestValidate(t *testing.T) {
	withLine := snapshotWith(cart.Line{CatalogItem: catalog.CatalogItem{Item: "A", Price: decimal.NewFromInt(1)}, Qty: 1})

	tests := []struct {
		name    string
		form    Form
		snap    cart.Snapshot
		wantMsg string
	}{
		{name: "valid", form: Form{Name: "Shop"}, snap: withLine},
		{name: "blank name", form: Form{Name: "   "}, snap: withLine, wantMsg: MsgOrdererNameRequired},
		{name: "empty cart", form: Form{Name: "Shop"}, snap: cart.Snapshot{}, wantMsg: MsgCartEmpty},
		{name: "name checked first", form: Form{}, snap: cart.Snapshot{}, wantMsg: MsgOrdererNameRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.form, tt.snap)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrValidationFailed))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestNewPayload(t *testing.T) {
	user := &identity.UserIdentity{UserID: "U1", DisplayName: "Alice"}
	snap := snapshotWith(
		cart.Line{CatalogItem: catalog.CatalogItem{Item: "A", Price: decimal.NewFromInt(50)}, Qty: 2},
		cart.Line{CatalogItem: catalog.CatalogItem{Item: "B", Price: decimal.NewFromInt(30)}, Qty: 1},
	)

	p, err := NewPayload(Form{Name: " Shop ", Phone: " 0912 ", Remarks: " fast "}, snap, user, "key-1")
	require.NoError(t, err)

	assert.Equal(t, "Shop", p.Name)
	assert.Equal(t, "0912", p.Phone)
	assert.Equal(t, "fast", p.Remarks)
	assert.Equal(t, "U1", p.LineUserID)
	assert.Equal(t, "key-1", p.IdempotencyKey)
	require.Len(t, p.Orders, 2)

	// payload owns its lines
	snap.Lines[0].Qty = 99
	assert.Equal(t, 2, p.Orders[0].Qty)

	_, err = NewPayload(Form{}, snap, user, "key-2")
	assert.True(t, errors.Is(err, shared.ErrValidationFailed))
}
