package order

import (
	"strings"

	"github.com/erp/storefront/internal/domain/cart"
	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/shared"
)

// Validation messages
const (
	MsgOrdererNameRequired = "Please enter the orderer or store name"
	MsgCartEmpty           = "Please select at least one item"
)

// Form holds the editable order fields
type Form struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Remarks string `json:"remarks"`
}

// DefaultForm returns the form as it is shown to a fresh orderer
func DefaultForm(user *identity.UserIdentity) Form {
	return Form{Name: user.OrdererName()}
}

// Normalize trims surrounding whitespace from every field
func (f Form) Normalize() Form {
	return Form{
		Name:    strings.TrimSpace(f.Name),
		Phone:   strings.TrimSpace(f.Phone),
		Remarks: strings.TrimSpace(f.Remarks),
	}
}

// Validate checks the orderer name and that the cart has lines
func Validate(form Form, snapshot cart.Snapshot) error {
	if strings.TrimSpace(form.Name) == "" {
		return shared.NewValidationFailed(MsgOrdererNameRequired)
	}
	if snapshot.IsEmpty() {
		return shared.NewValidationFailed(MsgCartEmpty)
	}
	return nil
}

// Payload is the finalized order sent to the backend. It is built fresh for
// each submission attempt and never mutated afterwards.
type Payload struct {
	Name           string      `json:"name"`
	Phone          string      `json:"phone"`
	Remarks        string      `json:"remarks"`
	Orders         []cart.Line `json:"orders"`
	LineUserID     string      `json:"lineUserId"`
	IdempotencyKey string      `json:"idempotencyKey,omitempty"`
}

// NewPayload builds a payload from the form, the cart snapshot and the identity
func NewPayload(form Form, snapshot cart.Snapshot, user *identity.UserIdentity, idempotencyKey string) (*Payload, error) {
	form = form.Normalize()
	if err := Validate(form, snapshot); err != nil {
		return nil, err
	}

	lines := make([]cart.Line, len(snapshot.Lines))
	copy(lines, snapshot.Lines)

	p := &Payload{
		Name:           form.Name,
		Phone:          form.Phone,
		Remarks:        form.Remarks,
		Orders:         lines,
		IdempotencyKey: idempotencyKey,
	}
	if user != nil {
		p.LineUserID = user.UserID
	}
	return p, nil
}
