package handler

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apporder "github.com/erp/storefront/internal/application/order"
	"github.com/erp/storefront/internal/domain/order"
	"github.com/erp/storefront/internal/domain/shared"
	"github.com/erp/storefront/internal/interfaces/http/middleware"
)

func TestOrderHandler_Review(t *testing.T) {
	env := newCartEnv(t)

	var form order.Form
	w := env.do(http.MethodGet, "/order/form", "")
	statusOK(t, w)
	decode(t, w, &form)
	assert.Equal(t, "Alice", form.Name, "orderer defaults to the identity")

	t.Run("empty cart", func(t *testing.T) {
		info := requireError(t, env.do(http.MethodPost, "/order/review", `{"name":"Alice"}`),
			http.StatusBadRequest, shared.CodeValidationFailed)
		assert.Equal(t, order.MsgCartEmpty, info.Message)
	})

	cartOf(t, env, http.MethodPut, "/cart/items/Fuji", `{"qty":2}`)
	cartOf(t, env, http.MethodPut, "/cart/items/Gala", `{"qty":1}`)

	t.Run("blank name", func(t *testing.T) {
		info := requireError(t, env.do(http.MethodPost, "/order/review", `{"name":"   "}`),
			http.StatusBadRequest, shared.CodeValidationFailed)
		assert.Equal(t, order.MsgOrdererNameRequired, info.Message)
	})

	w = env.do(http.MethodPost, "/order/review", `{"name":" Shop B ","phone":"0912","remarks":"door"}`)
	statusOK(t, w)
	var review apporder.Review
	decode(t, w, &review)
	assert.True(t, decimal.NewFromInt(130).Equal(review.Total), review.Total.String())
	assert.Equal(t, "Shop B", review.Form.Name, "form is trimmed")
	require.Len(t, review.Lines, 2)

	w = env.do(http.MethodDelete, "/order/review/lines/Fuji", "")
	statusOK(t, w)
	decode(t, w, &review)
	assert.True(t, decimal.NewFromInt(30).Equal(review.Total))

	w = env.do(http.MethodDelete, "/order/review/lines/Gala", "")
	statusOK(t, w)
	decode(t, w, &review)
	assert.True(t, review.Empty)
}

func TestOrderHandler_Submit(t *testing.T) {
	env := newCartEnv(t)
	env.backend.On("SubmitOrder", mock.Anything, mock.MatchedBy(func(p *order.Payload) bool {
		return p.Name == "Shop B" && len(p.Orders) == 1
	})).Return(nil).Once()

	cartOf(t, env, http.MethodPut, "/cart/items/Fuji", `{"qty":2}`)
	statusOK(t, env.do(http.MethodPost, "/order/review", `{"name":"Shop B"}`))

	w := env.do(http.MethodPost, "/order/submit", "", middleware.IdempotencyKeyHeader, "key-1")
	statusOK(t, w)
	var result apporder.SubmitResult
	decode(t, w, &result)
	assert.Equal(t, "key-1", result.IdempotencyKey)
	assert.Equal(t, "Alice", result.Form.Name, "form resets to the identity defaults")

	resp := cartOf(t, env, http.MethodGet, "/cart", "")
	assert.True(t, resp.Cart.IsEmpty(), "cart is cleared after a successful submit")

	t.Run("replayed key is rejected", func(t *testing.T) {
		cartOf(t, env, http.MethodPut, "/cart/items/Fuji", `{"qty":1}`)
		requireError(t, env.do(http.MethodPost, "/order/submit", "", middleware.IdempotencyKeyHeader, "key-1"),
			http.StatusConflict, shared.CodeDuplicateSubmission)
	})
	env.backend.AssertNumberOfCalls(t, "SubmitOrder", 1)
}

func TestOrderHandler_Submit_BackendFailure(t *testing.T) {
	env := newCartEnv(t)
	env.backend.On("SubmitOrder", mock.Anything, mock.Anything).
		Return(shared.NewRemoteRequestFailed("quota exceeded")).Once()
	env.backend.On("SubmitOrder", mock.Anything, mock.Anything).Return(nil).Once()

	cartOf(t, env, http.MethodPut, "/cart/items/Gala", `{"qty":3}`)
	statusOK(t, env.do(http.MethodPost, "/order/review", `{"name":"Shop B"}`))

	info := requireError(t, env.do(http.MethodPost, "/order/submit", "", middleware.IdempotencyKeyHeader, "key-9"),
		http.StatusBadGateway, shared.CodeRemoteRequestFailed)
	assert.Equal(t, "quota exceeded", info.Message)

	resp := cartOf(t, env, http.MethodGet, "/cart", "")
	assert.Len(t, resp.Cart.Lines, 1, "cart survives a failed submit")

	var form order.Form
	decode(t, env.do(http.MethodGet, "/order/form", ""), &form)
	assert.Equal(t, "Shop B", form.Name, "form survives a failed submit")

	statusOK(t, env.do(http.MethodPost, "/order/submit", "", middleware.IdempotencyKeyHeader, "key-9"))
}

func TestOrderHandler_Submit_ValidationFailure(t *testing.T) {
	env := newCartEnv(t)

	info := requireError(t, env.do(http.MethodPost, "/order/submit", ""), http.StatusBadRequest, shared.CodeValidationFailed)
	assert.Equal(t, order.MsgCartEmpty, info.Message)
	env.backend.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything)
}
