package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/storefront/internal/application/storefront"
	"github.com/erp/storefront/internal/domain/order"
	"github.com/erp/storefront/internal/interfaces/http/middleware"
)

// OrderHandler handles the order form, its review and submission
type OrderHandler struct {
	WorkspaceHandler
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(registry *storefront.Registry) *OrderHandler {
	return &OrderHandler{WorkspaceHandler{registry: registry}}
}

// GetForm godoc
// @Summary      Current order form
// @Tags         order
// @Produce      json
// @Success      200 {object} dto.Response
// @Router       /order/form [get]
func (h *OrderHandler) GetForm(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	h.Success(c, ws.Orders.Form())
}

// OpenReview godoc
// @Summary      Review the order
// @Description  Validates the form against the cart and returns the lines with their total
// @Tags         order
// @Accept       json
// @Produce      json
// @Param        request body order.Form true "Order form"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Router       /order/review [post]
func (h *OrderHandler) OpenReview(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	var form order.Form
	if !h.BindJSON(c, &form) {
		return
	}

	review, err := ws.Orders.OpenReview(form)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, review)
}

// RemoveReviewLine godoc
// @Summary      Remove a line from the review
// @Tags         order
// @Produce      json
// @Param        item path string true "Item name"
// @Success      200 {object} dto.Response
// @Router       /order/review/lines/{item} [delete]
func (h *OrderHandler) RemoveReviewLine(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	review, err := ws.Orders.RemoveLine(c.Request.Context(), c.Param("item"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, review)
}

// Submit godoc
// @Summary      Submit the order
// @Description  Sends the reviewed cart to the backend. Retrying with the same Idempotency-Key after a success is rejected.
// @Tags         order
// @Produce      json
// @Param        Idempotency-Key header string false "Client supplied idempotency key"
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /order/submit [post]
func (h *OrderHandler) Submit(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	result, err := ws.Orders.Submit(c.Request.Context(), c.GetHeader(middleware.IdempotencyKeyHeader))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
