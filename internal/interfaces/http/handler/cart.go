package handler

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/erp/storefront/internal/application/storefront"
	"github.com/erp/storefront/internal/domain/cart"
	"github.com/erp/storefront/internal/domain/shared"
)

// CartHandler handles the quantity controls
type CartHandler struct {
	WorkspaceHandler
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(registry *storefront.Registry) *CartHandler {
	return &CartHandler{WorkspaceHandler{registry: registry}}
}

// SetQuantityRequest carries the typed quantity. Qty may be a JSON number or
// the raw text of the input field.
type SetQuantityRequest struct {
	Qty json.RawMessage `json:"qty" binding:"required"`
}

// AdjustQuantityRequest carries a +/- step
type AdjustQuantityRequest struct {
	Delta int `json:"delta" binding:"ne=0"`
}

// CartResponse is the line that changed plus the whole cart
type CartResponse struct {
	Item string        `json:"item,omitempty"`
	Qty  int           `json:"qty"`
	Cart cart.Snapshot `json:"cart"`
}

// GetCart godoc
// @Summary      Cart contents
// @Tags         cart
// @Produce      json
// @Success      200 {object} dto.Response
// @Router       /cart [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	h.Success(c, CartResponse{Cart: ws.Cart.Snapshot()})
}

// SetQuantity godoc
// @Summary      Set an item's quantity
// @Description  Non-numeric input counts as 0, which removes the line
// @Tags         cart
// @Accept       json
// @Produce      json
// @Param        item    path string             true "Item name"
// @Param        request body SetQuantityRequest true "Quantity"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /cart/items/{item} [put]
func (h *CartHandler) SetQuantity(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	var req SetQuantityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	key := c.Param("item")
	qty := parseQuantity(req.Qty)
	if qty == 0 {
		ws.Cart.Remove(key)
		h.Success(c, CartResponse{Item: key, Cart: ws.Cart.Snapshot()})
		return
	}

	item, found := ws.Catalog.Item(key)
	if !found {
		h.HandleError(c, shared.NewDomainError(shared.CodeNotFound, "Item is not in the current catalog"))
		return
	}
	ws.Cart.SetQuantity(key, item, qty)
	h.Success(c, CartResponse{Item: key, Qty: ws.Cart.Quantity(key), Cart: ws.Cart.Snapshot()})
}

// AdjustQuantity godoc
// @Summary      Step an item's quantity up or down
// @Tags         cart
// @Accept       json
// @Produce      json
// @Param        item    path string                true "Item name"
// @Param        request body AdjustQuantityRequest true "Step"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /cart/items/{item}/adjust [post]
func (h *CartHandler) AdjustQuantity(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	var req AdjustQuantityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	key := c.Param("item")
	item, found := ws.Catalog.Item(key)
	if !found {
		if req.Delta < 0 {
			h.Success(c, CartResponse{Item: key, Cart: ws.Cart.Snapshot()})
			return
		}
		h.HandleError(c, shared.NewDomainError(shared.CodeNotFound, "Item is not in the current catalog"))
		return
	}
	qty := ws.Cart.Adjust(key, item, req.Delta)
	h.Success(c, CartResponse{Item: key, Qty: qty, Cart: ws.Cart.Snapshot()})
}

// RemoveItem godoc
// @Summary      Remove an item from the cart
// @Tags         cart
// @Produce      json
// @Param        item path string true "Item name"
// @Success      200 {object} dto.Response
// @Router       /cart/items/{item} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	key := c.Param("item")
	ws.Cart.Remove(key)
	h.Success(c, CartResponse{Item: key, Cart: ws.Cart.Snapshot()})
}

// parseQuantity accepts the input field's text or a number. Numbers are
// expanded first, so 1e3 is 1000 and 2.5 is 2.
func parseQuantity(raw json.RawMessage) int {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return cart.ParseQuantity(text)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		if f, err := num.Float64(); err == nil {
			return cart.ParseQuantity(strconv.FormatFloat(f, 'f', -1, 64))
		}
	}
	return cart.ParseQuantity(string(raw))
}
