package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/storefront/internal/application/storefront"
	"github.com/erp/storefront/internal/domain/catalog"
)

// CatalogHandler serves the category bar and the item list
type CatalogHandler struct {
	WorkspaceHandler
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(registry *storefront.Registry) *CatalogHandler {
	return &CatalogHandler{WorkspaceHandler{registry: registry}}
}

// GetCatalog godoc
// @Summary      Catalog view
// @Description  Initializes the order page on first use and returns the categories and the active category's items
// @Tags         catalog
// @Produce      json
// @Success      200 {object} dto.Response
// @Failure      401 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /catalog [get]
func (h *CatalogHandler) GetCatalog(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	h.Success(c, ws.Catalog.State())
}

// SelectCategory godoc
// @Summary      Select a category
// @Description  Loads the category's items. A response overtaken by a later selection comes back with superseded set.
// @Tags         catalog
// @Produce      json
// @Param        index path string true "Category index"
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /catalog/categories/{index}/select [post]
func (h *CatalogHandler) SelectCategory(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	state, err := ws.Catalog.Select(c.Request.Context(), catalog.CategoryIndex(c.Param("index")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, state)
}
