package router

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/storefront/internal/interfaces/http/handler"
)

// Handlers are the storefront endpoint handlers
type Handlers struct {
	System  *handler.SystemHandler
	Session *handler.SessionHandler
	Catalog *handler.CatalogHandler
	Cart    *handler.CartHandler
	Order   *handler.OrderHandler
}

// Guards are the per-group middleware. Nil entries are skipped.
type Guards struct {
	// RequireIdentity protects the catalog, cart and order groups
	RequireIdentity gin.HandlerFunc
	// SessionLimit throttles the login endpoints
	SessionLimit gin.HandlerFunc
	// SubmitLimit throttles order submission
	SubmitLimit gin.HandlerFunc
}

// Storefront returns the route groups of the ordering page API
func Storefront(h Handlers, g Guards) []RouteRegistrar {
	system := NewGroup("")
	system.GET("/health", h.System.Health)

	session := NewGroup("/session")
	session.Use(nonNil(g.SessionLimit)...)
	session.GET("", h.Session.GetSession)
	session.DELETE("", h.Session.Logout)
	session.POST("/sdk", h.Session.LoginSDK)
	popup := session.Group("/popup")
	popup.POST("/begin", h.Session.BeginPopup)
	popup.GET("/callback", h.Session.PopupCallback)
	popup.POST("/message", h.Session.PopupMessage)

	catalog := NewGroup("/catalog")
	catalog.Use(nonNil(g.RequireIdentity)...)
	catalog.GET("", h.Catalog.GetCatalog)
	catalog.POST("/categories/:index/select", h.Catalog.SelectCategory)

	cart := NewGroup("/cart")
	cart.Use(nonNil(g.RequireIdentity)...)
	cart.GET("", h.Cart.GetCart)
	cart.PUT("/items/:item", h.Cart.SetQuantity)
	cart.POST("/items/:item/adjust", h.Cart.AdjustQuantity)
	cart.DELETE("/items/:item", h.Cart.RemoveItem)

	order := NewGroup("/order")
	order.Use(nonNil(g.RequireIdentity)...)
	order.GET("/form", h.Order.GetForm)
	order.POST("/review", h.Order.OpenReview)
	order.DELETE("/review/lines/:item", h.Order.RemoveReviewLine)
	order.POST("/submit", append(nonNil(g.SubmitLimit), h.Order.Submit)...)

	return []RouteRegistrar{system, session, catalog, cart, order}
}

func nonNil(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}
