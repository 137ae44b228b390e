package catalog

import "github.com/erp/storefront/internal/domain/catalog"

// ItemView is an item as rendered, with the quantity currently in the cart
type ItemView struct {
	catalog.CatalogItem
	Label string `json:"label"`
	Qty   int    `json:"qty"`
}

// State is a snapshot of the view
type State struct {
	Categories     []catalog.Category    `json:"categories"`
	ActiveCategory catalog.CategoryIndex `json:"activeCategory,omitempty"`
	Status         Status                `json:"status"`
	Items          []ItemView            `json:"items"`
	// Message is the failure text when Status is load_failed
	Message    string `json:"message,omitempty"`
	Generation uint64 `json:"generation"`
	// Superseded is set when the caller's fetch was overtaken by a newer one
	Superseded   bool `json:"superseded,omitempty"`
	NoCategories bool `json:"noCategories"`
	NoItems      bool `json:"noItems"`
}
