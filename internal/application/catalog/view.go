// Package catalog keeps the per-session catalog view: the sorted categories,
// the active category and the items loaded for it.
package catalog

import (
	"context"
	"sync"

	"github.com/erp/storefront/internal/domain/cart"
	"github.com/erp/storefront/internal/domain/catalog"
	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/shared"
	"github.com/erp/storefront/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Gateway is the part of the remote backend the catalog view reads from
type Gateway interface {
	FetchInitialData(ctx context.Context, user *identity.UserIdentity) (*catalog.InitialData, error)
	FetchItems(ctx context.Context, index catalog.CategoryIndex) ([]catalog.CatalogItem, error)
}

// Status of the item list for the active category
type Status string

const (
	StatusUnloaded   Status = "unloaded"
	StatusLoading    Status = "loading"
	StatusLoaded     Status = "loaded"
	StatusLoadFailed Status = "load_failed"
)

// View is the catalog as one session sees it.
//
// Every item fetch is tagged with a generation number. Only the response for
// the latest generation is applied; older responses are dropped so a slow
// reply for a previous category can never overwrite a newer selection.
type View struct {
	gateway Gateway
	cart    *cart.Store
	locale  string
	logger  *zap.Logger

	mu               sync.Mutex
	categoriesLoaded bool
	categories       []catalog.Category
	active           catalog.CategoryIndex
	hasActive        bool
	status           Status
	items            []catalog.CatalogItem
	message          string
	generation       uint64
}

// NewView creates an unloaded view. Quantities shown next to items are read
// from store.
func NewView(gateway Gateway, store *cart.Store, locale string, logger *zap.Logger) *View {
	if locale == "" {
		locale = catalog.DefaultCollationLocale
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &View{
		gateway: gateway,
		cart:    store,
		locale:  locale,
		logger:  logger,
		status:  StatusUnloaded,
	}
}

// Load fetches the initial data, sorts the categories and selects the first
// one. It returns the orderer name the backend has saved for the user, if
// any. A failed item fetch for the first category is reported through the
// view state, not as an error.
func (v *View) Load(ctx context.Context, user *identity.UserIdentity) (customerName string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "catalog", "load")
	defer func() { telemetry.End(span, err) }()

	data, err := v.gateway.FetchInitialData(ctx, user)
	if err != nil {
		v.mu.Lock()
		// in-flight item fetches belong to the catalog being torn down
		v.generation++
		v.categoriesLoaded = false
		v.categories = nil
		v.hasActive = false
		v.active = ""
		v.status = StatusUnloaded
		v.items = nil
		v.message = ""
		v.mu.Unlock()
		v.logger.Warn("Failed to load initial catalog data", zap.Error(err))
		return "", err
	}

	sorted := catalog.SortCategories(data.Categories, v.locale)
	span.SetAttributes(attribute.Int(telemetry.SpanAttrItemCount, len(sorted)))

	v.mu.Lock()
	v.categoriesLoaded = true
	v.categories = sorted
	v.mu.Unlock()

	if len(sorted) == 0 {
		v.logger.Info("Catalog has no categories")
		return data.CustomerName, nil
	}

	if _, selErr := v.Select(ctx, sorted[0].Index); selErr != nil {
		v.logger.Warn("Failed to load items for first category",
			zap.String("category", sorted[0].Index.String()),
			zap.Error(selErr))
	}
	return data.CustomerName, nil
}

// Select makes index the active category and fetches its items. The returned
// state reflects the view after this call's response was applied, or, when a
// later selection superseded it, the view as that later selection left it
// with Superseded set.
func (v *View) Select(ctx context.Context, index catalog.CategoryIndex) (state State, err error) {
	v.mu.Lock()
	if !v.categoriesLoaded {
		v.mu.Unlock()
		return State{}, shared.NewDomainError(shared.CodeNotFound, "Catalog is not loaded")
	}
	if _, ok := catalog.FindCategory(v.categories, index); !ok {
		v.mu.Unlock()
		return State{}, shared.NewDomainError(shared.CodeNotFound, "Category not found")
	}
	v.generation++
	gen := v.generation
	v.active = index
	v.hasActive = true
	v.status = StatusLoading
	v.items = nil
	v.message = ""
	v.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "catalog", "select",
		attribute.String(telemetry.SpanAttrCategory, index.String()),
		attribute.Int64(telemetry.SpanAttrGeneration, int64(gen)),
	)
	defer func() { telemetry.End(span, err) }()

	items, fetchErr := v.gateway.FetchItems(ctx, index)

	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.generation {
		span.SetAttributes(attribute.Bool(telemetry.SpanAttrSuperseded, true))
		v.logger.Debug("Discarding superseded item response",
			zap.String("category", index.String()),
			zap.Uint64("generation", gen),
			zap.Uint64("latest", v.generation))
		state = v.stateLocked()
		state.Superseded = true
		return state, nil
	}

	if fetchErr != nil {
		v.status = StatusLoadFailed
		v.message = fetchErr.Error()
		return v.stateLocked(), fetchErr
	}

	if items == nil {
		items = []catalog.CatalogItem{}
	}
	v.status = StatusLoaded
	v.items = items
	span.SetAttributes(attribute.Int(telemetry.SpanAttrItemCount, len(items)))
	return v.stateLocked(), nil
}

// Reload fetches the active category again. Without an active category it
// only returns the current state.
func (v *View) Reload(ctx context.Context) (State, error) {
	v.mu.Lock()
	active, ok := v.active, v.hasActive
	v.mu.Unlock()
	if !ok {
		return v.State(), nil
	}
	return v.Select(ctx, active)
}

// Loaded reports whether the categories have been fetched
func (v *View) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.categoriesLoaded
}

// State returns the view for rendering, with current cart quantities
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

// Item returns the record a quantity control acts on: the item from the
// loaded list, or the line already in the cart.
func (v *View) Item(key string) (catalog.CatalogItem, bool) {
	v.mu.Lock()
	for _, it := range v.items {
		if it.Key() == key {
			v.mu.Unlock()
			return it, true
		}
	}
	v.mu.Unlock()

	if line, ok := v.cart.Line(key); ok {
		return line.CatalogItem, true
	}
	return catalog.CatalogItem{}, false
}

func (v *View) stateLocked() State {
	s := State{
		Categories:   make([]catalog.Category, len(v.categories)),
		Status:       v.status,
		Message:      v.message,
		Generation:   v.generation,
		NoCategories: v.categoriesLoaded && len(v.categories) == 0,
		NoItems:      v.status == StatusLoaded && len(v.items) == 0,
	}
	copy(s.Categories, v.categories)
	if v.hasActive {
		s.ActiveCategory = v.active
	}
	s.Items = make([]ItemView, 0, len(v.items))
	for _, it := range v.items {
		s.Items = append(s.Items, ItemView{
			CatalogItem: it,
			Label:       it.Label(),
			Qty:         v.cart.Quantity(it.Key()),
		})
	}
	return s
}
