// Package storefront owns the per-session state of the ordering page: the
// cart, the catalog view, the order form and the identity they belong to.
package storefront

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	appcatalog "github.com/erp/storefront/internal/application/catalog"
	appidentity "github.com/erp/storefront/internal/application/identity"
	apporder "github.com/erp/storefront/internal/application/order"
	"github.com/erp/storefront/internal/domain/cart"
	"github.com/erp/storefront/internal/domain/identity"
)

// Workspace is the state of one browser session. Its parts are shared by
// reference; nothing lives in package-level variables.
type Workspace struct {
	SessionID string
	Cart      *cart.Store
	Catalog   *appcatalog.View
	Orders    *apporder.Service

	identities *appidentity.SessionService
	logger     *zap.Logger

	mu       sync.Mutex
	user     *identity.UserIdentity
	lastSeen time.Time
}

// Identity returns the identity the workspace was bootstrapped for
func (w *Workspace) Identity() *identity.UserIdentity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.user.Clone()
}

// Bootstrap initializes the order page for user: form defaults from the
// identity, the catalog loaded and its first category selected. A customer
// name saved by the backend replaces the identity's and is persisted.
func (w *Workspace) Bootstrap(ctx context.Context, user *identity.UserIdentity) (appcatalog.State, error) {
	user = user.Clone()
	w.mu.Lock()
	w.user = user
	w.mu.Unlock()
	w.Orders.SetIdentity(user)

	customerName, err := w.Catalog.Load(ctx, user)
	if err != nil {
		return appcatalog.State{}, err
	}

	if user != nil && user.ApplyCustomerName(customerName) {
		if err := w.identities.SaveIdentity(ctx, w.SessionID, user); err != nil {
			w.logger.Warn("Failed to persist saved customer name", zap.Error(err))
		}
		w.mu.Lock()
		w.user = user.Clone()
		w.mu.Unlock()
		w.Orders.SetIdentity(user)
	}

	return w.Catalog.State(), nil
}

// EnsureBootstrapped bootstraps when the catalog is not loaded yet or the
// session now belongs to a different user
func (w *Workspace) EnsureBootstrapped(ctx context.Context, user *identity.UserIdentity) (appcatalog.State, error) {
	w.mu.Lock()
	same := w.user != nil && user != nil && w.user.UserID == user.UserID
	w.mu.Unlock()

	if same && w.Catalog.Loaded() {
		return w.Catalog.State(), nil
	}
	if !same {
		w.Cart.Clear()
	}
	return w.Bootstrap(ctx, user)
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *Workspace) idleSince(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return now.Sub(w.lastSeen)
}
