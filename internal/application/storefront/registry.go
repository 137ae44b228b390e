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
	"github.com/erp/storefront/internal/domain/catalog"
	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/order"
	"github.com/erp/storefront/internal/domain/shared"
	"github.com/erp/storefront/internal/infrastructure/telemetry"
)

// defaultCleanupInterval is how often idle workspaces are swept
const defaultCleanupInterval = time.Minute

// Backend is the remote backend as the workspace uses it
type Backend interface {
	FetchInitialData(ctx context.Context, user *identity.UserIdentity) (*catalog.InitialData, error)
	FetchItems(ctx context.Context, index catalog.CategoryIndex) ([]catalog.CatalogItem, error)
	SubmitOrder(ctx context.Context, payload *order.Payload) error
}

// Dependencies are shared by all workspaces
type Dependencies struct {
	Backend           Backend
	Identities        *appidentity.SessionService
	Idempotency       shared.IdempotencyStore
	IdempotencyConfig shared.IdempotencyConfig
	CollationLocale   string
	Logger            *zap.Logger
	// Metrics may be nil
	Metrics *telemetry.StorefrontMetrics
}

// Registry maps session ids to workspaces. Workspaces are created on first
// use and dropped after being idle for longer than the session TTL.
type Registry struct {
	deps    Dependencies
	idleTTL time.Duration
	now     func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace

	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewRegistry creates a registry and starts its cleanup loop
func NewRegistry(deps Dependencies, idleTTL time.Duration) *Registry {
	return newRegistry(deps, idleTTL, defaultCleanupInterval)
}

func newRegistry(deps Dependencies, idleTTL, cleanupInterval time.Duration) *Registry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	r := &Registry{
		deps:       deps,
		idleTTL:    idleTTL,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
		stopCh:     make(chan struct{}),
	}
	go r.cleanupLoop(cleanupInterval)
	return r
}

// Get returns the session's workspace, creating it if needed
func (r *Registry) Get(sessionID string) *Workspace {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	ws, ok := r.workspaces[sessionID]
	if !ok {
		ws = r.newWorkspace(sessionID)
		r.workspaces[sessionID] = ws
		r.deps.Metrics.RecordWorkspaces(context.Background(), len(r.workspaces))
	}
	ws.touch(now)
	return ws
}

// Lookup returns the session's workspace without creating one
func (r *Registry) Lookup(sessionID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[sessionID]
	return ws, ok
}

// Drop discards the session's workspace
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workspaces, sessionID)
	r.deps.Metrics.RecordWorkspaces(context.Background(), len(r.workspaces))
}

// Len returns the number of live workspaces
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Close stops the cleanup loop
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		close(r.stopCh)
	})
	return nil
}

func (r *Registry) newWorkspace(sessionID string) *Workspace {
	logger := r.deps.Logger.With(zap.String("session_id", sessionID))
	store := cart.NewStore()
	view := appcatalog.NewView(r.deps.Backend, store, r.deps.CollationLocale, logger)
	return &Workspace{
		SessionID:  sessionID,
		Cart:       store,
		Catalog:    view,
		Orders: apporder.NewService(store, view, r.deps.Backend, r.deps.Idempotency, r.deps.IdempotencyConfig, logger).
			WithMetrics(r.deps.Metrics),
		identities: r.deps.Identities,
		logger:     logger,
	}
}

func (r *Registry) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCh:
			return
		}
	}
}

// cleanup drops idle workspaces. A workspace with a submission in flight is
// kept until it finishes.
func (r *Registry) cleanup() {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for sid, ws := range r.workspaces {
		if ws.idleSince(now) > r.idleTTL && !ws.Orders.Submitting() {
			delete(r.workspaces, sid)
		}
	}
	r.deps.Metrics.RecordWorkspaces(context.Background(), len(r.workspaces))
}
