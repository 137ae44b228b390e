// Package order turns a session's cart into a reviewed, submitted order.
package order

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	appcatalog "github.com/erp/storefront/internal/application/catalog"
	"github.com/erp/storefront/internal/domain/cart"
	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/order"
	"github.com/erp/storefront/internal/domain/shared"
	"github.com/erp/storefront/internal/infrastructure/telemetry"
)

// Submitter sends a finalized order to the backend
type Submitter interface {
	SubmitOrder(ctx context.Context, payload *order.Payload) error
}

// CatalogReloader re-syncs the catalog view after the cart changed
type CatalogReloader interface {
	Reload(ctx context.Context) (appcatalog.State, error)
}

// Service handles review and submission for one session
type Service struct {
	cart        *cart.Store
	catalog     CatalogReloader
	submitter   Submitter
	idempotency shared.IdempotencyStore
	config      shared.IdempotencyConfig
	logger      *zap.Logger
	metrics     *telemetry.StorefrontMetrics

	mu   sync.Mutex
	form order.Form
	user *identity.UserIdentity

	submitting atomic.Bool
}

// NewService creates a review service. idempotency may be nil, in which case
// duplicate keys are not tracked.
func NewService(
	store *cart.Store,
	reloader CatalogReloader,
	submitter Submitter,
	idempotency shared.IdempotencyStore,
	config shared.IdempotencyConfig,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cart:        store,
		catalog:     reloader,
		submitter:   submitter,
		idempotency: idempotency,
		config:      config,
		logger:      logger,
	}
}

// WithMetrics records submission outcomes on m
func (s *Service) WithMetrics(m *telemetry.StorefrontMetrics) *Service {
	s.metrics = m
	return s
}

// SetIdentity sets the orderer and resets the form to their defaults
func (s *Service) SetIdentity(user *identity.UserIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user.Clone()
	s.form = order.DefaultForm(s.user)
}

// Form returns the current form
func (s *Service) Form() order.Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// OpenReview validates the form against the cart, keeps it, and returns the
// review. Validation failures leave the stored form unchanged.
func (s *Service) OpenReview(form order.Form) (*Review, error) {
	form = form.Normalize()
	snap := s.cart.Snapshot()
	if err := order.Validate(form, snap); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.form = form
	s.mu.Unlock()

	return newReview(snap, form), nil
}

// Review returns the review for the current cart and form
func (s *Service) Review() *Review {
	return newReview(s.cart.Snapshot(), s.Form())
}

// RemoveLine drops key from the cart and re-syncs the catalog view. An empty
// cart yields a review with Empty set.
func (s *Service) RemoveLine(ctx context.Context, key string) (*Review, error) {
	s.cart.Remove(key)
	if _, err := s.catalog.Reload(ctx); err != nil {
		s.logger.Warn("Failed to re-sync catalog after line removal",
			zap.String("item", key),
			zap.Error(err))
	}
	return s.Review(), nil
}

// Submit sends the cart and form to the backend.
//
// Only one submission per session may be in flight. The idempotency key is
// claimed before the backend is called; a key that is already claimed is
// rejected, and the claim is released again if the backend call fails so
// the user can retry.
func (s *Service) Submit(ctx context.Context, idempotencyKey string) (result *SubmitResult, err error) {
	var snap cart.Snapshot
	defer func() { s.metrics.RecordSubmission(ctx, err, snap.Total) }()

	if !s.submitting.CompareAndSwap(false, true) {
		return nil, shared.ErrSubmissionInProgress
	}
	defer s.submitting.Store(false)

	s.mu.Lock()
	form, user := s.form, s.user.Clone()
	s.mu.Unlock()

	if user == nil {
		return nil, shared.ErrUnauthorized
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	}

	snap = s.cart.Snapshot()
	payload, err := order.NewPayload(form, snap, user, idempotencyKey)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "order", "submit",
		attribute.Int(telemetry.SpanAttrLineCount, len(payload.Orders)),
		attribute.String(telemetry.SpanAttrIdempotency, idempotencyKey),
	)
	defer func() { telemetry.End(span, err) }()

	claimed, err := s.claim(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}

	if err := s.submitter.SubmitOrder(ctx, payload); err != nil {
		s.logger.Warn("Order submission failed",
			zap.String("idempotency_key", idempotencyKey),
			zap.Int("lines", len(payload.Orders)),
			zap.Error(err))
		if claimed {
			s.release(ctx, idempotencyKey)
		}
		return nil, err
	}

	s.logger.Info("Order submitted",
		zap.String("idempotency_key", idempotencyKey),
		zap.String("user_id", user.UserID),
		zap.Int("lines", len(payload.Orders)))

	s.cart.Clear()
	s.mu.Lock()
	s.form = order.DefaultForm(s.user)
	form = s.form
	s.mu.Unlock()

	result = &SubmitResult{IdempotencyKey: idempotencyKey, Form: form}
	state, reloadErr := s.catalog.Reload(ctx)
	if reloadErr != nil {
		s.logger.Warn("Failed to re-sync catalog after submission", zap.Error(reloadErr))
	}
	result.Catalog = state
	return result, nil
}

// Submitting reports whether a submission is in flight
func (s *Service) Submitting() bool {
	return s.submitting.Load()
}

func (s *Service) claim(ctx context.Context, key string) (bool, error) {
	if s.idempotency == nil || !s.config.Enabled {
		return false, nil
	}
	isNew, err := s.idempotency.MarkProcessed(ctx, key, s.config.TTL)
	if err != nil {
		s.logger.Error("Failed to claim idempotency key", zap.String("idempotency_key", key), zap.Error(err))
		return false, shared.NewDomainError("INTERNAL_ERROR", "Failed to record the submission")
	}
	if !isNew {
		s.logger.Warn("Duplicate order submission rejected", zap.String("idempotency_key", key))
		return false, shared.ErrDuplicateSubmission
	}
	return true, nil
}

func (s *Service) release(ctx context.Context, key string) {
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.Error("Failed to release idempotency key", zap.String("idempotency_key", key), zap.Error(err))
	}
}
