package identity

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/shared"
	"github.com/erp/storefront/internal/infrastructure/telemetry"
)

// SessionService caches the resolved identity per session and delegates
// resolution to the configured strategy on a miss
type SessionService struct {
	store    identity.Store
	resolver Resolver
	ttl      time.Duration
	logger   *zap.Logger
	metrics  *telemetry.StorefrontMetrics
}

// NewSessionService creates a session service
func NewSessionService(store identity.Store, resolver Resolver, ttl time.Duration, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		store:    store,
		resolver: resolver,
		ttl:      ttl,
		logger:   logger,
	}
}

// WithMetrics records login outcomes on m
func (s *SessionService) WithMetrics(m *telemetry.StorefrontMetrics) *SessionService {
	s.metrics = m
	return s
}

// Strategy returns the configured strategy name
func (s *SessionService) Strategy() string {
	return s.resolver.Strategy()
}

// Popup returns the popup resolver when that strategy is configured
func (s *SessionService) Popup() (*PopupResolver, bool) {
	p, ok := s.resolver.(*PopupResolver)
	return p, ok
}

// ResolveIdentity returns the session's identity, resolving and caching it
// when the session has none yet
func (s *SessionService) ResolveIdentity(ctx context.Context, sessionID string, creds Credentials) (user *identity.UserIdentity, err error) {
	ctx, span := telemetry.StartSpan(ctx, "identity", "resolve",
		attribute.String(telemetry.SpanAttrStrategy, s.resolver.Strategy()))
	defer func() { telemetry.End(span, err) }()

	cached, err := s.store.Get(ctx, sessionID)
	if err != nil {
		s.logger.Error("Failed to read session identity", zap.Error(err))
		return nil, shared.NewLoginFailed(DefaultLoginFailedMessage)
	}
	if cached != nil {
		return cached, nil
	}

	user, err = s.resolver.Resolve(ctx, sessionID, creds)
	s.metrics.RecordLogin(ctx, s.resolver.Strategy(), err)
	if err != nil {
		return nil, err
	}

	if err := s.SaveIdentity(ctx, sessionID, user); err != nil {
		return nil, shared.NewLoginFailed(DefaultLoginFailedMessage)
	}

	s.logger.Info("LINE user logged in",
		zap.String("strategy", s.resolver.Strategy()),
		zap.String("user_id", user.UserID))
	return user, nil
}

// SessionIdentity returns the cached identity, or UNAUTHORIZED when the
// session is not logged in
func (s *SessionService) SessionIdentity(ctx context.Context, sessionID string) (*identity.UserIdentity, error) {
	user, err := s.store.Get(ctx, sessionID)
	if err != nil {
		s.logger.Error("Failed to read session identity", zap.Error(err))
		return nil, err
	}
	if user == nil {
		return nil, shared.ErrUnauthorized
	}
	return user, nil
}

// SaveIdentity replaces the cached identity, e.g. after the backend supplied
// a saved customer name
func (s *SessionService) SaveIdentity(ctx context.Context, sessionID string, user *identity.UserIdentity) error {
	if err := s.store.Save(ctx, sessionID, user, s.ttl); err != nil {
		s.logger.Error("Failed to save session identity", zap.Error(err))
		return err
	}
	return nil
}

// Logout drops the cached identity
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		s.logger.Error("Failed to delete session identity", zap.Error(err))
		return err
	}
	return nil
}
