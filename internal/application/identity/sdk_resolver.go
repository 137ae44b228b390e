package identity

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/shared"
)

// SDKResolver trusts the access token the embedded LINE SDK obtained in the
// browser, after verifying it with the platform
type SDKResolver struct {
	platform Platform
	logger   *zap.Logger
}

// NewSDKResolver creates a resolver for the sdk strategy
func NewSDKResolver(platform Platform, logger *zap.Logger) *SDKResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SDKResolver{platform: platform, logger: logger}
}

// Strategy implements Resolver
func (r *SDKResolver) Strategy() string {
	return StrategySDK
}

// Resolve verifies the access token and loads the profile behind it
func (r *SDKResolver) Resolve(ctx context.Context, _ string, creds Credentials) (*identity.UserIdentity, error) {
	token := strings.TrimSpace(creds.AccessToken)
	if token == "" {
		return nil, shared.NewLoginFailed("missing access token")
	}

	if _, err := r.platform.VerifyAccessToken(ctx, token); err != nil {
		r.logger.Warn("LINE access token rejected", zap.Error(err))
		return nil, shared.NewLoginFailed(DefaultLoginFailedMessage)
	}

	user, err := profileIdentity(ctx, r.platform, token, r.logger)
	if err != nil {
		r.logger.Warn("Failed to get LINE profile", zap.Error(err))
		return nil, shared.NewLoginFailed(DefaultLoginFailedMessage)
	}
	return user, nil
}
