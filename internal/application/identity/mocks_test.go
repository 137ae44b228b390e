package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/erp/storefront/internal/infrastructure/auth"
	"github.com/erp/storefront/internal/infrastructure/config"
	"github.com/erp/storefront/internal/infrastructure/line"
)

// MockPlatform is a mock implementation of Platform
type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) VerifyAccessToken(ctx context.Context, accessToken string) (*line.TokenInfo, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*line.TokenInfo), args.Error(1)
}

func (m *MockPlatform) GetProfile(ctx context.Context, accessToken string) (*line.Profile, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*line.Profile), args.Error(1)
}

func (m *MockPlatform) GetFriendship(ctx context.Context, accessToken string) (bool, error) {
	args := m.Called(ctx, accessToken)
	return args.Bool(0), args.Error(1)
}

func (m *MockPlatform) AuthorizeURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockPlatform) ExchangeCode(ctx context.Context, code string) (*line.Token, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*line.Token), args.Error(1)
}

// MockURLSource is a mock implementation of LoginURLSource
type MockURLSource struct {
	mock.Mock
}

func (m *MockURLSource) LoginURL(ctx context.Context, state string) (string, error) {
	args := m.Called(ctx, state)
	return args.String(0), args.Error(1)
}

func newTestJWTService(t *testing.T) *auth.JWTService {
	t.Helper()
	return auth.NewJWTService(config.SessionConfig{
		Secret: "test-secret-key-at-least-32-chars",
		TTL:    time.Hour,
		Issuer: "storefront-test",
	}, 2*time.Minute)
}
