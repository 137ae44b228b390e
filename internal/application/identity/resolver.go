// Package identity resolves the LINE user behind a browser session and keeps
// it for the lifetime of the session.
package identity

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/infrastructure/line"
)

// Strategy names
const (
	StrategySDK   = "sdk"
	StrategyPopup = "popup"
)

// DefaultLoginFailedMessage is shown when a login fails without a reason
const DefaultLoginFailedMessage = "LINE login failed, please try again later"

// Credentials are what the browser hands over to prove who the user is.
// Which field is used depends on the strategy.
type Credentials struct {
	// AccessToken is the LIFF SDK access token (sdk strategy)
	AccessToken string
	// Message is the popup's message forwarded by the widget (popup strategy)
	Message *PopupMessage
}

// Resolver turns credentials into a user identity
type Resolver interface {
	Strategy() string
	Resolve(ctx context.Context, sessionID string, creds Credentials) (*identity.UserIdentity, error)
}

// Platform is the part of the LINE platform the resolvers talk to
type Platform interface {
	VerifyAccessToken(ctx context.Context, accessToken string) (*line.TokenInfo, error)
	GetProfile(ctx context.Context, accessToken string) (*line.Profile, error)
	GetFriendship(ctx context.Context, accessToken string) (bool, error)
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*line.Token, error)
}

// profileIdentity fetches the profile for accessToken and, best effort, the
// friendship status. A failed friendship lookup leaves FriendFlag nil.
func profileIdentity(ctx context.Context, platform Platform, accessToken string, logger *zap.Logger) (*identity.UserIdentity, error) {
	profile, err := platform.GetProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	user, err := identity.NewUserIdentity(profile.UserID, profile.DisplayName)
	if err != nil {
		return nil, err
	}

	friend, err := platform.GetFriendship(ctx, accessToken)
	if err != nil {
		logger.Warn("Failed to get friendship status",
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return user, nil
	}
	user.FriendFlag = &friend
	return user, nil
}

func orDefault(message string) string {
	if m := strings.TrimSpace(message); m != "" {
		return m
	}
	return DefaultLoginFailedMessage
}
