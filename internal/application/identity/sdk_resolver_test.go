package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/storefront/internal/domain/shared"
	"github.com/erp/storefront/internal/infrastructure/line"
)

func TestSDKResolver_Resolve(t *testing.T) {
	platform := new(MockPlatform)
	platform.On("VerifyAccessToken", mock.Anything, "tok").Return(&line.TokenInfo{ClientID: "123", ExpiresIn: 100}, nil)
	platform.On("GetProfile", mock.Anything, "tok").Return(&line.Profile{UserID: "U1", DisplayName: "Alice"}, nil)
	platform.On("GetFriendship", mock.Anything, "tok").Return(true, nil)

	r := NewSDKResolver(platform, nil)
	user, err := r.Resolve(context.Background(), "sid", Credentials{AccessToken: " tok "})
	require.NoError(t, err)

	assert.Equal(t, StrategySDK, r.Strategy())
	assert.Equal(t, "U1", user.UserID)
	assert.Equal(t, "Alice", user.DisplayName)
	assert.Equal(t, "Alice", user.CustomerName)
	require.NotNil(t, user.FriendFlag)
	assert.True(t, *user.FriendFlag)
}

func TestSDKResolver_FriendshipIsBestEffort(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	platform := new(MockPlatform)
	platform.On("VerifyAccessToken", mock.Anything, "tok").Return(&line.TokenInfo{ClientID: "123", ExpiresIn: 100}, nil)
	platform.On("GetProfile", mock.Anything, "tok").Return(&line.Profile{UserID: "U1", DisplayName: "Alice"}, nil)
	platform.On("GetFriendship", mock.Anything, "tok").Return(false, errors.New("scope not granted"))

	user, err := NewSDKResolver(platform, zap.New(core)).Resolve(context.Background(), "sid", Credentials{AccessToken: "tok"})
	require.NoError(t, err)

	assert.Nil(t, user.FriendFlag)
	assert.Equal(t, 1, logs.FilterMessage("Failed to get friendship status").Len())
}

func TestSDKResolver_Failures(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		_, err := NewSDKResolver(new(MockPlatform), nil).Resolve(context.Background(), "sid", Credentials{})
		assert.ErrorIs(t, err, shared.ErrLoginFailed)
	})

	t.Run("token rejected", func(t *testing.T) {
		platform := new(MockPlatform)
		platform.On("VerifyAccessToken", mock.Anything, "tok").Return(nil, line.ErrChannelMismatch)

		_, err := NewSDKResolver(platform, nil).Resolve(context.Background(), "sid", Credentials{AccessToken: "tok"})
		assert.ErrorIs(t, err, shared.ErrLoginFailed)
		platform.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
	})

	t.Run("profile fails", func(t *testing.T) {
		platform := new(MockPlatform)
		platform.On("VerifyAccessToken", mock.Anything, "tok").Return(&line.TokenInfo{ExpiresIn: 1}, nil)
		platform.On("GetProfile", mock.Anything, "tok").Return(nil, &line.APIError{StatusCode: 401})

		_, err := NewSDKResolver(platform, nil).Resolve(context.Background(), "sid", Credentials{AccessToken: "tok"})
		assert.ErrorIs(t, err, shared.ErrLoginFailed)
		assert.Equal(t, DefaultLoginFailedMessage, err.Error())
	})
}
