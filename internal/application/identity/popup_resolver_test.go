package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/shared"
	"github.com/erp/storefront/internal/infrastructure/auth"
	"github.com/erp/storefront/internal/infrastructure/cache"
	"github.com/erp/storefront/internal/infrastructure/line"
)

const (
	publicOrigin  = "https://shop.example.com"
	backendOrigin = "https://script.google.com"
)

type popupFixture struct {
	resolver *PopupResolver
	tickets  *cache.InMemoryTicketStore
	source   *MockURLSource
	platform *MockPlatform
	tokens   *auth.JWTService
}

func newPopupFixture(t *testing.T) *popupFixture {
	t.Helper()
	f := &popupFixture{
		tickets:  cache.NewInMemoryTicketStore(),
		source:   new(MockURLSource),
		platform: new(MockPlatform),
		tokens:   newTestJWTService(t),
	}
	t.Cleanup(func() { _ = f.tickets.Close() })
	f.resolver = NewPopupResolver(f.tickets, f.source, f.platform, f.tokens, PopupConfig{
		PublicOrigin:  publicOrigin + "/",
		BackendOrigin: backendOrigin + "/macros/s/abc/exec",
		TicketTTL:     time.Minute,
	}, nil)
	return f
}

func (f *popupFixture) begin(t *testing.T, sessionID string) string {
	t.Helper()
	f.source.On("LoginURL", mock.Anything, mock.Anything).Return("https://access.line.me/authorize", nil).Once()
	res, err := f.resolver.Begin(context.Background(), sessionID)
	require.NoError(t, err)
	return res.State
}

// lineUser makes the platform accept token as belonging to userID
func (f *popupFixture) lineUser(token, userID, displayName string) {
	f.platform.On("VerifyAccessToken", mock.Anything, token).Return(&line.TokenInfo{}, nil)
	f.platform.On("GetProfile", mock.Anything, token).Return(&line.Profile{UserID: userID, DisplayName: displayName}, nil)
	f.platform.On("GetFriendship", mock.Anything, token).Return(true, nil)
}

func (f *popupFixture) pending(t *testing.T, state string) bool {
	t.Helper()
	_, err := f.tickets.Peek(context.Background(), state)
	return err == nil
}

func TestPopupResolver_Begin(t *testing.T) {
	f := newPopupFixture(t)
	f.source.On("LoginURL", mock.Anything, mock.Anything).Return("https://access.line.me/authorize?x=1", nil)

	res, err := f.resolver.Begin(context.Background(), "sid-1")
	require.NoError(t, err)

	assert.Equal(t, "https://access.line.me/authorize?x=1", res.URL)
	assert.NotEmpty(t, res.State)
	ticket, err := f.tickets.Peek(context.Background(), res.State)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", ticket.SessionID)
	f.source.AssertCalled(t, "LoginURL", mock.Anything, res.State)
}

func TestPopupResolver_Begin_FailureTearsDownTicket(t *testing.T) {
	f := newPopupFixture(t)
	var issued string
	f.source.On("LoginURL", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { issued = args.String(1) }).
		Return("", shared.NewRemoteRequestFailed("network request failed: dial tcp"))

	_, err := f.resolver.Begin(context.Background(), "sid-1")
	assert.ErrorIs(t, err, shared.ErrLoginFailed)
	assert.Contains(t, err.Error(), "network request failed")

	require.NotEmpty(t, issued)
	assert.False(t, f.pending(t, issued), "ticket must not outlive a failed begin")
}

func TestPopupResolver_Deliver_BackendOrigin(t *testing.T) {
	f := newPopupFixture(t)
	f.lineUser("tok-1", "U1", "Alice")
	state := f.begin(t, "sid-1")

	user, err := f.resolver.Deliver(context.Background(), "sid-1", PopupMessage{
		Origin: backendOrigin,
		State:  state,
		Data: PopupPayload{
			Success:     true,
			AccessToken: "tok-1",
			UserData:    &identity.UserIdentity{UserID: "U1", DisplayName: "Alice", CustomerName: "Shop A"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "U1", user.UserID)
	assert.Equal(t, "Shop A", user.CustomerName)
	require.NotNil(t, user.FriendFlag)
	assert.True(t, *user.FriendFlag)
	assert.False(t, f.pending(t, state))
}

func TestPopupResolver_Deliver_BackendOriginIsVerified(t *testing.T) {
	t.Run("user data alone is not trusted", func(t *testing.T) {
		f := newPopupFixture(t)
		state := f.begin(t, "attacker-sid")

		_, err := f.resolver.Deliver(context.Background(), "attacker-sid", PopupMessage{
			Origin: backendOrigin,
			State:  state,
			Data: PopupPayload{
				Success:  true,
				UserData: &identity.UserIdentity{UserID: "U-victim", DisplayName: "Victim"},
			},
		})
		assert.ErrorIs(t, err, shared.ErrLoginFailed)
		f.platform.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
	})

	t.Run("rejected access token", func(t *testing.T) {
		f := newPopupFixture(t)
		f.platform.On("VerifyAccessToken", mock.Anything, "forged").Return(nil, errors.New("invalid_request"))
		state := f.begin(t, "attacker-sid")

		_, err := f.resolver.Deliver(context.Background(), "attacker-sid", PopupMessage{
			Origin: backendOrigin,
			State:  state,
			Data: PopupPayload{
				Success:     true,
				AccessToken: "forged",
				UserData:    &identity.UserIdentity{UserID: "U-victim"},
			},
		})
		assert.ErrorIs(t, err, shared.ErrLoginFailed)
	})

	t.Run("identity comes from LINE", func(t *testing.T) {
		f := newPopupFixture(t)
		f.lineUser("tok-attacker", "U-attacker", "Mallory")
		state := f.begin(t, "attacker-sid")

		user, err := f.resolver.Deliver(context.Background(), "attacker-sid", PopupMessage{
			Origin: backendOrigin,
			State:  state,
			Data: PopupPayload{
				Success:     true,
				AccessToken: "tok-attacker",
				UserData:    &identity.UserIdentity{UserID: "U-victim", CustomerName: "Victim Shop"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "U-attacker", user.UserID)
		assert.Equal(t, "Mallory", user.CustomerName, "hint for another user is ignored")
	})

	t.Run("no platform", func(t *testing.T) {
		f := newPopupFixture(t)
		f.resolver = NewPopupResolver(f.tickets, f.source, nil, f.tokens, PopupConfig{
			PublicOrigin:  publicOrigin,
			BackendOrigin: backendOrigin,
			TicketTTL:     time.Minute,
		}, nil)
		state := f.begin(t, "sid-1")

		_, err := f.resolver.Deliver(context.Background(), "sid-1", PopupMessage{
			Origin: backendOrigin,
			State:  state,
			Data:   PopupPayload{Success: true, AccessToken: "tok-1"},
		})
		assert.ErrorIs(t, err, shared.ErrLoginFailed)
	})
}

func TestPopupResolver_Deliver_LocalLoginRejectsBackendOrigin(t *testing.T) {
	f := newPopupFixture(t)
	f.resolver = NewPopupResolver(f.tickets, f.source, f.platform, f.tokens, PopupConfig{
		PublicOrigin: publicOrigin,
		TicketTTL:    time.Minute,
	}, nil)
	f.lineUser("tok-1", "U1", "Alice")
	state := f.begin(t, "sid-1")

	_, err := f.resolver.Deliver(context.Background(), "sid-1", PopupMessage{
		Origin: backendOrigin,
		State:  state,
		Data:   PopupPayload{Success: true, AccessToken: "tok-1"},
	})
	assert.ErrorIs(t, err, shared.ErrUntrustedOrigin)
	assert.True(t, f.pending(t, state))
}

func TestPopupResolver_Deliver_UntrustedOriginKeepsTicket(t *testing.T) {
	f := newPopupFixture(t)
	f.lineUser("tok-1", "U1", "Alice")
	state := f.begin(t, "sid-1")

	for _, origin := range []string{"https://evil.example.com", "null", "", "http://shop.example.com"} {
		_, err := f.resolver.Deliver(context.Background(), "sid-1", PopupMessage{
			Origin: origin,
			State:  state,
			Data:   PopupPayload{Success: true, UserData: &identity.UserIdentity{UserID: "U1"}},
		})
		assert.ErrorIs(t, err, shared.ErrUntrustedOrigin, origin)
	}
	assert.True(t, f.pending(t, state), "untrusted messages leave the ticket pending")

	_, err := f.resolver.Deliver(context.Background(), "sid-1", PopupMessage{
		Origin: "HTTPS://Script.Google.com",
		State:  state,
		Data:   PopupPayload{Success: true, AccessToken: "tok-1"},
	})
	assert.NoError(t, err, "origin comparison ignores case")
}

func TestPopupResolver_Deliver_FailurePayload(t *testing.T) {
	f := newPopupFixture(t)

	t.Run("carries the popup's error", func(t *testing.T) {
		state := f.begin(t, "sid-1")
		_, err := f.resolver.Deliver(context.Background(), "sid-1", PopupMessage{
			Origin: backendOrigin,
			State:  state,
			Data:   PopupPayload{Success: false, Error: "user cancelled"},
		})
		assert.ErrorIs(t, err, shared.ErrLoginFailed)
		assert.Equal(t, "user cancelled", err.Error())
		assert.False(t, f.pending(t, state), "failure also tears down the ticket")
	})

	t.Run("error text is not a format string", func(t *testing.T) {
		state := f.begin(t, "sid-1")
		_, err := f.resolver.Deliver(context.Background(), "sid-1", PopupMessage{
			Origin: backendOrigin,
			State:  state,
			Data:   PopupPayload{Success: false, Error: "quota 100% used %d"},
		})
		require.Error(t, err)
		assert.Equal(t, "quota 100% used %d", err.Error())
	})

	t.Run("falls back to the default message", func(t *testing.T) {
		state := f.begin(t, "sid-1")
		_, err := f.resolver.Deliver(context.Background(), "sid-1", PopupMessage{
			Origin: backendOrigin,
			State:  state,
		})
		require.Error(t, err)
		assert.Equal(t, DefaultLoginFailedMessage, err.Error())
	})

	t.Run("success without user data", func(t *testing.T) {
		state := f.begin(t, "sid-1")
		_, err := f.resolver.Deliver(context.Background(), "sid-1", PopupMessage{
			Origin: backendOrigin,
			State:  state,
			Data:   PopupPayload{Success: true},
		})
		assert.ErrorIs(t, err, shared.ErrLoginFailed)
	})
}

func TestPopupResolver_Deliver_TicketIsSingleUse(t *testing.T) {
	f := newPopupFixture(t)
	f.lineUser("tok-1", "U1", "Alice")
	state := f.begin(t, "sid-1")
	msg := PopupMessage{
		Origin: backendOrigin,
		State:  state,
		Data:   PopupPayload{Success: true, AccessToken: "tok-1"},
	}

	_, err := f.resolver.Deliver(context.Background(), "sid-1", msg)
	require.NoError(t, err)

	_, err = f.resolver.Deliver(context.Background(), "sid-1", msg)
	assert.ErrorIs(t, err, shared.ErrLoginFailed)
}

func TestPopupResolver_Deliver_OtherSession(t *testing.T) {
	f := newPopupFixture(t)
	state := f.begin(t, "sid-1")

	_, err := f.resolver.Deliver(context.Background(), "sid-2", PopupMessage{
		Origin: backendOrigin,
		State:  state,
		Data:   PopupPayload{Success: true, UserData: &identity.UserIdentity{UserID: "U1"}},
	})
	assert.ErrorIs(t, err, shared.ErrLoginFailed)
}

func TestPopupResolver_CallbackThenDeliver(t *testing.T) {
	f := newPopupFixture(t)
	state := f.begin(t, "sid-1")
	f.platform.On("ExchangeCode", mock.Anything, "code-1").Return(&line.Token{AccessToken: "tok"}, nil)
	f.platform.On("GetProfile", mock.Anything, "tok").Return(&line.Profile{UserID: "U9", DisplayName: "Bob"}, nil)
	f.platform.On("GetFriendship", mock.Anything, "tok").Return(false, nil)

	result := f.resolver.Callback(context.Background(), state, "code-1", "")
	require.True(t, result.Payload.Success)
	assert.Equal(t, publicOrigin, result.TargetOrigin)
	assert.NotEmpty(t, result.Payload.Assertion)
	assert.True(t, f.pending(t, state), "callback does not consume the ticket")

	user, err := f.resolver.Deliver(context.Background(), "sid-1", PopupMessage{
		Origin: publicOrigin,
		State:  state,
		Data:   result.Payload,
	})
	require.NoError(t, err)
	assert.Equal(t, "U9", user.UserID)
	assert.Equal(t, "Bob", user.CustomerName)
	require.NotNil(t, user.FriendFlag)
	assert.False(t, *user.FriendFlag)
}

func TestPopupResolver_Deliver_OwnOriginRequiresValidAssertion(t *testing.T) {
	f := newPopupFixture(t)

	t.Run("forged user data is not trusted", func(t *testing.T) {
		state := f.begin(t, "sid-1")
		_, err := f.resolver.Deliver(context.Background(), "sid-1", PopupMessage{
			Origin: publicOrigin,
			State:  state,
			Data:   PopupPayload{Success: true, UserData: &identity.UserIdentity{UserID: "U1"}},
		})
		assert.ErrorIs(t, err, shared.ErrLoginFailed)
	})

	t.Run("assertion for another ticket", func(t *testing.T) {
		state := f.begin(t, "sid-1")
		assertion, err := f.tokens.GenerateLoginAssertion(auth.LoginAssertion{State: "other", UserID: "U1"})
		require.NoError(t, err)

		_, err = f.resolver.Deliver(context.Background(), "sid-1", PopupMessage{
			Origin: publicOrigin,
			State:  state,
			Data:   PopupPayload{Success: true, Assertion: assertion},
		})
		assert.ErrorIs(t, err, shared.ErrLoginFailed)
	})
}

func TestPopupResolver_Callback_Failures(t *testing.T) {
	t.Run("unknown ticket", func(t *testing.T) {
		f := newPopupFixture(t)
		result := f.resolver.Callback(context.Background(), "nope", "code", "")
		assert.False(t, result.Payload.Success)
		assert.NotEmpty(t, result.Payload.Error)
		f.platform.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything)
	})

	t.Run("user denied", func(t *testing.T) {
		f := newPopupFixture(t)
		state := f.begin(t, "sid-1")
		result := f.resolver.Callback(context.Background(), state, "", "access_denied")
		assert.False(t, result.Payload.Success)
		assert.Equal(t, DefaultLoginFailedMessage, result.Payload.Error)
	})

	t.Run("code exchange fails", func(t *testing.T) {
		f := newPopupFixture(t)
		state := f.begin(t, "sid-1")
		f.platform.On("ExchangeCode", mock.Anything, "bad").Return(nil, errors.New("invalid_grant"))

		result := f.resolver.Callback(context.Background(), state, "bad", "")
		assert.False(t, result.Payload.Success)
		assert.Equal(t, publicOrigin, result.TargetOrigin)
	})
}

func TestAuthorizeURLSource(t *testing.T) {
	platform := new(MockPlatform)
	platform.On("AuthorizeURL", "st").Return("https://access.line.me/oauth2/v2.1/authorize?state=st")

	u, err := AuthorizeURLSource(platform).LoginURL(context.Background(), "st")
	require.NoError(t, err)
	assert.Contains(t, u, "state=st")
}

func TestNormalizeOrigin(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Example.com/path?q=1", "https://example.com"},
		{"http://localhost:8080", "http://localhost:8080"},
		{"null", ""},
		{"", ""},
		{"://bad", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeOrigin(tt.in), tt.in)
	}
}
