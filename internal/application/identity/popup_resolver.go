package identity

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/shared"
	"github.com/erp/storefront/internal/infrastructure/auth"
)

// LoginURLSource hands out the URL the login popup is opened on
type LoginURLSource interface {
	LoginURL(ctx context.Context, state string) (string, error)
}

// AuthorizeURLSource builds the LINE authorize URL locally, so the popup
// returns to this service's callback
func AuthorizeURLSource(platform Platform) LoginURLSource {
	return authorizeURLSource{platform: platform}
}

type authorizeURLSource struct {
	platform Platform
}

func (s authorizeURLSource) LoginURL(_ context.Context, state string) (string, error) {
	return s.platform.AuthorizeURL(state), nil
}

// PopupMessage is a message the popup posted to the widget, forwarded as is.
// Origin is the browser-reported origin of the sender.
type PopupMessage struct {
	Origin string       `json:"origin"`
	State  string       `json:"state"`
	Data   PopupPayload `json:"data"`
}

// PopupPayload is the body of a popup message. Backend-hosted callbacks send
// the LINE AccessToken they obtained, with UserData as a hint; this service's
// own callback sends a signed Assertion.
type PopupPayload struct {
	Success     bool                   `json:"success"`
	AccessToken string                 `json:"accessToken,omitempty"`
	UserData    *identity.UserIdentity `json:"userData,omitempty"`
	Assertion   string                 `json:"assertion,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// BeginResult is what the widget needs to open the popup
type BeginResult struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// CallbackResult is what the callback page posts to its opener
type CallbackResult struct {
	// TargetOrigin restricts postMessage delivery to the widget's origin
	TargetOrigin string
	State        string
	Payload      PopupPayload
}

// PopupConfig configures the popup handshake
type PopupConfig struct {
	// PublicOrigin is this service's own origin
	PublicOrigin string
	// BackendOrigin is the origin of the backend-hosted login callback. Leave
	// it empty when the login URL is built locally.
	BackendOrigin string
	TicketTTL     time.Duration
}

// PopupResolver runs the popup login handshake.
//
// Begin registers a single-use ticket keyed by a fresh state. The popup's
// result comes back as a message which consumes the ticket whether it reports
// success or failure. The origin the widget reports is only a routing hint:
// an identity is accepted from a signed assertion or from a LINE access token
// the platform confirms, never from the message body alone.
type PopupResolver struct {
	tickets  identity.TicketStore
	source   LoginURLSource
	platform Platform
	tokens   *auth.JWTService
	config   PopupConfig
	allowed  map[string]struct{}
	logger   *zap.Logger
}

// NewPopupResolver creates a resolver for the popup strategy. Without a
// platform, backend-hosted logins cannot be verified and are refused.
func NewPopupResolver(
	tickets identity.TicketStore,
	source LoginURLSource,
	platform Platform,
	tokens *auth.JWTService,
	config PopupConfig,
	logger *zap.Logger,
) *PopupResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.PublicOrigin = NormalizeOrigin(config.PublicOrigin)
	config.BackendOrigin = NormalizeOrigin(config.BackendOrigin)
	allowed := make(map[string]struct{}, 2)
	for _, o := range []string{config.PublicOrigin, config.BackendOrigin} {
		if o != "" {
			allowed[o] = struct{}{}
		}
	}
	return &PopupResolver{
		tickets:  tickets,
		source:   source,
		platform: platform,
		tokens:   tokens,
		config:   config,
		allowed:  allowed,
		logger:   logger,
	}
}

// Strategy implements Resolver
func (r *PopupResolver) Strategy() string {
	return StrategyPopup
}

// Resolve implements Resolver by delivering the forwarded popup message
func (r *PopupResolver) Resolve(ctx context.Context, sessionID string, creds Credentials) (*identity.UserIdentity, error) {
	if creds.Message == nil {
		return nil, shared.NewLoginFailed("missing login message")
	}
	return r.Deliver(ctx, sessionID, *creds.Message)
}

// Begin starts a popup login for the session. If the login URL cannot be
// obtained the ticket is torn down again.
func (r *PopupResolver) Begin(ctx context.Context, sessionID string) (*BeginResult, error) {
	ticket := identity.Ticket{
		State:     uuid.New().String(),
		SessionID: sessionID,
		IssuedAt:  time.Now().UTC(),
	}
	if err := r.tickets.Put(ctx, ticket, r.config.TicketTTL); err != nil {
		r.logger.Error("Failed to register login ticket", zap.Error(err))
		return nil, shared.NewLoginFailed("Unable to start LINE login")
	}

	loginURL, err := r.source.LoginURL(ctx, ticket.State)
	if err != nil {
		if delErr := r.tickets.Delete(ctx, ticket.State); delErr != nil {
			r.logger.Error("Failed to tear down login ticket", zap.Error(delErr))
		}
		r.logger.Warn("Failed to get LINE login URL", zap.Error(err))
		return nil, shared.NewLoginFailed("Unable to get the LINE login link: %s", err.Error())
	}

	return &BeginResult{URL: loginURL, State: ticket.State}, nil
}

// Callback finishes a login that returned to this service. It never fails:
// problems become a failure payload for the popup to post, so the opener
// always hears back.
func (r *PopupResolver) Callback(ctx context.Context, state, code, loginError string) *CallbackResult {
	result := &CallbackResult{TargetOrigin: r.config.PublicOrigin, State: state}
	fail := func(msg string) *CallbackResult {
		result.Payload = PopupPayload{Success: false, Error: msg}
		return result
	}

	if _, err := r.tickets.Peek(ctx, state); err != nil {
		r.logger.Warn("Login callback for unknown ticket", zap.Error(err))
		return fail("This login request has expired, please try again")
	}
	if loginError != "" {
		r.logger.Info("LINE login was not authorized", zap.String("error", loginError))
		return fail(DefaultLoginFailedMessage)
	}
	if r.platform == nil || code == "" {
		return fail(DefaultLoginFailedMessage)
	}

	token, err := r.platform.ExchangeCode(ctx, code)
	if err != nil {
		r.logger.Warn("Failed to exchange LINE authorization code", zap.Error(err))
		return fail(DefaultLoginFailedMessage)
	}
	user, err := profileIdentity(ctx, r.platform, token.AccessToken, r.logger)
	if err != nil {
		r.logger.Warn("Failed to get LINE profile", zap.Error(err))
		return fail(DefaultLoginFailedMessage)
	}

	assertion, err := r.tokens.GenerateLoginAssertion(auth.LoginAssertion{
		State:       state,
		UserID:      user.UserID,
		DisplayName: user.DisplayName,
		FriendFlag:  user.FriendFlag,
	})
	if err != nil {
		r.logger.Error("Failed to sign login assertion", zap.Error(err))
		return fail(DefaultLoginFailedMessage)
	}

	result.Payload = PopupPayload{Success: true, Assertion: assertion}
	return result
}

// Deliver applies a popup message to the session.
//
// Messages from origins outside the allow-list are rejected with
// UNTRUSTED_ORIGIN and leave the ticket pending. Any other message consumes
// the ticket.
func (r *PopupResolver) Deliver(ctx context.Context, sessionID string, msg PopupMessage) (*identity.UserIdentity, error) {
	origin := NormalizeOrigin(msg.Origin)
	if _, ok := r.allowed[origin]; !ok {
		r.logger.Warn("Ignoring login message from untrusted origin", zap.String("origin", msg.Origin))
		return nil, shared.ErrUntrustedOrigin
	}

	ticket, err := r.tickets.Take(ctx, msg.State)
	if err != nil {
		if errors.Is(err, identity.ErrTicketNotFound) {
			return nil, shared.NewLoginFailed("This login request has expired, please try again")
		}
		r.logger.Error("Failed to consume login ticket", zap.Error(err))
		return nil, shared.NewLoginFailed(DefaultLoginFailedMessage)
	}
	if ticket.SessionID != sessionID {
		r.logger.Warn("Login message delivered to a different session",
			zap.String("ticket_session", ticket.SessionID))
		return nil, shared.NewLoginFailed(DefaultLoginFailedMessage)
	}

	if !msg.Data.Success {
		return nil, shared.NewLoginFailed("%s", orDefault(msg.Data.Error))
	}

	if origin == r.config.PublicOrigin {
		return r.fromAssertion(msg)
	}
	return r.fromBackend(ctx, msg.Data)
}

func (r *PopupResolver) fromAssertion(msg PopupMessage) (*identity.UserIdentity, error) {
	a, err := r.tokens.ValidateLoginAssertion(msg.Data.Assertion)
	if err != nil {
		r.logger.Warn("Invalid login assertion", zap.Error(err))
		return nil, shared.NewLoginFailed(DefaultLoginFailedMessage)
	}
	if a.State != msg.State {
		r.logger.Warn("Login assertion was issued for another ticket")
		return nil, shared.NewLoginFailed(DefaultLoginFailedMessage)
	}
	user, err := identity.NewUserIdentity(a.UserID, a.DisplayName)
	if err != nil {
		return nil, err
	}
	user.FriendFlag = a.FriendFlag
	return user, nil
}

// fromBackend takes the identity from LINE, not from UserData. The customer
// name hint is kept only when it was sent for the verified user.
func (r *PopupResolver) fromBackend(ctx context.Context, data PopupPayload) (*identity.UserIdentity, error) {
	token := strings.TrimSpace(data.AccessToken)
	if token == "" {
		r.logger.Warn("Backend login message carries no access token")
		return nil, shared.NewLoginFailed(DefaultLoginFailedMessage)
	}
	if r.platform == nil {
		r.logger.Error("Cannot verify backend login without a LINE channel")
		return nil, shared.NewLoginFailed(DefaultLoginFailedMessage)
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

	if hint := data.UserData; hint != nil && hint.UserID == user.UserID {
		user.ApplyCustomerName(hint.CustomerName)
	}
	return user, nil
}

// NormalizeOrigin reduces a URL or origin to scheme://host[:port] in lower
// case. Anything unparsable yields "".
func NormalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
