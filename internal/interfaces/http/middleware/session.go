package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/shared"
	"github.com/erp/storefront/internal/infrastructure/auth"
	"github.com/erp/storefront/internal/infrastructure/logger"
	"github.com/erp/storefront/internal/interfaces/http/dto"
)

// Gin context keys
const (
	SessionIDKey = logger.GinSessionIDKey
	IdentityKey  = "session_identity"
)

// SessionConfig holds configuration for the session cookie middleware
type SessionConfig struct {
	Tokens     *auth.JWTService
	CookieName string
	Domain     string
	Path       string
	Secure     bool
	SameSite   http.SameSite
	Logger     *zap.Logger
}

// Session binds every request to a browser session. The session id travels
// in a signed token inside an HttpOnly cookie without Max-Age, so it lives
// as long as the browser session. A missing, invalid or expired cookie
// starts a new session.
func Session(cfg SessionConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}

	return func(c *gin.Context) {
		sessionID := ""
		if raw, err := c.Cookie(cfg.CookieName); err == nil && raw != "" {
			sid, err := cfg.Tokens.ValidateSessionToken(raw)
			switch {
			case err == nil:
				sessionID = sid
			case errors.Is(err, auth.ErrExpiredToken):
				cfg.Logger.Debug("Session token expired, starting a new session")
			default:
				cfg.Logger.Warn("Invalid session token", zap.Error(err))
			}
		}

		if sessionID == "" {
			sid, token, err := cfg.Tokens.NewSession()
			if err != nil {
				cfg.Logger.Error("Failed to create session", zap.Error(err))
				abortWithError(c, shared.NewDomainError(dto.ErrCodeInternal, "Failed to create session"))
				return
			}
			sessionID = sid
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     cfg.CookieName,
				Value:    token,
				Path:     cfg.Path,
				Domain:   cfg.Domain,
				Secure:   cfg.Secure,
				HttpOnly: true,
				SameSite: cfg.SameSite,
			})
		}

		c.Set(SessionIDKey, sessionID)
		c.Request = c.Request.WithContext(logger.WithSessionID(c.Request.Context(), sessionID))
		c.Next()
	}
}

// GetSessionID returns the session id set by Session
func GetSessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}

// ParseSameSite converts a config value to a cookie SameSite mode
func ParseSameSite(value string) http.SameSite {
	switch strings.ToLower(value) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// IdentityLookup returns the identity cached for a session
type IdentityLookup interface {
	SessionIdentity(ctx context.Context, sessionID string) (*identity.UserIdentity, error)
}

// RequireIdentity rejects requests whose session has no resolved identity
func RequireIdentity(lookup IdentityLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := lookup.SessionIdentity(c.Request.Context(), GetSessionID(c))
		if err != nil {
			if !errors.Is(err, shared.ErrUnauthorized) {
				logger.L(c.Request.Context()).Error("Failed to look up session identity", zap.Error(err))
			}
			abortWithError(c, err)
			return
		}

		c.Set(IdentityKey, user)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), user.UserID))
		c.Next()
	}
}

// GetIdentity returns the identity set by RequireIdentity, or nil
func GetIdentity(c *gin.Context) *identity.UserIdentity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	user, _ := v.(*identity.UserIdentity)
	return user
}

// abortWithError writes err in the standard envelope and stops the chain
func abortWithError(c *gin.Context, err error) {
	code, message := dto.ErrCodeInternal, "An unexpected error occurred"
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code, message = domainErr.Code, domainErr.Message
	}
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}
