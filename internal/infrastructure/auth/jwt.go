package auth

import (
	"errors"
	"time"

	"github.com/erp/storefront/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType represents the type of JWT token
type TokenType string

const (
	// TokenTypeSession identifies a browser session cookie
	TokenTypeSession TokenType = "session"
	// TokenTypeLoginAssertion is the signed result a login popup posts to its opener
	TokenTypeLoginAssertion TokenType = "login_assertion"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingSessionID = errors.New("missing session id in claims")
	ErrMissingState     = errors.New("missing state in claims")
)

// Claims represents custom JWT claims
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	SessionID string    `json:"sid,omitempty"`

	// Login assertion fields
	State       string `json:"state,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	FriendFlag  *bool  `json:"friend_flag,omitempty"`
}

// LoginAssertion is what a completed popup login attests to
type LoginAssertion struct {
	State       string
	UserID      string
	DisplayName string
	FriendFlag  *bool
}

// JWTService handles session and login assertion tokens
type JWTService struct {
	secret       []byte
	sessionTTL   time.Duration
	assertionTTL time.Duration
	issuer       string
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.SessionConfig, assertionTTL time.Duration) *JWTService {
	return &JWTService{
		secret:       []byte(cfg.Secret),
		sessionTTL:   cfg.TTL,
		assertionTTL: assertionTTL,
		issuer:       cfg.Issuer,
	}
}

// NewSession mints a fresh session id and its signed token
func (s *JWTService) NewSession() (sessionID, token string, err error) {
	sessionID = uuid.New().String()
	token, err = s.GenerateSessionToken(sessionID)
	if err != nil {
		return "", "", err
	}
	return sessionID, token, nil
}

// GenerateSessionToken signs a token carrying the session id
func (s *JWTService) GenerateSessionToken(sessionID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: s.registered(now, s.sessionTTL),
		TokenType:        TokenTypeSession,
		SessionID:        sessionID,
	}
	return s.generateToken(claims)
}

// ValidateSessionToken validates a session token and returns the session id
func (s *JWTService) ValidateSessionToken(tokenString string) (string, error) {
	claims, err := s.validateToken(tokenString, TokenTypeSession)
	if err != nil {
		return "", err
	}
	if claims.SessionID == "" {
		return "", ErrMissingSessionID
	}
	return claims.SessionID, nil
}

// GenerateLoginAssertion signs the outcome of a popup login
func (s *JWTService) GenerateLoginAssertion(a LoginAssertion) (string, error) {
	if a.State == "" {
		return "", ErrMissingState
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: s.registered(now, s.assertionTTL),
		TokenType:        TokenTypeLoginAssertion,
		State:            a.State,
		UserID:           a.UserID,
		DisplayName:      a.DisplayName,
		FriendFlag:       a.FriendFlag,
	}
	claims.Subject = a.UserID
	return s.generateToken(claims)
}

// ValidateLoginAssertion validates an assertion token and returns its content
func (s *JWTService) ValidateLoginAssertion(tokenString string) (*LoginAssertion, error) {
	claims, err := s.validateToken(tokenString, TokenTypeLoginAssertion)
	if err != nil {
		return nil, err
	}
	if claims.State == "" {
		return nil, ErrMissingState
	}
	return &LoginAssertion{
		State:       claims.State,
		UserID:      claims.UserID,
		DisplayName: claims.DisplayName,
		FriendFlag:  claims.FriendFlag,
	}, nil
}

// SessionTTL returns the session lifetime
func (s *JWTService) SessionTTL() time.Duration {
	return s.sessionTTL
}

func (s *JWTService) registered(now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.issuer},
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		NotBefore: jwt.NewNumericDate(now),
		IssuedAt:  jwt.NewNumericDate(now),
	}
}

// generateToken creates a signed JWT token
func (s *JWTService) generateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// validateToken validates a JWT token
func (s *JWTService) validateToken(tokenString string, expectedType TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if claims.TokenType != expectedType {
		return nil, ErrInvalidTokenType
	}

	return claims, nil
}
