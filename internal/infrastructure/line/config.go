package line

import (
	"errors"
	"time"
)

const (
	// ProductionAPIURL is the LINE platform API endpoint
	ProductionAPIURL = "https://api.line.me"
	// ProductionAuthURL is the LINE Login authorization endpoint host
	ProductionAuthURL = "https://access.line.me"
	// DefaultScope is requested for popup logins
	DefaultScope = "profile openid"
	// defaultTimeoutSeconds bounds a single platform call
	defaultTimeoutSeconds = 10
)

// Errors for LINE configuration
var (
	ErrConfigMissingChannelID     = errors.New("line: channel ID is required")
	ErrConfigMissingChannelSecret = errors.New("line: channel secret is required")
	ErrConfigMissingCallbackURL   = errors.New("line: callback URL is required")
)

// Config holds configuration for the LINE Login channel
type Config struct {
	// ChannelID is the LINE Login channel ID; access tokens must be issued for it
	ChannelID string
	// ChannelSecret is needed only to exchange authorization codes
	ChannelSecret string
	// CallbackURL is the redirect URI registered on the channel
	CallbackURL string
	// APIBaseURL is the base URL for the LINE API
	APIBaseURL string
	// AuthBaseURL is the base URL for the authorization page
	AuthBaseURL string
	// Scope requested at authorization time
	Scope string
	// BotPrompt asks LINE to offer adding the official account ("normal", "aggressive" or empty)
	BotPrompt string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// NewConfig creates a new LINE configuration with defaults
func NewConfig(channelID, channelSecret, callbackURL string) *Config {
	return &Config{
		ChannelID:      channelID,
		ChannelSecret:  channelSecret,
		CallbackURL:    callbackURL,
		APIBaseURL:     ProductionAPIURL,
		AuthBaseURL:    ProductionAuthURL,
		Scope:          DefaultScope,
		BotPrompt:      "normal",
		TimeoutSeconds: defaultTimeoutSeconds,
	}
}

// Validate validates the configuration needed to verify tokens
func (c *Config) Validate() error {
	if c.ChannelID == "" {
		return ErrConfigMissingChannelID
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = ProductionAPIURL
	}
	if c.AuthBaseURL == "" {
		c.AuthBaseURL = ProductionAuthURL
	}
	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	return nil
}

// ValidateLogin additionally checks what the code exchange needs
func (c *Config) ValidateLogin() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ChannelSecret == "" {
		return ErrConfigMissingChannelSecret
	}
	if c.CallbackURL == "" {
		return ErrConfigMissingCallbackURL
	}
	return nil
}

func (c *Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
