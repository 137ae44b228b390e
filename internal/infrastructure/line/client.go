// Package line is a small client for the LINE Login and profile APIs.
package line

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 1 * 1024 * 1024

// Errors returned by the client
var (
	ErrChannelMismatch = errors.New("line: access token was issued for another channel")
	ErrTokenExpired    = errors.New("line: access token has expired")
)

// Client calls the LINE platform on behalf of one login channel
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new LINE client with the given configuration
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.timeout(),
		},
	}, nil
}

// ChannelID returns the configured channel
func (c *Client) ChannelID() string {
	return c.config.ChannelID
}

// VerifyAccessToken checks that the token is live and belongs to this channel
func (c *Client) VerifyAccessToken(ctx context.Context, accessToken string) (*TokenInfo, error) {
	q := url.Values{}
	q.Set("access_token", accessToken)

	var info TokenInfo
	if err := c.doRequest(ctx, http.MethodGet, "/oauth2/v2.1/verify?"+q.Encode(), "", nil, &info); err != nil {
		return nil, err
	}
	if info.ClientID != c.config.ChannelID {
		return nil, ErrChannelMismatch
	}
	if info.ExpiresIn <= 0 {
		return nil, ErrTokenExpired
	}
	return &info, nil
}

// GetProfile fetches the profile of the token's user
func (c *Client) GetProfile(ctx context.Context, accessToken string) (*Profile, error) {
	var profile Profile
	if err := c.doRequest(ctx, http.MethodGet, "/v2/profile", accessToken, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetFriendship fetches whether the user is a friend of the linked official account
func (c *Client) GetFriendship(ctx context.Context, accessToken string) (bool, error) {
	var status FriendshipStatus
	if err := c.doRequest(ctx, http.MethodGet, "/friendship/v1/status", accessToken, nil, &status); err != nil {
		return false, err
	}
	return status.FriendFlag, nil
}

// AuthorizeURL builds the LINE Login authorization URL for a popup
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.config.ChannelID)
	q.Set("redirect_uri", c.config.CallbackURL)
	q.Set("state", state)
	q.Set("scope", c.config.Scope)
	if c.config.BotPrompt != "" {
		q.Set("bot_prompt", c.config.BotPrompt)
	}
	return strings.TrimRight(c.config.AuthBaseURL, "/") + "/oauth2/v2.1/authorize?" + q.Encode()
}

// ExchangeCode trades an authorization code for tokens
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	if err := c.config.ValidateLogin(); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.config.CallbackURL)
	form.Set("client_id", c.config.ChannelID)
	form.Set("client_secret", c.config.ChannelSecret)

	var token Token
	if err := c.doRequest(ctx, http.MethodPost, "/oauth2/v2.1/token", "", form, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("line: token response has no access token")
	}
	return &token, nil
}

// doRequest sends one request and decodes a JSON answer into out
func (c *Client) doRequest(ctx context.Context, method, path, bearer string, form url.Values, out any) error {
	endpoint := strings.TrimRight(c.config.APIBaseURL, "/") + path

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("line: failed to create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("line: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("line: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("line: failed to parse response: %w", err)
	}
	return nil
}
