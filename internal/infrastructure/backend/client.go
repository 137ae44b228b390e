// Package backend is the client for the spreadsheet-backed order backend.
// Every call is a single GET carrying an action name; there are no retries.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/storefront/internal/domain/catalog"
	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/order"
	"github.com/erp/storefront/internal/domain/shared"
	"github.com/erp/storefront/internal/infrastructure/telemetry"
)

// Failure messages
const (
	msgNetworkFailed  = "network request failed"
	msgUnknownBackend = "backend returned an unknown error"
)

// errResponseTooLarge means the body exceeded Config.MaxResponseBytes
var errResponseTooLarge = errors.New("response too large")

// Client talks to the backend over HTTP
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *telemetry.StorefrontMetrics
}

// NewClient creates a new backend client with the given configuration
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.Named("backend"),
	}, nil
}

// WithHTTPClient replaces the underlying HTTP client (tests, custom transports)
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

// WithMetrics records call latencies on m
func (c *Client) WithMetrics(m *telemetry.StorefrontMetrics) *Client {
	c.metrics = m
	return c
}

// Origin returns the backend's origin, used to trust popup login messages
func (c *Client) Origin() string {
	return c.config.Origin()
}

// FetchInitialData loads the category list and any saved customer name
func (c *Client) FetchInitialData(ctx context.Context, user *identity.UserIdentity) (*catalog.InitialData, error) {
	params := url.Values{}
	if user != nil {
		profile, err := json.Marshal(InitialDataProfile{UserID: user.UserID, DisplayName: user.DisplayName})
		if err != nil {
			return nil, fmt.Errorf("backend: failed to marshal profile: %w", err)
		}
		params.Set("payload", string(profile))
	}

	var resp InitialDataResponse
	if err := c.call(ctx, ActionGetInitialData, params, &resp); err != nil {
		return nil, err
	}

	categories := resp.Categories
	if categories == nil {
		categories = []catalog.Category{}
	}
	return &catalog.InitialData{
		Categories:   categories,
		CustomerName: strings.TrimSpace(string(resp.CustomerName)),
	}, nil
}

// FetchItems loads the items of one category
func (c *Client) FetchItems(ctx context.Context, index catalog.CategoryIndex) ([]catalog.CatalogItem, error) {
	params := url.Values{}
	params.Set("cat", index.String())

	var resp ItemsResponse
	if err := c.call(ctx, ActionGetItemsByCategory, params, &resp); err != nil {
		return nil, err
	}

	items := make([]catalog.CatalogItem, 0, len(resp.Items))
	for _, row := range resp.Items {
		item := row.ToCatalogItem()
		if item.Item == "" {
			// a row without a name cannot be ordered
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// SubmitOrder sends a finalized order
func (c *Client) SubmitOrder(ctx context.Context, payload *order.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("backend: failed to marshal order: %w", err)
	}

	params := url.Values{}
	params.Set("payload", string(body))

	var resp Response
	return c.call(ctx, ActionSubmitOrder, params, &resp)
}

// LoginURL asks the backend for a LINE login URL. The backend owns the OAuth
// callback, so the state is not forwarded.
func (c *Client) LoginURL(ctx context.Context, _ string) (string, error) {
	var resp LoginURLResponse
	if err := c.call(ctx, ActionGetLineLoginURL, url.Values{}, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", shared.NewRemoteRequestFailed("backend returned no login URL")
	}
	return resp.URL, nil
}

// envelope is implemented by every response type
type envelope interface {
	IsSuccess() bool
	errorMessage() string
}

func (r *Response) errorMessage() string {
	return r.Error
}

// call performs one request and decodes the response into out
func (c *Client) call(ctx context.Context, action string, params url.Values, out envelope) (err error) {
	start := time.Now()
	defer func() { c.metrics.RecordBackendCall(ctx, action, time.Since(start), err) }()

	body, err := c.doRequest(ctx, action, params)
	if errors.Is(err, errResponseTooLarge) {
		c.logger.Warn("Backend response too large",
			zap.String("action", action),
			zap.Int64("limit", c.config.MaxResponseBytes),
		)
		return shared.NewRemoteRequestFailed("%s: response exceeds %d bytes", msgNetworkFailed, c.config.MaxResponseBytes)
	}
	if err != nil {
		c.logger.Warn("Backend request failed",
			zap.String("action", action),
			zap.Error(err),
		)
		return shared.NewRemoteRequestFailed("%s: %v", msgNetworkFailed, err)
	}

	if err := json.Unmarshal(stripJSONP(body), out); err != nil {
		c.logger.Warn("Backend response not decodable",
			zap.String("action", action),
			zap.Error(err),
		)
		return shared.NewRemoteRequestFailed("%s: invalid response: %v", msgNetworkFailed, err)
	}

	if !out.IsSuccess() {
		msg := strings.TrimSpace(out.errorMessage())
		if msg == "" {
			msg = msgUnknownBackend
		}
		c.logger.Info("Backend rejected request",
			zap.String("action", action),
			zap.String("error", msg),
		)
		return shared.NewRemoteRequestFailed("%s", msg)
	}

	return nil
}

// doRequest sends a GET for the action and returns the raw body
func (c *Client) doRequest(ctx context.Context, action string, params url.Values) ([]byte, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("action", action)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Backend request", zap.String("action", action))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > c.config.MaxResponseBytes {
		return nil, errResponseTooLarge
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return body, nil
}

// stripJSONP unwraps a `callback({...});` body; plain JSON is returned unchanged
func stripJSONP(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	open := bytes.IndexByte(trimmed, '(')
	end := bytes.LastIndexByte(trimmed, ')')
	if open < 0 || end <= open {
		return trimmed
	}
	return bytes.TrimSpace(trimmed[open+1 : end])
}
