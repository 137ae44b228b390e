package backend

import (
	"errors"
	"net/url"
	"time"
)

const (
	// DefaultTimeout bounds a single backend call
	DefaultTimeout = 30 * time.Second
	// DefaultMaxResponseBytes limits the response body size to prevent memory exhaustion
	DefaultMaxResponseBytes = 5 * 1024 * 1024
)

// Errors for backend configuration
var (
	ErrConfigMissingBaseURL = errors.New("backend: base URL is required")
	ErrConfigInvalidBaseURL = errors.New("backend: base URL must be an absolute http(s) URL")
)

// Config holds configuration for the spreadsheet-backed order backend
type Config struct {
	// BaseURL is the deployed script endpoint, e.g. https://script.google.com/macros/s/<id>/exec
	BaseURL string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// MaxResponseBytes caps the response body read from the backend
	MaxResponseBytes int64
}

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrConfigInvalidBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = DefaultMaxResponseBytes
	}
	return nil
}

// Origin returns scheme://host[:port] of the base URL
func (c *Config) Origin() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
