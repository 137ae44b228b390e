package shared

import (
	"context"
	"time"
)

// IdempotencyStore records idempotency keys of submitted orders so a repeated
// submission carrying the same key is not forwarded to the backend twice
type IdempotencyStore interface {
	// MarkProcessed claims a key for the given TTL
	// Returns true if the key was newly claimed, false if it was already claimed
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether a key is currently claimed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release drops a claim so the same key may be used again (after a failed submission)
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a submitted key stays claimed
	// Default: 24 hours
	TTL time.Duration

	// Enabled determines whether duplicate keys are rejected
	// Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
