package identity

import (
	"context"
	"errors"
	"time"
)

// ErrTicketNotFound is returned when a popup ticket is unknown, expired or already used
var ErrTicketNotFound = errors.New("identity: login ticket not found")

// Store keeps the resolved identity of each browser session under SessionKey
type Store interface {
	// Get returns the identity saved for the session, or nil when there is none
	Get(ctx context.Context, sessionID string) (*UserIdentity, error)
	// Save stores the identity for the session with the given TTL
	Save(ctx context.Context, sessionID string, user *UserIdentity, ttl time.Duration) error
	// Delete drops the session's identity; deleting a missing entry is not an error
	Delete(ctx context.Context, sessionID string) error
	// Close releases resources
	Close() error
}

// Ticket is a pending popup login bound to the session that started it
type Ticket struct {
	State     string    `json:"state"`
	SessionID string    `json:"sessionId"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// TicketStore keeps pending popup login tickets. A ticket is single use.
type TicketStore interface {
	// Put registers a pending ticket for the given TTL
	Put(ctx context.Context, ticket Ticket, ttl time.Duration) error
	// Peek returns a pending ticket without consuming it, or ErrTicketNotFound
	Peek(ctx context.Context, state string) (*Ticket, error)
	// Take atomically returns and removes a pending ticket.
	// Returns ErrTicketNotFound when it does not exist.
	Take(ctx context.Context, state string) (*Ticket, error)
	// Delete removes a ticket; deleting a missing ticket is not an error
	Delete(ctx context.Context, state string) error
	// Close releases resources
	Close() error
}
