package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/storefront/internal/domain/identity"
	"github.com/redis/go-redis/v9"
)

// InMemoryTicketStore keeps pending popup tickets in process memory
type InMemoryTicketStore struct {
	tickets *ttlMap[identity.Ticket]
}

// NewInMemoryTicketStore creates a new in-memory ticket store
func NewInMemoryTicketStore() *InMemoryTicketStore {
	return &InMemoryTicketStore{tickets: newTTLMap[identity.Ticket](time.Minute)}
}

// Put registers a pending ticket
func (s *InMemoryTicketStore) Put(_ context.Context, ticket identity.Ticket, ttl time.Duration) error {
	s.tickets.set(ticket.State, ticket, ttl)
	return nil
}

// Peek returns a pending ticket without consuming it
func (s *InMemoryTicketStore) Peek(_ context.Context, state string) (*identity.Ticket, error) {
	t, ok := s.tickets.get(state)
	if !ok {
		return nil, identity.ErrTicketNotFound
	}
	return &t, nil
}

// Take returns and removes a pending ticket
func (s *InMemoryTicketStore) Take(_ context.Context, state string) (*identity.Ticket, error) {
	t, ok := s.tickets.take(state)
	if !ok {
		return nil, identity.ErrTicketNotFound
	}
	return &t, nil
}

// Delete removes a ticket
func (s *InMemoryTicketStore) Delete(_ context.Context, state string) error {
	s.tickets.delete(state)
	return nil
}

// Close stops the cleanup goroutine
func (s *InMemoryTicketStore) Close() error {
	s.tickets.close()
	return nil
}

// RedisTicketStore keeps pending popup tickets in Redis
type RedisTicketStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisTicketStore creates a store with an existing Redis client
func NewRedisTicketStore(client redis.UniversalClient, keyPrefix string) *RedisTicketStore {
	return &RedisTicketStore{client: client, keyPrefix: keyPrefix + "login:ticket:"}
}

// Put registers a pending ticket
func (s *RedisTicketStore) Put(ctx context.Context, ticket identity.Ticket, ttl time.Duration) error {
	data, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("failed to encode login ticket: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+ticket.State, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save login ticket: %w", err)
	}
	return nil
}

// Peek returns a pending ticket without consuming it
func (s *RedisTicketStore) Peek(ctx context.Context, state string) (*identity.Ticket, error) {
	return s.decode(s.client.Get(ctx, s.keyPrefix+state).Bytes())
}

// Take returns and removes a pending ticket with GETDEL, so two concurrent
// deliveries cannot both consume it
func (s *RedisTicketStore) Take(ctx context.Context, state string) (*identity.Ticket, error) {
	return s.decode(s.client.GetDel(ctx, s.keyPrefix+state).Bytes())
}

// Delete removes a ticket
func (s *RedisTicketStore) Delete(ctx context.Context, state string) error {
	if err := s.client.Del(ctx, s.keyPrefix+state).Err(); err != nil {
		return fmt.Errorf("failed to delete login ticket: %w", err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by its owner
func (s *RedisTicketStore) Close() error {
	return nil
}

func (s *RedisTicketStore) decode(data []byte, err error) (*identity.Ticket, error) {
	if errors.Is(err, redis.Nil) {
		return nil, identity.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read login ticket: %w", err)
	}
	var t identity.Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode login ticket: %w", err)
	}
	return &t, nil
}

var (
	_ identity.TicketStore = (*InMemoryTicketStore)(nil)
	_ identity.TicketStore = (*RedisTicketStore)(nil)
)
