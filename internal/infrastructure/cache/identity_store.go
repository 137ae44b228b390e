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

// InMemoryIdentityStore keeps session identities in process memory
type InMemoryIdentityStore struct {
	users *ttlMap[*identity.UserIdentity]
}

// NewInMemoryIdentityStore creates a new in-memory identity store
func NewInMemoryIdentityStore() *InMemoryIdentityStore {
	return &InMemoryIdentityStore{users: newTTLMap[*identity.UserIdentity](defaultCleanupInterval)}
}

func identityKey(sessionID string) string {
	return "session:" + sessionID + ":" + identity.SessionKey
}

// Get returns a copy of the saved identity, or nil
func (s *InMemoryIdentityStore) Get(_ context.Context, sessionID string) (*identity.UserIdentity, error) {
	user, ok := s.users.get(identityKey(sessionID))
	if !ok {
		return nil, nil
	}
	return user.Clone(), nil
}

// Save stores a copy of the identity
func (s *InMemoryIdentityStore) Save(_ context.Context, sessionID string, user *identity.UserIdentity, ttl time.Duration) error {
	if user == nil {
		return errors.New("cache: cannot save nil identity")
	}
	s.users.set(identityKey(sessionID), user.Clone(), ttl)
	return nil
}

// Delete drops the session's identity
func (s *InMemoryIdentityStore) Delete(_ context.Context, sessionID string) error {
	s.users.delete(identityKey(sessionID))
	return nil
}

// Close stops the cleanup goroutine
func (s *InMemoryIdentityStore) Close() error {
	s.users.close()
	return nil
}

// RedisIdentityStore keeps session identities in Redis as JSON
type RedisIdentityStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdentityStore creates a store with an existing Redis client
func NewRedisIdentityStore(client redis.UniversalClient, keyPrefix string) *RedisIdentityStore {
	return &RedisIdentityStore{client: client, keyPrefix: keyPrefix}
}

// Get returns the saved identity, or nil
func (s *RedisIdentityStore) Get(ctx context.Context, sessionID string) (*identity.UserIdentity, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+identityKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session identity: %w", err)
	}

	var user identity.UserIdentity
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to decode session identity: %w", err)
	}
	return &user, nil
}

// Save stores the identity as JSON
func (s *RedisIdentityStore) Save(ctx context.Context, sessionID string, user *identity.UserIdentity, ttl time.Duration) error {
	if user == nil {
		return errors.New("cache: cannot save nil identity")
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode session identity: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+identityKey(sessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session identity: %w", err)
	}
	return nil
}

// Delete drops the session's identity
func (s *RedisIdentityStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.keyPrefix+identityKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session identity: %w", err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by its owner
func (s *RedisIdentityStore) Close() error {
	return nil
}

var (
	_ identity.Store = (*InMemoryIdentityStore)(nil)
	_ identity.Store = (*RedisIdentityStore)(nil)
)
