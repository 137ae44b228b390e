package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/domain/shared"
	"github.com/erp/storefront/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stores groups the session-scoped stores the service needs
type Stores struct {
	Identities  identity.Store
	Tickets     identity.TicketStore
	Idempotency shared.IdempotencyStore

	client redis.UniversalClient
}

// Close closes every store and the shared Redis client, if any
func (s *Stores) Close() error {
	errs := []error{
		s.Identities.Close(),
		s.Tickets.Close(),
		s.Idempotency.Close(),
	}
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	return errors.Join(errs...)
}

// StoreFactory creates stores based on configuration
type StoreFactory struct {
	cacheConfig config.CacheConfig
	redisConfig config.RedisConfig
	logger      *zap.Logger
	client      redis.UniversalClient
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithRedisClient uses an existing client instead of dialing one
func WithRedisClient(client redis.UniversalClient) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.client = client
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cacheCfg config.CacheConfig, redisCfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		cacheConfig: cacheCfg,
		redisConfig: redisCfg,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateInMemoryStores creates in-memory stores
// WARNING: In-memory stores do not share state across process instances,
// so sessions are pinned to the instance that created them
func (f *StoreFactory) CreateInMemoryStores() *Stores {
	return &Stores{
		Identities:  NewInMemoryIdentityStore(),
		Tickets:     NewInMemoryTicketStore(),
		Idempotency: NewInMemoryIdempotencyStore(),
	}
}

// CreateRedisStores creates Redis-backed stores sharing one client
func (f *StoreFactory) CreateRedisStores() (*Stores, error) {
	client := f.client
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     f.redisConfig.Addr(),
			Password: f.redisConfig.Password,
			DB:       f.redisConfig.DB,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if f.client == nil {
			_ = client.Close()
		}
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := f.cacheConfig.KeyPrefix
	return &Stores{
		Identities:  NewRedisIdentityStore(client, prefix),
		Tickets:     NewRedisTicketStore(client, prefix),
		Idempotency: NewRedisIdempotencyStore(client, prefix),
		client:      client,
	}, nil
}

// CreateStores creates stores for the configured driver. With the redis
// driver and AllowFallback set, an unreachable Redis falls back to memory.
func (f *StoreFactory) CreateStores() (*Stores, error) {
	if f.cacheConfig.Driver != config.CacheDriverRedis {
		f.logger.Info("using in-memory session stores")
		return f.CreateInMemoryStores(), nil
	}

	stores, err := f.CreateRedisStores()
	if err == nil {
		f.logger.Info("using Redis session stores", zap.String("addr", f.redisConfig.Addr()))
		return stores, nil
	}

	if !f.cacheConfig.AllowFallback {
		return nil, fmt.Errorf("Redis required for session stores but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory session stores. "+
		"Sessions will not be shared between instances.",
		zap.Error(err),
	)
	return f.CreateInMemoryStores(), nil
}
