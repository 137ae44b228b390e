package cache

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/storefront/internal/domain/identity"
	"github.com/erp/storefront/internal/infrastructure/config"
)

func TestInMemoryIdentityStore(t *testing.T) {
	store := NewInMemoryIdentityStore()
	defer store.Close()
	ctx := context.Background()

	user, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, user)

	saved := &identity.UserIdentity{UserID: "U1", DisplayName: "Alice"}
	require.NoError(t, store.Save(ctx, "sid-1", saved, time.Hour))

	t.Run("returns a copy", func(t *testing.T) {
		saved.DisplayName = "changed"
		user, err := store.Get(ctx, "sid-1")
		require.NoError(t, err)
		assert.Equal(t, "Alice", user.DisplayName)

		user.CustomerName = "mutated"
		again, err := store.Get(ctx, "sid-1")
		require.NoError(t, err)
		assert.Empty(t, again.CustomerName)
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		user, err := store.Get(ctx, "sid-2")
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("expires", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "sid-3", saved, 10*time.Millisecond))
		time.Sleep(20 * time.Millisecond)
		user, err := store.Get(ctx, "sid-3")
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "sid-1"))
		user, err := store.Get(ctx, "sid-1")
		require.NoError(t, err)
		assert.Nil(t, user)
	})
}

func TestInMemoryTicketStore(t *testing.T) {
	store := NewInMemoryTicketStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, identity.Ticket{State: "st-1", SessionID: "sid-1"}, time.Minute))

	peeked, err := store.Peek(ctx, "st-1")
	require.NoError(t, err)
	assert.Equal(t, "sid-1", peeked.SessionID)

	t.Run("take is single use under concurrency", func(t *testing.T) {
		const n = 50
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.Take(ctx, "st-1"); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("expired ticket cannot be taken", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, identity.Ticket{State: "st-2", SessionID: "sid"}, 10*time.Millisecond))
		time.Sleep(20 * time.Millisecond)
		_, err := store.Take(ctx, "st-2")
		assert.ErrorIs(t, err, identity.ErrTicketNotFound)
	})
}

func TestStoreFactory_CreateStores(t *testing.T) {
	t.Run("memory driver", func(t *testing.T) {
		f := NewStoreFactory(config.CacheConfig{Driver: config.CacheDriverMemory}, config.RedisConfig{})
		stores, err := f.CreateStores()
		require.NoError(t, err)
		defer stores.Close()

		assert.IsType(t, &InMemoryIdentityStore{}, stores.Identities)
		assert.IsType(t, &InMemoryTicketStore{}, stores.Tickets)
		assert.IsType(t, &InMemoryIdempotencyStore{}, stores.Idempotency)
	})

	t.Run("redis driver", func(t *testing.T) {
		mr := miniredis.RunT(t)
		f := NewStoreFactory(
			config.CacheConfig{Driver: config.CacheDriverRedis, KeyPrefix: "sf:"},
			config.RedisConfig{Host: mr.Host(), Port: mustPort(t, mr)},
		)
		stores, err := f.CreateStores()
		require.NoError(t, err)
		defer stores.Close()

		assert.IsType(t, &RedisIdentityStore{}, stores.Identities)
		assert.IsType(t, &RedisTicketStore{}, stores.Tickets)
		assert.IsType(t, &RedisIdempotencyStore{}, stores.Idempotency)
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		f := NewStoreFactory(
			config.CacheConfig{Driver: config.CacheDriverRedis},
			config.RedisConfig{Host: "127.0.0.1", Port: 1},
		)
		_, err := f.CreateStores()
		assert.Error(t, err)
	})

	t.Run("unreachable redis with fallback uses memory", func(t *testing.T) {
		f := NewStoreFactory(
			config.CacheConfig{Driver: config.CacheDriverRedis, AllowFallback: true},
			config.RedisConfig{Host: "127.0.0.1", Port: 1},
		)
		stores, err := f.CreateStores()
		require.NoError(t, err)
		defer stores.Close()
		assert.IsType(t, &InMemoryIdentityStore{}, stores.Identities)
	})
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}
