package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"julianmorley.ca/pasargad/storefront/pkg/redis"
	"julianmorley.ca/pasargad/storefront/pkg/store"
)

func newPersister(t *testing.T, ttl time.Duration) (*redis.Persister, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewPersister(client, ttl), mr
}

var _ store.BatchRemover = (*redis.Persister)(nil)

func TestPersister_SetGetRemove(t *testing.T) {
	t.Parallel()
	p, mr := newPersister(t, 0)
	ctx := context.Background()

	_, ok, err := p.Get(ctx, "session:a:token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Set(ctx, "session:a:token", "tok-1"))
	assert.True(t, mr.Exists(redis.KeyPrefix+"session:a:token"))
	assert.Zero(t, mr.TTL(redis.KeyPrefix+"session:a:token"))

	got, ok, err := p.Get(ctx, "session:a:token")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok-1", got)

	require.NoError(t, p.Remove(ctx, "session:a:token"))
	_, ok, _ = p.Get(ctx, "session:a:token")
	assert.False(t, ok)
}

func TestPersister_SlidingTTL(t *testing.T) {
	t.Parallel()
	p, mr := newPersister(t, time.Hour)
	ctx := context.Background()
	key := redis.KeyPrefix + "session:a:auth-storage"

	require.NoError(t, p.Set(ctx, "session:a:auth-storage", "{}"))
	assert.Equal(t, time.Hour, mr.TTL(key))

	mr.FastForward(45 * time.Minute)
	_, ok, err := p.Get(ctx, "session:a:auth-storage")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Hour, mr.TTL(key))

	mr.FastForward(2 * time.Hour)
	_, ok, err = p.Get(ctx, "session:a:auth-storage")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPersister_RemoveAllThroughNamespace(t *testing.T) {
	t.Parallel()
	p, mr := newPersister(t, 0)
	ctx := context.Background()
	ns := store.Namespace(p, "session:b:")

	for _, key := range []string{store.KeyToken, store.KeyUser, store.KeyAuthState, store.KeyOrderState} {
		require.NoError(t, ns.Set(ctx, key, "v"))
	}
	require.NoError(t, store.RemoveAll(ctx, ns, store.KeyToken, store.KeyUser, store.KeyAuthState))

	assert.Equal(t, []string{redis.KeyPrefix + "session:b:order-storage"}, mr.Keys())
	require.NoError(t, p.RemoveAll(ctx))
}

func TestPersister_ServerGone(t *testing.T) {
	t.Parallel()
	p, mr := newPersister(t, 0)
	mr.Close()

	_, _, err := p.Get(context.Background(), "token")
	assert.Error(t, err)
	assert.Error(t, p.Set(context.Background(), "token", "v"))
}
