package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) (*RedisRefreshLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRefreshLock(client), mr
}

func TestRefreshLock_AcquireRelease(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "token-refresh:1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	// A second acquisition of a held lock fails.
	acquired, err = lock.Acquire(ctx, "token-refresh:1", time.Minute)
	require.NoError(t, err)
	require.False(t, acquired)

	require.NoError(t, lock.Release(ctx, "token-refresh:1"))

	acquired, err = lock.Acquire(ctx, "token-refresh:1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestRefreshLock_DistinctKeysAreIndependent(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "token-refresh:1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = lock.Acquire(ctx, "token-refresh:2", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestRefreshLock_ReleaseOnlyByOwner(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	holder := NewRedisRefreshLock(client)
	other := NewRedisRefreshLock(client)
	ctx := context.Background()

	acquired, err := holder.Acquire(ctx, "token-refresh:1", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	// A non-owner release is a no-op; the holder's lock survives.
	require.NoError(t, other.Release(ctx, "token-refresh:1"))
	acquired, err = other.Acquire(ctx, "token-refresh:1", time.Minute)
	require.NoError(t, err)
	require.False(t, acquired)
}

func TestRefreshLock_ExpiresWithTTL(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "token-refresh:1", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	mr.FastForward(2 * time.Second)

	acquired, err = lock.Acquire(ctx, "token-refresh:1", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)
}
