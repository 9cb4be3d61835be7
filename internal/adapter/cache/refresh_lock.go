package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adsightlabs/adsight-core/internal/vault"
)

const lockPrefix = "adsight:lock:"

// RedisRefreshLock implements vault.RefreshLock with Redis SETNX and TTL so
// collector replicas never run duplicate refresh exchanges for one account.
type RedisRefreshLock struct {
	client  redis.UniversalClient
	ownerID string
}

var _ vault.RefreshLock = (*RedisRefreshLock)(nil)

// NewRedisRefreshLock constructs a Redis-backed refresh lock. The owner ID
// uniquely identifies this process so it cannot release another holder's lock.
func NewRedisRefreshLock(client redis.UniversalClient) *RedisRefreshLock {
	hostname, _ := os.Hostname()
	randomBytes := make([]byte, 8)
	_, _ = rand.Read(randomBytes)
	return &RedisRefreshLock{
		client:  client,
		ownerID: fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(randomBytes)),
	}
}

// Acquire attempts to take the named lock. Returns false when another
// process already holds it.
func (l *RedisRefreshLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	acquired, err := l.client.SetNX(ctx, lockPrefix+name, l.ownerID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return acquired, nil
}

// releaseScript deletes the lock only when this process still owns it, so an
// expired-and-reacquired lock is never released out from under its holder.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release releases the named lock if held by this process. Safe to call when
// the lock already expired.
func (l *RedisRefreshLock) Release(ctx context.Context, name string) error {
	_, err := releaseScript.Run(ctx, l.client, []string{lockPrefix + name}, l.ownerID).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}
