package redisx_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toko/pkg/redisx"
)

func TestCheckoutLockKey(t *testing.T) {
	assert.Equal(t, "lock:checkout:u-1", fmt.Sprintf(redisx.KeyCheckoutLock, "u-1"))
}

func TestAcquireUnreachableRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	guard := redisx.NewCheckoutGuard(rdb, time.Second)
	release, err := guard.Acquire(context.Background(), "u-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, redisx.ErrLocked)
	assert.Nil(t, release)
}

// liveRedis connects to the server at REDIS_ADDR, e.g. a local `redis-server`.
func liveRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redisx.New(addr)
	require.NoError(t, redisx.Ping(context.Background(), rdb))
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestAcquireIsExclusivePerUser(t *testing.T) {
	ctx := context.Background()
	rdb := liveRedis(t)
	guard := redisx.NewCheckoutGuard(rdb, 5*time.Second)
	user := "u-" + uuid.New().String()

	release, err := guard.Acquire(ctx, user)
	require.NoError(t, err)

	_, err = guard.Acquire(ctx, user)
	assert.ErrorIs(t, err, redisx.ErrLocked)

	other, err := guard.Acquire(ctx, "u-"+uuid.New().String())
	require.NoError(t, err, "another user is not blocked")
	other()

	release()
	again, err := guard.Acquire(ctx, user)
	require.NoError(t, err)
	again()
}

func TestReleaseKeepsAnotherHoldersLock(t *testing.T) {
	ctx := context.Background()
	rdb := liveRedis(t)
	guard := redisx.NewCheckoutGuard(rdb, 200*time.Millisecond)
	user := "u-" + uuid.New().String()
	key := fmt.Sprintf(redisx.KeyCheckoutLock, user)

	stale, err := guard.Acquire(ctx, user)
	require.NoError(t, err)

	// the first lock expires and a new checkout takes over
	require.Eventually(t, func() bool {
		return rdb.Exists(ctx, key).Val() == 0
	}, 2*time.Second, 20*time.Millisecond)
	current, err := guard.Acquire(ctx, user)
	require.NoError(t, err)
	defer current()

	stale()
	assert.EqualValues(t, 1, rdb.Exists(ctx, key).Val())
	_, err = guard.Acquire(ctx, user)
	assert.ErrorIs(t, err, redisx.ErrLocked)
}
