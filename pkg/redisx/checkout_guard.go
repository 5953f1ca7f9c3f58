package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked means another checkout for the same user holds the lock.
var ErrLocked = errors.New("checkout already in progress")

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CheckoutGuard serializes checkouts per user with SET NX and a TTL.
type CheckoutGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCheckoutGuard(rdb *redis.Client, ttl time.Duration) *CheckoutGuard {
	if ttl <= 0 {
		ttl = TTLCheckoutLock
	}
	return &CheckoutGuard{rdb: rdb, ttl: ttl}
}

// Acquire takes the user's checkout lock. The returned release func is safe to call once
// the lock has expired; it never deletes a lock taken by someone else.
func (g *CheckoutGuard) Acquire(ctx context.Context, userID string) (func(), error) {
	key := fmt.Sprintf(KeyCheckoutLock, userID)
	token := uuid.New().String()

	ok, err := g.rdb.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire checkout lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, g.rdb, []string{key}, token).Err()
	}, nil
}
