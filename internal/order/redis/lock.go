package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const sweepLockKey = "order_sweep_lock"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a single-key mutex shared by every replica of the service.
type Lock struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
}

func NewSweepLock(client *redis.Client, ttl time.Duration) *Lock {
	return &Lock{Client: client, Key: sweepLockKey, TTL: ttl}
}

// TryAcquire takes the lock without waiting. On success it returns a
// release func that is a no-op once the TTL has handed the key to someone
// else.
func (l *Lock) TryAcquire(ctx context.Context) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, l.Key, token, l.TTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", l.Key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.Client, []string{l.Key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("redis unlock %s: %w", l.Key, err)
		}
		return nil
	}
	return release, true, nil
}

// Holder reports the token currently holding the lock, empty when free.
func (l *Lock) Holder(ctx context.Context) (string, error) {
	val, err := l.Client.Get(ctx, l.Key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}
