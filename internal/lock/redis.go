package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every instance pointing at the same Redis.
// The ttl bounds how long a crashed holder can block a cart. It is never
// extended: a holder that outlives it has lost exclusivity, which is logged
// on release.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  10 * time.Millisecond,
		logger: logger,
	}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := lockKey(key)
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("redis lock failed: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockNotAcquired, ctx.Err())
		case <-time.After(r.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			released, err := releaseScript.Run(releaseCtx, r.client, []string{k}, token).Int()
			switch {
			case err != nil:
				r.logger.Warn("cart lock release failed, held until ttl",
					zap.String("key", k), zap.Duration("ttl", r.ttl), zap.Error(err))
			case released == 0:
				r.logger.Warn("cart lock expired before release",
					zap.String("key", k), zap.Duration("ttl", r.ttl))
			}
		})
	}, nil
}

func lockKey(key string) string {
	return fmt.Sprintf("cart-lock:%s", key)
}
