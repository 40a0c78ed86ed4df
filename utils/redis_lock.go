package utils

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a cross-process mutex keyed by string (SET NX PX).
type RedisLocker struct {
	rc    *redis.Client
	ttl   time.Duration
	retry time.Duration
	log   *zap.Logger
}

func NewRedisLocker(rc *redis.Client, ttl time.Duration, log *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{rc: rc, ttl: ttl, retry: 25 * time.Millisecond, log: log}
}

// Lock blocks until the key is acquired or ctx is done. The lock expires after ttl
// if the holder dies without releasing it.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.rc == nil {
		return nil, errors.New("redis locker without client")
	}
	token := uuid.NewString()
	key = "lock:" + key
	for {
		ok, err := l.rc.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		l.release(key, token)
	}, nil
}

// release drops the lock if token still owns it. On failure the key lives until its ttl.
func (l *RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.rc, []string{key}, token).Err(); err != nil {
		l.log.Warn("release lock failed", zap.String("key", key), zap.Duration("expires_in", l.ttl), zap.Error(err))
	}
}
