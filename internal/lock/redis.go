package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hazemshokry/train-tracking-app/internal/apperr"
	"github.com/hazemshokry/train-tracking-app/internal/logger"
)

var errLockTimeout = errors.New("lock wait timed out")

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another instance is never released by us.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker is a lease based locker shared by every instance using the same redis.
type RedisLocker struct {
	client  goredis.UniversalClient
	log     *logger.Logger
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	retry   time.Duration
}

// NewRedisLocker connects to addr and verifies the connection.
func NewRedisLocker(ctx context.Context, addr string, ttl, timeout time.Duration, log *logger.Logger) (*RedisLocker, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisLockerWithClient(client, ttl, timeout, log), nil
}

// NewRedisLockerWithClient wraps an existing client.
func NewRedisLockerWithClient(client goredis.UniversalClient, ttl, timeout time.Duration, log *logger.Logger) *RedisLocker {
	return &RedisLocker{
		client:  client,
		log:     log.With("component", "RedisLocker"),
		prefix:  "trains:lock:",
		ttl:     ttl,
		timeout: timeout,
		retry:   25 * time.Millisecond,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var held []func()
	for _, key := range normalize(keys) {
		release, err := l.acquireOne(ctx, key)
		if err != nil {
			releaseAll(held)()
			return nil, apperr.Conflict(key, err)
		}
		held = append(held, release)
	}
	return releaseAll(held), nil
}

func (l *RedisLocker) acquireOne(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, errLockTimeout
			}
			return nil, err
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					// release must outlive the caller's context
					rctx, rcancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer rcancel()
					if err := releaseScript.Run(rctx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
						l.log.Warn("lock release failed", "key", key, "error", err)
					}
				})
			}, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, errLockTimeout
		}
	}
}

// Close closes the redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
