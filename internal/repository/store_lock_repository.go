package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockUnavailable is returned when Redis is not configured for locking.
var ErrLockUnavailable = errors.New("store lock backend unavailable")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// renewScript extends the TTL only while the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisStoreLocker serialises persist runs across processes with SET NX PX.
type RedisStoreLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

// NewRedisStoreLocker constructs a distributed locker.
func NewRedisStoreLocker(client *redis.Client, ttl, retry time.Duration) *RedisStoreLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retry <= 0 {
		retry = 100 * time.Millisecond
	}
	return &RedisStoreLocker{client: client, ttl: ttl, retry: retry, prefix: "timetable:lock:"}
}

// Acquire polls until the lock is taken or ctx ends. While held, the TTL is
// renewed every ttl/3 so long runs keep ownership. The returned release is
// idempotent, stops renewal and only removes a lock this call still owns.
func (l *RedisStoreLocker) Acquire(ctx context.Context, store string) (func(), error) {
	if l.client == nil {
		return nil, ErrLockUnavailable
	}
	key := l.prefix + store
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", store, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w", store, ctx.Err())
		case <-ticker.C:
		}
	}

	renewCtx, stopRenew := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(renewCtx, renewInterval(l.ttl), func(ctx context.Context) (bool, error) {
			n, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
			return n == 1, err
		})
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopRenew()
			<-done
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
		})
	}, nil
}

func renewInterval(ttl time.Duration) time.Duration {
	interval := ttl / 3
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

// keepAlive calls extend every interval until ctx ends or the lock is no
// longer ours. Transient errors are retried on the next tick.
func keepAlive(ctx context.Context, interval time.Duration, extend func(context.Context) (bool, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		callCtx, cancel := context.WithTimeout(ctx, interval)
		owned, err := extend(callCtx)
		cancel()
		if err == nil && !owned {
			return
		}
	}
}
