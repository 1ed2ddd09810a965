package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

func TestRedisStoreLockerWithoutClient(t *testing.T) {
	_, err := NewRedisStoreLocker(nil, 0, 0).Acquire(context.Background(), "allocations.json")
	assert.ErrorIs(t, err, ErrLockUnavailable)
}

func TestRedisStoreLockerUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisStoreLocker(client, time.Second, 10*time.Millisecond).Acquire(ctx, "allocations.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire lock allocations.json")
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "")
	var dest map[string]string
	assert.ErrorIs(t, repo.Get(context.Background(), "reference", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "reference", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
	assert.NoError(t, repo.Close())
	assert.Equal(t, "timetable:reference", repo.key("reference"))
}

func TestRenewInterval(t *testing.T) {
	assert.Equal(t, 10*time.Second, renewInterval(30*time.Second))
	assert.Equal(t, 10*time.Millisecond, renewInterval(time.Millisecond))
}

func TestKeepAliveExtendsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(ctx, 5*time.Millisecond, func(context.Context) (bool, error) {
			calls.Add(1)
			if calls.Load() == 2 {
				return false, errors.New("timeout")
			}
			return true, nil
		})
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 4 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive did not stop after cancel")
	}
}

func TestKeepAliveStopsWhenLockLost(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(context.Background(), 5*time.Millisecond, func(context.Context) (bool, error) {
			calls.Add(1)
			return false, nil
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive kept renewing a lost lock")
	}
	assert.Equal(t, int32(1), calls.Load())
}
