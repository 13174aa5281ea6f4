package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client backed by miniredis
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestTryAcquire_Exclusive(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()
	lock := NewSweepLock(client, time.Minute)

	release, ok, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = NewSweepLock(client, time.Minute).TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	require.NoError(t, release(ctx))
	holder, err := lock.Holder(ctx)
	require.NoError(t, err)
	assert.Empty(t, holder)

	_, ok, err = lock.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "lock is free again after release")
}

func TestRelease_DoesNotStealAfterExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	lock := NewSweepLock(client, time.Second)

	staleRelease, ok, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = lock.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	current, err := lock.Holder(ctx)
	require.NoError(t, err)

	require.NoError(t, staleRelease(ctx))

	holder, err := lock.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, current, holder, "stale release must not delete the new holder's key")
}

func TestTryAcquire_Concurrent(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	const attempts = 20
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := NewSweepLock(client, time.Minute).TryAcquire(ctx)
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestTryAcquire_ServerDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer client.Close()

	_, ok, err := NewSweepLock(client, time.Minute).TryAcquire(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}
