package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseExclusive(t *testing.T, l Locker, id int64) {
	t.Helper()

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(context.Background(), id)
			if !assert.NoError(t, err) {
				return
			}
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
			assert.NoError(t, release())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load(), "more than one holder at a time")
}

func TestLocalExclusive(t *testing.T) {
	l := NewLocal()
	exerciseExclusive(t, l, 1)
	assert.Equal(t, 0, l.held())
}

func TestLocalIndependentCompetitions(t *testing.T) {
	l := NewLocal()
	r1, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r2, err := l.Lock(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, r2())
}

func TestLocalContextCancelled(t *testing.T) {
	l := NewLocal()
	release, err := l.Lock(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, release())
	assert.NoError(t, release(), "release is idempotent")
	assert.Equal(t, 0, l.held())
}

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("FIXTURES_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FIXTURES_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisExclusive(t *testing.T) {
	client := redisClient(t)
	id := time.Now().UnixNano()
	t.Cleanup(func() { client.Del(context.Background(), Key(id)) })

	exerciseExclusive(t, NewRedis(client, 5*time.Second), id)
}

func TestRedisReleaseAfterTakeover(t *testing.T) {
	client := redisClient(t)
	id := time.Now().UnixNano()
	t.Cleanup(func() { client.Del(context.Background(), Key(id)) })

	l := NewRedis(client, 5*time.Second)
	release, err := l.Lock(context.Background(), id)
	require.NoError(t, err)

	// Simulate expiry followed by another holder.
	require.NoError(t, client.Set(context.Background(), Key(id), "someone-else", time.Minute).Err())
	assert.ErrorIs(t, release(), ErrNotHeld)

	val, err := client.Get(context.Background(), Key(id)).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}
