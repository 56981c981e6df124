package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return client, mr
}

func TestRedisLimiter_Window(t *testing.T) {
	client, _ := setupTestRedis(t)
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}

	l := NewRedisLimiter(client, "auth", time.Minute)
	l.now = clock.Now
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Check(ctx, "ip:10.0.0.1", 3)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, 3-i, res.Remaining)
		assert.Equal(t, clock.Now().Add(time.Minute), res.Reset)
	}

	clock.Advance(30 * time.Second)
	res, err := l.Check(ctx, "ip:10.0.0.1", 3)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 30, res.RetryAfter)

	usage, err := l.Usage(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, usage)
	assert.Equal(t, 4, usage.Count)
	assert.Equal(t, time.UTC, usage.WindowStart.Location())

	clock.Advance(30 * time.Second)
	res, err = l.Check(ctx, "ip:10.0.0.1", 3)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Remaining)
}

func TestRedisLimiter_Reset(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewRedisLimiter(client, "api", time.Minute)
	ctx := context.Background()

	_, err := l.Check(ctx, "user:1", 1)
	require.NoError(t, err)
	assert.True(t, mr.Exists("ratelimit:api:user:1"))

	require.NoError(t, l.Reset(ctx, "user:1"))
	assert.False(t, mr.Exists("ratelimit:api:user:1"))

	usage, err := l.Usage(ctx, "user:1")
	require.NoError(t, err)
	assert.Nil(t, usage)
}

func TestRedisLimiter_KeyExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewRedisLimiter(client, "read", time.Minute)

	_, err := l.Check(context.Background(), "user:2", 5)
	require.NoError(t, err)

	mr.FastForward(61 * time.Second)
	assert.False(t, mr.Exists("ratelimit:read:user:2"))
}

func TestRedisLimiter_MatchesMemoryLimiter(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	redisLimiter := NewRedisLimiter(client, "read", time.Minute)
	memoryLimiter, clock := newTestLimiter(time.Minute)
	redisLimiter.now = clock.Now

	for i := 0; i < 4; i++ {
		want, err := memoryLimiter.Check(ctx, "user:1", 3)
		require.NoError(t, err)
		got, err := redisLimiter.Check(ctx, "user:1", 3)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		clock.Advance(10 * time.Second)
	}
}
