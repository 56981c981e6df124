package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "ratelimit:"

// 与内存版相同的窗口算法：哈希保存 count 与 start（毫秒）
const checkScript = `
local start = tonumber(redis.call("HGET", KEYS[1], "start"))
local now = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
if (not start) or (start + interval <= now) then
  redis.call("HSET", KEYS[1], "count", 1, "start", now)
  redis.call("PEXPIRE", KEYS[1], interval)
  return {1, now}
end
local count = redis.call("HINCRBY", KEYS[1], "count", 1)
return {count, start}
`

type redisScripter interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisLimiter 多实例共享计数的限流器
type RedisLimiter struct {
	client   redisScripter
	name     string
	interval time.Duration
	now      func() time.Time
}

func NewRedisLimiter(client *redis.Client, name string, interval time.Duration) *RedisLimiter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RedisLimiter{
		client:   client,
		name:     name,
		interval: interval,
		now:      utcNow,
	}
}

func (l *RedisLimiter) key(identifier string) string {
	return keyPrefix + l.name + ":" + identifier
}

func (l *RedisLimiter) Check(ctx context.Context, identifier string, limit int) (Result, error) {
	now := l.now()
	vals, err := l.client.Eval(ctx, checkScript, []string{l.key(identifier)},
		now.UnixMilli(), l.interval.Milliseconds()).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("rate limit script: unexpected reply %v", vals)
	}

	count, ok1 := vals[0].(int64)
	startMs, ok2 := vals[1].(int64)
	if !ok1 || !ok2 {
		return Result{}, fmt.Errorf("rate limit script: unexpected reply %v", vals)
	}

	return decide(int(count), limit, time.UnixMilli(startMs).UTC(), l.interval, now), nil
}

func (l *RedisLimiter) Reset(ctx context.Context, identifier string) error {
	return l.client.Del(ctx, l.key(identifier)).Err()
}

func (l *RedisLimiter) Usage(ctx context.Context, identifier string) (*Usage, error) {
	vals, err := l.client.HMGet(ctx, l.key(identifier), "count", "start").Result()
	if err != nil {
		return nil, err
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, nil
	}

	var count int
	var startMs int64
	if _, err := fmt.Sscan(fmt.Sprint(vals[0]), &count); err != nil {
		return nil, err
	}
	if _, err := fmt.Sscan(fmt.Sprint(vals[1]), &startMs); err != nil {
		return nil, err
	}
	start := time.UnixMilli(startMs).UTC()
	if windowExpired(start, l.interval, l.now()) {
		return nil, nil
	}
	return &Usage{Count: count, WindowStart: start}, nil
}
