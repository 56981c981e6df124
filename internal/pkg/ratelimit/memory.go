package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type bucket struct {
	count       int
	windowStart time.Time
}

// MemoryLimiter 进程内限流器，容量有限的 LRU，条目 TTL 等于窗口长度
type MemoryLimiter struct {
	mu       sync.Mutex
	cache    *expirable.LRU[string, bucket]
	interval time.Duration
	now      func() time.Time
}

func NewMemoryLimiter(interval time.Duration, capacity int) *MemoryLimiter {
	if interval <= 0 {
		interval = time.Minute
	}
	if capacity <= 0 {
		capacity = 500
	}
	return &MemoryLimiter{
		cache:    expirable.NewLRU[string, bucket](capacity, nil, interval),
		interval: interval,
		now:      utcNow,
	}
}

func (l *MemoryLimiter) Check(_ context.Context, identifier string, limit int) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.cache.Get(identifier)
	if !ok || windowExpired(b.windowStart, l.interval, now) {
		l.cache.Add(identifier, bucket{count: 1, windowStart: now})
		return Result{
			Success:   true,
			Limit:     limit,
			Remaining: max(0, limit-1),
			Reset:     now.Add(l.interval),
		}, nil
	}

	b.count++
	l.cache.Add(identifier, b)
	return decide(b.count, limit, b.windowStart, l.interval, now), nil
}

func (l *MemoryLimiter) Reset(_ context.Context, identifier string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Remove(identifier)
	return nil
}

func (l *MemoryLimiter) Usage(_ context.Context, identifier string) (*Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.cache.Peek(identifier)
	if !ok || windowExpired(b.windowStart, l.interval, l.now()) {
		return nil, nil
	}
	return &Usage{Count: b.count, WindowStart: b.windowStart}, nil
}

// Len 当前缓存的标识数
func (l *MemoryLimiter) Len() int {
	return l.cache.Len()
}
