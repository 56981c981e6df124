// Package ratelimit 实现按标识计数的滑动窗口限流。
//
// 每个标识对应 [count, windowStart]，窗口起点加窗口长度不晚于当前时间时重新开窗。
package ratelimit

import (
	"context"
	"math"
	"time"
)

// Result 单次检查结果
type Result struct {
	Success    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter int // 秒，仅在被限流时有值
}

// Usage 标识当前窗口的用量
type Usage struct {
	Count       int
	WindowStart time.Time
}

// Limiter 限流器
type Limiter interface {
	Check(ctx context.Context, identifier string, limit int) (Result, error)
	Reset(ctx context.Context, identifier string) error
	Usage(ctx context.Context, identifier string) (*Usage, error)
}

// decide 按窗口状态计算结果，count 为本次计入后的请求数
func decide(count, limit int, windowStart time.Time, interval time.Duration, now time.Time) Result {
	reset := windowStart.Add(interval)
	res := Result{
		Success:   count <= limit,
		Limit:     limit,
		Remaining: max(0, limit-count),
		Reset:     reset,
	}
	if !res.Success {
		res.RetryAfter = int(math.Ceil(reset.Sub(now).Seconds()))
	}
	return res
}

func utcNow() time.Time { return time.Now().UTC() }

// windowExpired 窗口已结束
func windowExpired(windowStart time.Time, interval time.Duration, now time.Time) bool {
	return !windowStart.Add(interval).After(now)
}
