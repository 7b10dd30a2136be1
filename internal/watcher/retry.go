package watcher

import (
	"context"
	"time"
)

// RetryPolicy 封装瞬态失败的重试与指数退避参数，构造后不可变。
type RetryPolicy struct {
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int
}

// NewRetryPolicy 由配置字段构建策略，零值回退到默认（1s 起步、30s 封顶、重试 3 次）。
func NewRetryPolicy(initial time.Duration, maxRetries int) RetryPolicy {
	p := RetryPolicy{Initial: time.Second, Max: 30 * time.Second, MaxRetries: 3}
	if initial > 0 {
		p.Initial = initial
	}
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if p.Initial > p.Max {
		p.Max = p.Initial
	}
	return p
}

// Delay 返回第 retryCount 次重试前的等待时长（1-based），指数增长并封顶。
func (p RetryPolicy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	d := p.Initial * (1 << (retryCount - 1))
	if d > p.Max || d <= 0 {
		return p.Max
	}
	return d
}

// Do 执行 fn，按策略重试 transient 判定为瞬态的失败；
// 非瞬态错误与 ctx 取消立即返回。
func (p RetryPolicy) Do(ctx context.Context, fn func() error, transient func(error) bool) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || transient == nil || !transient(err) {
			return err
		}
		select {
		case <-time.After(p.Delay(attempt + 1)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
