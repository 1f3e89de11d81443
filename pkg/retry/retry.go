// Package retry 提供带指数退避的重试逻辑
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config 重试参数
type Config struct {
	MaxAttempts int // 最大尝试次数，<=0 视为 1
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	Jitter      float64 // 0-1
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     10 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

// RetryableError 标记可以重试的错误。After 非零时表示服务端要求的等待时间
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable 将错误标记为可重试
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// RetryableAfter 将错误标记为可重试，并指定最少等待时间
func RetryableAfter(err error, after time.Duration) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err, After: after}
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}

// Do 执行 fn，遇到可重试错误时按退避策略重试，返回最后一次的结果
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}
		lastErr = err
		var r *RetryableError
		if !errors.As(err, &r) {
			return zero, err
		}
		if attempt == attempts {
			break
		}
		wait := cfg.backoff(attempt)
		if r.After > wait {
			wait = r.After
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
	return zero, unwrapRetryable(lastErr)
}

func (cfg Config) backoff(attempt int) time.Duration {
	mult := cfg.Multiplier
	if mult <= 0 {
		mult = 1
	}
	wait := float64(cfg.InitialWait) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxWait > 0 && wait > float64(cfg.MaxWait) {
		wait = float64(cfg.MaxWait)
	}
	if cfg.Jitter > 0 {
		wait += wait * cfg.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(wait)
}

func unwrapRetryable(err error) error {
	var r *RetryableError
	if errors.As(err, &r) {
		return r.Err
	}
	return err
}
