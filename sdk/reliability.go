package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RetryConfig 重试配置
type RetryConfig struct {
	MaxRetries     int           // 最大重试次数，默认 3
	InitialBackoff time.Duration // 初始退避时间，默认 1秒
	MaxBackoff     time.Duration // 最大退避时间，默认 30秒
	BackoffFactor  float64       // 退避因子，默认 2.0（指数退避）
}

// DefaultRetryConfig 默认重试配置
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Retryable 网络错误与 5xx 可重试；404 和其它 4xx 不重试
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrTaskNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	var hErr *handlerError
	return !errors.As(err, &hErr)
}

// Retry 按指数退避重试 fn，直到成功、遇到不可重试错误或达到最大次数
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff, cfg)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("已达最大重试次数: %w", lastErr)
}

func nextBackoff(cur time.Duration, cfg RetryConfig) time.Duration {
	next := time.Duration(float64(cur) * cfg.BackoffFactor)
	if next > cfg.MaxBackoff {
		next = cfg.MaxBackoff
	}
	return next
}

// SubmitWithRetry 带重试的任务提交（服务端 503 时常见于队列暂不可用）
func (c *Client) SubmitWithRetry(ctx context.Context, req SubmitRequest, cfg RetryConfig) (*SubmitResponse, error) {
	var out *SubmitResponse
	err := Retry(ctx, cfg, func(ctx context.Context) error {
		var err error
		out, err = c.Submit(ctx, req)
		return err
	})
	return out, err
}

// handlerError 标记由调用方回调返回的错误，不触发重连
type handlerError struct{ err error }

func (e *handlerError) Error() string { return e.err.Error() }
func (e *handlerError) Unwrap() error { return e.err }

// Watch 订阅任务直到收到终态事件。
// 连接中断或服务端在任务开始前结束流时自动重连；收到过事件的连接会重置重试计数。
func (c *Client) Watch(ctx context.Context, taskID string, cfg RetryConfig, fn func(Event) error) (Event, error) {
	backoff := cfg.InitialBackoff
	failures := 0

	for {
		received := false
		last, err := c.Stream(ctx, taskID, func(ev Event) error {
			received = true
			if err := fn(ev); err != nil {
				return &handlerError{err: err}
			}
			return nil
		})

		var hErr *handlerError
		switch {
		case errors.As(err, &hErr):
			return last, hErr.err
		case err == nil && last.Type.IsTerminal():
			return last, nil
		case err != nil && !Retryable(err):
			return last, err
		}

		if received {
			failures = 0
			backoff = cfg.InitialBackoff
		} else {
			failures++
			if failures > cfg.MaxRetries {
				if err == nil {
					err = errors.New("stream closed without events")
				}
				return last, fmt.Errorf("已达最大重试次数: %w", err)
			}
		}
		c.Logger.Debug().Err(err).Str("task_id", taskID).Dur("backoff", backoff).Msg("SSE 连接结束，准备重连")

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(backoff):
		}
		if !received {
			backoff = nextBackoff(backoff, cfg)
		}
	}
}
