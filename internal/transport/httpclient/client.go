package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Default retry policy for model provider calls.
const (
	DefaultRetryMax     = 3
	DefaultRetryWaitMax = 5 * time.Second
	DefaultTimeout      = 2 * time.Minute
)

// Config tunes the retrying client. Zero values take the defaults; a negative RetryMax disables retries.
type Config struct {
	RetryMax     int
	RetryWaitMax time.Duration
	Timeout      time.Duration
}

// New returns a standard *http.Client that retries connection errors, 429 and 5xx
// responses with backoff. Retries stop as soon as the request context is done; once
// they run out the last response is returned unchanged so callers can read its body.
func New(cfg Config, logger *zap.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = DefaultRetryMax
	switch {
	case cfg.RetryMax > 0:
		rc.RetryMax = cfg.RetryMax
	case cfg.RetryMax < 0:
		rc.RetryMax = 0
	}
	rc.RetryWaitMax = DefaultRetryWaitMax
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	rc.CheckRetry = contextAwarePolicy(retryablehttp.DefaultRetryPolicy)
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveled{logger: logger}

	c := rc.StandardClient()
	c.Timeout = DefaultTimeout
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	return c
}

// contextAwarePolicy never retries once the caller gave up, and never retries
// client errors other than 429.
func contextAwarePolicy(policy retryablehttp.CheckRetry) retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 &&
			resp.StatusCode != http.StatusTooManyRequests {
			return false, nil
		}
		return policy(ctx, resp, err)
	}
}

// leveled adapts zap to retryablehttp.LeveledLogger.
type leveled struct {
	logger *zap.Logger
}

func (l leveled) Error(msg string, kv ...any) { l.sugar().Errorw(msg, kv...) }
func (l leveled) Info(msg string, kv ...any)  { l.sugar().Debugw(msg, kv...) }
func (l leveled) Debug(msg string, kv ...any) { l.sugar().Debugw(msg, kv...) }
func (l leveled) Warn(msg string, kv ...any)  { l.sugar().Warnw(msg, kv...) }

func (l leveled) sugar() *zap.SugaredLogger {
	if l.logger == nil {
		return zap.NewNop().Sugar()
	}
	return l.logger.Sugar()
}
