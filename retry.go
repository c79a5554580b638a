package cairn

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// RetryConfig controls the retry wrapper returned by WithRetry.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Logger      *slog.Logger
}

// RetryOption configures WithRetry.
type RetryOption func(*RetryConfig)

// WithMaxAttempts sets the total number of attempts (including the first).
func WithMaxAttempts(n int) RetryOption {
	return func(c *RetryConfig) { c.MaxAttempts = n }
}

// WithBaseDelay sets the initial backoff delay.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(c *RetryConfig) { c.BaseDelay = d }
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) RetryOption {
	return func(c *RetryConfig) { c.MaxDelay = d }
}

// WithRetryLogger sets the logger for retry attempts.
func WithRetryLogger(l *slog.Logger) RetryOption {
	return func(c *RetryConfig) { c.Logger = l }
}

// WithRetry wraps a ModelClient so that transient endpoint failures
// (HTTP 429 and 503) are retried with exponential backoff and jitter.
// Non-transient failures pass through unchanged.
func WithRetry(client ModelClient, opts ...RetryOption) ModelClient {
	cfg := RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Logger:      nopLogger(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &retryClient{inner: client, cfg: cfg}
}

type retryClient struct {
	inner ModelClient
	cfg   RetryConfig
}

func (r *retryClient) Generate(ctx context.Context, prompt string, opts *GenerateOptions) ModelResponse {
	var resp ModelResponse
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		resp = r.inner.Generate(ctx, prompt, opts)
		if !resp.Failed() || !transientStatus(resp.Status()) {
			return resp
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}
		delay := r.backoff(attempt)
		r.cfg.Logger.Warn("model call failed, retrying",
			"attempt", attempt,
			"status", resp.Status(),
			"delay", delay)
		select {
		case <-ctx.Done():
			return ErrorResponse(ctx.Err().Error(), 0)
		case <-time.After(delay):
		}
	}
	return resp
}

func (r *retryClient) Available(ctx context.Context) bool {
	return r.inner.Available(ctx)
}

func (r *retryClient) backoff(attempt int) time.Duration {
	d := r.cfg.BaseDelay * (1 << (attempt - 1))
	if d > r.cfg.MaxDelay {
		d = r.cfg.MaxDelay
	}
	// Up to 25% jitter to avoid thundering herds on a shared endpoint.
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

func transientStatus(status int) bool {
	return status == 429 || status == 503
}
