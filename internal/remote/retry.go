package remote

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 3
	// DefaultInitialDelay is the wait before the second attempt
	DefaultInitialDelay = time.Second

	maxBackoffInterval = 24 * time.Hour
)

// Config controls how a Retrier retries
type Config struct {
	// MaxRetries is the number of retries; total attempts are MaxRetries+1
	MaxRetries int
	// InitialDelay is the wait before attempt 2, doubled for each attempt after it
	InitialDelay time.Duration
	// RetryPredicate decides whether an error is worth another attempt
	RetryPredicate func(error) bool
	// AttemptTimeout bounds a single attempt. Zero means no per-attempt limit.
	AttemptTimeout time.Duration
}

// DefaultConfig returns the standard retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:     DefaultMaxRetries,
		InitialDelay:   DefaultInitialDelay,
		RetryPredicate: IsRetryable,
	}
}

// Option overrides part of the Config for a single call
type Option func(*Config)

// WithMaxRetries overrides the retry count
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithInitialDelay overrides the first backoff delay
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) { c.InitialDelay = d }
}

// WithRetryPredicate overrides the retryable-error classification
func WithRetryPredicate(fn func(error) bool) Option {
	return func(c *Config) { c.RetryPredicate = fn }
}

// WithAttemptTimeout overrides the per-attempt timeout
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Config) { c.AttemptTimeout = d }
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retrier runs remote operations with bounded exponential backoff
type Retrier struct {
	config Config
	sleep  SleepFunc
}

// New creates a Retrier. Zero or nil fields fall back to the defaults.
func New(config Config) *Retrier {
	return NewWithSleep(config, contextSleep)
}

// NewWithSleep creates a Retrier with a custom sleep function for testing
func NewWithSleep(config Config, sleep SleepFunc) *Retrier {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultInitialDelay
	}
	if config.RetryPredicate == nil {
		config.RetryPredicate = IsRetryable
	}
	return &Retrier{config: config, sleep: sleep}
}

// Config returns the retrier's base configuration
func (r *Retrier) Config() Config {
	return r.config
}

// Run executes op, retrying transient failures. The returned error is the
// exact error produced by the last attempt.
func (r *Retrier) Run(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	_, err := Do(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

// Do executes op through r and returns its result
func Do[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	cfg := r.config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryPredicate == nil {
		cfg.RetryPredicate = IsRetryable
	}

	schedule := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxBackoffInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	schedule.Reset()

	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	attempts := cfg.MaxRetries + 1
	for attempt := 1; ; attempt++ {
		result, err := runAttempt(ctx, cfg.AttemptTimeout, op)
		if err == nil {
			return result, nil
		}

		if attempt >= attempts || !cfg.RetryPredicate(err) {
			return zero, err
		}

		delay := schedule.NextBackOff()
		slog.Warn("Remote call failed, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err,
		)

		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return zero, err
		}
	}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}
