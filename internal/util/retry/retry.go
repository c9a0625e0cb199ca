// Package retry provides bounded retry loops for operations that need time
// to converge, such as waiting for a freshly started service to report
// active. Context cancellation is respected between attempts.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config holds retry configuration.
type Config struct {
	Attempts   int
	Interval   time.Duration
	Multiplier float64
}

// Option is a functional option for retry configuration.
type Option func(*Config)

// WithAttempts sets the total number of attempts (including the first).
func WithAttempts(n int) Option {
	return func(c *Config) { c.Attempts = n }
}

// WithInterval sets the delay between attempts.
func WithInterval(d time.Duration) Option {
	return func(c *Config) { c.Interval = d }
}

// WithBackoffMultiplier grows the interval by the given factor after each
// attempt. The default of 1.0 polls at a constant interval.
func WithBackoffMultiplier(m float64) Option {
	return func(c *Config) { c.Multiplier = m }
}

// Do runs the operation until it succeeds or the attempts are exhausted.
// It returns nil on the first success, the context error if cancelled while
// waiting, and otherwise the last operation error wrapped with the attempt
// count.
func Do(ctx context.Context, operation func() error, opts ...Option) error {
	cfg := &Config{
		Attempts:   10,
		Interval:   1 * time.Second,
		Multiplier: 1.0,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	interval := cfg.Interval
	var lastErr error

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if lastErr = operation(); lastErr == nil {
			return nil
		}
		if attempt == cfg.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(interval):
			interval = time.Duration(float64(interval) * cfg.Multiplier)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", cfg.Attempts, lastErr)
}
