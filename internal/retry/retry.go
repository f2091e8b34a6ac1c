// Package retry provides the bounded retry combinators shared by the
// orchestrator (account rotation) and the scrape worker (pass retries).
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	apperrors "github.com/insight-scraper/internal/errors"
	"github.com/insight-scraper/internal/logging"
)

// ErrStop aborts a retry loop early without treating the abort as the
// loop's result. Return it (wrapped or bare) when continuing cannot
// help, e.g. the eligible pool is empty.
var ErrStop = errors.New("stop retrying")

// Func is one attempt of a retried operation
type Func func(ctx context.Context, attempt int) error

// Bounded runs fn up to maxAttempts times with no delay between
// attempts. It stops early on success, on ErrStop, on a non-retryable
// error, or when the context is done. Used for account rotation, where
// the backoff lives server-side in the account cooldown instead of in
// this loop.
func Bounded(ctx context.Context, maxAttempts int, fn Func) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrStop) {
			return err
		}
		if !apperrors.IsRetryable(err) {
			return err
		}
		lastErr = err
	}

	return apperrors.NewExhaustedError(maxAttempts, lastErr)
}

// Config configures exponential backoff retries
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultConfig returns the default backoff configuration.
// Pattern: 1s, 2s, 4s, 8s, max 60s.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}
}

// WithExponentialBackoff executes fn with exponential backoff between
// attempts. Unlike Bounded it retries every error; callers use it for
// operations where waiting can help, such as a worker pass hitting a
// briefly unavailable dependency.
func WithExponentialBackoff(ctx context.Context, config *Config, fn Func) error {
	logger := logging.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.WithField("attempts", attempt).Info("Operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if attempt >= config.MaxAttempts {
			break
		}

		delay := calculateDelay(config, attempt)
		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": config.MaxAttempts,
			"delay":       delay.String(),
			"error":       err.Error(),
		}).Warn("Operation failed, retrying with exponential backoff")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

func calculateDelay(config *Config, attempt int) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
