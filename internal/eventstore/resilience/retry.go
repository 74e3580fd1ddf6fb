// Package resilience implements the Resilient Wrapper: retry with
// exponential backoff, per-operation-class circuit breaking, dead-letter
// escalation on write failure, and safe-fallback reads, backed by
// gobreaker.
package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
)

// RetryConfig controls exponential backoff between attempts.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the production retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryWithBackoff runs operation until it succeeds, a non-retryable error
// occurs, attempts are exhausted, or ctx is canceled. Only errors classified
// IsRetryable (Transient, ConcurrencyConflict) are retried; anything else
// returns immediately.
func RetryWithBackoff(ctx context.Context, config RetryConfig, logger *zap.Logger, operation func() error) error {
	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}
		lastErr = err

		if !storeerrors.IsRetryable(err) || attempt == config.MaxAttempts {
			break
		}

		logger.Warn("retryable operation failed, backing off",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", config.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return lastErr
}
