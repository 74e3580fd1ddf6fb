package resilience

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, BackoffFactor: 2.0}
}

func TestRetryWithBackoffSucceedsWithoutRetryOnFirstAttempt(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetryConfig(), zaptest.NewLogger(t), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoffRetriesTransientErrorsUntilSuccess(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetryConfig(), zaptest.NewLogger(t), func() error {
		calls++
		if calls < 2 {
			return storeerrors.New(storeerrors.Transient, "deadline exceeded")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryWithBackoffDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastRetryConfig(), zaptest.NewLogger(t), func() error {
		calls++
		return storeerrors.New(storeerrors.Permanent, "bad payload")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoffStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	config := fastRetryConfig()
	err := RetryWithBackoff(context.Background(), config, zaptest.NewLogger(t), func() error {
		calls++
		return storeerrors.New(storeerrors.Transient, "still down")
	})
	require.Error(t, err)
	assert.Equal(t, config.MaxAttempts, calls)
}

func TestRetryWithBackoffHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithBackoff(ctx, fastRetryConfig(), zaptest.NewLogger(t), func() error {
		calls++
		return fmt.Errorf("should not run after cancellation on subsequent attempts")
	})
	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 0, calls)
}
