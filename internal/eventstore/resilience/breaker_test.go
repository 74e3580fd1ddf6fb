package resilience

import (
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
)

func TestBreakerFactoryExecutePassesThroughResultOnSuccess(t *testing.T) {
	f := NewBreakerFactory(zaptest.NewLogger(t), DefaultBreakerConfig())
	result, err := f.Execute(ClassAppend, func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestBreakerFactoryExecutePropagatesOperationError(t *testing.T) {
	f := NewBreakerFactory(zaptest.NewLogger(t), DefaultBreakerConfig())
	_, err := f.Execute(ClassRead, func() (interface{}, error) {
		return nil, fmt.Errorf("boom")
	})
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
}

func TestBreakerFactoryGetCachesPerClass(t *testing.T) {
	f := NewBreakerFactory(zaptest.NewLogger(t), DefaultBreakerConfig())
	a := f.Get(ClassSnapshot)
	b := f.Get(ClassSnapshot)
	assert.Same(t, a, b)
}

func TestBreakerFactoryStatesOnlyReportsCreatedBreakers(t *testing.T) {
	f := NewBreakerFactory(zaptest.NewLogger(t), DefaultBreakerConfig())
	assert.Empty(t, f.States())

	f.Get(ClassAppend)
	states := f.States()
	require.Len(t, states, 1)
	assert.Equal(t, gobreaker.StateClosed, states[ClassAppend])
}

func TestBreakerFactoryTripsAfterConsecutiveFailureThreshold(t *testing.T) {
	f := NewBreakerFactory(zaptest.NewLogger(t), BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute, SuccessThreshold: 1})

	for i := 0; i < 3; i++ {
		_, err := f.Execute(ClassAppend, func() (interface{}, error) {
			return nil, fmt.Errorf("failure %d", i)
		})
		require.Error(t, err)
		assert.NotEqual(t, storeerrors.CircuitOpen, storeerrors.Code(err), "breaker should not trip before the threshold is reached")
	}

	_, err := f.Execute(ClassAppend, func() (interface{}, error) {
		return nil, fmt.Errorf("should not run")
	})
	require.Error(t, err)
	assert.Equal(t, storeerrors.CircuitOpen, storeerrors.Code(err))
}

func TestBreakerFactoryDoesNotTripOnNonConsecutiveFailures(t *testing.T) {
	f := NewBreakerFactory(zaptest.NewLogger(t), BreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute, SuccessThreshold: 1})

	_, err := f.Execute(ClassAppend, func() (interface{}, error) { return nil, fmt.Errorf("failure") })
	require.Error(t, err)
	assert.NotEqual(t, storeerrors.CircuitOpen, storeerrors.Code(err))

	_, err = f.Execute(ClassAppend, func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)

	_, err = f.Execute(ClassAppend, func() (interface{}, error) { return nil, fmt.Errorf("failure") })
	require.Error(t, err)
	assert.NotEqual(t, storeerrors.CircuitOpen, storeerrors.Code(err), "a success between failures resets the consecutive-failure count")
}
