package workerpool

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestFactory(t *testing.T) *WorkerPoolFactory {
	return NewWorkerPoolFactory(WorkerPoolParams{Logger: zaptest.NewLogger(t)})
}

func TestSubmitTaskRunsTaskAndRecordsSuccess(t *testing.T) {
	f := newTestFactory(t)
	defer f.Release()

	done := make(chan struct{})
	err := f.SubmitTask("pool-a", func() error {
		close(done)
		return nil
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}

	assert.Eventually(t, func() bool {
		return f.GetMetrics().GetSuccessCount("pool-a") == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, int64(0), f.GetMetrics().GetFailureCount("pool-a"))
}

func TestSubmitTaskRecordsFailureOnTaskError(t *testing.T) {
	f := newTestFactory(t)
	defer f.Release()

	err := f.SubmitTask("pool-b", func() error {
		return fmt.Errorf("boom")
	})
	require.NoError(t, err, "SubmitTask only reports scheduling errors, not task errors")

	assert.Eventually(t, func() bool {
		return f.GetMetrics().GetFailureCount("pool-b") == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, int64(0), f.GetMetrics().GetSuccessCount("pool-b"))
}

func TestSubmitTaskRecoversPanicAsFailure(t *testing.T) {
	f := newTestFactory(t)
	defer f.Release()

	err := f.SubmitTask("pool-c", func() error {
		panic("task exploded")
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return f.GetMetrics().GetFailureCount("pool-c") == 1
	}, time.Second, time.Millisecond)
}

func TestGetWorkerPoolRejectsNonPositiveSize(t *testing.T) {
	f := newTestFactory(t)
	defer f.Release()

	_, err := f.GetWorkerPool("pool-d", 0)
	assert.ErrorIs(t, err, ErrInvalidPoolSize)
}

func TestGetPoolStatsReportsUnknownPoolAsMissing(t *testing.T) {
	f := newTestFactory(t)
	defer f.Release()

	_, _, ok := f.GetPoolStats("does-not-exist")
	assert.False(t, ok)
}

func TestReleaseDropsPoolsAndLaterSubmitRecreatesPool(t *testing.T) {
	f := newTestFactory(t)

	require.NoError(t, f.SubmitTask(DLQRetryPoolName, func() error { return nil }))
	f.Release()

	_, _, ok := f.GetPoolStats(DLQRetryPoolName)
	assert.False(t, ok, "Release should drop pool bookkeeping entirely")

	err := f.SubmitTask(DLQRetryPoolName, func() error { return nil })
	require.NoError(t, err, "SubmitTask recreates a pool lazily rather than staying closed")
}
