package workerpool

import (
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Common errors
var (
	ErrPoolClosed      = errors.New("worker pool is closed")
	ErrPoolOverloaded  = errors.New("worker pool is overloaded")
	ErrInvalidPoolSize = errors.New("invalid pool size")
)

// WorkerPoolFactory creates and manages named worker pools.
type WorkerPoolFactory struct {
	logger  *zap.Logger
	pools   map[string]*ants.Pool
	metrics *WorkerPoolMetrics
	mu      sync.RWMutex
}

// WorkerPoolParams contains parameters for creating a WorkerPoolFactory
type WorkerPoolParams struct {
	fx.In

	Logger *zap.Logger
}

// NewWorkerPoolFactory creates a new WorkerPoolFactory
func NewWorkerPoolFactory(params WorkerPoolParams) *WorkerPoolFactory {
	return &WorkerPoolFactory{
		logger:  params.Logger,
		pools:   make(map[string]*ants.Pool),
		metrics: NewWorkerPoolMetrics(),
	}
}

// DefaultOptions returns the default worker pool options
func DefaultOptions() *ants.Options {
	return &ants.Options{
		ExpiryDuration:   10 * time.Minute,
		PreAlloc:         true,
		MaxBlockingTasks: 1000,
		Nonblocking:      false,
	}
}

// GetWorkerPool gets or creates a worker pool with the given name.
func (f *WorkerPoolFactory) GetWorkerPool(name string, size int) (*ants.Pool, error) {
	if size <= 0 {
		return nil, ErrInvalidPoolSize
	}

	f.mu.RLock()
	pool, exists := f.pools[name]
	f.mu.RUnlock()

	if exists {
		return pool, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if pool, exists = f.pools[name]; exists {
		return pool, nil
	}

	options := DefaultOptions()
	pool, err := ants.NewPool(size, ants.WithOptions(*options))
	if err != nil {
		return nil, err
	}

	f.pools[name] = pool
	f.logger.Info("created worker pool", zap.String("name", name), zap.Int("size", size))
	return pool, nil
}

// SubmitTask submits a task that returns an error to a worker pool, creating
// the pool with ants.DefaultAntsPoolSize (math.MaxInt32) on first use. A panic
// inside task is recovered and logged so it cannot take down the pool.
func (f *WorkerPoolFactory) SubmitTask(poolName string, task func() error) error {
	pool, err := f.GetWorkerPool(poolName, ants.DefaultAntsPoolSize)
	if err != nil {
		return err
	}

	startTime := time.Now()
	submitErr := pool.Submit(func() {
		success := false
		defer func() {
			if rec := recover(); rec != nil {
				f.logger.Error("task panicked", zap.String("pool", poolName), zap.Any("panic", rec))
			}
			f.metrics.RecordExecution(poolName, success)
		}()

		if taskErr := task(); taskErr != nil {
			f.logger.Error("task failed", zap.String("pool", poolName), zap.Error(taskErr))
			return
		}
		success = true
		_ = startTime
	})

	if submitErr != nil {
		if errors.Is(submitErr, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		if errors.Is(submitErr, ants.ErrPoolOverload) {
			return ErrPoolOverloaded
		}
		return submitErr
	}
	return nil
}

// GetPoolStats returns statistics for a worker pool
func (f *WorkerPoolFactory) GetPoolStats(name string) (running int, capacity int, ok bool) {
	f.mu.RLock()
	pool, exists := f.pools[name]
	f.mu.RUnlock()

	if !exists {
		return 0, 0, false
	}
	return pool.Running(), pool.Cap(), true
}

// GetMetrics returns the worker pool metrics
func (f *WorkerPoolFactory) GetMetrics() *WorkerPoolMetrics {
	return f.metrics
}

// Release releases all worker pools
func (f *WorkerPoolFactory) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for name, pool := range f.pools {
		pool.Release()
		f.logger.Info("released worker pool", zap.String("name", name))
	}
	f.pools = make(map[string]*ants.Pool)
}

// WorkerPoolMetrics collects per-pool execution counters.
type WorkerPoolMetrics struct {
	mu sync.RWMutex

	executions map[string]int64
	successes  map[string]int64
	failures   map[string]int64
}

// NewWorkerPoolMetrics creates a new WorkerPoolMetrics
func NewWorkerPoolMetrics() *WorkerPoolMetrics {
	return &WorkerPoolMetrics{
		executions: make(map[string]int64),
		successes:  make(map[string]int64),
		failures:   make(map[string]int64),
	}
}

// RecordExecution records an execution of a worker pool task, success or not.
func (m *WorkerPoolMetrics) RecordExecution(poolName string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions[poolName]++
	if success {
		m.successes[poolName]++
	} else {
		m.failures[poolName]++
	}
}

// GetExecutionCount returns the number of executions for a worker pool
func (m *WorkerPoolMetrics) GetExecutionCount(poolName string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.executions[poolName]
}

// GetSuccessCount returns the number of successful executions for a worker pool
func (m *WorkerPoolMetrics) GetSuccessCount(poolName string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.successes[poolName]
}

// GetFailureCount returns the number of failed executions for a worker pool
func (m *WorkerPoolMetrics) GetFailureCount(poolName string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failures[poolName]
}
