package workerpool

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the worker pool components used by the DLQ retry driver.
var Module = fx.Options(
	fx.Provide(NewWorkerPoolFactory),
	fx.Invoke(registerHooks),
)

// DLQRetryPoolName is the pool name the DLQ retry driver submits jobs to.
const DLQRetryPoolName = "dlq-retry-driver"

func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	workerPool *WorkerPoolFactory,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting worker pool components")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			running, capacity, ok := workerPool.GetPoolStats(DLQRetryPoolName)
			if ok {
				logger.Info("worker pool stats",
					zap.String("name", DLQRetryPoolName),
					zap.Int("running", running),
					zap.Int("capacity", capacity),
					zap.Int64("executions", workerPool.GetMetrics().GetExecutionCount(DLQRetryPoolName)),
					zap.Int64("successes", workerPool.GetMetrics().GetSuccessCount(DLQRetryPoolName)),
					zap.Int64("failures", workerPool.GetMetrics().GetFailureCount(DLQRetryPoolName)))
			}
			workerPool.Release()
			return nil
		},
	})
}
