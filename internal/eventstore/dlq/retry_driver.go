package dlq

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/eventstore-core/internal/architecture/fx/workerpool"
)

// ReplayFunc re-attempts persistence of a dead-lettered envelope. Supplied
// by the Resilient Wrapper, which owns both the DLQ handle and the
// underlying Event Log.
type ReplayFunc func(ctx context.Context, entry *Entry) error

// RetryDriver periodically pulls retry candidates from the Store and
// resubmits them through replay via a bounded worker pool. Runs as its own
// background timer task, owning its own polling state independent of the
// Resilient Wrapper that feeds it.
type RetryDriver struct {
	store    *Store
	pool     *workerpool.WorkerPoolFactory
	replay   ReplayFunc
	logger   *zap.Logger
	interval time.Duration
	batch    int
	maxRetry int

	stopCh chan struct{}
}

// NewRetryDriver constructs a RetryDriver. interval is the polling period,
// batch is how many candidates to pull per tick, maxRetry bounds attempts
// before an entry is marked permanently_failed.
func NewRetryDriver(store *Store, pool *workerpool.WorkerPoolFactory, replay ReplayFunc, logger *zap.Logger, interval time.Duration, batch, maxRetry int) *RetryDriver {
	return &RetryDriver{
		store:    store,
		pool:     pool,
		replay:   replay,
		logger:   logger,
		interval: interval,
		batch:    batch,
		maxRetry: maxRetry,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the polling loop until Stop is called. Intended to be invoked
// as an fx.Lifecycle OnStart goroutine.
func (d *RetryDriver) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// Stop halts the polling loop.
func (d *RetryDriver) Stop() {
	close(d.stopCh)
}

func (d *RetryDriver) tick(ctx context.Context) {
	candidates, err := d.store.GetRetryCandidates(ctx, d.batch)
	if err != nil {
		d.logger.Error("dlq retry driver failed to fetch candidates", zap.Error(err))
		return
	}
	for _, entry := range candidates {
		entry := entry
		if err := d.store.MarkRetrying(ctx, entry.EntryID); err != nil {
			d.logger.Error("dlq retry driver failed to mark retrying", zap.Error(err))
			continue
		}
		submitErr := d.pool.SubmitTask(workerpool.DLQRetryPoolName, func() error {
			return d.attempt(ctx, entry)
		})
		if submitErr != nil {
			d.logger.Warn("dlq retry driver could not submit task", zap.Error(submitErr))
		}
	}
}

func (d *RetryDriver) attempt(ctx context.Context, entry *Entry) error {
	err := d.replay(ctx, entry)
	if err == nil {
		if markErr := d.store.MarkResolved(ctx, entry.EntryID); markErr != nil {
			d.logger.Error("dlq retry driver failed to mark resolved", zap.Error(markErr))
		}
		return nil
	}

	if entry.RetryCount+1 >= d.maxRetry {
		if markErr := d.store.MarkPermanentlyFailed(ctx, entry.EntryID); markErr != nil {
			d.logger.Error("dlq retry driver failed to mark permanently failed", zap.Error(markErr))
		}
		d.logger.Error("dlq entry exhausted retries", zap.String("entry_id", entry.EntryID.String()), zap.Error(err))
		return err
	}

	if incErr := d.store.IncrementRetry(ctx, entry.EntryID, err); incErr != nil {
		d.logger.Error("dlq retry driver failed to record retry", zap.Error(incErr))
	}
	return err
}
