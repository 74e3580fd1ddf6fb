package resilience

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/dlq"
)

// Wrapper is the Resilient Wrapper: the client-facing façade that adds
// retry, circuit breaking, and dead-letter escalation around the Event
// Log, so callers never have to hand-roll resilience policy per call site.
type Wrapper struct {
	log      *eventstore.Log
	dlq      *dlq.Store
	retry    RetryConfig
	breakers *BreakerFactory
	logger   *zap.Logger
}

// NewWrapper constructs a Wrapper around an Event Log and Dead-Letter Store.
func NewWrapper(log *eventstore.Log, dlqStore *dlq.Store, retry RetryConfig, breaker BreakerConfig, logger *zap.Logger) *Wrapper {
	return &Wrapper{
		log:      log,
		dlq:      dlqStore,
		retry:    retry,
		breakers: NewBreakerFactory(logger, breaker),
		logger:   logger,
	}
}

// Append retries and circuit-breaks a single-event append. If every retry
// is exhausted or the breaker is open, the envelope is escalated to the
// Dead-Letter Queue rather than silently dropped, and the original failure
// is returned to the caller.
func (w *Wrapper) Append(ctx context.Context, env *eventstore.Envelope) (*eventstore.Envelope, error) {
	var result *eventstore.Envelope
	_, err := w.breakers.Execute(ClassAppend, func() (interface{}, error) {
		err := RetryWithBackoff(ctx, w.retry, w.logger, func() error {
			out, err := w.log.Append(ctx, env)
			if err != nil {
				return err
			}
			result = out
			return nil
		})
		return nil, err
	})
	if err != nil {
		if storeerrors.Code(err) == storeerrors.ConcurrencyConflict {
			return nil, err
		}
		if w.dlq != nil {
			if _, dlqErr := w.dlq.Add(ctx, env, err); dlqErr != nil {
				w.logger.Error("failed to escalate event to dead-letter queue",
					zap.String("event_id", env.EventID.String()), zap.Error(dlqErr))
			}
		}
		return nil, err
	}
	return result, nil
}

// ReadAggregateFallback loads an aggregate's events, returning fallback
// (typically the caller's cached or last-known events) instead of an error
// if the read path's circuit breaker is open or the read ultimately fails
// after retries, so reads degrade to a safe fallback value rather than
// propagating the failure.
func (w *Wrapper) ReadAggregateFallback(ctx context.Context, aggregateID uuid.UUID, fromVersion int64, fallback []*eventstore.Envelope) []*eventstore.Envelope {
	v, err := w.breakers.Execute(ClassRead, func() (interface{}, error) {
		var envs []*eventstore.Envelope
		err := RetryWithBackoff(ctx, w.retry, w.logger, func() error {
			out, err := w.log.ReadAggregate(ctx, aggregateID, fromVersion)
			if err != nil {
				return err
			}
			envs = out
			return nil
		})
		return envs, err
	})
	if err != nil {
		w.logger.Warn("read degraded to fallback value",
			zap.String("aggregate_id", aggregateID.String()), zap.Error(err))
		return fallback
	}
	return v.([]*eventstore.Envelope)
}

// Breakers exposes the underlying BreakerFactory so monitoring code can
// poll each operation class's current state.
func (w *Wrapper) Breakers() *BreakerFactory {
	return w.breakers
}

// Replay re-attempts persistence of a dead-lettered envelope by appending
// it directly to the Event Log, bypassing the breaker/retry path (the
// caller, dlq.RetryDriver, already owns pacing and state transitions).
// It satisfies dlq.ReplayFunc.
func (w *Wrapper) Replay(ctx context.Context, entry *dlq.Entry) error {
	_, err := w.log.Append(ctx, entry.Envelope)
	return err
}
