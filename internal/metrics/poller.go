package metrics

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/dlq"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/perf"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/resilience"
	"github.com/abdoElHodaky/eventstore-core/internal/eventstore/snapshot"
)

// pollInterval is how often the Poller copies component statistics into
// the gauges; it is independent of the perf package's maintenance interval.
const pollInterval = 15 * time.Second

// Poller periodically copies each component's own statistics snapshot into
// the Recorder's gauges, grounded on perf.Optimizer's ticker-driven
// maintenance loop.
type Poller struct {
	recorder  *Recorder
	snapshots *snapshot.Manager
	dlqStore  *dlq.Store
	optimizer *perf.Optimizer
	wrapper   *resilience.Wrapper
	logger    *zap.Logger
	stopCh    chan struct{}
}

// NewPoller wires the Recorder to every statistics-producing component.
func NewPoller(recorder *Recorder, snapshots *snapshot.Manager, dlqStore *dlq.Store, optimizer *perf.Optimizer, wrapper *resilience.Wrapper, logger *zap.Logger) *Poller {
	return &Poller{
		recorder:  recorder,
		snapshots: snapshots,
		dlqStore:  dlqStore,
		optimizer: optimizer,
		wrapper:   wrapper,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the poll loop until Stop is called. Intended to run in its own
// goroutine from an fx lifecycle hook.
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// Stop ends the poll loop.
func (p *Poller) Stop() {
	close(p.stopCh)
}

func (p *Poller) pollOnce(ctx context.Context) {
	p.recorder.RecordSnapshotStats(p.snapshots.GetStats())

	if stats, err := p.dlqStore.Statistics(ctx); err != nil {
		p.logger.Warn("failed to poll dead-letter statistics", zap.Error(err))
	} else {
		p.recorder.RecordDLQStats(stats)
	}

	if stats, err := p.optimizer.Statistics(ctx); err != nil {
		p.logger.Warn("failed to poll performance statistics", zap.Error(err))
	} else {
		p.recorder.RecordPerfStats(stats)
	}

	for class, state := range p.wrapper.Breakers().States() {
		p.recorder.RecordBreakerState(string(class), int(state))
	}
}

func registerPoller(lc fx.Lifecycle, poller *Poller) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go poller.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			poller.Stop()
			cancel()
			return nil
		},
	})
}
