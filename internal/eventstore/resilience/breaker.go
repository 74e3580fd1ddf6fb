package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	storeerrors "github.com/abdoElHodaky/eventstore-core/internal/common/errors"
)

// OperationClass names a circuit-breaker domain: writes, reads, and
// snapshot operations trip independently, so a slow read path doesn't
// block the append path.
type OperationClass string

const (
	ClassAppend   OperationClass = "append"
	ClassRead     OperationClass = "read"
	ClassSnapshot OperationClass = "snapshot"
)

// BreakerConfig controls when a breaker trips, how long it stays open, and
// how many trial successes in half-open state close it again.
type BreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
}

// DefaultBreakerConfig returns the production breaker policy.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 3,
	}
}

// BreakerFactory lazily creates and caches one gobreaker.CircuitBreaker per
// operation class, all sharing the same trip/recovery policy.
type BreakerFactory struct {
	logger   *zap.Logger
	config   BreakerConfig
	mu       sync.RWMutex
	breakers map[OperationClass]*gobreaker.CircuitBreaker
}

// NewBreakerFactory constructs a factory bound to a logger for state-change
// events, using config to decide when breakers trip and recover.
func NewBreakerFactory(logger *zap.Logger, config BreakerConfig) *BreakerFactory {
	return &BreakerFactory{logger: logger, config: config, breakers: make(map[OperationClass]*gobreaker.CircuitBreaker)}
}

func (f *BreakerFactory) defaultSettings(class OperationClass) gobreaker.Settings {
	logger := f.logger
	failureThreshold := uint32(f.config.FailureThreshold)
	successThreshold := uint32(f.config.SuccessThreshold)
	return gobreaker.Settings{
		Name:        string(class),
		MaxRequests: successThreshold,
		Timeout:     f.config.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				zap.String("operation_class", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
}

// Get returns the breaker for a class, creating it with the factory's
// configured policy on first use.
func (f *BreakerFactory) Get(class OperationClass) *gobreaker.CircuitBreaker {
	f.mu.RLock()
	cb, ok := f.breakers[class]
	f.mu.RUnlock()
	if ok {
		return cb
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok = f.breakers[class]; ok {
		return cb
	}
	cb = gobreaker.NewCircuitBreaker(f.defaultSettings(class))
	f.breakers[class] = cb
	return cb
}

// Execute runs operation through the named class's breaker, translating an
// open breaker into a CircuitOpen StoreError.
func (f *BreakerFactory) Execute(class OperationClass, operation func() (interface{}, error)) (interface{}, error) {
	cb := f.Get(class)
	result, err := cb.Execute(operation)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, storeerrors.Wrap(err, storeerrors.CircuitOpen, "circuit breaker open for operation class").
			WithDetail("operation_class", string(class))
	}
	return result, err
}

// States reports the current gobreaker.State of every breaker created so
// far, without creating ones that have never run.
func (f *BreakerFactory) States() map[OperationClass]gobreaker.State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[OperationClass]gobreaker.State, len(f.breakers))
	for class, cb := range f.breakers {
		out[class] = cb.State()
	}
	return out
}
