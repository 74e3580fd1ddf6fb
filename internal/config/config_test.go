package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultsMatchDocumentedValues(t *testing.T) {
	cfg := defaults()

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, 100, cfg.Snapshot.Frequency)
	assert.Equal(t, "gzip", cfg.Snapshot.Compression)
	assert.Equal(t, 0.8, cfg.Snapshot.MinCompressionRatio)
	assert.Equal(t, int64(1024), cfg.Snapshot.ThresholdBytes)
	assert.Equal(t, 90*24*time.Hour, cfg.Snapshot.MaxAge)
	assert.Equal(t, 5, cfg.Snapshot.MaxPerAggregate)

	assert.Equal(t, 3, cfg.Resilience.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Resilience.BackoffFactor)
	assert.Equal(t, 5, cfg.Resilience.Breaker.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.Resilience.Breaker.RecoveryTimeout)
	assert.Equal(t, 3, cfg.Resilience.Breaker.SuccessThreshold)

	assert.True(t, cfg.Performance.EnablePartitioning)
	assert.Equal(t, 30, cfg.Performance.PartitionSizeDays)
	assert.Equal(t, 365, cfg.Performance.RetentionDays)

	assert.Equal(t, 50, cfg.DLQ.BatchSize)
	assert.Equal(t, 9090, cfg.Monitoring.MetricsPort)
}

func TestDefaultsReturnsFreshValueEachCall(t *testing.T) {
	a := defaults()
	b := defaults()
	a.Database.Host = "mutated"
	assert.Equal(t, "localhost", b.Database.Host)
}
