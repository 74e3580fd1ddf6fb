package snapshot

import "time"

// Config is the Snapshot Manager's configurable policy.
type Config struct {
	// Frequency: take a snapshot every N events per aggregate since the previous snapshot.
	Frequency int
	// Compression is the codec used for new snapshots.
	Compression Compression
	// MinCompressionRatio: keep the compressed form only if stored/original <= this.
	MinCompressionRatio float64
	// ThresholdBytes: skip compression for payloads smaller than this.
	ThresholdBytes int64
	// MaxAge bounds snapshot retention by age; enforced by Prune.
	MaxAge time.Duration
	// MaxPerAggregate bounds the number of snapshots retained per aggregate.
	MaxPerAggregate int
}

// DefaultConfig returns the documented defaults: frequency 100, gzip,
// min ratio 0.8, threshold 1024 bytes, max age 90 days, max 5 per aggregate.
func DefaultConfig() Config {
	return Config{
		Frequency:           100,
		Compression:         CompressionGzip,
		MinCompressionRatio: 0.8,
		ThresholdBytes:      1024,
		MaxAge:              90 * 24 * time.Hour,
		MaxPerAggregate:     5,
	}
}
