// Package config loads the event store's runtime configuration via a
// viper-based singleton loader.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration tree.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Snapshot   SnapshotConfig   `mapstructure:"snapshot"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Performance PerformanceConfig `mapstructure:"performance"`
	DLQ        DLQConfig        `mapstructure:"dlq"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// DatabaseConfig configures the Postgres connection backing the Storage Adapter.
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
}

// SnapshotConfig configures the Snapshot Manager's compression policy.
type SnapshotConfig struct {
	Frequency           int           `mapstructure:"frequency"`
	Compression         string        `mapstructure:"compression"`
	MinCompressionRatio float64       `mapstructure:"min_compression_ratio"`
	ThresholdBytes      int64         `mapstructure:"threshold_bytes"`
	MaxAge              time.Duration `mapstructure:"max_age"`
	MaxPerAggregate     int           `mapstructure:"max_per_aggregate"`
	MaxConcurrentCreates int          `mapstructure:"max_concurrent_creates"`
}

// ResilienceConfig configures the Resilient Wrapper's retry policy and
// circuit breaker.
type ResilienceConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig configures the per-operation-class circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
}

// PerformanceConfig configures the Performance Optimizer's maintenance loop.
type PerformanceConfig struct {
	EnablePartitioning  bool          `mapstructure:"enable_partitioning"`
	PartitionSizeDays   int           `mapstructure:"partition_size_days"`
	PartitionAheadCount int           `mapstructure:"partition_ahead_count"`
	EnableAutoIndexing  bool          `mapstructure:"enable_auto_indexing"`
	RetentionDays       int           `mapstructure:"retention_days"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
}

// DLQConfig configures the Dead-Letter Queue's retry driver.
type DLQConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PurgeAfter   time.Duration `mapstructure:"purge_after"`
}

// MonitoringConfig configures logging and metrics export.
type MonitoringConfig struct {
	LogLevel     string `mapstructure:"log_level"`
	MetricsPort  int    `mapstructure:"metrics_port"`
}

var (
	current *Config
	once    sync.Once
)

// Load starts from the documented defaults and overrides them with the
// values in config.yaml, read from configPath (or ., ./config and
// /etc/eventstore when configPath is empty). AutomaticEnv is enabled with
// the EVENTSTORE prefix, but an environment variable only overrides a key
// that the config file already sets, and no key replacer is installed, so a
// nested key keeps its dot in the variable name (EVENTSTORE_DATABASE.HOST).
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		cfg := defaults()

		v := viper.New()
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if configPath != "" {
			v.AddConfigPath(configPath)
		} else {
			v.AddConfigPath(".")
			v.AddConfigPath("./config")
			v.AddConfigPath("/etc/eventstore")
		}
		v.AutomaticEnv()
		v.SetEnvPrefix("EVENTSTORE")

		if readErr := v.ReadInConfig(); readErr != nil {
			if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
				err = fmt.Errorf("failed to read config file: %w", readErr)
				return
			}
		}
		if unmarshalErr := v.Unmarshal(cfg); unmarshalErr != nil {
			err = fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
			return
		}
		current = cfg
	})
	return current, err
}

// Get returns the loaded configuration, loading with defaults if Load has
// not yet been called.
func Get() *Config {
	if current == nil {
		if _, err := Load(""); err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	}
	return current
}

func defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			User:         "eventstore",
			Name:         "eventstore",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Snapshot: SnapshotConfig{
			Frequency:            100,
			Compression:          "gzip",
			MinCompressionRatio:  0.8,
			ThresholdBytes:       1024,
			MaxAge:               90 * 24 * time.Hour,
			MaxPerAggregate:      5,
			MaxConcurrentCreates: 5,
		},
		Resilience: ResilienceConfig{
			MaxAttempts:   3,
			InitialDelay:  100 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				RecoveryTimeout:  60 * time.Second,
				SuccessThreshold: 3,
			},
		},
		Performance: PerformanceConfig{
			EnablePartitioning:  true,
			PartitionSizeDays:   30,
			PartitionAheadCount: 3,
			EnableAutoIndexing:  true,
			RetentionDays:       365,
			MaintenanceInterval: 24 * time.Hour,
		},
		DLQ: DLQConfig{
			PollInterval: 30 * time.Second,
			BatchSize:    50,
			MaxRetries:   5,
			PurgeAfter:   30 * 24 * time.Hour,
		},
		Monitoring: MonitoringConfig{
			LogLevel:    "info",
			MetricsPort: 9090,
		},
	}
}
