package clickhouse

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	envSinkNATSURL         = "CH_SINK_NATS_URL"
	envSinkStream          = "CH_SINK_NATS_STREAM"
	envSinkSubjectRoot     = "CH_SINK_SUBJECT_ROOT"
	envSinkConsumer        = "CH_SINK_CONSUMER"
	envSinkPullBatch       = "CH_SINK_PULL_BATCH"
	envSinkPullTimeoutMS   = "CH_SINK_PULL_TIMEOUT_MS"
	envSinkFlushIntervalMS = "CH_SINK_FLUSH_INTERVAL_MS"

	envSinkDSN             = "CH_SINK_DSN"
	envSinkDatabase        = "CH_SINK_DATABASE"
	envSinkHistoryTable    = "CH_SINK_HISTORY_TABLE"
	envSinkBatchSize       = "CH_SINK_BATCH_SIZE"
	envSinkMaxRetries      = "CH_SINK_MAX_RETRIES"
	envSinkRetryBackoffMS  = "CH_SINK_RETRY_BACKOFF_MS"
	envSinkRetryBackoffMax = "CH_SINK_RETRY_BACKOFF_MAX_MS"
)

// ServiceConfig drives the JetStream → ClickHouse history sink.
type ServiceConfig struct {
	NATSURL     string
	Stream      string
	SubjectRoot string
	Consumer    string
	PullBatch   int
	PullTimeout time.Duration
	Writer      Config
}

// Validate ensures required fields are populated.
func (c ServiceConfig) Validate() error {
	if c.NATSURL == "" {
		return fmt.Errorf("nats url is required")
	}
	if c.Stream == "" {
		return fmt.Errorf("nats stream is required")
	}
	if c.SubjectRoot == "" {
		return fmt.Errorf("subject root is required")
	}
	if c.Consumer == "" {
		return fmt.Errorf("consumer name is required")
	}
	if c.PullBatch <= 0 {
		return fmt.Errorf("pull batch must be positive")
	}
	if c.PullTimeout <= 0 {
		return fmt.Errorf("pull timeout must be positive")
	}
	return validateConfig(c.Writer)
}

// ServiceConfigFromEnv loads ServiceConfig from environment variables.
func ServiceConfigFromEnv() (ServiceConfig, error) {
	cfg := ServiceConfig{
		NATSURL:     os.Getenv(envSinkNATSURL),
		Stream:      os.Getenv(envSinkStream),
		SubjectRoot: valueOrDefault(os.Getenv(envSinkSubjectRoot), "ledger"),
		Consumer:    valueOrDefault(os.Getenv(envSinkConsumer), "history-sink"),
		PullBatch:   256,
		PullTimeout: 500 * time.Millisecond,
		Writer: Config{
			DSN:              os.Getenv(envSinkDSN),
			Database:         valueOrDefault(os.Getenv(envSinkDatabase), "ledger"),
			HistoryTable:     valueOrDefault(os.Getenv(envSinkHistoryTable), "wallet_history"),
			BatchSize:        512,
			FlushInterval:    1 * time.Second,
			MaxRetries:       3,
			RetryBackoffBase: 200 * time.Millisecond,
			RetryBackoffMax:  5 * time.Second,
		},
	}

	if v := os.Getenv(envSinkPullBatch); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("invalid %s: %w", envSinkPullBatch, err)
		}
		cfg.PullBatch = n
	}
	if d, err := envMillis(envSinkPullTimeoutMS, cfg.PullTimeout); err != nil {
		return ServiceConfig{}, err
	} else {
		cfg.PullTimeout = d
	}
	if d, err := envMillis(envSinkFlushIntervalMS, cfg.Writer.FlushInterval); err != nil {
		return ServiceConfig{}, err
	} else {
		cfg.Writer.FlushInterval = d
	}
	if v := os.Getenv(envSinkBatchSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("invalid %s: %w", envSinkBatchSize, err)
		}
		cfg.Writer.BatchSize = n
	}
	if v := os.Getenv(envSinkMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("invalid %s: %w", envSinkMaxRetries, err)
		}
		cfg.Writer.MaxRetries = n
	}
	if d, err := envMillis(envSinkRetryBackoffMS, cfg.Writer.RetryBackoffBase); err != nil {
		return ServiceConfig{}, err
	} else {
		cfg.Writer.RetryBackoffBase = d
	}
	if d, err := envMillis(envSinkRetryBackoffMax, cfg.Writer.RetryBackoffMax); err != nil {
		return ServiceConfig{}, err
	} else {
		cfg.Writer.RetryBackoffMax = d
	}

	return cfg, cfg.Validate()
}

func envMillis(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func valueOrDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
