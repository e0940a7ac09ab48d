package config

import (
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for trade-log aggregation.
type AggregateConfig struct {
	Input         string
	Window        string
	PGDSN         string
	BatchSize     int
	StateFile     string
	RecomputeFrom uint64
	MaxRetries    int
	RetryBackoff  time.Duration
	LogLevel      string
}

// LoadAggregate merges config file, environment variables, and flags into
// AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return AggregateConfig{}, err
	}

	v.SetDefault("batch-size", 1000)
	v.SetDefault("window", "5m")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	cfg := AggregateConfig{
		Input:         v.GetString("in"),
		Window:        v.GetString("window"),
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: v.GetUint64("recompute-from"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Input    string
	LogLevel string
}

// LoadReplay merges config file, environment variables, and flags into
// ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ReplayConfig{}, err
	}

	v.SetDefault("log-level", "info")

	cfg := ReplayConfig{
		Input:    v.GetString("in"),
		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}
