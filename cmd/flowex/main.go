package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "flowex",
		Short:        "FlowEx AMM engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a trading scenario against a fresh exchange",
		RunE:  runScenario,
	}

	runCmd.Flags().String("owner", "", "exchange owner address")
	runCmd.Flags().Uint32("fee-bps", 30, "swap fee for new pools, in basis points")
	runCmd.Flags().String("scenario", "", "scenario operations JSONL path")
	runCmd.Flags().String("out", "./data/trades.jsonl", "output trades JSONL path")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN")
	runCmd.Flags().Int("batch-size", 100, "trades per journal drain")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild pool state from a trade log and verify invariants",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input trades JSONL")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate a trade log into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "", "input trades JSONL")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().Uint64("recompute-from", 0, "recompute from trade sequence number")
	aggregateCmd.Flags().Int("max-retries", 5, "maximum retry attempts for DB flushes")
	aggregateCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
