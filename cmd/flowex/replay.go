package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flowex/internal/config"
	"flowex/internal/runner"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}

	pools, err := runner.Replay(cfg.Input)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	for _, state := range runner.SortedPools(pools) {
		fields := []zap.Field{
			zap.String("pool", state.Pool),
			zap.Uint64("trades", state.TradeCount),
			zap.Uint64("swaps", state.SwapCount),
			zap.String("lp_supply", state.LpSupply.String()),
		}
		for token, reserve := range state.Reserves {
			fields = append(fields, zap.String("reserve_"+token, reserve.String()))
		}
		logger.Info("pool replayed", fields...)
	}

	logger.Info("replay complete", zap.Int("pools", len(pools)))
	return nil
}
