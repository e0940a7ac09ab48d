package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flowex/internal/config"
	"flowex/internal/exchange"
	"flowex/internal/model"
	"flowex/internal/runner"
	"flowex/internal/storage"
	"flowex/internal/storage/postgres"
	"flowex/internal/token"
)

func runScenario(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}
	if !common.IsHexAddress(cfg.Owner) {
		return fmt.Errorf("valid owner address is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ex := exchange.New(exchange.Config{
		Owner:  common.HexToAddress(cfg.Owner),
		FeeBps: cfg.FeeBps,
		Ledger: token.NewLedger(),
		Logger: logger,
	})

	sinks := storage.MultiSink{storage.NewJsonlStorage(cfg.Out)}

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, &pgTradeSink{ctx: ctx, store: store})
	}

	scenarioRunner := runner.NewRunner(runner.RunConfig{
		ScenarioPath: cfg.Scenario,
		BatchSize:    cfg.BatchSize,
	}, ex, sinks, logger)

	logger.Info("run start",
		zap.String("scenario", cfg.Scenario),
		zap.String("owner", cfg.Owner),
		zap.Uint32("fee_bps", cfg.FeeBps),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Int("batch_size", cfg.BatchSize),
	)

	if err := scenarioRunner.Run(ctx); err != nil {
		return err
	}

	if store != nil {
		if err := store.UpsertTokens(ctx, ex.AllTokens()); err != nil {
			return fmt.Errorf("store tokens: %w", err)
		}
		if err := store.UpsertPools(ctx, ex.PoolRecords()); err != nil {
			return fmt.Errorf("store pools: %w", err)
		}
	}

	logger.Info("run complete",
		zap.Int("ops", scenarioRunner.Applied()),
		zap.Int("pools", len(ex.AllPools())),
		zap.Int("tokens", len(ex.AllTokens())),
	)
	return nil
}

// pgTradeSink adapts the Postgres store to the TradeSink interface.
type pgTradeSink struct {
	ctx   context.Context
	store *postgres.Store
}

func (s *pgTradeSink) PutTradeBatch(trades []model.TradeRecord) error {
	return s.store.InsertTrades(s.ctx, trades)
}
