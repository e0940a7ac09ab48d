package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"flowex/internal/model"
	"flowex/internal/storage"
)

// MetricsSink receives flushed window metrics.
type MetricsSink interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
	MaxRetries    int
	RetryBackoff  time.Duration
}

// Aggregator folds trade records into per-pool window metrics.
type Aggregator struct {
	cfg          Config
	sink         MetricsSink
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	maxSeq       uint64
}

func NewAggregator(cfg Config, sink MetricsSink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run executes aggregation over a trades JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.sink == nil {
		return fmt.Errorf("metrics sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startSeq, err := a.loadStartSeq(ctx)
	if err != nil {
		return err
	}
	a.maxSeq = startSeq

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	var total, folded, skipped, failed int

	err = storage.ReadTrades(inputPath, func(record model.TradeRecord) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		total++

		if record.Seq <= startSeq {
			skipped++
			return nil
		}

		windowStart := windowStartFor(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		acc := a.accumulators[record.Pool]
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[record.Pool] = acc
		} else if acc.WindowStart != windowStart {
			batch = append(batch, acc.Metrics(a.cfg.WindowSeconds, AmountDecimals))
			folded++
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[record.Pool] = acc
		}

		if err := acc.AddTrade(record); err != nil {
			failed++
			a.logger.Warn("aggregate trade", zap.Error(err), zap.String("pool", record.Pool), zap.Uint64("seq", record.Seq))
			return nil
		}

		if record.Seq > a.maxSeq {
			a.maxSeq = record.Seq
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flush(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, acc := range a.accumulators {
		batch = append(batch, acc.Metrics(a.cfg.WindowSeconds, AmountDecimals))
		folded++
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 {
		if err := a.flush(ctx, batch); err != nil {
			return err
		}
	}
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("folded", folded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Uint64("max_seq", a.maxSeq),
	)

	return nil
}

func (a *Aggregator) loadStartSeq(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	// Resume strictly before any still-open window so a restart refolds it.
	safeSeq := a.maxSeq
	for _, acc := range a.accumulators {
		if acc == nil {
			continue
		}
		if acc.FirstSeq > 0 && acc.FirstSeq-1 < safeSeq {
			safeSeq = acc.FirstSeq - 1
		}
	}
	return a.cfg.StateStore.Save(ctx, safeSeq)
}

func (a *Aggregator) flush(ctx context.Context, batch []model.PoolWindowMetrics) error {
	return withRetry(ctx, a.cfg.MaxRetries, a.cfg.RetryBackoff, func(ctx context.Context) error {
		err := a.sink.UpsertWindowMetrics(ctx, batch)
		if err != nil {
			a.logger.Warn("flush metrics failed", zap.Error(err), zap.Int("batch", len(batch)))
		}
		return err
	})
}
