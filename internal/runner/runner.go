package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"flowex/internal/exchange"
	"flowex/internal/storage"
)

// RunConfig holds runtime settings for the scenario runner.
type RunConfig struct {
	ScenarioPath string
	BatchSize    int
}

// Runner applies scenario operations against an exchange and drains the
// trade journal into the configured sink in batches.
type Runner struct {
	cfg     RunConfig
	ex      *exchange.Exchange
	sink    storage.TradeSink
	logger  *zap.Logger
	applied int
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, ex *exchange.Exchange, sink storage.TradeSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		ex:     ex,
		sink:   sink,
		logger: logger,
	}
}

// Applied reports how many operations have been executed.
func (r *Runner) Applied() int { return r.applied }

// Run executes the scenario loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.ex == nil {
		return fmt.Errorf("exchange is nil")
	}
	if r.cfg.ScenarioPath == "" {
		return fmt.Errorf("scenario path is required")
	}
	if r.cfg.BatchSize <= 0 {
		r.cfg.BatchSize = 100
	}

	file, err := os.Open(r.cfg.ScenarioPath)
	if err != nil {
		return fmt.Errorf("open scenario: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var line int
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}

		var op Op
		if err := json.Unmarshal(raw, &op); err != nil {
			return fmt.Errorf("scenario line %d: %w", line, err)
		}
		if err := r.apply(op); err != nil {
			return fmt.Errorf("scenario line %d (%s): %w", line, op.Op, err)
		}
		r.applied++

		if r.applied%r.cfg.BatchSize == 0 {
			if err := r.drain(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan scenario: %w", err)
	}

	if err := r.drain(); err != nil {
		return err
	}

	r.logger.Info("scenario complete", zap.Int("ops", r.applied))
	return nil
}

func (r *Runner) drain() error {
	if r.sink == nil {
		return nil
	}
	trades := r.ex.DrainJournal()
	if len(trades) == 0 {
		return nil
	}
	if err := r.sink.PutTradeBatch(trades); err != nil {
		return fmt.Errorf("store trades: %w", err)
	}
	r.logger.Info("journal drained", zap.Int("trades", len(trades)))
	return nil
}

func (r *Runner) apply(op Op) error {
	switch op.Op {
	case OpCreateToken:
		addr, err := r.ex.AddToken(op.Name)
		if err != nil {
			return err
		}
		r.logger.Debug("token created", zap.String("name", op.Name), zap.String("address", addr.Hex()))
		return nil

	case OpRemoveToken:
		caller, err := ParseAddress(op.Actor)
		if err != nil {
			return err
		}
		return r.ex.RemoveToken(caller, op.Name)

	case OpMint:
		account, err := ParseAddress(op.Account)
		if err != nil {
			return err
		}
		amount, err := ParseAmount(op.Amount)
		if err != nil {
			return err
		}
		return r.ex.MintTo(op.Name, account, amount)

	case OpCreatePool:
		creator, err := ParseAddress(op.Actor)
		if err != nil {
			return err
		}
		tokenX, tokenY, err := r.resolvePair(op.TokenX, op.TokenY)
		if err != nil {
			return err
		}
		_, err = r.ex.AddPool(creator, tokenX, tokenY)
		return err

	case OpRemovePool:
		caller, err := ParseAddress(op.Actor)
		if err != nil {
			return err
		}
		tokenX, tokenY, err := r.resolvePair(op.TokenX, op.TokenY)
		if err != nil {
			return err
		}
		return r.ex.RemovePool(caller, tokenX, tokenY)

	case OpAddLiquidity:
		actor, err := ParseAddress(op.Actor)
		if err != nil {
			return err
		}
		tokenX, tokenY, err := r.resolvePair(op.TokenX, op.TokenY)
		if err != nil {
			return err
		}
		pool, err := r.ex.Pool(tokenX, tokenY)
		if err != nil {
			return err
		}
		amountA, err := ParseAmount(op.AmountA)
		if err != nil {
			return err
		}
		amountB, err := ParseAmount(op.AmountB)
		if err != nil {
			return err
		}
		// Offered amounts follow the canonical pair order, not scenario order.
		if tokenA, _ := exchange.SortTokens(tokenX, tokenY); tokenA != tokenX {
			amountA, amountB = amountB, amountA
		}
		_, _, _, err = pool.AddLiquidity(actor, amountA, amountB)
		return err

	case OpRemoveLiquidity:
		actor, err := ParseAddress(op.Actor)
		if err != nil {
			return err
		}
		tokenX, tokenY, err := r.resolvePair(op.TokenX, op.TokenY)
		if err != nil {
			return err
		}
		pool, err := r.ex.Pool(tokenX, tokenY)
		if err != nil {
			return err
		}
		lpAmount, err := ParseAmount(op.LpAmount)
		if err != nil {
			return err
		}
		_, _, err = pool.RemoveLiquidity(actor, lpAmount)
		return err

	case OpSwap:
		actor, err := ParseAddress(op.Actor)
		if err != nil {
			return err
		}
		tokenIn, tokenOut, err := r.resolvePair(op.TokenIn, op.TokenOut)
		if err != nil {
			return err
		}
		pool, err := r.ex.Pool(tokenIn, tokenOut)
		if err != nil {
			return err
		}
		amountIn, err := ParseAmount(op.AmountIn)
		if err != nil {
			return err
		}
		minOut, err := parseOptionalAmount(op.MinAmountOut)
		if err != nil {
			return err
		}
		_, err = pool.Swap(actor, tokenIn == pool.TokenA(), amountIn, minOut)
		return err

	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}

// resolvePair resolves two token references, by registered name first and by
// hex address as a fallback.
func (r *Runner) resolvePair(x, y string) (common.Address, common.Address, error) {
	tokenX, err := r.resolveToken(x)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	tokenY, err := r.resolveToken(y)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return tokenX, tokenY, nil
}

func (r *Runner) resolveToken(ref string) (common.Address, error) {
	if addr, err := r.ex.TokenByName(ref); err == nil {
		return addr, nil
	}
	return ParseAddress(ref)
}
