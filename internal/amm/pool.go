package amm

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"flowex/internal/model"
	"flowex/internal/token"
)

// PoolConfig holds the immutable parameters of a pool.
type PoolConfig struct {
	Address common.Address
	TokenA  common.Address
	TokenB  common.Address
	FeeBps  uint32
	Owner   common.Address
	Ledger  *token.Ledger
	Logger  *zap.Logger
	// Now overrides the trade timestamp source. Defaults to time.Now.
	Now func() uint64
	// OnTrade is invoked for every committed mutation, before the record is
	// appended to the pool log. The registry uses it to sequence its journal.
	OnTrade func(*model.TradeRecord)
}

// Pool is one constant-product AMM pool: the reserve ledger, the liquidity
// accounting engine, the swap pricing engine, and the trade log for a single
// token pair. Every mutation runs under one pool-wide critical section, the
// in-process equivalent of one-transaction-at-a-time chain execution.
type Pool struct {
	cfg PoolConfig

	mu          sync.Mutex
	reserveA    *big.Int
	reserveB    *big.Int
	totalSupply *big.Int
	lpBalances  map[common.Address]*big.Int
	trades      []model.TradeRecord
	createdAt   uint64

	logger *zap.Logger
}

// NewPool builds an empty pool for the configured pair.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return &Pool{
		cfg:         cfg,
		reserveA:    new(big.Int),
		reserveB:    new(big.Int),
		totalSupply: new(big.Int),
		lpBalances:  make(map[common.Address]*big.Int),
		createdAt:   cfg.Now(),
		logger:      cfg.Logger,
	}
}

// Address returns the pool's custody address.
func (p *Pool) Address() common.Address { return p.cfg.Address }

// TokenA returns the first token of the canonical pair.
func (p *Pool) TokenA() common.Address { return p.cfg.TokenA }

// TokenB returns the second token of the canonical pair.
func (p *Pool) TokenB() common.Address { return p.cfg.TokenB }

// Owner returns the account recorded as pool creator.
func (p *Pool) Owner() common.Address { return p.cfg.Owner }

// FeeBps returns the swap fee in basis points.
func (p *Pool) FeeBps() uint32 { return p.cfg.FeeBps }

// Reserves returns a consistent snapshot of both reserves.
func (p *Pool) Reserves() (reserveA, reserveB *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.reserveA), new(big.Int).Set(p.reserveB)
}

// TotalSupply returns the outstanding LP share supply.
func (p *Pool) TotalSupply() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.totalSupply)
}

// LpBalance returns the LP share balance of one account.
func (p *Pool) LpBalance(owner common.Address) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if balance, ok := p.lpBalances[owner]; ok {
		return new(big.Int).Set(balance)
	}
	return new(big.Int)
}

// Trades returns a copy of the trade log, oldest first.
func (p *Pool) Trades() []model.TradeRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.TradeRecord, len(p.trades))
	copy(out, p.trades)
	return out
}

// Record returns the pool's storage representation.
func (p *Pool) Record() model.PoolRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return model.PoolRecord{
		Address:   p.cfg.Address.Hex(),
		TokenA:    p.cfg.TokenA.Hex(),
		TokenB:    p.cfg.TokenB.Hex(),
		FeeBps:    p.cfg.FeeBps,
		Owner:     p.cfg.Owner.Hex(),
		ReserveA:  p.reserveA.String(),
		ReserveB:  p.reserveB.String(),
		LpSupply:  p.totalSupply.String(),
		CreatedAt: p.createdAt,
	}
}

// AddLiquidity deposits tokens and mints LP shares for the actor.
//
// On the first deposit the mint is sqrt(amountA*amountB). On later deposits
// the consumed amounts are reduced to the current reserve ratio and only the
// consumed amounts are pulled from the actor; the excess of the over-supplied
// side stays in the actor's balance.
func (p *Pool) AddLiquidity(actor common.Address, amountA, amountB *big.Int) (minted, consumedA, consumedB *big.Int, err error) {
	if amountA == nil || amountA.Sign() <= 0 || amountB == nil || amountB.Sign() <= 0 {
		return nil, nil, nil, ErrInvalidInput
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.totalSupply.Sign() == 0 {
		consumedA = new(big.Int).Set(amountA)
		consumedB = new(big.Int).Set(amountB)
		minted = new(big.Int).Mul(consumedA, consumedB)
		minted.Sqrt(minted)
	} else {
		consumedA, consumedB = p.proportionalAmounts(amountA, amountB)
		if consumedA.Sign() == 0 || consumedB.Sign() == 0 {
			return nil, nil, nil, ErrInsufficientLiquidityMinted
		}
		minted = minBig(
			mulDiv(consumedA, p.totalSupply, p.reserveA),
			mulDiv(consumedB, p.totalSupply, p.reserveB),
		)
	}
	if minted.Sign() == 0 {
		return nil, nil, nil, ErrInsufficientLiquidityMinted
	}

	if err := p.pullPair(actor, consumedA, consumedB); err != nil {
		return nil, nil, nil, err
	}
	if err := p.applyDelta(consumedA, consumedB, minted); err != nil {
		return nil, nil, nil, err
	}
	p.creditLp(actor, minted)

	p.appendTrade(actor, model.ActionAddLiquidity, p.cfg.TokenA, p.cfg.TokenB, consumedA, consumedB)
	p.logger.Debug("add liquidity",
		zap.String("pool", p.cfg.Address.Hex()),
		zap.String("actor", actor.Hex()),
		zap.String("minted", minted.String()),
	)

	return minted, consumedA, consumedB, nil
}

// RemoveLiquidity burns LP shares and returns the pro-rata token amounts.
// Integer truncation favors the pool, so partial burns can leave dust.
func (p *Pool) RemoveLiquidity(actor common.Address, lpAmount *big.Int) (amountA, amountB *big.Int, err error) {
	if lpAmount == nil || lpAmount.Sign() <= 0 {
		return nil, nil, ErrInvalidInput
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	balance, ok := p.lpBalances[actor]
	if !ok || balance.Cmp(lpAmount) < 0 {
		return nil, nil, fmt.Errorf("burn %s: %w", lpAmount, ErrInsufficientBalance)
	}

	amountA = mulDiv(p.reserveA, lpAmount, p.totalSupply)
	amountB = mulDiv(p.reserveB, lpAmount, p.totalSupply)

	if amountA.Sign() > 0 {
		if err := p.cfg.Ledger.Transfer(p.cfg.TokenA, p.cfg.Address, actor, amountA); err != nil {
			return nil, nil, fmt.Errorf("withdraw token A: %w", err)
		}
	}
	if amountB.Sign() > 0 {
		if err := p.cfg.Ledger.Transfer(p.cfg.TokenB, p.cfg.Address, actor, amountB); err != nil {
			if rbErr := p.cfg.Ledger.Transfer(p.cfg.TokenA, actor, p.cfg.Address, amountA); amountA.Sign() > 0 && rbErr != nil {
				p.logger.Error("withdraw rollback failed", zap.Error(rbErr))
			}
			return nil, nil, fmt.Errorf("withdraw token B: %w", err)
		}
	}

	negA := new(big.Int).Neg(amountA)
	negB := new(big.Int).Neg(amountB)
	negLp := new(big.Int).Neg(lpAmount)
	if err := p.applyDelta(negA, negB, negLp); err != nil {
		return nil, nil, err
	}
	balance.Sub(balance, lpAmount)

	p.appendTrade(actor, model.ActionRemoveLiquidity, p.cfg.TokenA, p.cfg.TokenB, amountA, amountB)
	p.logger.Debug("remove liquidity",
		zap.String("pool", p.cfg.Address.Hex()),
		zap.String("actor", actor.Hex()),
		zap.String("burned", lpAmount.String()),
	)

	return amountA, amountB, nil
}

// PreviewSwap quotes the output amount and fee for a swap without mutating
// state.
func (p *Pool) PreviewSwap(inputIsA bool, amountIn *big.Int) (amountOut, fee *big.Int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quote(inputIsA, amountIn)
}

// PreviewReservesAfterSwap quotes the reserves that would result from a swap.
func (p *Pool) PreviewReservesAfterSwap(inputIsA bool, amountIn *big.Int) (newReserveA, newReserveB *big.Int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	amountOut, _, err := p.quote(inputIsA, amountIn)
	if err != nil {
		return nil, nil, err
	}
	if inputIsA {
		newReserveA = new(big.Int).Add(p.reserveA, amountIn)
		newReserveB = new(big.Int).Sub(p.reserveB, amountOut)
	} else {
		newReserveA = new(big.Int).Sub(p.reserveA, amountOut)
		newReserveB = new(big.Int).Add(p.reserveB, amountIn)
	}
	return newReserveA, newReserveB, nil
}

// Swap executes a single-direction swap. minAmountOut of zero disables the
// slippage guard.
func (p *Pool) Swap(actor common.Address, inputIsA bool, amountIn, minAmountOut *big.Int) (amountOut *big.Int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	amountOut, _, err = p.quote(inputIsA, amountIn)
	if err != nil {
		return nil, err
	}
	if minAmountOut != nil && minAmountOut.Sign() > 0 && amountOut.Cmp(minAmountOut) < 0 {
		return nil, fmt.Errorf("out %s below min %s: %w", amountOut, minAmountOut, ErrSlippageExceeded)
	}

	tokenIn, tokenOut := p.cfg.TokenA, p.cfg.TokenB
	if !inputIsA {
		tokenIn, tokenOut = p.cfg.TokenB, p.cfg.TokenA
	}

	if err := p.cfg.Ledger.Transfer(tokenIn, actor, p.cfg.Address, amountIn); err != nil {
		return nil, fmt.Errorf("pull swap input: %w", err)
	}
	if err := p.cfg.Ledger.Transfer(tokenOut, p.cfg.Address, actor, amountOut); err != nil {
		// Roll the input back so a failed payout leaves no state change.
		if rbErr := p.cfg.Ledger.Transfer(tokenIn, p.cfg.Address, actor, amountIn); rbErr != nil {
			p.logger.Error("swap rollback failed", zap.Error(rbErr))
		}
		return nil, fmt.Errorf("pay swap output: %w", err)
	}

	deltaA, deltaB := amountIn, new(big.Int).Neg(amountOut)
	if !inputIsA {
		deltaA, deltaB = new(big.Int).Neg(amountOut), amountIn
	}
	if err := p.applyDelta(deltaA, deltaB, nil); err != nil {
		return nil, err
	}

	p.appendTrade(actor, model.ActionSwap, tokenIn, tokenOut, amountIn, amountOut)
	p.logger.Debug("swap",
		zap.String("pool", p.cfg.Address.Hex()),
		zap.String("actor", actor.Hex()),
		zap.Bool("input_is_a", inputIsA),
		zap.String("in", amountIn.String()),
		zap.String("out", amountOut.String()),
	)

	return amountOut, nil
}

// quote computes the swap output against current reserves. Caller holds p.mu.
func (p *Pool) quote(inputIsA bool, amountIn *big.Int) (amountOut, fee *big.Int, err error) {
	reserveIn, reserveOut := p.reserveA, p.reserveB
	if !inputIsA {
		reserveIn, reserveOut = p.reserveB, p.reserveA
	}
	return getAmountOut(amountIn, reserveIn, reserveOut, p.cfg.FeeBps)
}

// proportionalAmounts reduces the offered amounts to the current reserve
// ratio. Caller holds p.mu and guarantees a non-empty pool.
func (p *Pool) proportionalAmounts(amountA, amountB *big.Int) (consumedA, consumedB *big.Int) {
	optimalB := mulDiv(amountA, p.reserveB, p.reserveA)
	if optimalB.Cmp(amountB) <= 0 {
		return new(big.Int).Set(amountA), optimalB
	}
	optimalA := mulDiv(amountB, p.reserveA, p.reserveB)
	return optimalA, new(big.Int).Set(amountB)
}

// pullPair moves a deposit into pool custody, undoing the first leg if the
// second fails. Caller holds p.mu.
func (p *Pool) pullPair(actor common.Address, amountA, amountB *big.Int) error {
	if err := p.cfg.Ledger.Transfer(p.cfg.TokenA, actor, p.cfg.Address, amountA); err != nil {
		return fmt.Errorf("pull token A: %w", err)
	}
	if err := p.cfg.Ledger.Transfer(p.cfg.TokenB, actor, p.cfg.Address, amountB); err != nil {
		if rbErr := p.cfg.Ledger.Transfer(p.cfg.TokenA, p.cfg.Address, actor, amountA); rbErr != nil {
			p.logger.Error("deposit rollback failed", zap.Error(rbErr))
		}
		return fmt.Errorf("pull token B: %w", err)
	}
	return nil
}

// applyDelta mutates reserves and supply together. A nil deltaSupply leaves
// the supply untouched. Caller holds p.mu.
func (p *Pool) applyDelta(deltaA, deltaB, deltaSupply *big.Int) error {
	nextA := new(big.Int).Add(p.reserveA, deltaA)
	nextB := new(big.Int).Add(p.reserveB, deltaB)
	nextSupply := p.totalSupply
	if deltaSupply != nil {
		nextSupply = new(big.Int).Add(p.totalSupply, deltaSupply)
	}
	if nextA.Sign() < 0 || nextB.Sign() < 0 || nextSupply.Sign() < 0 {
		return ErrUnderflow
	}
	p.reserveA = nextA
	p.reserveB = nextB
	p.totalSupply = nextSupply
	return nil
}

func (p *Pool) creditLp(owner common.Address, amount *big.Int) {
	balance, ok := p.lpBalances[owner]
	if !ok {
		balance = new(big.Int)
		p.lpBalances[owner] = balance
	}
	balance.Add(balance, amount)
}

// appendTrade records a committed mutation with the actor's post-call share.
// For swaps, tokenX/tokenY are the input and output tokens; otherwise they
// are the canonical pair. Caller holds p.mu.
func (p *Pool) appendTrade(actor common.Address, action model.Action, tokenX, tokenY common.Address, amountA, amountB *big.Int) {
	record := model.TradeRecord{
		Pool:      p.cfg.Address.Hex(),
		Actor:     actor.Hex(),
		Action:    action,
		TokenA:    tokenX.Hex(),
		TokenB:    tokenY.Hex(),
		AmountA:   amountA.String(),
		AmountB:   amountB.String(),
		FeeBps:    p.cfg.FeeBps,
		ShareBps:  p.shareBps(actor),
		LpSupply:  p.totalSupply.String(),
		Timestamp: p.cfg.Now(),
	}
	if p.cfg.OnTrade != nil {
		p.cfg.OnTrade(&record)
	}
	p.trades = append(p.trades, record)
}

// shareBps returns the actor's LP share in basis points. Caller holds p.mu.
func (p *Pool) shareBps(actor common.Address) uint32 {
	if p.totalSupply.Sign() == 0 {
		return 0
	}
	balance, ok := p.lpBalances[actor]
	if !ok {
		return 0
	}
	share := new(big.Int).Mul(balance, big.NewInt(FeeDenominator))
	share.Div(share, p.totalSupply)
	return uint32(share.Uint64())
}
