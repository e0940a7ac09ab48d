package amm

import "errors"

var (
	// ErrInvalidInput is returned when an amount is zero, negative, or missing.
	ErrInvalidInput = errors.New("invalid input amount")
	// ErrInsufficientBalance is returned when an LP burn or token transfer exceeds holdings.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientLiquidity is returned when swapping against an empty or one-sided pool.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	// ErrInsufficientLiquidityMinted is returned when a deposit would mint zero LP shares.
	ErrInsufficientLiquidityMinted = errors.New("insufficient liquidity minted")
	// ErrSlippageExceeded is returned when a swap output falls below the caller's guard.
	ErrSlippageExceeded = errors.New("slippage exceeded")
	// ErrUnderflow is returned when a reserve or supply delta would go negative.
	// Input validation should make this unreachable; seeing it means an invariant broke.
	ErrUnderflow = errors.New("reserve underflow")
)
