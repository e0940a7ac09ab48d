package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInvalidAmount is returned for zero or negative mint/transfer amounts.
	ErrInvalidAmount = errors.New("invalid token amount")
	// ErrInsufficientFunds is returned when a transfer exceeds the sender's balance.
	ErrInsufficientFunds = errors.New("insufficient token funds")
)

// Ledger custodies per-token balances for every account, including pools.
// It stands in for the mock ERC-20 contracts so pool reserves always match
// real custody.
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*big.Int
	supply   map[common.Address]*big.Int
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]map[common.Address]*big.Int),
		supply:   make(map[common.Address]*big.Int),
	}
}

// Mint credits newly issued units of token to an account.
func (l *Ledger) Mint(token, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit(token, to, amount)
	supply, ok := l.supply[token]
	if !ok {
		supply = new(big.Int)
		l.supply[token] = supply
	}
	supply.Add(supply, amount)
	return nil
}

// Transfer moves amount of token from one account to another.
func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balance(token, from)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("transfer %s from %s: %w", amount, from.Hex(), ErrInsufficientFunds)
	}
	balance.Sub(balance, amount)
	l.credit(token, to, amount)
	return nil
}

// BalanceOf returns a copy of the holder's balance for token.
func (l *Ledger) BalanceOf(token, holder common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if holders, ok := l.balances[token]; ok {
		if balance, ok := holders[holder]; ok {
			return new(big.Int).Set(balance)
		}
	}
	return new(big.Int)
}

// TotalSupply returns a copy of the total minted supply for token.
func (l *Ledger) TotalSupply(token common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if supply, ok := l.supply[token]; ok {
		return new(big.Int).Set(supply)
	}
	return new(big.Int)
}

func (l *Ledger) balance(token, holder common.Address) *big.Int {
	holders, ok := l.balances[token]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		l.balances[token] = holders
	}
	balance, ok := holders[holder]
	if !ok {
		balance = new(big.Int)
		holders[holder] = balance
	}
	return balance
}

func (l *Ledger) credit(token, to common.Address, amount *big.Int) {
	balance := l.balance(token, to)
	balance.Add(balance, amount)
}
