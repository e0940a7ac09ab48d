package runner

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"flowex/internal/model"
	"flowex/internal/storage"
)

// PoolReplay is the reconstructed state of one pool after replaying its
// trade history.
type PoolReplay struct {
	Pool       string
	TradeCount uint64
	SwapCount  uint64
	Reserves   map[string]*big.Int
	LpSupply   *big.Int
}

// Replay rebuilds per-pool reserve state from a trades JSONL file and
// verifies the constant-product invariant: the reserve product never
// decreases across a swap and no reserve ever goes negative.
func Replay(path string) (map[string]*PoolReplay, error) {
	pools := make(map[string]*PoolReplay)
	var lastSeq uint64

	err := storage.ReadTrades(path, func(record model.TradeRecord) error {
		if record.Seq <= lastSeq {
			return fmt.Errorf("seq %d out of order after %d", record.Seq, lastSeq)
		}
		lastSeq = record.Seq

		state, ok := pools[record.Pool]
		if !ok {
			state = &PoolReplay{
				Pool:     record.Pool,
				Reserves: make(map[string]*big.Int),
				LpSupply: new(big.Int),
			}
			pools[record.Pool] = state
		}
		return state.apply(record)
	})
	if err != nil {
		return nil, err
	}
	return pools, nil
}

// SortedPools returns replayed pools ordered by address for stable output.
func SortedPools(pools map[string]*PoolReplay) []*PoolReplay {
	out := make([]*PoolReplay, 0, len(pools))
	for _, state := range pools {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pool < out[j].Pool })
	return out
}

func (s *PoolReplay) apply(record model.TradeRecord) error {
	amountA, err := ParseAmount(record.AmountA)
	if err != nil {
		return fmt.Errorf("pool %s seq %d: %w", s.Pool, record.Seq, err)
	}
	amountB, err := ParseAmount(record.AmountB)
	if err != nil {
		return fmt.Errorf("pool %s seq %d: %w", s.Pool, record.Seq, err)
	}
	tokenA := strings.ToLower(record.TokenA)
	tokenB := strings.ToLower(record.TokenB)

	switch record.Action {
	case model.ActionAddLiquidity:
		s.reserve(tokenA).Add(s.reserve(tokenA), amountA)
		s.reserve(tokenB).Add(s.reserve(tokenB), amountB)

	case model.ActionRemoveLiquidity:
		s.reserve(tokenA).Sub(s.reserve(tokenA), amountA)
		s.reserve(tokenB).Sub(s.reserve(tokenB), amountB)

	case model.ActionSwap:
		// For swaps tokenA/amountA are the input leg, tokenB/amountB the
		// output leg.
		reserveIn := s.reserve(tokenA)
		reserveOut := s.reserve(tokenB)
		kBefore := new(big.Int).Mul(reserveIn, reserveOut)

		reserveIn.Add(reserveIn, amountA)
		reserveOut.Sub(reserveOut, amountB)

		kAfter := new(big.Int).Mul(reserveIn, reserveOut)
		if kAfter.Cmp(kBefore) < 0 {
			return fmt.Errorf("pool %s seq %d: reserve product decreased", s.Pool, record.Seq)
		}
		s.SwapCount++

	default:
		return fmt.Errorf("pool %s seq %d: unknown action %q", s.Pool, record.Seq, record.Action)
	}

	for token, reserve := range s.Reserves {
		if reserve.Sign() < 0 {
			return fmt.Errorf("pool %s seq %d: negative reserve for %s", s.Pool, record.Seq, token)
		}
	}

	supply, ok := new(big.Int).SetString(record.LpSupply, 10)
	if !ok {
		return fmt.Errorf("pool %s seq %d: invalid lp supply %q", s.Pool, record.Seq, record.LpSupply)
	}
	s.LpSupply = supply
	s.TradeCount++
	return nil
}

func (s *PoolReplay) reserve(token string) *big.Int {
	reserve, ok := s.Reserves[token]
	if !ok {
		reserve = new(big.Int)
		s.Reserves[token] = reserve
	}
	return reserve
}
