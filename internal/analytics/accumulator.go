package analytics

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"flowex/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	Pool          string
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	DepositCount  uint64
	WithdrawCount uint64
	FirstSeq      uint64
	LastSeq       uint64
	CloseLpSupply string

	volumes map[string]*big.Int
	fees    map[string]*big.Int
}

func NewAccumulator(record model.TradeRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		Pool:          record.Pool,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		FirstSeq:      record.Seq,
		LastSeq:       record.Seq,
		CloseLpSupply: "0",
		volumes:       make(map[string]*big.Int),
		fees:          make(map[string]*big.Int),
	}
}

// AddTrade folds one trade record into the window. Only swaps contribute
// volume and fees; deposits and withdrawals are counted.
func (a *Accumulator) AddTrade(record model.TradeRecord) error {
	if record.Seq > a.LastSeq {
		a.LastSeq = record.Seq
		a.CloseLpSupply = record.LpSupply
	}
	if record.Seq < a.FirstSeq || a.FirstSeq == 0 {
		a.FirstSeq = record.Seq
	}

	switch record.Action {
	case model.ActionAddLiquidity:
		a.DepositCount++
		return nil
	case model.ActionRemoveLiquidity:
		a.WithdrawCount++
		return nil
	case model.ActionSwap:
		return a.applySwap(record)
	default:
		return fmt.Errorf("unknown action %q", record.Action)
	}
}

// applySwap accumulates input-side and output-side volume and the input-side
// fee. For swap records TokenA/AmountA are the input leg.
func (a *Accumulator) applySwap(record model.TradeRecord) error {
	amountIn, err := parseBigInt(record.AmountA)
	if err != nil {
		return err
	}
	amountOut, err := parseBigInt(record.AmountB)
	if err != nil {
		return err
	}

	tokenIn := strings.ToLower(record.TokenA)
	tokenOut := strings.ToLower(record.TokenB)
	addTo(a.volumes, tokenIn, amountIn)
	addTo(a.volumes, tokenOut, amountOut)

	if record.FeeBps > 0 {
		fee := new(big.Int).Mul(amountIn, big.NewInt(int64(record.FeeBps)))
		fee.Div(fee, big.NewInt(10_000))
		addTo(a.fees, tokenIn, fee)
	}

	a.SwapCount++
	return nil
}

// Metrics renders the window in canonical token order (ascending address).
func (a *Accumulator) Metrics(windowSeconds uint64, decimals uint8) model.PoolWindowMetrics {
	tokens := make([]string, 0, len(a.volumes))
	for token := range a.volumes {
		tokens = append(tokens, token)
	}
	for token := range a.fees {
		if _, ok := a.volumes[token]; !ok {
			tokens = append(tokens, token)
		}
	}
	sort.Strings(tokens)

	volumeA, volumeB := new(big.Int), new(big.Int)
	feeA, feeB := new(big.Int), new(big.Int)
	if len(tokens) > 0 {
		volumeA = valueOrZero(a.volumes, tokens[0])
		feeA = valueOrZero(a.fees, tokens[0])
	}
	if len(tokens) > 1 {
		volumeB = valueOrZero(a.volumes, tokens[1])
		feeB = valueOrZero(a.fees, tokens[1])
	}

	return model.PoolWindowMetrics{
		Pool:           a.Pool,
		WindowSizeSecs: int64(windowSeconds),
		WindowStart:    unixTime(a.WindowStart),
		WindowEnd:      unixTime(a.WindowEnd),
		SwapCount:      a.SwapCount,
		DepositCount:   a.DepositCount,
		WithdrawCount:  a.WithdrawCount,
		VolumeA:        formatTokenAmount(volumeA, decimals),
		VolumeB:        formatTokenAmount(volumeB, decimals),
		FeeA:           formatTokenAmount(feeA, decimals),
		FeeB:           formatTokenAmount(feeB, decimals),
		CloseLpSupply:  a.CloseLpSupply,
	}
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}

func addTo(m map[string]*big.Int, key string, value *big.Int) {
	total, ok := m[key]
	if !ok {
		total = new(big.Int)
		m[key] = total
	}
	total.Add(total, value)
}

func valueOrZero(m map[string]*big.Int, key string) *big.Int {
	if value, ok := m[key]; ok {
		return value
	}
	return new(big.Int)
}
