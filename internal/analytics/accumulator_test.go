package analytics

import (
	"testing"

	"flowex/internal/model"
)

const (
	accPool   = "0x00000000000000000000000000000000000000aa"
	accTokenA = "0x0000000000000000000000000000000000000001"
	accTokenB = "0x0000000000000000000000000000000000000002"
)

func swapRecord(seq uint64, tokenIn, tokenOut, amountIn, amountOut string, ts uint64) model.TradeRecord {
	return model.TradeRecord{
		Seq:       seq,
		Pool:      accPool,
		Actor:     "0x1111111111111111111111111111111111111111",
		Action:    model.ActionSwap,
		TokenA:    tokenIn,
		TokenB:    tokenOut,
		AmountA:   amountIn,
		AmountB:   amountOut,
		FeeBps:    30,
		LpSupply:  "1000000000000000000000",
		Timestamp: ts,
	}
}

func liquidityRecord(seq uint64, action model.Action, ts uint64) model.TradeRecord {
	return model.TradeRecord{
		Seq:       seq,
		Pool:      accPool,
		Actor:     "0x1111111111111111111111111111111111111111",
		Action:    action,
		TokenA:    accTokenA,
		TokenB:    accTokenB,
		AmountA:   "1000000000000000000",
		AmountB:   "1000000000000000000",
		FeeBps:    30,
		LpSupply:  "2000000000000000000000",
		Timestamp: ts,
	}
}

func TestAccumulatorSwapVolumeAndFees(t *testing.T) {
	record := swapRecord(1, accTokenA, accTokenB, "100000000000000000000", "90661089388014913158", 1000)
	acc := NewAccumulator(record, 0, 3600)
	if err := acc.AddTrade(record); err != nil {
		t.Fatalf("add trade: %v", err)
	}

	metrics := acc.Metrics(3600, AmountDecimals)
	if metrics.SwapCount != 1 {
		t.Fatalf("swap count mismatch: %d", metrics.SwapCount)
	}
	if metrics.VolumeA != "100.000000000000000000" {
		t.Fatalf("volume A mismatch: %s", metrics.VolumeA)
	}
	if metrics.VolumeB != "90.661089388014913158" {
		t.Fatalf("volume B mismatch: %s", metrics.VolumeB)
	}
	// Fee is charged on the input leg only.
	if metrics.FeeA != "0.300000000000000000" {
		t.Fatalf("fee A mismatch: %s", metrics.FeeA)
	}
	if metrics.FeeB != "0.000000000000000000" {
		t.Fatalf("fee B mismatch: %s", metrics.FeeB)
	}
}

func TestAccumulatorCanonicalOrderForReverseSwap(t *testing.T) {
	// Input is the higher token; volumes must still land on canonical sides.
	record := swapRecord(1, accTokenB, accTokenA, "50000000000000000000", "40000000000000000000", 1000)
	acc := NewAccumulator(record, 0, 3600)
	if err := acc.AddTrade(record); err != nil {
		t.Fatalf("add trade: %v", err)
	}

	metrics := acc.Metrics(3600, AmountDecimals)
	if metrics.VolumeA != "40.000000000000000000" {
		t.Fatalf("volume A mismatch: %s", metrics.VolumeA)
	}
	if metrics.VolumeB != "50.000000000000000000" {
		t.Fatalf("volume B mismatch: %s", metrics.VolumeB)
	}
	if metrics.FeeA != "0.000000000000000000" {
		t.Fatalf("fee A mismatch: %s", metrics.FeeA)
	}
	if metrics.FeeB != "0.150000000000000000" {
		t.Fatalf("fee B mismatch: %s", metrics.FeeB)
	}
}

func TestAccumulatorCountsLiquidityEvents(t *testing.T) {
	first := liquidityRecord(1, model.ActionAddLiquidity, 1000)
	acc := NewAccumulator(first, 0, 3600)
	records := []model.TradeRecord{
		first,
		liquidityRecord(2, model.ActionAddLiquidity, 1100),
		liquidityRecord(3, model.ActionRemoveLiquidity, 1200),
		swapRecord(4, accTokenA, accTokenB, "1000000000000000000", "900000000000000000", 1300),
	}
	for _, record := range records {
		if err := acc.AddTrade(record); err != nil {
			t.Fatalf("add trade %d: %v", record.Seq, err)
		}
	}

	metrics := acc.Metrics(3600, AmountDecimals)
	if metrics.DepositCount != 2 || metrics.WithdrawCount != 1 || metrics.SwapCount != 1 {
		t.Fatalf("counts mismatch: %+v", metrics)
	}
	if acc.FirstSeq != 1 || acc.LastSeq != 4 {
		t.Fatalf("seq range mismatch: %d..%d", acc.FirstSeq, acc.LastSeq)
	}
}

func TestAccumulatorCloseLpSupplyTracksLastRecord(t *testing.T) {
	first := liquidityRecord(1, model.ActionAddLiquidity, 1000)
	acc := NewAccumulator(first, 0, 3600)
	if err := acc.AddTrade(first); err != nil {
		t.Fatalf("add trade: %v", err)
	}

	later := liquidityRecord(2, model.ActionAddLiquidity, 1100)
	later.LpSupply = "3000000000000000000000"
	if err := acc.AddTrade(later); err != nil {
		t.Fatalf("add trade: %v", err)
	}

	metrics := acc.Metrics(3600, AmountDecimals)
	if metrics.CloseLpSupply != "3000000000000000000000" {
		t.Fatalf("close supply mismatch: %s", metrics.CloseLpSupply)
	}
}

func TestAccumulatorRejectsUnknownAction(t *testing.T) {
	record := liquidityRecord(1, model.Action("burn"), 1000)
	acc := NewAccumulator(record, 0, 3600)
	if err := acc.AddTrade(record); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}
