package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"flowex/internal/model"
)

func sampleTrades(startSeq uint64, n int) []model.TradeRecord {
	out := make([]model.TradeRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.TradeRecord{
			Seq:       startSeq + uint64(i),
			Pool:      "0x00000000000000000000000000000000000000aa",
			Actor:     "0x1111111111111111111111111111111111111111",
			Action:    model.ActionSwap,
			TokenA:    "0x0000000000000000000000000000000000000001",
			TokenB:    "0x0000000000000000000000000000000000000002",
			AmountA:   "100000000000000000000",
			AmountB:   "90661089388014913158",
			FeeBps:    30,
			ShareBps:  0,
			LpSupply:  "1000000000000000000000",
			Timestamp: 1_700_000_000 + startSeq + uint64(i),
		})
	}
	return out
}

func TestJsonlWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.jsonl")
	store := NewJsonlStorage(path)

	want := sampleTrades(1, 3)
	if err := store.PutTradeBatch(want); err != nil {
		t.Fatalf("put batch: %v", err)
	}

	var got []model.TradeRecord
	err := ReadTrades(path, func(record model.TradeRecord) error {
		got = append(got, record)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("record count mismatch: %d != %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d mismatch:\n got %+v\nwant %+v", i, got[i], want[i])
		}
	}
}

func TestJsonlAppendsAcrossBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.jsonl")
	store := NewJsonlStorage(path)

	if err := store.PutTradeBatch(sampleTrades(1, 2)); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := store.PutTradeBatch(sampleTrades(3, 2)); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	var seqs []uint64
	err := ReadTrades(path, func(record model.TradeRecord) error {
		seqs = append(seqs, record.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []uint64{1, 2, 3, 4}
	if len(seqs) != len(want) {
		t.Fatalf("seq count mismatch: %v", seqs)
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Fatalf("seq order mismatch: %v", seqs)
		}
	}
}

func TestJsonlEmptyBatchWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.jsonl")
	store := NewJsonlStorage(path)

	if err := store.PutTradeBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty batch should not create the file")
	}
}

func TestJsonlCreatesOutputDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "trades.jsonl")
	store := NewJsonlStorage(path)

	if err := store.PutTradeBatch(sampleTrades(1, 1)); err != nil {
		t.Fatalf("put batch: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
}

func TestReadTradesSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.jsonl")
	store := NewJsonlStorage(path)
	if err := store.PutTradeBatch(sampleTrades(1, 1)); err != nil {
		t.Fatalf("put batch: %v", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := file.WriteString("\n\n"); err != nil {
		t.Fatalf("append blanks: %v", err)
	}
	file.Close()

	count := 0
	err = ReadTrades(path, func(model.TradeRecord) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}
}

func TestReadTradesCallbackErrorStopsScan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.jsonl")
	store := NewJsonlStorage(path)
	if err := store.PutTradeBatch(sampleTrades(1, 3)); err != nil {
		t.Fatalf("put batch: %v", err)
	}

	sentinel := errors.New("stop")
	count := 0
	err := ReadTrades(path, func(model.TradeRecord) error {
		count++
		if count == 2 {
			return sentinel
		}
		return nil
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if count != 2 {
		t.Fatalf("scan should stop at the failing record, got %d", count)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	dir := t.TempDir()
	first := NewJsonlStorage(filepath.Join(dir, "a.jsonl"))
	second := NewJsonlStorage(filepath.Join(dir, "b.jsonl"))
	sink := MultiSink{first, second}

	if err := sink.PutTradeBatch(sampleTrades(1, 2)); err != nil {
		t.Fatalf("put batch: %v", err)
	}
	for _, path := range []string{filepath.Join(dir, "a.jsonl"), filepath.Join(dir, "b.jsonl")} {
		count := 0
		if err := ReadTrades(path, func(model.TradeRecord) error {
			count++
			return nil
		}); err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if count != 2 {
			t.Fatalf("%s: expected 2 records, got %d", path, count)
		}
	}
}
