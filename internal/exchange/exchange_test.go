package exchange

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"flowex/internal/model"
)

var (
	admin = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func wei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func newTestExchange(t *testing.T) *Exchange {
	t.Helper()
	var ts uint64 = 1_700_000_000
	return New(Config{
		Owner:  admin,
		FeeBps: 30,
		Now: func() uint64 {
			ts++
			return ts
		},
	})
}

func TestAddTokenAndLookup(t *testing.T) {
	ex := newTestExchange(t)

	usdt, err := ex.AddToken("USDT")
	if err != nil {
		t.Fatalf("add token: %v", err)
	}
	dai, err := ex.AddToken("DAI")
	if err != nil {
		t.Fatalf("add token: %v", err)
	}
	if usdt == dai {
		t.Fatalf("token addresses must be distinct")
	}

	got, err := ex.TokenByName("USDT")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != usdt {
		t.Fatalf("lookup mismatch: %s != %s", got.Hex(), usdt.Hex())
	}
	if !ex.TokenExists(usdt) {
		t.Fatalf("token should exist")
	}

	tokens := ex.AllTokens()
	want := []model.TokenEntry{
		{Name: "USDT", Address: usdt.Hex()},
		{Name: "DAI", Address: dai.Hex()},
	}
	if len(tokens) != len(want) {
		t.Fatalf("token count mismatch: %d", len(tokens))
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d mismatch: %+v != %+v", i, tokens[i], want[i])
		}
	}
}

func TestAddTokenDuplicateName(t *testing.T) {
	ex := newTestExchange(t)
	if _, err := ex.AddToken("USDT"); err != nil {
		t.Fatalf("add token: %v", err)
	}
	if _, err := ex.AddToken("USDT"); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestTokenAddressDeterministic(t *testing.T) {
	first := newTestExchange(t)
	second := newTestExchange(t)

	a1, _ := first.AddToken("USDT")
	a2, _ := second.AddToken("USDT")
	if a1 != a2 {
		t.Fatalf("token address must be a pure function of the name")
	}
}

func TestRemoveTokenOwnerOnly(t *testing.T) {
	ex := newTestExchange(t)
	if _, err := ex.AddToken("USDT"); err != nil {
		t.Fatalf("add token: %v", err)
	}

	if err := ex.RemoveToken(alice, "USDT"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := ex.RemoveToken(admin, "USDT"); err != nil {
		t.Fatalf("owner removal: %v", err)
	}
	if _, err := ex.TokenByName("USDT"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
	if err := ex.RemoveToken(admin, "USDT"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing token, got %v", err)
	}
}

func TestMintTo(t *testing.T) {
	ex := newTestExchange(t)
	usdt, err := ex.AddToken("USDT")
	if err != nil {
		t.Fatalf("add token: %v", err)
	}

	if err := ex.MintTo("USDT", alice, wei(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := ex.Ledger().BalanceOf(usdt, alice); got.Cmp(wei(100)) != 0 {
		t.Fatalf("balance mismatch: %s", got)
	}
	if err := ex.MintTo("NOPE", alice, wei(1)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddPoolDeduplicates(t *testing.T) {
	ex := newTestExchange(t)
	usdt, _ := ex.AddToken("USDT")
	dai, _ := ex.AddToken("DAI")

	pool, err := ex.AddPool(alice, usdt, dai)
	if err != nil {
		t.Fatalf("add pool: %v", err)
	}
	if pool.Owner() != alice {
		t.Fatalf("pool owner should be the creator")
	}

	// The reversed pair resolves to the same pool and cannot be re-created.
	if _, err := ex.AddPool(bob, dai, usdt); !errors.Is(err, ErrPoolExists) {
		t.Fatalf("expected ErrPoolExists, got %v", err)
	}

	got, err := ex.Pool(dai, usdt)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != pool {
		t.Fatalf("reversed lookup returned a different pool")
	}
}

func TestAddPoolIdenticalTokens(t *testing.T) {
	ex := newTestExchange(t)
	usdt, _ := ex.AddToken("USDT")
	if _, err := ex.AddPool(alice, usdt, usdt); !errors.Is(err, ErrIdenticalTokens) {
		t.Fatalf("expected ErrIdenticalTokens, got %v", err)
	}
}

func TestAddPoolUnknownToken(t *testing.T) {
	ex := newTestExchange(t)
	usdt, _ := ex.AddToken("USDT")
	unknown := common.HexToAddress("0x4444444444444444444444444444444444444444")
	if _, err := ex.AddPool(alice, usdt, unknown); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPoolCanonicalOrder(t *testing.T) {
	ex := newTestExchange(t)
	usdt, _ := ex.AddToken("USDT")
	dai, _ := ex.AddToken("DAI")

	pool, err := ex.AddPool(alice, usdt, dai)
	if err != nil {
		t.Fatalf("add pool: %v", err)
	}

	wantA, wantB := SortTokens(usdt, dai)
	if pool.TokenA() != wantA || pool.TokenB() != wantB {
		t.Fatalf("pool pair not canonical: %s %s", pool.TokenA().Hex(), pool.TokenB().Hex())
	}
}

func TestRemovePoolPolicy(t *testing.T) {
	ex := newTestExchange(t)
	usdt, _ := ex.AddToken("USDT")
	dai, _ := ex.AddToken("DAI")

	pool, err := ex.AddPool(alice, usdt, dai)
	if err != nil {
		t.Fatalf("add pool: %v", err)
	}

	if err := ex.RemovePool(bob, usdt, dai); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	if err := ex.MintTo("USDT", alice, wei(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ex.MintTo("DAI", alice, wei(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	minted, _, _, err := pool.AddLiquidity(alice, wei(10), wei(10))
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	if err := ex.RemovePool(alice, usdt, dai); !errors.Is(err, ErrPoolNotEmpty) {
		t.Fatalf("expected ErrPoolNotEmpty, got %v", err)
	}

	if _, _, err := pool.RemoveLiquidity(alice, minted); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if err := ex.RemovePool(alice, usdt, dai); err != nil {
		t.Fatalf("remove drained pool: %v", err)
	}
	if _, err := ex.Pool(usdt, dai); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
}

func TestJournalSequencing(t *testing.T) {
	ex := newTestExchange(t)
	usdt, _ := ex.AddToken("USDT")
	dai, _ := ex.AddToken("DAI")
	wbtc, _ := ex.AddToken("WBTC")

	first, err := ex.AddPool(alice, usdt, dai)
	if err != nil {
		t.Fatalf("add pool: %v", err)
	}
	second, err := ex.AddPool(alice, usdt, wbtc)
	if err != nil {
		t.Fatalf("add pool: %v", err)
	}

	for _, name := range []string{"USDT", "DAI", "WBTC"} {
		if err := ex.MintTo(name, alice, wei(10_000)); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}

	if _, _, _, err := first.AddLiquidity(alice, wei(100), wei(100)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, _, _, err := second.AddLiquidity(alice, wei(100), wei(100)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := first.Swap(alice, true, wei(5), nil); err != nil {
		t.Fatalf("swap: %v", err)
	}

	journal := ex.DrainJournal()
	if len(journal) != 3 {
		t.Fatalf("expected 3 journal records, got %d", len(journal))
	}
	for i, record := range journal {
		if record.Seq != uint64(i+1) {
			t.Fatalf("journal seq gap at %d: %d", i, record.Seq)
		}
	}

	// Draining clears the buffer but leaves pool logs intact.
	if len(ex.DrainJournal()) != 0 {
		t.Fatalf("second drain should be empty")
	}
	if len(first.Trades()) != 2 {
		t.Fatalf("pool log should keep its records")
	}

	records := ex.PoolRecords()
	if len(records) != 2 {
		t.Fatalf("expected 2 pool records, got %d", len(records))
	}
	if records[0].PairKey == records[1].PairKey {
		t.Fatalf("pair keys must differ")
	}
	if records[0].FeeBps != 30 {
		t.Fatalf("fee mismatch: %d", records[0].FeeBps)
	}
}

func TestAllPoolsCreationOrder(t *testing.T) {
	ex := newTestExchange(t)
	usdt, _ := ex.AddToken("USDT")
	dai, _ := ex.AddToken("DAI")
	wbtc, _ := ex.AddToken("WBTC")

	p1, _ := ex.AddPool(alice, usdt, dai)
	p2, _ := ex.AddPool(alice, dai, wbtc)

	pools := ex.AllPools()
	if len(pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(pools))
	}
	if pools[0] != p1 || pools[1] != p2 {
		t.Fatalf("pools out of creation order")
	}
}
