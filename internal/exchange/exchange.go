package exchange

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"flowex/internal/amm"
	"flowex/internal/model"
	"flowex/internal/token"
)

// Config holds construction parameters for an Exchange.
type Config struct {
	Owner  common.Address
	FeeBps uint32
	Ledger *token.Ledger
	Logger *zap.Logger
	// Now overrides the timestamp source. Defaults to time.Now.
	Now func() uint64
}

// Exchange is the deployment-wide registry: it resolves token names to
// addresses, deduplicates pools by canonical pair key, and keeps a global
// ordered journal of every pool mutation.
type Exchange struct {
	cfg    Config
	logger *zap.Logger
	now    func() uint64

	mu           sync.RWMutex
	tokensByName map[string]common.Address
	namesByToken map[common.Address]string
	tokenOrder   []string
	pools        map[common.Hash]*amm.Pool
	poolOrder    []common.Hash
	createdAt    map[common.Hash]uint64

	journalMu sync.Mutex
	journal   []model.TradeRecord
	seq       uint64
}

// New builds an empty exchange owned by cfg.Owner.
func New(cfg Config) *Exchange {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Ledger == nil {
		cfg.Ledger = token.NewLedger()
	}
	if cfg.Now == nil {
		cfg.Now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return &Exchange{
		cfg:          cfg,
		logger:       cfg.Logger,
		now:          cfg.Now,
		tokensByName: make(map[string]common.Address),
		namesByToken: make(map[common.Address]string),
		pools:        make(map[common.Hash]*amm.Pool),
		createdAt:    make(map[common.Hash]uint64),
	}
}

// Owner returns the exchange owner.
func (e *Exchange) Owner() common.Address { return e.cfg.Owner }

// Ledger returns the token ledger backing all pools.
func (e *Exchange) Ledger() *token.Ledger { return e.cfg.Ledger }

// AddToken registers a new token under a unique name and returns its
// deterministic address. Re-registering a taken name fails; a name maps to
// one asset for its lifetime.
func (e *Exchange) AddToken(name string) (common.Address, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return common.Address{}, fmt.Errorf("token name required: %w", amm.ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tokensByName[name]; ok {
		return common.Address{}, fmt.Errorf("token %q: %w", name, ErrDuplicateName)
	}

	addr := tokenAddress(name)
	e.tokensByName[name] = addr
	e.namesByToken[addr] = name
	e.tokenOrder = append(e.tokenOrder, name)

	e.logger.Info("token added", zap.String("name", name), zap.String("address", addr.Hex()))
	return addr, nil
}

// RemoveToken deletes a token entry. Restricted to the exchange owner.
func (e *Exchange) RemoveToken(caller common.Address, name string) error {
	if caller != e.cfg.Owner {
		return fmt.Errorf("remove token %q: %w", name, ErrNotOwner)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	addr, ok := e.tokensByName[name]
	if !ok {
		return fmt.Errorf("token %q: %w", name, ErrNotFound)
	}
	delete(e.tokensByName, name)
	delete(e.namesByToken, addr)
	for i, n := range e.tokenOrder {
		if n == name {
			e.tokenOrder = append(e.tokenOrder[:i], e.tokenOrder[i+1:]...)
			break
		}
	}

	e.logger.Info("token removed", zap.String("name", name))
	return nil
}

// TokenByName resolves a registered token name to its address.
func (e *Exchange) TokenByName(name string) (common.Address, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	addr, ok := e.tokensByName[name]
	if !ok {
		return common.Address{}, fmt.Errorf("token %q: %w", name, ErrNotFound)
	}
	return addr, nil
}

// TokenExists reports whether the address belongs to a registered token.
func (e *Exchange) TokenExists(addr common.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.namesByToken[addr]
	return ok
}

// AllTokens lists registered tokens in registration order.
func (e *Exchange) AllTokens() []model.TokenEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.TokenEntry, 0, len(e.tokenOrder))
	for _, name := range e.tokenOrder {
		out = append(out, model.TokenEntry{Name: name, Address: e.tokensByName[name].Hex()})
	}
	return out
}

// MintTo issues faucet funds of a registered token to an account.
func (e *Exchange) MintTo(name string, account common.Address, amount *big.Int) error {
	addr, err := e.TokenByName(name)
	if err != nil {
		return err
	}
	if err := e.cfg.Ledger.Mint(addr, account, amount); err != nil {
		return fmt.Errorf("mint %q: %w", name, err)
	}
	return nil
}

// AddPool creates the unique pool for a token pair, recording the creator as
// pool owner. Both tokens must be registered.
func (e *Exchange) AddPool(creator, tokenX, tokenY common.Address) (*amm.Pool, error) {
	if tokenX == tokenY {
		return nil, ErrIdenticalTokens
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.namesByToken[tokenX]; !ok {
		return nil, fmt.Errorf("token %s: %w", tokenX.Hex(), ErrNotFound)
	}
	if _, ok := e.namesByToken[tokenY]; !ok {
		return nil, fmt.Errorf("token %s: %w", tokenY.Hex(), ErrNotFound)
	}

	key := PairKey(tokenX, tokenY)
	if _, ok := e.pools[key]; ok {
		return nil, fmt.Errorf("pair %s: %w", key.Hex(), ErrPoolExists)
	}

	tokenA, tokenB := SortTokens(tokenX, tokenY)
	pool := amm.NewPool(amm.PoolConfig{
		Address: poolAddress(key),
		TokenA:  tokenA,
		TokenB:  tokenB,
		FeeBps:  e.cfg.FeeBps,
		Owner:   creator,
		Ledger:  e.cfg.Ledger,
		Logger:  e.logger,
		Now:     e.now,
		OnTrade: e.journalTrade,
	})

	e.pools[key] = pool
	e.poolOrder = append(e.poolOrder, key)
	e.createdAt[key] = e.now()

	e.logger.Info("pool added",
		zap.String("pair_key", key.Hex()),
		zap.String("token_a", tokenA.Hex()),
		zap.String("token_b", tokenB.Hex()),
		zap.String("owner", creator.Hex()),
	)
	return pool, nil
}

// RemovePool deregisters a drained pool. Restricted to the pool owner or the
// exchange owner; a pool with outstanding reserves or LP supply stays.
func (e *Exchange) RemovePool(caller, tokenX, tokenY common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := PairKey(tokenX, tokenY)
	pool, ok := e.pools[key]
	if !ok {
		return fmt.Errorf("pair %s: %w", key.Hex(), ErrNotFound)
	}
	if caller != pool.Owner() && caller != e.cfg.Owner {
		return fmt.Errorf("pair %s: %w", key.Hex(), ErrNotOwner)
	}
	reserveA, reserveB := pool.Reserves()
	if reserveA.Sign() != 0 || reserveB.Sign() != 0 || pool.TotalSupply().Sign() != 0 {
		return fmt.Errorf("pair %s: %w", key.Hex(), ErrPoolNotEmpty)
	}

	delete(e.pools, key)
	delete(e.createdAt, key)
	for i, k := range e.poolOrder {
		if k == key {
			e.poolOrder = append(e.poolOrder[:i], e.poolOrder[i+1:]...)
			break
		}
	}

	e.logger.Info("pool removed", zap.String("pair_key", key.Hex()))
	return nil
}

// Pool resolves the pool for a token pair in either order.
func (e *Exchange) Pool(tokenX, tokenY common.Address) (*amm.Pool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	key := PairKey(tokenX, tokenY)
	pool, ok := e.pools[key]
	if !ok {
		return nil, fmt.Errorf("pair %s: %w", key.Hex(), ErrNotFound)
	}
	return pool, nil
}

// AllPools lists pools in creation order.
func (e *Exchange) AllPools() []*amm.Pool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*amm.Pool, 0, len(e.poolOrder))
	for _, key := range e.poolOrder {
		out = append(out, e.pools[key])
	}
	return out
}

// PoolRecords returns storage records for every pool, keyed by pair key.
func (e *Exchange) PoolRecords() []model.PoolRecord {
	e.mu.RLock()
	keys := make([]common.Hash, len(e.poolOrder))
	copy(keys, e.poolOrder)
	pools := make([]*amm.Pool, 0, len(keys))
	created := make([]uint64, 0, len(keys))
	for _, key := range keys {
		pools = append(pools, e.pools[key])
		created = append(created, e.createdAt[key])
	}
	e.mu.RUnlock()

	out := make([]model.PoolRecord, 0, len(pools))
	for i, pool := range pools {
		record := pool.Record()
		record.PairKey = keys[i].Hex()
		record.CreatedAt = created[i]
		out = append(out, record)
	}
	return out
}

// DrainJournal returns buffered trade records in sequence order and clears
// the buffer. The per-pool trade logs are unaffected.
func (e *Exchange) DrainJournal() []model.TradeRecord {
	e.journalMu.Lock()
	defer e.journalMu.Unlock()
	out := e.journal
	e.journal = nil
	return out
}

func (e *Exchange) journalTrade(record *model.TradeRecord) {
	e.journalMu.Lock()
	defer e.journalMu.Unlock()
	e.seq++
	record.Seq = e.seq
	e.journal = append(e.journal, *record)
}

// tokenAddress derives a deterministic address for a registered token name.
func tokenAddress(name string) common.Address {
	hash := crypto.Keccak256([]byte("flowex/token/" + name))
	return common.BytesToAddress(hash[12:])
}

// poolAddress derives the pool custody address from its pair key.
func poolAddress(key common.Hash) common.Address {
	hash := crypto.Keccak256([]byte("flowex/pool/"), key.Bytes())
	return common.BytesToAddress(hash[12:])
}
