package model

// PoolRecord represents a pool registry entry for storage.
// Reserves and LP supply are 18-decimal fixed-point decimal strings.
type PoolRecord struct {
	PairKey   string `json:"pair_key"`
	Address   string `json:"address"`
	TokenA    string `json:"token_a"`
	TokenB    string `json:"token_b"`
	FeeBps    uint32 `json:"fee_bps"`
	Owner     string `json:"owner"`
	ReserveA  string `json:"reserve_a"`
	ReserveB  string `json:"reserve_b"`
	LpSupply  string `json:"lp_supply"`
	CreatedAt uint64 `json:"created_at"`
}
