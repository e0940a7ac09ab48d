package model

import (
	"encoding/json"
)

// Action identifies the kind of pool mutation a trade record captures.
type Action string

const (
	ActionAddLiquidity    Action = "add_liquidity"
	ActionRemoveLiquidity Action = "remove_liquidity"
	ActionSwap            Action = "swap"
)

// Valid reports whether the action is one of the known kinds.
func (a Action) Valid() bool {
	switch a {
	case ActionAddLiquidity, ActionRemoveLiquidity, ActionSwap:
		return true
	}
	return false
}

// TradeRecord is the normalized representation of one pool mutation for storage.
// Amounts are 18-decimal fixed-point integers encoded as decimal strings.
type TradeRecord struct {
	Seq       uint64 `json:"seq"`
	Pool      string `json:"pool"`
	Actor     string `json:"actor"`
	Action    Action `json:"action"`
	TokenA    string `json:"token_a"`
	TokenB    string `json:"token_b"`
	AmountA   string `json:"amount_a"`
	AmountB   string `json:"amount_b"`
	FeeBps    uint32 `json:"fee_bps"`
	ShareBps  uint32 `json:"share_bps"`
	LpSupply  string `json:"lp_supply"`
	Timestamp uint64 `json:"timestamp"`
}

// MarshalJSON ensures TradeRecord is encoded with stable field names.
func (tr TradeRecord) MarshalJSON() ([]byte, error) {
	type Alias TradeRecord
	return json.Marshal(Alias(tr))
}

// UnmarshalJSON decodes a TradeRecord from JSON.
func (tr *TradeRecord) UnmarshalJSON(data []byte) error {
	type Alias TradeRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*tr = TradeRecord(a)
	return nil
}
