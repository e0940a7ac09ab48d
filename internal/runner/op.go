package runner

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Op kinds accepted by the scenario runner.
const (
	OpCreateToken     = "create_token"
	OpRemoveToken     = "remove_token"
	OpMint            = "mint"
	OpCreatePool      = "create_pool"
	OpRemovePool      = "remove_pool"
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpSwap            = "swap"
)

// Op is one scenario instruction. Tokens are referenced by registered name;
// actors are hex addresses. Amounts are 18-decimal fixed-point decimal
// strings.
type Op struct {
	Op           string `json:"op"`
	Actor        string `json:"actor,omitempty"`
	Name         string `json:"name,omitempty"`
	TokenX       string `json:"token_x,omitempty"`
	TokenY       string `json:"token_y,omitempty"`
	TokenIn      string `json:"token_in,omitempty"`
	TokenOut     string `json:"token_out,omitempty"`
	Account      string `json:"account,omitempty"`
	Amount       string `json:"amount,omitempty"`
	AmountA      string `json:"amount_a,omitempty"`
	AmountB      string `json:"amount_b,omitempty"`
	LpAmount     string `json:"lp_amount,omitempty"`
	AmountIn     string `json:"amount_in,omitempty"`
	MinAmountOut string `json:"min_amount_out,omitempty"`
}

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}

// ParseAmount converts a decimal string into a big.Int.
func ParseAmount(input string) (*big.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("amount required")
	}
	value, ok := new(big.Int).SetString(input, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", input)
	}
	return value, nil
}

// parseOptionalAmount treats an empty string as zero.
func parseOptionalAmount(input string) (*big.Int, error) {
	if strings.TrimSpace(input) == "" {
		return new(big.Int), nil
	}
	return ParseAmount(input)
}
