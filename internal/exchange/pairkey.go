package exchange

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SortTokens returns the pair in canonical order, lower address first.
func SortTokens(x, y common.Address) (common.Address, common.Address) {
	if bytes.Compare(x.Bytes(), y.Bytes()) > 0 {
		return y, x
	}
	return x, y
}

// PairKey derives the order-independent registry key for a token pair:
// keccak256 over the two addresses in canonical order, each left-padded to
// 32 bytes (the abi.encode(address,address) layout).
func PairKey(x, y common.Address) common.Hash {
	a, b := SortTokens(x, y)
	var buf [64]byte
	copy(buf[12:32], a.Bytes())
	copy(buf[44:64], b.Bytes())
	return crypto.Keccak256Hash(buf[:])
}
