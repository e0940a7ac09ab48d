package amm

import "math/big"

// FeeDenominator is the basis-point scale for swap fees (30 bps = 0.30%).
const FeeDenominator = 10_000

// getAmountOut computes the constant-product swap output and fee for an input
// amount against the given reserves. The fee is taken from the input amount
// before pricing, so the reserve product never decreases across a swap.
func getAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) (amountOut, fee *big.Int, err error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, nil, ErrInvalidInput
	}
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	fee = new(big.Int).Mul(amountIn, big.NewInt(int64(feeBps)))
	fee.Div(fee, big.NewInt(FeeDenominator))

	inAfterFee := new(big.Int).Sub(amountIn, fee)

	// out = reserveOut * inAfterFee / (reserveIn + inAfterFee)
	den := new(big.Int).Add(reserveIn, inAfterFee)
	amountOut = new(big.Int).Mul(reserveOut, inAfterFee)
	amountOut.Div(amountOut, den)

	return amountOut, fee, nil
}

// mulDiv returns a*b/den with truncation. den must be nonzero.
func mulDiv(a, b, den *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Div(out, den)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
