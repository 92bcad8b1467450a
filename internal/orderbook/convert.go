package orderbook

import (
	"math/big"

	"safex/internal/common"
)

// Convert implements C7, the only nontrivial math in the core: fixed-point
// conversion between base and quote given a price (8 implied decimals) and
// the pair's decimal differential.
//
// isBid selects which of the two formula branches spec §4.3 defines. Despite
// the "quote→base" / "base→quote" labels in the prose, the branch choice is
// purely mechanical — callers pick isBid to match the literal contract
// (fpop/execute invert it via !side), not by reasoning about which asset
// amount happens to denote; the price convention (quote = base * price /
// 1e8) makes the isBid=true branch correct for exactly the calls the spec
// makes it for.
//
// Rounding is integer truncation throughout, per spec: a dust remainder can
// appear, which is why OrderSizeTooSmall exists as a deposit-time guard.
func Convert(price common.Price, amount *big.Int, decDiff *big.Int, baseDecGEQuote, isBid bool) *big.Int {
	if amount == nil || amount.Sign() == 0 || price == common.NoPrice {
		return big.NewInt(0)
	}
	priceBig := new(big.Int).SetUint64(uint64(price))
	out := new(big.Int)

	if isBid {
		// (amount * price / 1e8) [/ or * ] decDiff
		out.Mul(amount, priceBig)
		out.Div(out, common.PriceScale)
		if baseDecGEQuote {
			out.Div(out, decDiff)
		} else {
			out.Mul(out, decDiff)
		}
		return out
	}

	// (amount * 1e8 / price) [* or /] decDiff
	out.Mul(amount, common.PriceScale)
	out.Div(out, priceBig)
	if baseDecGEQuote {
		out.Mul(out, decDiff)
	} else {
		out.Div(out, decDiff)
	}
	return out
}

// DecDiff computes (10^|baseDecimals-quoteDecimals|, baseDecimals >=
// quoteDecimals) for the orderbook's decimal differential, set once at
// construction (§9 design notes: "stored per-orderbook... rather than
// recomputed").
func DecDiff(baseDecimals, quoteDecimals uint8) (decDiff *big.Int, baseDecGEQuote bool) {
	var diff int
	if baseDecimals >= quoteDecimals {
		diff = int(baseDecimals - quoteDecimals)
		baseDecGEQuote = true
	} else {
		diff = int(quoteDecimals - baseDecimals)
		baseDecGEQuote = false
	}
	decDiff = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(diff)), nil)
	return decDiff, baseDecGEQuote
}
