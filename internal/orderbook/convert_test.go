package orderbook

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"safex/internal/common"
)

// --- Tests ------------------------------------------------------------------

func TestConvert_ZeroInputsReturnZero(t *testing.T) {
	decDiff, baseDecGEQuote := DecDiff(18, 18)

	assert.Equal(t, big.NewInt(0), Convert(100, nil, decDiff, baseDecGEQuote, true))
	assert.Equal(t, big.NewInt(0), Convert(100, big.NewInt(0), decDiff, baseDecGEQuote, true))
	assert.Equal(t, big.NewInt(0), Convert(common.NoPrice, big.NewInt(5), decDiff, baseDecGEQuote, true))
}

func TestConvert_EqualDecimals_BidBranch(t *testing.T) {
	decDiff, baseDecGEQuote := DecDiff(18, 18)

	// price = 2 * 1e8 (2.0), amount = 10 base units -> 20 quote units.
	price := common.Price(2 * 1e8)
	got := Convert(price, big.NewInt(10), decDiff, baseDecGEQuote, true)

	assert.Equal(t, big.NewInt(20), got)
}

func TestConvert_EqualDecimals_AskBranch(t *testing.T) {
	decDiff, baseDecGEQuote := DecDiff(18, 18)

	// price = 2 * 1e8 (2.0), amount = 20 quote units -> 10 base units.
	price := common.Price(2 * 1e8)
	got := Convert(price, big.NewInt(20), decDiff, baseDecGEQuote, false)

	assert.Equal(t, big.NewInt(10), got)
}

func TestConvert_RoundTripsWithinTruncation(t *testing.T) {
	decDiff, baseDecGEQuote := DecDiff(18, 18)
	price := common.Price(3 * 1e8)
	amount := big.NewInt(1000)

	quote := Convert(price, amount, decDiff, baseDecGEQuote, true)
	back := Convert(price, quote, decDiff, baseDecGEQuote, false)

	// Exact round-trip when the price divides evenly; integer truncation is
	// the only source of drift, so back must never exceed the original.
	assert.True(t, back.Cmp(amount) <= 0)
}

func TestConvert_BaseDecimalsGreaterThanQuote(t *testing.T) {
	// base has 18 decimals, quote has 6: decDiff = 1e12, baseDecGEQuote = true.
	decDiff, baseDecGEQuote := DecDiff(18, 6)
	assert.True(t, baseDecGEQuote)
	assert.Equal(t, new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil), decDiff)

	price := common.Price(1 * 1e8) // 1.0
	got := Convert(price, big.NewInt(1_000_000_000_000), decDiff, baseDecGEQuote, true)

	// 1e12 base-native-units * 1.0 / 1e8 / 1e12(decDiff) = 1 quote-native-unit.
	assert.Equal(t, big.NewInt(1), got)
}

func TestConvert_QuoteDecimalsGreaterThanBase(t *testing.T) {
	// base has 6 decimals, quote has 18: decDiff = 1e12, baseDecGEQuote = false.
	decDiff, baseDecGEQuote := DecDiff(6, 18)
	assert.False(t, baseDecGEQuote)

	price := common.Price(1 * 1e8) // 1.0
	got := Convert(price, big.NewInt(1), decDiff, baseDecGEQuote, true)

	// 1 base-native-unit * 1.0 / 1e8 * 1e12(decDiff) = 1e12 quote-native-units.
	assert.Equal(t, big.NewInt(1_000_000_000_000), got)
}

func TestDecDiff_TieBreaksBaseDecGEQuote(t *testing.T) {
	decDiff, baseDecGEQuote := DecDiff(8, 8)
	assert.True(t, baseDecGEQuote)
	assert.Equal(t, big.NewInt(1), decDiff)
}
