package common

import "math/big"

// FeeOracle is the membership/identity registry's fee-tier contract: given an
// actor's external uid and whether it is acting as maker or taker, it
// returns a fee numerator against FeeDenominator.
type FeeOracle interface {
	IsReportable(sender Address, uid uint64) bool
	FeeOf(uid uint64, isMaker bool) (numerator uint32)
}

// FeeDenominator is the constant denominator fee numerators are measured
// against (spec §6, FEE_DENOM).
const FeeDenominator = 1_000_000

// Reporter is the revenue accountant/treasury's narrow contract: it accepts
// "fee collected" and "order canceled" notifications and can issue rebates.
type Reporter interface {
	Report(uid uint64, token Token, amount *big.Int, add bool)
	RefundFee(to Address, token Token, amount *big.Int)
}

// AssetTransfer is the opaque fungible-asset move primitive. Amounts are
// u256-sized unsigned integers, represented here as *big.Int.
type AssetTransfer interface {
	Transfer(token Token, to Address, amount *big.Int) error
	TransferFrom(token Token, from, to Address, amount *big.Int) error
}

// Decimals is consumed at pair-creation time to compute the decimal
// differential; valid range is 0..=18.
type Decimals interface {
	DecimalsOf(token Token) (uint8, error)
}

// WrappedNative bridges native-value callers into the ordinary token path.
type WrappedNative interface {
	Token() Token
	Deposit(from Address, value *big.Int) error
	Withdraw(to Address, amount *big.Int) error
}

// EventSink receives the observable protocol events in stable field order.
// It is a pure observer — nothing in the matching core reads anything back
// from it, and a failing sink never aborts a call (events are best-effort
// telemetry, not part of the transactional contract in §7).
type EventSink interface {
	PairAdded(orderbookID uint32, base, quote Token, baseDecimals, quoteDecimals uint8)
	OrderDeposit(sender Address, asset Token, fee *big.Int)
	OrderPlaced(orderbookID uint32, id OrderID, owner Address, side Side, price Price, amount *big.Int)
	OrderMatched(orderbookID uint32, id OrderID, side Side, taker, maker Address, price Price, amount *big.Int)
	OrderCanceled(orderbookID uint32, id OrderID, side Side, owner Address, amount *big.Int)
}

// NopEventSink discards every event. Useful as a zero-value default and in
// tests that don't care about the observable surface.
type NopEventSink struct{}

func (NopEventSink) PairAdded(uint32, Token, Token, uint8, uint8)                {}
func (NopEventSink) OrderDeposit(Address, Token, *big.Int)                      {}
func (NopEventSink) OrderPlaced(uint32, OrderID, Address, Side, Price, *big.Int) {}
func (NopEventSink) OrderMatched(uint32, OrderID, Side, Address, Address, Price, *big.Int) {
}
func (NopEventSink) OrderCanceled(uint32, OrderID, Side, Address, *big.Int) {}
