// Package engine implements C5, the MatchingEngine: the top-level protocol
// surface that deposits funds, runs the match loop against an Orderbook,
// decides whether to rest a residual as a maker order, and bridges fee
// reporting to the external accountant (C6).
//
// Every public method here is meant to run to completion without
// interleaving with any other call into the same engine (design notes §5):
// mu is held for the whole call, and inCall/ErrReentrancy rejects a
// transfer callback that re-enters the engine's own public surface mid-call.
package engine

import (
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"safex/internal/common"
	"safex/internal/orderbook"
	"safex/internal/registry"
)

const (
	maxMatchesDefault       = 20
	feeDenominator          = common.FeeDenominator
	spreadBandPctDefault    = 10
	flatFeeNumeratorDefault = 10_000 // 1% of feeDenominator
)

// MatchingEngine is the single mutable owner of a registry and every book it
// holds. Construct with New; the zero value is not usable.
type MatchingEngine struct {
	mu     sync.Mutex
	inCall atomic.Bool

	id common.EngineID

	registry  *registry.Registry
	feeOracle common.FeeOracle
	reporter  common.Reporter
	transfer  common.AssetTransfer
	decimals  common.Decimals
	wrapped   common.WrappedNative
	events    common.EventSink

	feeRecipient     common.Address
	custody          common.Address
	maxMatches       int
	spreadBandPct    int64
	flatFeeNumerator int64

	log zerolog.Logger
}

// Option configures a MatchingEngine at construction. Mirrors the
// constructor-time-configuration design note: yield/gas/governor-style
// options never become globals or mid-call state.
type Option func(*MatchingEngine)

func WithMaxMatches(n int) Option {
	return func(e *MatchingEngine) { e.maxMatches = n }
}

// WithSpreadBandPct overrides the ±N% band around LMP the spread guard and
// market-order price synthesis use (spec default 10).
func WithSpreadBandPct(pct int) Option {
	return func(e *MatchingEngine) { e.spreadBandPct = int64(pct) }
}

// WithFlatFeeNumerator overrides the numerator (against FeeDenominator)
// charged when uid==0 or the fee oracle declines to report (spec default
// 10_000, i.e. 1%).
func WithFlatFeeNumerator(numerator int) Option {
	return func(e *MatchingEngine) { e.flatFeeNumerator = int64(numerator) }
}

func WithEventSink(sink common.EventSink) Option {
	return func(e *MatchingEngine) { e.events = sink }
}

func WithWrappedNative(w common.WrappedNative) Option {
	return func(e *MatchingEngine) { e.wrapped = w }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *MatchingEngine) { e.log = l }
}

// WithCustodyAddress sets the account balances settle into before the match
// loop consumes them — the engine's own identity as an AssetTransfer
// counterparty, distinct from feeRecipient. Defaults to common.ZeroAddress.
func WithCustodyAddress(addr common.Address) Option {
	return func(e *MatchingEngine) { e.custody = addr }
}

// New constructs a MatchingEngine. feeRecipient is the treasury every
// collected fee is transferred to.
func New(
	feeOracle common.FeeOracle,
	reporter common.Reporter,
	transfer common.AssetTransfer,
	decimals common.Decimals,
	feeRecipient common.Address,
	opts ...Option,
) *MatchingEngine {
	engineID := common.EngineID(uuid.New())

	e := &MatchingEngine{
		id:               engineID,
		registry:         registry.New(engineID, transfer),
		feeOracle:        feeOracle,
		reporter:         reporter,
		transfer:         transfer,
		decimals:         decimals,
		feeRecipient:     feeRecipient,
		custody:          common.ZeroAddress,
		maxMatches:       maxMatchesDefault,
		spreadBandPct:    spreadBandPctDefault,
		flatFeeNumerator: flatFeeNumeratorDefault,
		events:           common.NopEventSink{},
		log:              log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// enter rejects reentrant calls before ever touching mu: the CompareAndSwap
// runs first and doesn't block, so a callback that re-enters the engine's
// own public surface synchronously from the same goroutine (an
// common.AssetTransfer.Transfer/TransferFrom implementation calling back
// into LimitBuy/LimitSell mid-deposit, say) observes inCall already set and
// returns ErrReentrancy immediately instead of blocking forever on a mutex
// its own call frame already holds. Only once the CAS wins does enter take
// the serialization lock. Every public method defers exit().
func (e *MatchingEngine) enter() error {
	if !e.inCall.CompareAndSwap(false, true) {
		return common.ErrReentrancy
	}
	e.mu.Lock()
	return nil
}

func (e *MatchingEngine) exit() {
	e.mu.Unlock()
	e.inCall.Store(false)
}

// AddPair registers (base, quote) if not already registered. A collision is
// not an error to the caller: the registry reports ErrPairExists, and
// AddPair swallows that one specific error, returning the existing book —
// idempotent pair registration is a product requirement (§7).
func (e *MatchingEngine) AddPair(base, quote common.Token) (*orderbook.Orderbook, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	return e.addPair(base, quote)
}

func (e *MatchingEngine) addPair(base, quote common.Token) (*orderbook.Orderbook, error) {
	baseDec, err := e.decimals.DecimalsOf(base)
	if err != nil {
		return nil, err
	}
	quoteDec, err := e.decimals.DecimalsOf(quote)
	if err != nil {
		return nil, err
	}

	book, err := e.registry.Create(base, quote, baseDec, quoteDec)
	if err == common.ErrPairExists {
		e.log.Debug().Str("base", string(base)).Str("quote", string(quote)).Msg("pair already registered")
		return book, nil
	}
	if err != nil {
		e.log.Error().Err(err).Str("base", string(base)).Str("quote", string(quote)).Msg("add pair failed")
		return nil, err
	}

	e.events.PairAdded(book.ID(), base, quote, baseDec, quoteDec)
	e.log.Info().Uint32("orderbook", book.ID()).Str("base", string(base)).Str("quote", string(quote)).Msg("pair added")
	return book, nil
}

func (e *MatchingEngine) resolveBook(base, quote common.Token) (*orderbook.Orderbook, error) {
	book, err := e.registry.Get(base, quote)
	if err == nil {
		return book, nil
	}
	return e.addPair(base, quote)
}

// LimitBuy places a buy order for quoteAmount of quote against base/quote at
// price. isMaker controls whether an unfilled residual rests on the book
// (true) or is refunded to recipient (false).
func (e *MatchingEngine) LimitBuy(base, quote common.Token, price common.Price, quoteAmount *big.Int, isMaker bool, n int, sender common.Address, uid uint64, recipient common.Address) (common.Price, *big.Int, *big.Int, error) {
	return e.limit(base, quote, common.Bid, price, quoteAmount, isMaker, n, sender, uid, recipient)
}

// LimitSell places a sell order for baseAmount of base against base/quote at
// price.
func (e *MatchingEngine) LimitSell(base, quote common.Token, price common.Price, baseAmount *big.Int, isMaker bool, n int, sender common.Address, uid uint64, recipient common.Address) (common.Price, *big.Int, *big.Int, error) {
	return e.limit(base, quote, common.Ask, price, baseAmount, isMaker, n, sender, uid, recipient)
}

func (e *MatchingEngine) limit(base, quote common.Token, side common.Side, price common.Price, amount *big.Int, isMaker bool, n int, sender common.Address, uid uint64, recipient common.Address) (common.Price, *big.Int, *big.Int, error) {
	if err := e.enter(); err != nil {
		return 0, nil, nil, err
	}
	defer e.exit()
	return e.limitLocked(base, quote, side, price, amount, isMaker, n, sender, uid, recipient)
}

// limitLocked is _limit_order's caller-facing half (deposit + match +
// make/refund decision) with the serialization lock already held by a
// caller one level up (limit or market).
func (e *MatchingEngine) limitLocked(base, quote common.Token, side common.Side, price common.Price, amount *big.Int, isMaker bool, n int, sender common.Address, uid uint64, recipient common.Address) (common.Price, *big.Int, *big.Int, error) {
	if n > e.maxMatches {
		return 0, nil, nil, &common.TooManyMatchesError{N: n}
	}

	book, err := e.resolveBook(base, quote)
	if err != nil {
		return 0, nil, nil, err
	}

	given, err := e.deposit(book, sender, side, price, amount, isMaker, uid)
	if err != nil {
		return 0, nil, nil, err
	}

	remaining, err := e.limitOrder(book, given, e.givenAsset(book, side), recipient, side, price, n)
	if err != nil {
		return 0, nil, nil, err
	}

	matched := new(big.Int).Sub(given, remaining)
	makePrice, placed, err := e.detMake(book, side, price, remaining, recipient, isMaker)
	if err != nil {
		return 0, nil, nil, err
	}
	if !isMaker && remaining.Sign() > 0 && matched.Sign() == 0 {
		return 0, nil, nil, &common.NoOrderMadeError{Base: base, Quote: quote}
	}
	return makePrice, matched, placed, nil
}

// MarketBuy synthesizes an internal limit at mktPrice*11/10 and otherwise
// follows the limit-buy path.
func (e *MatchingEngine) MarketBuy(base, quote common.Token, quoteAmount *big.Int, isMaker bool, n int, sender common.Address, uid uint64, recipient common.Address) (common.Price, *big.Int, *big.Int, error) {
	return e.market(base, quote, common.Bid, quoteAmount, isMaker, n, sender, uid, recipient)
}

// MarketSell synthesizes an internal limit at mktPrice*9/10.
func (e *MatchingEngine) MarketSell(base, quote common.Token, baseAmount *big.Int, isMaker bool, n int, sender common.Address, uid uint64, recipient common.Address) (common.Price, *big.Int, *big.Int, error) {
	return e.market(base, quote, common.Ask, baseAmount, isMaker, n, sender, uid, recipient)
}

// market resolves the book and synthesizes the ±10%-of-LMP limit price,
// then runs the ordinary limit path — all under a single acquisition of the
// serialization lock, so the synthetic price can never go stale against an
// interleaved call.
func (e *MatchingEngine) market(base, quote common.Token, side common.Side, amount *big.Int, isMaker bool, n int, sender common.Address, uid uint64, recipient common.Address) (common.Price, *big.Int, *big.Int, error) {
	if err := e.enter(); err != nil {
		return 0, nil, nil, err
	}
	defer e.exit()

	if n > e.maxMatches {
		return 0, nil, nil, &common.TooManyMatchesError{N: n}
	}

	book, err := e.resolveBook(base, quote)
	if err != nil {
		return 0, nil, nil, err
	}
	mp, mpErr := book.MktPrice()
	if mpErr != nil {
		mp = 0
	}

	var synthetic common.Price
	if side == common.Bid {
		synthetic = common.Price(uint64(mp) * uint64(100+e.spreadBandPct) / 100)
	} else {
		synthetic = common.Price(uint64(mp) * uint64(100-e.spreadBandPct) / 100)
	}

	return e.limitLocked(base, quote, side, synthetic, amount, isMaker, n, sender, uid, recipient)
}

func (e *MatchingEngine) givenAsset(book *orderbook.Orderbook, side common.Side) common.Token {
	return book.GivenAsset(side)
}

// CancelResult reports one element of a bulk cancel, since spec §4.5 asks
// for per-element status rather than an all-or-nothing rollback.
type CancelResult struct {
	ID       common.OrderID
	Refunded *big.Int
	Err      error
}

// CancelOrder cancels order id on side of base/quote, refunding the
// requester and, if uid names a reportable actor, refunding 1% of the
// reclaimed deposit (the overhead _deposit charged on the way in).
func (e *MatchingEngine) CancelOrder(base, quote common.Token, side common.Side, id common.OrderID, requester common.Address, uid uint64) (*big.Int, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	return e.cancelOrder(base, quote, side, id, requester, uid)
}

func (e *MatchingEngine) cancelOrder(base, quote common.Token, side common.Side, id common.OrderID, requester common.Address, uid uint64) (*big.Int, error) {
	book, err := e.registry.Get(base, quote)
	if err != nil {
		return nil, err
	}

	refunded, err := book.Cancel(e.id, side, id, requester)
	if err != nil {
		e.log.Error().Err(err).Uint32("orderbook", book.ID()).Uint32("order", uint32(id)).Msg("cancel failed")
		return nil, err
	}

	canceledAsset := e.givenAsset(book, side)
	if uid != 0 && e.feeOracle.IsReportable(requester, uid) {
		e.reporter.Report(uid, canceledAsset, refunded, false)
		refundFee := new(big.Int).Mul(refunded, big.NewInt(e.flatFeeNumerator))
		refundFee.Div(refundFee, big.NewInt(feeDenominator))
		e.reporter.RefundFee(requester, canceledAsset, refundFee)
	}

	e.events.OrderCanceled(book.ID(), id, side, requester, refunded)
	e.log.Info().Uint32("orderbook", book.ID()).Uint32("order", uint32(id)).Str("refunded", refunded.String()).Msg("order canceled")
	return refunded, nil
}

// CancelOrders cancels a batch atomically per-element: a failure on one
// entry is reported in its CancelResult but does not roll back prior
// elements or block remaining ones.
type CancelRequest struct {
	Base, Quote common.Token
	Side        common.Side
	ID          common.OrderID
	UID         uint64
}

func (e *MatchingEngine) CancelOrders(requester common.Address, reqs []CancelRequest) []CancelResult {
	if err := e.enter(); err != nil {
		out := make([]CancelResult, len(reqs))
		for i := range reqs {
			out[i] = CancelResult{ID: reqs[i].ID, Err: err}
		}
		return out
	}
	defer e.exit()

	results := make([]CancelResult, len(reqs))
	for i, r := range reqs {
		refunded, err := e.cancelOrder(r.Base, r.Quote, r.Side, r.ID, requester, r.UID)
		results[i] = CancelResult{ID: r.ID, Refunded: refunded, Err: err}
	}
	return results
}

// RematchOrder cancels id then re-enters as the corresponding limit or
// market op with recipient set back to the original requester.
func (e *MatchingEngine) RematchOrder(base, quote common.Token, side common.Side, id common.OrderID, requester common.Address, uid uint64, isMarket, isMaker bool, price common.Price, amount *big.Int, n int) (common.Price, *big.Int, *big.Int, error) {
	if _, err := e.CancelOrder(base, quote, side, id, requester, uid); err != nil {
		return 0, nil, nil, err
	}
	if isMarket {
		if side == common.Bid {
			return e.MarketBuy(base, quote, amount, isMaker, n, requester, uid, requester)
		}
		return e.MarketSell(base, quote, amount, isMaker, n, requester, uid, requester)
	}
	if side == common.Bid {
		return e.LimitBuy(base, quote, price, amount, isMaker, n, requester, uid, requester)
	}
	return e.LimitSell(base, quote, price, amount, isMaker, n, requester, uid, requester)
}

// MktPrice returns base/quote's mark price.
func (e *MatchingEngine) MktPrice(base, quote common.Token) (common.Price, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	book, err := e.registry.Get(base, quote)
	if err != nil {
		return 0, err
	}
	return book.MktPrice()
}

// Convert is the pair-level shortcut: identical assets convert 1:1, an
// unregistered pair converts to 0, otherwise the book's current mark price
// is used.
func (e *MatchingEngine) Convert(base, quote common.Token, amount *big.Int, isBid bool) (*big.Int, error) {
	if base == quote {
		return new(big.Int).Set(amount), nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	book, err := e.registry.Get(base, quote)
	if err != nil {
		return big.NewInt(0), nil
	}
	return book.AssetValue(amount, isBid)
}

// ID returns the engine's opaque identity, the value every book it owns was
// stamped with at construction.
func (e *MatchingEngine) ID() common.EngineID { return e.id }

// Registry exposes the read-only pair index for the query surface.
func (e *MatchingEngine) Registry() *registry.Registry { return e.registry }
