// Package orderbook implements C3: one central limit order book for one
// (base, quote) pair, composing a pricelist.List and an orderqueue.Queue per
// side and layering the decimal-normalized conversion math (C7) over them.
//
// Every mutating method is gated by an EngineID check (design notes §9,
// "cyclic ownership"): the book stores its owning engine's identifier and
// rejects any caller that doesn't present it, instead of holding a back
// pointer to the engine and risking a reference cycle.
package orderbook

import (
	"math/big"

	"safex/internal/common"
	"safex/internal/orderqueue"
	"safex/internal/pricelist"
)

// Orderbook is one pair's central limit order book.
type Orderbook struct {
	id       uint32
	engineID common.EngineID

	base, quote               common.Token
	baseDecimals, quoteDecimals uint8
	decDiff                   *big.Int
	baseDecGEQuote            bool

	lastMatchedPrice common.Price

	bidPrices *pricelist.List
	askPrices *pricelist.List
	bidOrders *orderqueue.Queue
	askOrders *orderqueue.Queue

	transfer common.AssetTransfer
}

// New constructs an Orderbook. Construction fails if either asset has more
// than 18 decimals (spec §3).
func New(id uint32, engineID common.EngineID, base, quote common.Token, baseDecimals, quoteDecimals uint8, transfer common.AssetTransfer) (*Orderbook, error) {
	if baseDecimals > 18 || quoteDecimals > 18 {
		return nil, &common.InvalidDecimalsError{BaseDecimals: baseDecimals, QuoteDecimals: quoteDecimals}
	}
	decDiff, baseDecGEQuote := DecDiff(baseDecimals, quoteDecimals)
	return &Orderbook{
		id:             id,
		engineID:       engineID,
		base:           base,
		quote:          quote,
		baseDecimals:   baseDecimals,
		quoteDecimals:  quoteDecimals,
		decDiff:        decDiff,
		baseDecGEQuote: baseDecGEQuote,
		bidPrices:      pricelist.New(false), // descending: best bid = highest
		askPrices:      pricelist.New(true),  // ascending: best ask = lowest
		bidOrders:      orderqueue.New(),
		askOrders:      orderqueue.New(),
		transfer:       transfer,
	}, nil
}

func (b *Orderbook) ID() uint32           { return b.id }
func (b *Orderbook) Base() common.Token   { return b.base }
func (b *Orderbook) Quote() common.Token  { return b.quote }
func (b *Orderbook) BaseDecimals() uint8  { return b.baseDecimals }
func (b *Orderbook) QuoteDecimals() uint8 { return b.quoteDecimals }
func (b *Orderbook) DecDiff() *big.Int    { return b.decDiff }
func (b *Orderbook) BaseDecGEQuote() bool { return b.baseDecGEQuote }

func (b *Orderbook) checkAccess(caller common.EngineID) error {
	if caller != b.engineID {
		return &common.InvalidAccessError{Sender: caller, Expected: b.engineID}
	}
	return nil
}

func (b *Orderbook) queues(side common.Side) (*pricelist.List, *orderqueue.Queue) {
	if side == common.Bid {
		return b.bidPrices, b.bidOrders
	}
	return b.askPrices, b.askOrders
}

// GivenAsset returns the asset an order on side must deposit: quote for a
// bid, base for an ask.
func (b *Orderbook) GivenAsset(side common.Side) common.Token {
	if side == common.Bid {
		return b.quote
	}
	return b.base
}

// PlaceBid inserts a new resting buy order and returns its id.
func (b *Orderbook) PlaceBid(caller common.EngineID, owner common.Address, price common.Price, amount *big.Int) (common.OrderID, error) {
	return b.place(caller, common.Bid, owner, price, amount)
}

// PlaceAsk inserts a new resting sell order and returns its id.
func (b *Orderbook) PlaceAsk(caller common.EngineID, owner common.Address, price common.Price, amount *big.Int) (common.OrderID, error) {
	return b.place(caller, common.Ask, owner, price, amount)
}

func (b *Orderbook) place(caller common.EngineID, side common.Side, owner common.Address, price common.Price, amount *big.Int) (common.OrderID, error) {
	if err := b.checkAccess(caller); err != nil {
		return 0, err
	}
	prices, orders := b.queues(side)
	id := orders.CreateOrder(owner, price, amount)
	orders.InsertID(price, id)
	if amount.Sign() > 0 {
		prices.Insert(price)
	}
	return id, nil
}

// Cancel removes requester's order from side, refunding its remaining
// deposit. Fails Unauthorized if requester isn't the order's owner, or
// OrderNotFound if id isn't live.
func (b *Orderbook) Cancel(caller common.EngineID, side common.Side, id common.OrderID, requester common.Address) (*big.Int, error) {
	if err := b.checkAccess(caller); err != nil {
		return nil, err
	}
	prices, orders := b.queues(side)
	owner, price, _, ok := orders.GetOrder(id)
	if !ok {
		return nil, common.ErrOrderNotFound
	}
	if owner != requester {
		return nil, common.ErrUnauthorized
	}
	refunded, ok := orders.DeleteOrder(price, id)
	if !ok {
		return nil, common.ErrOrderNotFound
	}
	if orders.IsEmpty(price) {
		prices.Remove(price)
	}
	if refunded.Sign() > 0 {
		if err := b.transfer.Transfer(b.GivenAsset(side), requester, refunded); err != nil {
			return nil, err
		}
	}
	return refunded, nil
}

// Fpop peeks at the head order resting on side at price (the side being
// matched against — callers pass the resting side, not the taker's side)
// and reports the amount of the taker's asset needed to fully consume it,
// plus whether doing so would empty the level. It does not mutate anything;
// Execute performs the actual decrement/pop.
func (b *Orderbook) Fpop(side common.Side, price common.Price, remaining *big.Int) (id common.OrderID, required *big.Int, clear bool) {
	_, orders := b.queues(side)
	headID := orders.Head(price)
	if headID == 0 {
		return 0, big.NewInt(0), false
	}
	deposit, isLast, ok := orders.Peek(headID)
	if !ok {
		return 0, big.NewInt(0), false
	}
	required = Convert(price, deposit, b.decDiff, b.baseDecGEQuote, !bool(side))
	return headID, required, isLast
}

// Execute settles amount of the taker's asset against the resting order id
// on side (the resting side). It moves the converted counter-asset amount
// to recipient (the taker), decrements the resting order by that same
// converted amount, and returns the resting order's owner for the match
// event. If clear is true and the decrement empties the level's queue,
// Execute also removes the price from side's price list.
func (b *Orderbook) Execute(side common.Side, id common.OrderID, recipient common.Address, amount *big.Int, clear bool) (common.Address, error) {
	prices, orders := b.queues(side)
	owner, price, _, ok := orders.GetOrder(id)
	if !ok {
		return common.ZeroAddress, common.ErrOrderNotFound
	}

	// amount is in the taker's given asset (GivenAsset(side.Opposite()));
	// counter is the resting order's asset (GivenAsset(side)), which the
	// taker is buying. This is the same conversion Fpop used to compute
	// "required" from the resting deposit, run with the resting side itself
	// rather than its opposite, since it now runs the other direction.
	counter := Convert(price, amount, b.decDiff, b.baseDecGEQuote, bool(side))

	if counter.Sign() > 0 {
		if err := b.transfer.Transfer(b.GivenAsset(side), recipient, counter); err != nil {
			return common.ZeroAddress, err
		}
	}
	if amount.Sign() > 0 {
		if err := b.transfer.Transfer(b.GivenAsset(side.Opposite()), owner, amount); err != nil {
			return common.ZeroAddress, err
		}
	}

	orders.DecreaseOrder(price, id, counter)
	if clear && orders.IsEmpty(price) {
		prices.Remove(price)
	}
	return owner, nil
}

// SetLMP records price as the last matched price.
func (b *Orderbook) SetLMP(price common.Price) { b.lastMatchedPrice = price }

// LMP returns the last matched price (0 if none yet).
func (b *Orderbook) LMP() common.Price { return b.lastMatchedPrice }

// ClearEmptyHead pops side's price list head while its queue is empty and
// returns the resulting head.
func (b *Orderbook) ClearEmptyHead(side common.Side) common.Price {
	prices, orders := b.queues(side)
	return prices.ClearEmptyHead(orders.IsEmpty)
}

// Head returns side's best resting price without mutating anything.
func (b *Orderbook) Head(side common.Side) common.Price {
	prices, _ := b.queues(side)
	return prices.Head()
}

// IsEmpty reports whether side's price level has no live order.
func (b *Orderbook) IsEmpty(side common.Side, price common.Price) bool {
	_, orders := b.queues(side)
	return orders.IsEmpty(price)
}

// MktPrice returns the last matched price if set, else the best available
// price on either side, else NoLastMatchedPrice.
func (b *Orderbook) MktPrice() (common.Price, error) {
	if b.lastMatchedPrice != common.NoPrice {
		return b.lastMatchedPrice, nil
	}
	if bid := b.bidPrices.Head(); bid != common.NoPrice {
		return bid, nil
	}
	if ask := b.askPrices.Head(); ask != common.NoPrice {
		return ask, nil
	}
	return common.NoPrice, common.ErrNoLastMatchedPrice
}

// AssetValue converts amount using the book's current mark price: the pair
// shortcut engine.Convert delegates to once base != quote.
func (b *Orderbook) AssetValue(amount *big.Int, isBid bool) (*big.Int, error) {
	mp, err := b.MktPrice()
	if err != nil {
		return nil, err
	}
	return Convert(mp, amount, b.decDiff, b.baseDecGEQuote, isBid), nil
}

// GetOrder returns a read-only snapshot of id on side.
func (b *Orderbook) GetOrder(side common.Side, id common.OrderID) (owner common.Address, price common.Price, deposit *big.Int, ok bool) {
	_, orders := b.queues(side)
	return orders.GetOrder(id)
}

// GetOrderIDs returns up to n live order ids resting at price on side, head
// first.
func (b *Orderbook) GetOrderIDs(side common.Side, price common.Price, n int) []common.OrderID {
	_, orders := b.queues(side)
	return orders.GetOrderIDs(price, n)
}

// NextPrice returns the neighbor of price toward the tail of side's price
// list, or 0 if there is none. Used by read-only depth views that need to
// walk more than just the head.
func (b *Orderbook) NextPrice(side common.Side, price common.Price) common.Price {
	prices, _ := b.queues(side)
	return prices.Next(price)
}

// Level is one price's aggregated resting liquidity, for depth snapshots.
type Level struct {
	Price  common.Price
	Amount *big.Int
}

// Levels walks up to n price levels on side, best first, summing the live
// deposit amount at each. This is a read-only query-surface helper, not a
// hot-path operation — the matching loop never calls it.
func (b *Orderbook) Levels(side common.Side, n int) []Level {
	_, orders := b.queues(side)
	out := make([]Level, 0, n)
	for price := b.Head(side); price != common.NoPrice && len(out) < n; price = b.NextPrice(side, price) {
		total := new(big.Int)
		for _, id := range orders.GetOrderIDs(price, 1<<30) {
			if _, _, deposit, ok := orders.GetOrder(id); ok {
				total.Add(total, deposit)
			}
		}
		out = append(out, Level{Price: price, Amount: total})
	}
	return out
}
