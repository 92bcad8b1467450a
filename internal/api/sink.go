package api

import (
	"math/big"

	"safex/internal/common"
	"safex/internal/registry"
)

// EventBridge implements common.EventSink by forwarding every protocol event
// onto a Hub, channel-scoped by "BASE/QUOTE" so a subscriber only receives
// the pairs it asked for (or "*" for everything). This is the thin observer
// spec §6 describes ("Events emitted (observable)") wired onto the transport
// 0xtitan6-polymarket-mm's internal/api/events.go uses for its dashboard
// feed — a typed event struct marshaled under a {"type",...} envelope.
type EventBridge struct {
	hub      *Hub
	registry *registry.Registry
}

// NewEventBridge returns an EventBridge publishing through hub. Call
// SetRegistry once the owning engine's registry exists — the engine
// constructs its registry internally, so the bridge can't know it at
// construction time, only once engine.New has returned.
func NewEventBridge(hub *Hub) *EventBridge {
	return &EventBridge{hub: hub}
}

// SetRegistry wires the registry used to resolve an orderbook id back to
// its (base, quote) pair for channel scoping. Events arriving before this
// is called are silently dropped (channelFor reports !ok) — acceptable
// since no pair can be created before the engine (and its registry) exist.
func (b *EventBridge) SetRegistry(reg *registry.Registry) {
	b.registry = reg
}

func pairChannel(base, quote common.Token) string {
	return string(base) + "/" + string(quote)
}

func (b *EventBridge) PairAdded(orderbookID uint32, base, quote common.Token, baseDecimals, quoteDecimals uint8) {
	b.hub.BroadcastEvent(pairChannel(base, quote), "pair_added", PairAddedEvent{
		OrderbookID:   orderbookID,
		Base:          string(base),
		Quote:         string(quote),
		BaseDecimals:  baseDecimals,
		QuoteDecimals: quoteDecimals,
	})
}

// OrderDeposit carries no pair identity on its own (spec §6's payload is
// sender/asset/fee only), so it is not broadcast over the pair-scoped
// WebSocket surface; the REST query surface has no equivalent either, since
// a deposit isn't a resting book state change.
func (b *EventBridge) OrderDeposit(common.Address, common.Token, *big.Int) {}

func (b *EventBridge) OrderPlaced(orderbookID uint32, id common.OrderID, owner common.Address, side common.Side, price common.Price, amount *big.Int) {
	base, quote, ok := b.channelFor(orderbookID)
	if !ok {
		return
	}
	b.hub.BroadcastEvent(pairChannel(base, quote), "order_placed", OrderPlacedEvent{
		OrderbookID: orderbookID,
		ID:          uint32(id),
		Owner:       owner.String(),
		IsBid:       bool(side),
		Price:       uint64(price),
		Amount:      amount.String(),
	})
}

func (b *EventBridge) OrderMatched(orderbookID uint32, id common.OrderID, side common.Side, taker, maker common.Address, price common.Price, amount *big.Int) {
	base, quote, ok := b.channelFor(orderbookID)
	if !ok {
		return
	}
	b.hub.BroadcastEvent(pairChannel(base, quote), "order_matched", OrderMatchedEvent{
		OrderbookID: orderbookID,
		ID:          uint32(id),
		IsBid:       bool(side),
		Taker:       taker.String(),
		Maker:       maker.String(),
		Price:       uint64(price),
		Amount:      amount.String(),
	})
}

func (b *EventBridge) OrderCanceled(orderbookID uint32, id common.OrderID, side common.Side, owner common.Address, amount *big.Int) {
	base, quote, ok := b.channelFor(orderbookID)
	if !ok {
		return
	}
	b.hub.BroadcastEvent(pairChannel(base, quote), "order_canceled", OrderCanceledEvent{
		OrderbookID: orderbookID,
		ID:          uint32(id),
		IsBid:       bool(side),
		Owner:       owner.String(),
		Amount:      amount.String(),
	})
}

// channelFor resolves an orderbook id back to its (base, quote) pair. The
// registry set by SetRegistry is the engine's live index, so books created
// after wiring resolve too, and books are never destroyed (spec §3's
// lifecycle note), so a resolved id stays valid.
func (b *EventBridge) channelFor(orderbookID uint32) (base, quote common.Token, ok bool) {
	if b.registry == nil {
		return "", "", false
	}
	book, err := b.registry.GetByID(orderbookID)
	if err != nil {
		return "", "", false
	}
	return book.Base(), book.Quote(), true
}
