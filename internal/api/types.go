package api

// Response and event payload shapes for the read-only query surface,
// adapted from uhyunpark-hyperlicked's pkg/api/types.go: plain JSON structs
// with explicit field tags, no envelope beyond the WS message wrapper.

// PairInfo describes one registered (base, quote) orderbook.
type PairInfo struct {
	ID            uint32 `json:"id"`
	Base          string `json:"base"`
	Quote         string `json:"quote"`
	BaseDecimals  uint8  `json:"baseDecimals"`
	QuoteDecimals uint8  `json:"quoteDecimals"`
}

// PriceLevel is one [price, amount] depth entry.
type PriceLevel struct {
	Price  uint64 `json:"price"`
	Amount string `json:"amount"`
}

// BookSnapshot is a point-in-time depth view of one pair.
type BookSnapshot struct {
	Base  string       `json:"base"`
	Quote string       `json:"quote"`
	Bids  []PriceLevel `json:"bids"`
	Asks  []PriceLevel `json:"asks"`
}

// PriceInfo reports a pair's mark price.
type PriceInfo struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
	Price uint64 `json:"price"`
}

// ErrorResponse is the body of any non-2xx REST response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WSMessage wraps every event pushed to a WebSocket subscriber.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WSSubscribeRequest is sent by a client to (un)subscribe to pair channels,
// e.g. {"op":"subscribe","channels":["BASE/QUOTE","*"]}. "*" subscribes to
// every pair's events.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}

// PairAddedEvent mirrors spec §6's PairAdded event.
type PairAddedEvent struct {
	OrderbookID   uint32 `json:"orderbookId"`
	Base          string `json:"base"`
	Quote         string `json:"quote"`
	BaseDecimals  uint8  `json:"baseDecimals"`
	QuoteDecimals uint8  `json:"quoteDecimals"`
}

// OrderPlacedEvent mirrors spec §6's OrderPlaced event.
type OrderPlacedEvent struct {
	OrderbookID uint32 `json:"orderbookId"`
	ID          uint32 `json:"id"`
	Owner       string `json:"owner"`
	IsBid       bool   `json:"isBid"`
	Price       uint64 `json:"price"`
	Amount      string `json:"amount"`
}

// OrderMatchedEvent mirrors spec §6's OrderMatched event.
type OrderMatchedEvent struct {
	OrderbookID uint32 `json:"orderbookId"`
	ID          uint32 `json:"id"`
	IsBid       bool   `json:"isBid"`
	Taker       string `json:"taker"`
	Maker       string `json:"maker"`
	Price       uint64 `json:"price"`
	Amount      string `json:"amount"`
}

// OrderCanceledEvent mirrors spec §6's OrderCanceled event.
type OrderCanceledEvent struct {
	OrderbookID uint32 `json:"orderbookId"`
	ID          uint32 `json:"id"`
	IsBid       bool   `json:"isBid"`
	Owner       string `json:"owner"`
	Amount      string `json:"amount"`
}
