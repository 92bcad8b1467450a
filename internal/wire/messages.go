// Package wire implements the binary order-entry protocol the TCP listener
// (internal/server) speaks, adapted from fenrir/internal/net/messages.go:
// same big-endian fixed-header-plus-payload shape, but carrying SAFEX's
// order fields (base/quote token symbols, u64 fixed-point price, u256-sized
// big.Int amounts) instead of a single ticker/float-price pair.
//
// Every inbound request carries a google/uuid correlation id so a client can
// match an async Report back to the request that caused it — core order ids
// are now the engine's monotonic u32, so uuid no longer names an order, only
// a request/response pair.
package wire

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/google/uuid"

	"safex/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("safex/wire: invalid message type")
	ErrMessageTooShort    = errors.New("safex/wire: message too short")
)

// MessageType tags the first two bytes of every inbound frame.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewLimitOrder
	NewMarketOrder
	CancelOrder
)

// OrderKind selects limit vs market and buy vs sell within NewOrderMessage.
type OrderKind uint8

const (
	LimitBuy OrderKind = iota
	LimitSell
	MarketBuy
	MarketSell
)

const baseHeaderLen = 2 // MessageType

// NewOrderMessage is the wire form of a limit_buy/limit_sell/market_buy/
// market_sell call. Price is ignored for market orders, though its 8-byte
// field is present on the wire for every order kind; Amount is the
// given-asset amount in the caller's native decimals.
type NewOrderMessage struct {
	RequestID uuid.UUID
	Kind      OrderKind
	Base      common.Token
	Quote     common.Token
	Price     common.Price
	Amount    *big.Int
	IsMaker   bool
	N         uint8
	UID       uint64
	Sender    common.Address
	Recipient common.Address
}

// CancelOrderMessage is the wire form of cancel_order.
type CancelOrderMessage struct {
	RequestID uuid.UUID
	Base      common.Token
	Quote     common.Token
	Side      common.Side
	OrderID   common.OrderID
	UID       uint64
	Requester common.Address
}

// Parse dispatches on the 2-byte type header and decodes the remainder.
func Parse(frame []byte) (any, error) {
	if len(frame) < baseHeaderLen {
		return nil, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(frame[0:2]))
	body := frame[2:]

	switch typeOf {
	case NewLimitOrder, NewMarketOrder:
		return parseNewOrder(typeOf, body)
	case CancelOrder:
		return parseCancelOrder(body)
	case Heartbeat:
		return Heartbeat, nil
	default:
		return nil, ErrInvalidMessageType
	}
}

// Fixed layout after the 2-byte MessageType:
// requestID(16) kind(1) baseLen(1) base(n) quoteLen(1) quote(n) price(8)
// amountLen(2) amount(n) isMaker(1) n(1) uid(8) sender(20) recipient(20)
func parseNewOrder(typeOf MessageType, b []byte) (*NewOrderMessage, error) {
	const minLen = 16 + 1 + 1 + 1 + 8 + 2 + 1 + 1 + 8 + 20 + 20
	if len(b) < minLen {
		return nil, ErrMessageTooShort
	}

	m := &NewOrderMessage{}
	copy(m.RequestID[:], b[0:16])
	m.Kind = OrderKind(b[16])
	off := 17

	baseLen := int(b[off])
	off++
	if len(b) < off+baseLen {
		return nil, ErrMessageTooShort
	}
	m.Base = common.Token(b[off : off+baseLen])
	off += baseLen

	quoteLen := int(b[off])
	off++
	if len(b) < off+quoteLen {
		return nil, ErrMessageTooShort
	}
	m.Quote = common.Token(b[off : off+quoteLen])
	off += quoteLen

	if len(b) < off+8 {
		return nil, ErrMessageTooShort
	}
	m.Price = common.Price(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	if len(b) < off+2 {
		return nil, ErrMessageTooShort
	}
	amountLen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if len(b) < off+amountLen {
		return nil, ErrMessageTooShort
	}
	m.Amount = new(big.Int).SetBytes(b[off : off+amountLen])
	off += amountLen

	if len(b) < off+1+1+8+20+20 {
		return nil, ErrMessageTooShort
	}
	m.IsMaker = b[off] != 0
	off++
	m.N = b[off]
	off++
	m.UID = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	copy(m.Sender[:], b[off:off+20])
	off += 20
	copy(m.Recipient[:], b[off:off+20])

	return m, nil
}

// Fixed layout: requestID(16) baseLen(1) base(n) quoteLen(1) quote(n)
// side(1) orderID(4) uid(8) requester(20)
func parseCancelOrder(b []byte) (*CancelOrderMessage, error) {
	const minLen = 16 + 1 + 1 + 1 + 4 + 8 + 20
	if len(b) < minLen {
		return nil, ErrMessageTooShort
	}

	m := &CancelOrderMessage{}
	copy(m.RequestID[:], b[0:16])
	off := 16

	baseLen := int(b[off])
	off++
	if len(b) < off+baseLen {
		return nil, ErrMessageTooShort
	}
	m.Base = common.Token(b[off : off+baseLen])
	off += baseLen

	quoteLen := int(b[off])
	off++
	if len(b) < off+quoteLen {
		return nil, ErrMessageTooShort
	}
	m.Quote = common.Token(b[off : off+quoteLen])
	off += quoteLen

	if len(b) < off+1+4+8+20 {
		return nil, ErrMessageTooShort
	}
	m.Side = common.Side(b[off] != 0)
	off++
	m.OrderID = common.OrderID(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	m.UID = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	copy(m.Requester[:], b[off:off+20])

	return m, nil
}

// ReportKind tags an outbound Report frame.
type ReportKind uint8

const (
	ExecutionReport ReportKind = iota
	ErrorReport
)

// Report is the response frame for any request, successful or not.
type Report struct {
	RequestID   uuid.UUID
	Kind        ReportKind
	MakePrice   common.Price
	Matched     *big.Int
	Placed      *big.Int
	ErrStr      string
}

// Serialize encodes a Report as:
// requestID(16) kind(1) makePrice(8) matchedLen(2) matched(n) placedLen(2)
// placed(n) errLen(2) err(n)
func (r *Report) Serialize() []byte {
	matched := bytesOf(r.Matched)
	placed := bytesOf(r.Placed)
	errBytes := []byte(r.ErrStr)

	total := 16 + 1 + 8 + 2 + len(matched) + 2 + len(placed) + 2 + len(errBytes)
	buf := make([]byte, total)

	copy(buf[0:16], r.RequestID[:])
	buf[16] = byte(r.Kind)
	binary.BigEndian.PutUint64(buf[17:25], uint64(r.MakePrice))

	off := 25
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(matched)))
	off += 2
	copy(buf[off:], matched)
	off += len(matched)

	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(placed)))
	off += 2
	copy(buf[off:], placed)
	off += len(placed)

	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(errBytes)))
	off += 2
	copy(buf[off:], errBytes)

	return buf
}

func bytesOf(n *big.Int) []byte {
	if n == nil {
		return nil
	}
	return n.Bytes()
}
