package engine

import (
	"math/big"

	"safex/internal/common"
	"safex/internal/orderbook"
)

// detMake implements _det_make: once the match loop leaves a residual, it is
// either rested as a maker order at a book-safe price or refunded to
// recipient. Returns the price the residual was placed at (0 if refunded)
// and the amount placed (0 if refunded or nothing remained).
func (e *MatchingEngine) detMake(book *orderbook.Orderbook, side common.Side, limitPrice common.Price, remaining *big.Int, recipient common.Address, isMaker bool) (common.Price, *big.Int, error) {
	if remaining.Sign() <= 0 {
		return 0, big.NewInt(0), nil
	}

	if !isMaker {
		if err := e.transfer.Transfer(e.givenAsset(book, side), recipient, remaining); err != nil {
			return 0, nil, err
		}
		return 0, big.NewInt(0), nil
	}

	makePrice := e.makePrice(book, side, limitPrice)

	if err := e.transfer.Transfer(e.givenAsset(book, side), e.custody, remaining); err != nil {
		return 0, nil, err
	}

	var id common.OrderID
	var err error
	if side == common.Bid {
		id, err = book.PlaceBid(e.id, recipient, makePrice, remaining)
	} else {
		id, err = book.PlaceAsk(e.id, recipient, makePrice, remaining)
	}
	if err != nil {
		return 0, nil, err
	}

	e.events.OrderPlaced(book.ID(), id, recipient, side, makePrice, remaining)
	e.log.Info().Uint32("orderbook", book.ID()).Uint32("order", uint32(id)).Str("amount", remaining.String()).Msg("residual rested")

	return makePrice, remaining, nil
}

// makePrice snaps a limit order's resting price to the opposite side's head
// if resting at the limit would cross the book.
func (e *MatchingEngine) makePrice(book *orderbook.Orderbook, side common.Side, limitPrice common.Price) common.Price {
	if side == common.Bid {
		askHead := book.Head(common.Ask)
		if askHead == common.NoPrice {
			return limitPrice
		}
		if limitPrice < askHead {
			return limitPrice
		}
		return askHead
	}
	bidHead := book.Head(common.Bid)
	if bidHead == common.NoPrice {
		return limitPrice
	}
	if limitPrice > bidHead {
		return limitPrice
	}
	return bidHead
}
