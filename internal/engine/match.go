package engine

import (
	"math/big"

	"safex/internal/common"
	"safex/internal/orderbook"
)

// limitOrder implements _limit_order: the spread guard followed by the
// price-time-priority sweep across opposite-side levels up to n matches.
func (e *MatchingEngine) limitOrder(book *orderbook.Orderbook, remaining *big.Int, give common.Token, recipient common.Address, side common.Side, limitPrice common.Price, n int) (*big.Int, error) {
	lmp := book.LMP()
	if lmp != common.NoPrice {
		if side == common.Bid {
			floor := common.Price(uint64(lmp) * uint64(100-e.spreadBandPct) / 100)
			if limitPrice < floor {
				return nil, &common.BidPriceTooLowError{Limit: limitPrice, LMP: lmp, Floor: floor}
			}
		} else {
			ceiling := common.Price(uint64(lmp) * uint64(100+e.spreadBandPct) / 100)
			if limitPrice > ceiling {
				return nil, &common.AskPriceTooHighError{Limit: limitPrice, LMP: lmp, Ceiling: ceiling}
			}
		}
	}

	opposite := side.Opposite()
	i := 0
	var lmpLocal common.Price

	oppositeHead := book.ClearEmptyHead(opposite)
	for remaining.Sign() > 0 && oppositeHead != common.NoPrice && i < n {
		if side == common.Bid {
			if oppositeHead > limitPrice {
				break
			}
		} else {
			if oppositeHead < limitPrice {
				break
			}
		}

		lmpLocal = oppositeHead
		remaining, i = e.matchAt(book, give, recipient, side, remaining, oppositeHead, i, n)
		if i == 0 {
			oppositeHead = common.NoPrice
		} else {
			oppositeHead = book.ClearEmptyHead(opposite)
		}
	}

	if lmpLocal != common.NoPrice {
		// Redundant with matchAt's own SetLMP on the full-fill path.
		book.SetLMP(lmpLocal)
	} else {
		book.ClearEmptyHead(side)
	}

	return remaining, nil
}

// matchAt implements match_at: consume resting orders FIFO at price until
// remaining is exhausted, the level empties, or the match cap i==n is hit.
// side is the taker's side; the resting side matched against is its
// opposite. give is unused beyond documenting which asset remaining is
// denominated in — the taker's deposit was pulled in by deposit(); matchAt
// settles both legs of each fill through Orderbook.Execute.
func (e *MatchingEngine) matchAt(book *orderbook.Orderbook, give common.Token, recipient common.Address, side common.Side, remaining *big.Int, price common.Price, i, n int) (*big.Int, int) {
	opposite := side.Opposite()

	for remaining.Sign() > 0 && !book.IsEmpty(opposite, price) && i < n {
		orderID, required, clear := book.Fpop(opposite, price, remaining)

		switch {
		case remaining.Cmp(required) <= 0:
			book.SetLMP(price)
			owner, err := book.Execute(opposite, orderID, recipient, remaining, clear)
			if err == nil {
				e.events.OrderMatched(book.ID(), orderID, opposite, recipient, owner, price, remaining)
			}
			return big.NewInt(0), n
		case required.Sign() == 0:
			i++
			continue
		default:
			remaining = new(big.Int).Sub(remaining, required)
			owner, err := book.Execute(opposite, orderID, recipient, required, clear)
			if err == nil {
				e.events.OrderMatched(book.ID(), orderID, opposite, recipient, owner, price, required)
			}
			i++
		}
	}
	return remaining, i
}
