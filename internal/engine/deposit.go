package engine

import (
	"math/big"

	"safex/internal/common"
	"safex/internal/orderbook"
)

// deposit implements _deposit: it converts amount to check the minimum-unit
// floor, computes the fee (oracle-reported or flat 1%), pulls amount of the
// given asset in from sender, forwards the fee to the treasury, and returns
// amount net of fee.
func (e *MatchingEngine) deposit(book *orderbook.Orderbook, sender common.Address, side common.Side, price common.Price, amount *big.Int, isMaker bool, uid uint64) (*big.Int, error) {
	converted := orderbook.Convert(price, amount, book.DecDiff(), book.BaseDecGEQuote(), !bool(side))
	minRequired := orderbook.Convert(price, big.NewInt(1), book.DecDiff(), book.BaseDecGEQuote(), !bool(side))
	if converted.Cmp(minRequired) <= 0 {
		return nil, &common.OrderSizeTooSmallError{Amount: converted, Min: minRequired}
	}

	given := e.givenAsset(book, side)

	var fee *big.Int
	if uid != 0 && e.feeOracle.IsReportable(sender, uid) {
		feeNum := e.feeOracle.FeeOf(uid, isMaker)
		fee = new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(feeNum)))
		fee.Div(fee, big.NewInt(feeDenominator))
		e.reporter.Report(uid, given, amount, true)
	} else {
		fee = new(big.Int).Mul(amount, big.NewInt(e.flatFeeNumerator))
		fee.Div(fee, big.NewInt(feeDenominator))
	}

	if given == e.wrappedToken() && e.wrapped != nil {
		if err := e.wrapped.Deposit(sender, amount); err != nil {
			return nil, err
		}
	} else if err := e.transfer.TransferFrom(given, sender, e.custody, amount); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.transfer.Transfer(given, e.feeRecipient, fee); err != nil {
			return nil, err
		}
	}

	e.events.OrderDeposit(sender, given, fee)
	e.log.Debug().Str("asset", string(given)).Str("amount", amount.String()).Str("fee", fee.String()).Msg("deposit accepted")

	return new(big.Int).Sub(amount, fee), nil
}

func (e *MatchingEngine) wrappedToken() common.Token {
	if e.wrapped == nil {
		return ""
	}
	return e.wrapped.Token()
}
