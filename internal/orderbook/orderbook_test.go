package orderbook

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"safex/internal/common"
)

// --- Setup & Helpers --------------------------------------------------------

// fakeTransfer records every Transfer/TransferFrom call instead of moving
// real balances, so tests can assert on exactly what the book tried to
// settle without a ledger.
type fakeTransfer struct {
	transfers []transferCall
}

type transferCall struct {
	token      common.Token
	from, to   common.Address
	amount     *big.Int
}

func (f *fakeTransfer) Transfer(token common.Token, to common.Address, amount *big.Int) error {
	f.transfers = append(f.transfers, transferCall{token: token, to: to, amount: new(big.Int).Set(amount)})
	return nil
}

func (f *fakeTransfer) TransferFrom(token common.Token, from, to common.Address, amount *big.Int) error {
	f.transfers = append(f.transfers, transferCall{token: token, from: from, to: to, amount: new(big.Int).Set(amount)})
	return nil
}

var testEngineID = common.EngineID{1, 2, 3}
var otherEngineID = common.EngineID{9, 9, 9}
var alice = common.Address{0xA1}
var bob = common.Address{0xB0}

func newTestBook(t *testing.T) (*Orderbook, *fakeTransfer) {
	t.Helper()
	ft := &fakeTransfer{}
	book, err := New(1, testEngineID, "BASE", "QUOTE", 18, 18, ft)
	assert.NoError(t, err)
	return book, ft
}

// --- Tests ------------------------------------------------------------------

func TestNew_RejectsOutOfRangeDecimals(t *testing.T) {
	_, err := New(1, testEngineID, "BASE", "QUOTE", 19, 18, &fakeTransfer{})
	assert.Error(t, err)

	var decErr *common.InvalidDecimalsError
	assert.ErrorAs(t, err, &decErr)
}

func TestPlaceBid_InsertsPriceAndOrder(t *testing.T) {
	book, _ := newTestBook(t)

	id, err := book.PlaceBid(testEngineID, alice, 100, big.NewInt(50))

	assert.NoError(t, err)
	assert.Equal(t, common.Price(100), book.Head(common.Bid))
	owner, price, deposit, ok := book.GetOrder(common.Bid, id)
	assert.True(t, ok)
	assert.Equal(t, alice, owner)
	assert.Equal(t, common.Price(100), price)
	assert.Equal(t, big.NewInt(50), deposit)
}

func TestPlaceAsk_InsertsPriceAndOrder(t *testing.T) {
	book, _ := newTestBook(t)

	id, err := book.PlaceAsk(testEngineID, bob, 200, big.NewInt(30))

	assert.NoError(t, err)
	assert.Equal(t, common.Price(200), book.Head(common.Ask))
	_, _, deposit, ok := book.GetOrder(common.Ask, id)
	assert.True(t, ok)
	assert.Equal(t, big.NewInt(30), deposit)
}

func TestPlace_RejectsWrongEngineID(t *testing.T) {
	book, _ := newTestBook(t)

	_, err := book.PlaceBid(otherEngineID, alice, 100, big.NewInt(50))

	assert.Error(t, err)
	var accessErr *common.InvalidAccessError
	assert.ErrorAs(t, err, &accessErr)
}

func TestCancel_RefundsOwnerAndClearsEmptyLevel(t *testing.T) {
	book, ft := newTestBook(t)
	id, err := book.PlaceBid(testEngineID, alice, 100, big.NewInt(50))
	assert.NoError(t, err)

	refunded, err := book.Cancel(testEngineID, common.Bid, id, alice)

	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(50), refunded)
	assert.Equal(t, common.NoPrice, book.Head(common.Bid), "the only order at 100 was canceled, so the level should be gone")
	assert.Len(t, ft.transfers, 1)
	assert.Equal(t, alice, ft.transfers[0].to)
}

func TestCancel_RejectsNonOwner(t *testing.T) {
	book, _ := newTestBook(t)
	id, err := book.PlaceBid(testEngineID, alice, 100, big.NewInt(50))
	assert.NoError(t, err)

	_, err = book.Cancel(testEngineID, common.Bid, id, bob)

	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestCancel_UnknownOrderFails(t *testing.T) {
	book, _ := newTestBook(t)

	_, err := book.Cancel(testEngineID, common.Bid, 999, alice)

	assert.ErrorIs(t, err, common.ErrOrderNotFound)
}

func TestCancel_RejectsWrongEngineID(t *testing.T) {
	book, _ := newTestBook(t)
	id, err := book.PlaceBid(testEngineID, alice, 100, big.NewInt(50))
	assert.NoError(t, err)

	_, err = book.Cancel(otherEngineID, common.Bid, id, alice)

	var accessErr *common.InvalidAccessError
	assert.ErrorAs(t, err, &accessErr)
}

func TestFpopAndExecute_FullyConsumesRestingOrder(t *testing.T) {
	book, ft := newTestBook(t)
	// Ask side resting order: sell 50 base at price 1.0 (1e8).
	id, err := book.PlaceAsk(testEngineID, bob, common.Price(1e8), big.NewInt(50))
	assert.NoError(t, err)

	restingID, required, clear := book.Fpop(common.Ask, common.Price(1e8), big.NewInt(50))
	assert.Equal(t, id, restingID)
	assert.Equal(t, big.NewInt(50), required)
	assert.True(t, clear, "consuming the only order on the level should report clear")

	owner, err := book.Execute(common.Ask, restingID, alice, big.NewInt(50), clear)
	assert.NoError(t, err)
	assert.Equal(t, bob, owner)
	assert.True(t, book.IsEmpty(common.Ask, common.Price(1e8)))

	// Both legs of the trade should have settled: base to the taker (alice),
	// quote to the resting order's owner (bob).
	assert.Len(t, ft.transfers, 2)
}

func TestExecute_PartialFillKeepsOrderLive(t *testing.T) {
	book, _ := newTestBook(t)
	id, err := book.PlaceAsk(testEngineID, bob, common.Price(1e8), big.NewInt(50))
	assert.NoError(t, err)

	// clear reports whether id is the *last* order at its level, not
	// whether this particular fill drains it — with a single resting
	// order, clear is true, but Execute only removes the level once
	// the queue itself reports empty.
	_, _, clear := book.Fpop(common.Ask, common.Price(1e8), big.NewInt(20))
	assert.True(t, clear)

	_, err = book.Execute(common.Ask, id, alice, big.NewInt(20), clear)
	assert.NoError(t, err)

	_, _, deposit, ok := book.GetOrder(common.Ask, id)
	assert.True(t, ok, "a 20-unit fill against a 50-unit order must leave it live")
	assert.Equal(t, big.NewInt(30), deposit)
	assert.False(t, book.IsEmpty(common.Ask, common.Price(1e8)))
}

func TestFpop_ClearFalseWhenMoreOrdersFollow(t *testing.T) {
	book, _ := newTestBook(t)
	id1, err := book.PlaceAsk(testEngineID, bob, common.Price(1e8), big.NewInt(50))
	assert.NoError(t, err)
	_, err = book.PlaceAsk(testEngineID, alice, common.Price(1e8), big.NewInt(50))
	assert.NoError(t, err)

	restingID, _, clear := book.Fpop(common.Ask, common.Price(1e8), big.NewInt(50))

	assert.Equal(t, id1, restingID)
	assert.False(t, clear, "a second order rests behind id1, so clearing id1 must not drop the level")
}

func TestMktPrice_FallsBackToBestAvailableSide(t *testing.T) {
	book, _ := newTestBook(t)

	_, err := book.MktPrice()
	assert.ErrorIs(t, err, common.ErrNoLastMatchedPrice)

	_, err = book.PlaceBid(testEngineID, alice, 90, big.NewInt(10))
	assert.NoError(t, err)

	price, err := book.MktPrice()
	assert.NoError(t, err)
	assert.Equal(t, common.Price(90), price)
}

func TestMktPrice_PrefersLastMatchedPrice(t *testing.T) {
	book, _ := newTestBook(t)
	_, err := book.PlaceBid(testEngineID, alice, 90, big.NewInt(10))
	assert.NoError(t, err)

	book.SetLMP(123)

	price, err := book.MktPrice()
	assert.NoError(t, err)
	assert.Equal(t, common.Price(123), price)
}

func TestLevels_AggregatesDepositsPerPrice(t *testing.T) {
	book, _ := newTestBook(t)
	_, err := book.PlaceBid(testEngineID, alice, 100, big.NewInt(10))
	assert.NoError(t, err)
	_, err = book.PlaceBid(testEngineID, bob, 100, big.NewInt(20))
	assert.NoError(t, err)
	_, err = book.PlaceBid(testEngineID, alice, 95, big.NewInt(5))
	assert.NoError(t, err)

	levels := book.Levels(common.Bid, 10)

	assert.Equal(t, []Level{
		{Price: 100, Amount: big.NewInt(30)},
		{Price: 95, Amount: big.NewInt(5)},
	}, levels)
}

func TestLevels_RespectsDepthLimit(t *testing.T) {
	book, _ := newTestBook(t)
	_, err := book.PlaceAsk(testEngineID, alice, 100, big.NewInt(1))
	assert.NoError(t, err)
	_, err = book.PlaceAsk(testEngineID, alice, 101, big.NewInt(1))
	assert.NoError(t, err)
	_, err = book.PlaceAsk(testEngineID, alice, 102, big.NewInt(1))
	assert.NoError(t, err)

	levels := book.Levels(common.Ask, 2)

	assert.Len(t, levels, 2)
	assert.Equal(t, common.Price(100), levels[0].Price)
	assert.Equal(t, common.Price(101), levels[1].Price)
}
