package orderqueue

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"safex/internal/common"
)

// --- Setup & Helpers --------------------------------------------------------

var owner1 = common.Address{1}
var owner2 = common.Address{2}
var owner3 = common.Address{3}

// createAndInsert allocates a fresh order at price and links it into the
// queue's FIFO in one step, mirroring what Orderbook.place does.
func createAndInsert(q *Queue, owner common.Address, price common.Price, amount int64) common.OrderID {
	id := q.CreateOrder(owner, price, big.NewInt(amount))
	q.InsertID(price, id)
	return id
}

// --- Tests ------------------------------------------------------------------

func TestInsertID_FIFOOrder(t *testing.T) {
	q := New()

	id1 := createAndInsert(q, owner1, 100, 10)
	id2 := createAndInsert(q, owner2, 100, 20)
	id3 := createAndInsert(q, owner3, 100, 30)

	assert.Equal(t, id1, q.Head(100))

	ids := q.GetOrderIDs(100, 10)
	assert.Equal(t, []common.OrderID{id1, id2, id3}, ids)
}

func TestInsertID_ZeroDepositNeverBecomesVisible(t *testing.T) {
	q := New()

	id := q.CreateOrder(owner1, 100, big.NewInt(0))
	q.InsertID(100, id)

	assert.True(t, q.IsEmpty(100))
	assert.Equal(t, common.OrderID(0), q.Head(100))
}

func TestDecreaseOrder_PartialKeepsHead(t *testing.T) {
	q := New()
	id1 := createAndInsert(q, owner1, 100, 10)
	createAndInsert(q, owner2, 100, 20)

	q.DecreaseOrder(100, id1, big.NewInt(4))

	_, _, deposit, ok := q.GetOrder(id1)
	assert.True(t, ok)
	assert.Equal(t, big.NewInt(6), deposit)
	assert.Equal(t, id1, q.Head(100))
}

func TestDecreaseOrder_FullyConsumedPopsHead(t *testing.T) {
	q := New()
	id1 := createAndInsert(q, owner1, 100, 10)
	id2 := createAndInsert(q, owner2, 100, 20)

	q.DecreaseOrder(100, id1, big.NewInt(10))

	assert.Equal(t, id2, q.Head(100))
	_, _, _, ok := q.GetOrder(id1)
	assert.False(t, ok, "fully consumed order should no longer be live")
}

func TestDeleteOrder_MidQueueUnlinksInPlace(t *testing.T) {
	q := New()
	id1 := createAndInsert(q, owner1, 100, 10)
	id2 := createAndInsert(q, owner2, 100, 20)
	id3 := createAndInsert(q, owner3, 100, 30)

	refunded, ok := q.DeleteOrder(100, id2)

	assert.True(t, ok)
	assert.Equal(t, big.NewInt(20), refunded)
	assert.Equal(t, []common.OrderID{id1, id3}, q.GetOrderIDs(100, 10))
}

func TestDeleteOrder_HeadUpdatesHeadPointer(t *testing.T) {
	q := New()
	id1 := createAndInsert(q, owner1, 100, 10)
	id2 := createAndInsert(q, owner2, 100, 20)

	_, ok := q.DeleteOrder(100, id1)

	assert.True(t, ok)
	assert.Equal(t, id2, q.Head(100))
}

func TestDeleteOrder_TailUpdatesTailPointer(t *testing.T) {
	q := New()
	id1 := createAndInsert(q, owner1, 100, 10)
	id2 := createAndInsert(q, owner2, 100, 20)

	_, ok := q.DeleteOrder(100, id2)
	assert.True(t, ok)

	// Inserting a third order should now land right after id1, proving the
	// tail pointer was correctly rewound rather than left dangling on id2.
	id3 := createAndInsert(q, owner3, 100, 30)
	assert.Equal(t, []common.OrderID{id1, id3}, q.GetOrderIDs(100, 10))
}

func TestDeleteOrder_AlreadyDeadIsRejected(t *testing.T) {
	q := New()
	id1 := createAndInsert(q, owner1, 100, 10)

	_, ok := q.DeleteOrder(100, id1)
	assert.True(t, ok)

	_, ok = q.DeleteOrder(100, id1)
	assert.False(t, ok, "double delete of the same id must fail")
}

func TestDeleteOrder_EmptyingLevelRemovesIt(t *testing.T) {
	q := New()
	id1 := createAndInsert(q, owner1, 100, 10)

	_, ok := q.DeleteOrder(100, id1)

	assert.True(t, ok)
	assert.True(t, q.IsEmpty(100))
	assert.Nil(t, q.GetOrderIDs(100, 10))
}

func TestPeek_ReportsLastOrderAtLevel(t *testing.T) {
	q := New()
	id1 := createAndInsert(q, owner1, 100, 10)

	deposit, isLast, ok := q.Peek(id1)
	assert.True(t, ok)
	assert.True(t, isLast)
	assert.Equal(t, big.NewInt(10), deposit)

	createAndInsert(q, owner2, 100, 20)
	_, isLast, _ = q.Peek(id1)
	assert.False(t, isLast, "id1 is no longer the last order once id2 follows it")
}

func TestFpop_ReturnsAndUnlinksHead(t *testing.T) {
	q := New()
	id1 := createAndInsert(q, owner1, 100, 10)
	id2 := createAndInsert(q, owner2, 100, 20)

	popped := q.Fpop(100)

	assert.Equal(t, id1, popped)
	assert.Equal(t, id2, q.Head(100))
}

func TestFpop_EmptyLevelReturnsZero(t *testing.T) {
	q := New()
	assert.Equal(t, common.OrderID(0), q.Fpop(999))
}
