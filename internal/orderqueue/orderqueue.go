// Package orderqueue implements C2: the per-price FIFO of live orders for
// one side of one orderbook.
//
// Orders live in an arena — a slice indexed by the compact OrderID rather
// than heap-allocated per call — with a prev/next pair per order so the
// per-price queue is a genuine doubly-linked FIFO. The source this spec
// replaces only kept next pointers and located orders by scanning, which is
// O(queue length); that's acceptable only for short queues. The prev
// pointers here make DeleteOrder O(1), matching the cancel-path contract
// the design notes demand: "the spec mandates O(1)".
package orderqueue

import (
	"math/big"

	"safex/internal/common"
)

type record struct {
	owner      common.Address
	price      common.Price
	deposit    *big.Int
	prev, next common.OrderID
	live       bool
}

type level struct {
	head, tail common.OrderID
	size       int
}

// Queue is one side's order arena plus one FIFO per resting price.
type Queue struct {
	pool   []record // pool[0] is the unused null-id slot
	levels map[common.Price]*level
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{pool: make([]record, 1), levels: make(map[common.Price]*level)}
}

// CreateOrder allocates a fresh, never-reused id and stores the order
// record. The order is not yet visible to Head/IsEmpty until InsertID links
// it into its price's FIFO.
func (q *Queue) CreateOrder(owner common.Address, price common.Price, deposit *big.Int) common.OrderID {
	id := common.OrderID(len(q.pool))
	q.pool = append(q.pool, record{owner: owner, price: price, deposit: deposit, live: true})
	return id
}

// InsertID appends id to the tail of its price's FIFO. A deposit of zero is
// silently not enqueued — it simply never becomes visible, satisfying the
// invariant that every order reachable from a queue head has a positive
// deposit.
func (q *Queue) InsertID(price common.Price, id common.OrderID) {
	rec := q.at(id)
	if rec == nil || rec.deposit.Sign() <= 0 {
		return
	}
	lv := q.levels[price]
	if lv == nil {
		lv = &level{}
		q.levels[price] = lv
	}
	rec.next = 0
	rec.prev = lv.tail
	if lv.tail == 0 {
		lv.head = id
	} else {
		q.at(lv.tail).next = id
	}
	lv.tail = id
	lv.size++
}

func (q *Queue) at(id common.OrderID) *record {
	if int(id) <= 0 || int(id) >= len(q.pool) {
		return nil
	}
	return &q.pool[id]
}

// Head returns the id of the earliest-arrived live order at price, or 0.
func (q *Queue) Head(price common.Price) common.OrderID {
	lv, ok := q.levels[price]
	if !ok {
		return 0
	}
	return lv.head
}

// IsEmpty reports whether price currently hosts no live order.
func (q *Queue) IsEmpty(price common.Price) bool {
	return q.Head(price) == 0
}

// Fpop removes the head order at price, if any, and returns its id.
func (q *Queue) Fpop(price common.Price) common.OrderID {
	lv, ok := q.levels[price]
	if !ok || lv.head == 0 {
		return 0
	}
	id := lv.head
	q.unlink(price, lv, id)
	return id
}

// DecreaseOrder subtracts by from the head order's deposit. The head order
// must be id — this is only ever called for the current head. If the
// remaining deposit is <= 0 the order is popped.
func (q *Queue) DecreaseOrder(price common.Price, id common.OrderID, by *big.Int) {
	lv, ok := q.levels[price]
	if !ok || lv.head != id {
		return
	}
	rec := q.at(id)
	rec.deposit.Sub(rec.deposit, by)
	if rec.deposit.Sign() <= 0 {
		q.unlink(price, lv, id)
	}
}

// DeleteOrder cancels id wherever it sits in price's queue (not necessarily
// at the head) and returns the deposit that should be refunded.
func (q *Queue) DeleteOrder(price common.Price, id common.OrderID) (*big.Int, bool) {
	lv, ok := q.levels[price]
	if !ok {
		return nil, false
	}
	rec := q.at(id)
	if rec == nil || !rec.live || rec.price != price {
		return nil, false
	}
	refunded := new(big.Int).Set(rec.deposit)
	q.unlink(price, lv, id)
	return refunded, true
}

// unlink splices id out of its level's FIFO in O(1) using the stored
// prev/next pointers, and marks the order dead so a stale id can't be
// double-deleted. When the level drains it is removed from the map,
// keeping Head/IsEmpty O(1) instead of holding onto empty levels forever.
func (q *Queue) unlink(price common.Price, lv *level, id common.OrderID) {
	rec := q.at(id)
	if rec == nil || !rec.live {
		return
	}
	if rec.prev == 0 {
		lv.head = rec.next
	} else {
		q.at(rec.prev).next = rec.next
	}
	if rec.next == 0 {
		lv.tail = rec.prev
	} else {
		q.at(rec.next).prev = rec.prev
	}
	lv.size--
	rec.live = false
	if lv.size == 0 {
		delete(q.levels, price)
	}
}

// GetOrder returns a read-only snapshot of id's current state.
func (q *Queue) GetOrder(id common.OrderID) (owner common.Address, price common.Price, deposit *big.Int, ok bool) {
	rec := q.at(id)
	if rec == nil || !rec.live {
		return common.ZeroAddress, 0, nil, false
	}
	return rec.owner, rec.price, new(big.Int).Set(rec.deposit), true
}

// Peek returns id's deposit and whether it is the last order at its price
// (i.e. consuming it would empty the level), without mutating anything.
func (q *Queue) Peek(id common.OrderID) (deposit *big.Int, isLast bool, ok bool) {
	rec := q.at(id)
	if rec == nil || !rec.live {
		return nil, false, false
	}
	return rec.deposit, rec.next == 0, true
}

// GetOrderIDs returns up to n live order ids at price, head first.
func (q *Queue) GetOrderIDs(price common.Price, n int) []common.OrderID {
	lv, ok := q.levels[price]
	if !ok {
		return nil
	}
	ids := make([]common.OrderID, 0, n)
	for id := lv.head; id != 0 && len(ids) < n; {
		ids = append(ids, id)
		id = q.at(id).next
	}
	return ids
}
