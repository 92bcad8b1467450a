// Package pricelist implements C1: a per-side doubly-linked list of the
// distinct prices currently hosting at least one live order, kept sorted
// with O(1) head access.
//
// Nodes are arena-allocated: one map entry per resting price, keyed by the
// numeric price itself rather than by a heap-allocated pointer chain, per
// the "intrusive linked lists" design note. Insert and ClearEmptyHead are
// O(1) amortized when book activity clusters near the top of book, which is
// the only complexity contract this package promises — it never rescans the
// whole list per operation.
package pricelist

import "safex/internal/common"

type node struct {
	prev, next common.Price
}

// List is a sorted, doubly-linked chain of prices for one side of one
// orderbook. The zero value is not usable; construct with New.
type List struct {
	nodes     map[common.Price]*node
	head, tail common.Price
	ascending bool
}

// New returns an empty list. ascending selects the sort order: true sorts
// low-to-high (the ask side, best = lowest price at head), false sorts
// high-to-low (the bid side, best = highest price at head).
func New(ascending bool) *List {
	return &List{nodes: make(map[common.Price]*node), ascending: ascending}
}

// better reports whether a belongs strictly before b in this list's order.
func (l *List) better(a, b common.Price) bool {
	if l.ascending {
		return a < b
	}
	return a > b
}

// Insert places price into the list if it is not already present. It is a
// no-op for price == 0 (the reserved null price) and for a price already in
// the list — ties are idempotent, not an error.
func (l *List) Insert(price common.Price) {
	if price == common.NoPrice {
		return
	}
	if _, exists := l.nodes[price]; exists {
		return
	}

	n := &node{}
	if l.head == common.NoPrice {
		l.head, l.tail = price, price
		l.nodes[price] = n
		return
	}

	var prevPrice common.Price
	cur := l.head
	for cur != common.NoPrice && l.better(cur, price) {
		prevPrice = cur
		cur = l.nodes[cur].next
	}

	n.prev, n.next = prevPrice, cur
	if prevPrice == common.NoPrice {
		l.head = price
	} else {
		l.nodes[prevPrice].next = price
	}
	if cur == common.NoPrice {
		l.tail = price
	} else {
		l.nodes[cur].prev = price
	}
	l.nodes[price] = n
}

// Remove unlinks price from the list in O(1), given the list already holds
// prev/next pointers for it. A no-op if price is absent.
func (l *List) Remove(price common.Price) {
	n, ok := l.nodes[price]
	if !ok {
		return
	}
	if n.prev == common.NoPrice {
		l.head = n.next
	} else {
		l.nodes[n.prev].next = n.next
	}
	if n.next == common.NoPrice {
		l.tail = n.prev
	} else {
		l.nodes[n.next].prev = n.prev
	}
	delete(l.nodes, price)
}

// Next returns the neighbor of price toward the tail, or 0 if there is none
// or price is absent.
func (l *List) Next(price common.Price) common.Price {
	n, ok := l.nodes[price]
	if !ok {
		return common.NoPrice
	}
	return n.next
}

// Head returns the best price, or 0 if the list is empty.
func (l *List) Head() common.Price {
	return l.head
}

// Contains reports whether price is currently in the list.
func (l *List) Contains(price common.Price) bool {
	_, ok := l.nodes[price]
	return ok
}

// Len returns the number of distinct resting prices.
func (l *List) Len() int {
	return len(l.nodes)
}

// ClearEmptyHead pops the head while isEmpty reports true for it, and
// returns the resulting head (0 if the list drains entirely). Each pop is
// O(1), so this call is O(k) in the number of emptied levels rather than in
// the list's total size.
func (l *List) ClearEmptyHead(isEmpty func(common.Price) bool) common.Price {
	for l.head != common.NoPrice && isEmpty(l.head) {
		l.Remove(l.head)
	}
	return l.head
}
