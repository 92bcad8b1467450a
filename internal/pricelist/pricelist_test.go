package pricelist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"safex/internal/common"
)

// --- Setup & Helpers --------------------------------------------------------

// alwaysEmpty and neverEmpty feed ClearEmptyHead without pulling in
// orderqueue, since pricelist only needs a predicate over a price.
func alwaysEmpty(common.Price) bool { return true }
func neverEmpty(common.Price) bool  { return false }

// --- Tests ------------------------------------------------------------------

func TestInsert_AscendingSortOrder(t *testing.T) {
	l := New(true)

	l.Insert(100)
	l.Insert(90)
	l.Insert(95)

	assert.Equal(t, common.Price(90), l.Head())
	assert.Equal(t, common.Price(95), l.Next(90))
	assert.Equal(t, common.Price(100), l.Next(95))
	assert.Equal(t, common.NoPrice, l.Next(100))
}

func TestInsert_DescendingSortOrder(t *testing.T) {
	l := New(false)

	l.Insert(90)
	l.Insert(100)
	l.Insert(95)

	assert.Equal(t, common.Price(100), l.Head())
	assert.Equal(t, common.Price(95), l.Next(100))
	assert.Equal(t, common.Price(90), l.Next(95))
}

func TestInsert_IdempotentOnTie(t *testing.T) {
	l := New(true)

	l.Insert(100)
	l.Insert(100)

	assert.Equal(t, 1, l.Len())
	assert.True(t, l.Contains(100))
}

func TestInsert_NoPriceIsNoop(t *testing.T) {
	l := New(true)

	l.Insert(common.NoPrice)

	assert.Equal(t, 0, l.Len())
	assert.Equal(t, common.NoPrice, l.Head())
}

func TestRemove_MiddleOfList(t *testing.T) {
	l := New(true)
	l.Insert(90)
	l.Insert(95)
	l.Insert(100)

	l.Remove(95)

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, common.Price(100), l.Next(90))
	assert.False(t, l.Contains(95))
}

func TestRemove_HeadUpdatesHead(t *testing.T) {
	l := New(true)
	l.Insert(90)
	l.Insert(95)

	l.Remove(90)

	assert.Equal(t, common.Price(95), l.Head())
}

func TestRemove_AbsentPriceIsNoop(t *testing.T) {
	l := New(true)
	l.Insert(90)

	l.Remove(12345)

	assert.Equal(t, 1, l.Len())
}

func TestClearEmptyHead_PopsUntilNonEmpty(t *testing.T) {
	l := New(true)
	l.Insert(90)
	l.Insert(95)
	l.Insert(100)

	// Every level hosts a live order except 90 and 95, so ClearEmptyHead
	// should drain exactly those two before landing on 100.
	cleared := map[common.Price]bool{90: true, 95: true}
	head := l.ClearEmptyHead(func(p common.Price) bool { return cleared[p] })

	assert.Equal(t, common.Price(100), head)
	assert.Equal(t, 1, l.Len())
}

func TestClearEmptyHead_DrainsEntireList(t *testing.T) {
	l := New(true)
	l.Insert(90)
	l.Insert(95)

	head := l.ClearEmptyHead(alwaysEmpty)

	assert.Equal(t, common.NoPrice, head)
	assert.Equal(t, 0, l.Len())
}

func TestClearEmptyHead_NoOpWhenHeadIsLive(t *testing.T) {
	l := New(true)
	l.Insert(90)
	l.Insert(95)

	head := l.ClearEmptyHead(neverEmpty)

	assert.Equal(t, common.Price(90), head)
	assert.Equal(t, 2, l.Len())
}

func TestEmptyList(t *testing.T) {
	l := New(true)

	assert.Equal(t, common.NoPrice, l.Head())
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.Contains(1))
}
