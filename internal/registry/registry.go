// Package registry implements C4: the OrderbookRegistry, mapping (base,
// quote) asset pairs to their Orderbook and assigning each a stable
// numeric id.
//
// Pair lookup by key is a plain map (O(1), matching the per-pair access
// pattern every other operation needs), but the registry also needs to
// enumerate pairs in a stable order for the read-only query surface
// (internal/api) — a plain map gives no iteration order. tidwall/btree's
// BTreeG gives an ordered, range-scannable index over (base, quote) at a
// modest log-n cost that only the enumeration path pays.
package registry

import (
	"sync"

	"github.com/tidwall/btree"

	"safex/internal/common"
	"safex/internal/orderbook"
)

// Pair is the key a registry indexes books by.
type Pair struct {
	Base, Quote common.Token
}

func lessPair(a, b Pair) bool {
	if a.Base != b.Base {
		return a.Base < b.Base
	}
	return a.Quote < b.Quote
}

// Registry holds every registered pair's Orderbook, keyed both by (base,
// quote) for direct lookup and by numeric id for event/query paths that
// only know the id.
type Registry struct {
	mu       sync.RWMutex
	byPair   map[Pair]*orderbook.Orderbook
	byID     map[uint32]*orderbook.Orderbook
	ordered  *btree.BTreeG[Pair]
	nextID   uint32
	engineID common.EngineID
	transfer common.AssetTransfer
}

// New returns an empty registry. engineID is stamped into every Orderbook
// it creates, so only the MatchingEngine holding that id can mutate any of
// them. transfer is the AssetTransfer every created book settles through.
func New(engineID common.EngineID, transfer common.AssetTransfer) *Registry {
	return &Registry{
		byPair:   make(map[Pair]*orderbook.Orderbook),
		byID:     make(map[uint32]*orderbook.Orderbook),
		ordered:  btree.NewBTreeG(lessPair),
		engineID: engineID,
		transfer: transfer,
	}
}

// Create registers a new pair and constructs its book. If the pair already
// exists, Create returns the existing book alongside ErrPairExists: the
// registry layer reports the collision, but callers that want idempotent
// pair creation (the engine's AddPair) can treat that specific error as a
// no-op instead of a failure.
func (r *Registry) Create(base, quote common.Token, baseDecimals, quoteDecimals uint8) (*orderbook.Orderbook, error) {
	if base == quote {
		return nil, common.ErrSameAsset
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := Pair{Base: base, Quote: quote}
	if existing, ok := r.byPair[key]; ok {
		return existing, common.ErrPairExists
	}

	r.nextID++
	id := r.nextID
	book, err := orderbook.New(id, r.engineID, base, quote, baseDecimals, quoteDecimals, r.transfer)
	if err != nil {
		r.nextID--
		return nil, err
	}

	r.byPair[key] = book
	r.byID[id] = book
	r.ordered.Set(key)
	return book, nil
}

// Get looks up a book by (base, quote). Fails InvalidPair if unregistered.
func (r *Registry) Get(base, quote common.Token) (*orderbook.Orderbook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	book, ok := r.byPair[Pair{Base: base, Quote: quote}]
	if !ok {
		return nil, &common.InvalidPairError{Base: base, Quote: quote}
	}
	return book, nil
}

// GetByID looks up a book by its numeric registry id.
func (r *Registry) GetByID(id uint32) (*orderbook.Orderbook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	book, ok := r.byID[id]
	if !ok {
		return nil, &common.InvalidPairError{}
	}
	return book, nil
}

// Len returns the number of registered pairs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ordered.Len()
}

// Enumerate returns every registered pair with start <= pair < end in
// ascending (base, quote) order. A zero-value end means "no upper bound".
func (r *Registry) Enumerate(start, end Pair) []Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Pair
	iter := func(p Pair) bool {
		if end != (Pair{}) && !lessPair(p, end) {
			return false
		}
		out = append(out, p)
		return true
	}
	if start == (Pair{}) {
		r.ordered.Scan(iter)
	} else {
		r.ordered.Ascend(start, iter)
	}
	return out
}

// All returns every registered (pair, book) in ascending pair order.
func (r *Registry) All() []struct {
	Pair Pair
	Book *orderbook.Orderbook
} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]struct {
		Pair Pair
		Book *orderbook.Orderbook
	}, 0, len(r.byPair))
	r.ordered.Scan(func(p Pair) bool {
		out = append(out, struct {
			Pair Pair
			Book *orderbook.Orderbook
		}{Pair: p, Book: r.byPair[p]})
		return true
	})
	return out
}
