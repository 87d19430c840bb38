// Package book maintains the real-time two-sided price index for one
// instrument: two interchangeable ordered price-level stores and the engine
// that reconciles exchange snapshots and deltas onto them.
package book

import (
	"fmt"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// Store implementation names accepted in configuration.
const (
	ImplSkipList = "skiplist"
	ImplHeap     = "heap"
)

// Store is an ordered collection of price levels for one side of the book.
// A store is constructed best-first: descending for bids (best = highest),
// ascending for asks (best = lowest). Implementations are not safe for
// concurrent use; the engine serializes access.
type Store interface {
	// Insert upserts the level at its price. An existing price has its
	// value replaced in place.
	Insert(lvl domain.PriceLevel)

	// Delete removes the level at price, reporting whether it existed.
	Delete(price domain.PriceTicks) bool

	// Get returns the level at price.
	Get(price domain.PriceTicks) (domain.PriceLevel, bool)

	// Best returns the best level: max price for a descending store,
	// min for an ascending one.
	Best() (domain.PriceLevel, bool)

	// TopN returns up to n levels in best-first order.
	TopN(n int) []domain.PriceLevel

	// Items returns all levels in best-first order.
	Items() []domain.PriceLevel

	// Len is the number of resting levels.
	Len() int

	// Clear removes all levels.
	Clear()
}

// NewStore builds a side store by implementation name. desc selects
// best-is-highest ordering (the bid side).
func NewStore(impl string, desc bool) (Store, error) {
	switch impl {
	case ImplSkipList:
		return NewSkipList(desc), nil
	case ImplHeap:
		return NewHeap(desc), nil
	default:
		return nil, fmt.Errorf("book: unknown store implementation %q", impl)
	}
}
