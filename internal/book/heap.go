package book

import "github.com/Mentallyspammed1/Algobots-sub004/internal/domain"

// Heap is an array-backed binary heap price-level store with a price→index
// map for O(log n) arbitrary update and removal. desc selects a max-heap
// (bids); ascending is a min-heap (asks). It has no native sorted view:
// TopN drains and reinserts, so it must run under the engine's lock like
// every other operation.
type Heap struct {
	items []domain.PriceLevel
	index map[domain.PriceTicks]int
	desc  bool
}

// NewHeap returns an empty store. desc selects best-is-highest ordering.
func NewHeap(desc bool) *Heap {
	return &Heap{
		index: make(map[domain.PriceTicks]int),
		desc:  desc,
	}
}

// before reports whether a outranks b in heap order.
func (h *Heap) before(a, b domain.PriceLevel) bool {
	if h.desc {
		return a.Price > b.Price
	}
	return a.Price < b.Price
}

func (h *Heap) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.index[h.items[i].Price] = i
	h.index[h.items[j].Price] = j
}

func (h *Heap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.before(h.items[i], h.items[parent]) {
			return
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *Heap) siftDown(i int) {
	n := len(h.items)
	for {
		best := i
		if l := 2*i + 1; l < n && h.before(h.items[l], h.items[best]) {
			best = l
		}
		if r := 2*i + 2; r < n && h.before(h.items[r], h.items[best]) {
			best = r
		}
		if best == i {
			return
		}
		h.swap(i, best)
		i = best
	}
}

// Insert upserts the level. An indexed price has its value overwritten in
// place and is re-heapified from that slot in both directions.
func (h *Heap) Insert(lvl domain.PriceLevel) {
	if i, ok := h.index[lvl.Price]; ok {
		h.items[i] = lvl
		h.siftUp(i)
		h.siftDown(i)
		return
	}
	h.items = append(h.items, lvl)
	h.index[lvl.Price] = len(h.items) - 1
	h.siftUp(len(h.items) - 1)
}

// Delete swaps the target with the last element, pops it, and re-heapifies
// from the vacated slot in both directions.
func (h *Heap) Delete(price domain.PriceTicks) bool {
	i, ok := h.index[price]
	if !ok {
		return false
	}
	last := len(h.items) - 1
	h.swap(i, last)
	h.items = h.items[:last]
	delete(h.index, price)
	if i < last {
		h.siftUp(i)
		h.siftDown(i)
	}
	return true
}

// Get returns the level stored at price.
func (h *Heap) Get(price domain.PriceTicks) (domain.PriceLevel, bool) {
	if i, ok := h.index[price]; ok {
		return h.items[i], true
	}
	return domain.PriceLevel{}, false
}

// Best returns the root element.
func (h *Heap) Best() (domain.PriceLevel, bool) {
	if len(h.items) == 0 {
		return domain.PriceLevel{}, false
	}
	return h.items[0], true
}

// popRoot removes and returns the root.
func (h *Heap) popRoot() domain.PriceLevel {
	root := h.items[0]
	last := len(h.items) - 1
	h.swap(0, last)
	h.items = h.items[:last]
	delete(h.index, root.Price)
	if last > 0 {
		h.siftDown(0)
	}
	return root
}

// TopN destructively pops up to n roots into a temporary slice, then
// reinserts each, leaving the heap as it was.
func (h *Heap) TopN(n int) []domain.PriceLevel {
	if n <= 0 {
		return nil
	}
	if n > len(h.items) {
		n = len(h.items)
	}
	popped := make([]domain.PriceLevel, 0, n)
	for i := 0; i < n; i++ {
		popped = append(popped, h.popRoot())
	}
	for _, lvl := range popped {
		h.Insert(lvl)
	}
	return popped
}

// Items returns the full best-first view via TopN.
func (h *Heap) Items() []domain.PriceLevel {
	return h.TopN(len(h.items))
}

// Len is the number of resting levels.
func (h *Heap) Len() int {
	return len(h.items)
}

// Clear removes all levels.
func (h *Heap) Clear() {
	h.items = h.items[:0]
	h.index = make(map[domain.PriceTicks]int)
}
