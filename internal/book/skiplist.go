package book

import (
	"math/rand"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

const (
	// maxLevel caps the skip-list height; 2^16 levels cover far more
	// price levels than any depth stream delivers.
	maxLevel = 16

	// promoteP is the per-level promotion probability.
	promoteP = 0.5

	// nilIdx marks the end of a forward chain in the node arena.
	nilIdx int32 = -1
)

// skipNode lives in the arena and is addressed by its index. Forward links
// are arena indices, nilIdx for none.
type skipNode struct {
	lvl     domain.PriceLevel
	forward [maxLevel]int32
	height  int
}

// SkipList is a probabilistic ordered price-level store. Nodes are held in
// an arena and linked by integer index, with a free list recycling deleted
// slots. Keys are stored ascending; a descending store reverses reads.
type SkipList struct {
	arena  []skipNode
	free   []int32
	head   int32
	level  int
	length int
	desc   bool
	rng    *rand.Rand
}

// NewSkipList returns an empty store. desc selects best-is-highest reads.
func NewSkipList(desc bool) *SkipList {
	s := &SkipList{
		desc: desc,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.reset()
	return s
}

func (s *SkipList) reset() {
	s.arena = s.arena[:0]
	s.free = s.free[:0]
	s.head = s.allocNode(domain.PriceLevel{}, maxLevel)
	s.level = 1
	s.length = 0
}

func (s *SkipList) allocNode(lvl domain.PriceLevel, height int) int32 {
	node := skipNode{lvl: lvl, height: height}
	for i := range node.forward {
		node.forward[i] = nilIdx
	}
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		s.arena[idx] = node
		return idx
	}
	s.arena = append(s.arena, node)
	return int32(len(s.arena) - 1)
}

func (s *SkipList) freeNode(idx int32) {
	s.free = append(s.free, idx)
}

// randomLevel draws a node height: coin flips until failure, capped.
func (s *SkipList) randomLevel() int {
	h := 1
	for h < maxLevel && s.rng.Float64() < promoteP {
		h++
	}
	return h
}

// findPredecessors walks top-down, recording the last node visited per
// level whose key is < price. update must have maxLevel entries.
func (s *SkipList) findPredecessors(price domain.PriceTicks, update *[maxLevel]int32) {
	x := s.head
	for i := s.level - 1; i >= 0; i-- {
		for {
			next := s.arena[x].forward[i]
			if next == nilIdx || s.arena[next].lvl.Price >= price {
				break
			}
			x = next
		}
		update[i] = x
	}
}

// Insert upserts the level, replacing the value in place when the price
// already exists.
func (s *SkipList) Insert(lvl domain.PriceLevel) {
	var update [maxLevel]int32
	s.findPredecessors(lvl.Price, &update)

	if cand := s.arena[update[0]].forward[0]; cand != nilIdx && s.arena[cand].lvl.Price == lvl.Price {
		s.arena[cand].lvl = lvl
		return
	}

	h := s.randomLevel()
	if h > s.level {
		for i := s.level; i < h; i++ {
			update[i] = s.head
		}
		s.level = h
	}

	idx := s.allocNode(lvl, h)
	for i := 0; i < h; i++ {
		s.arena[idx].forward[i] = s.arena[update[i]].forward[i]
		s.arena[update[i]].forward[i] = idx
	}
	s.length++
}

// Delete unlinks the node at price from every level it participates in.
func (s *SkipList) Delete(price domain.PriceTicks) bool {
	var update [maxLevel]int32
	s.findPredecessors(price, &update)

	target := s.arena[update[0]].forward[0]
	if target == nilIdx || s.arena[target].lvl.Price != price {
		return false
	}

	for i := 0; i < s.arena[target].height; i++ {
		if s.arena[update[i]].forward[i] == target {
			s.arena[update[i]].forward[i] = s.arena[target].forward[i]
		}
	}
	for s.level > 1 && s.arena[s.head].forward[s.level-1] == nilIdx {
		s.level--
	}
	s.freeNode(target)
	s.length--
	return true
}

// Get returns the level stored at price.
func (s *SkipList) Get(price domain.PriceTicks) (domain.PriceLevel, bool) {
	var update [maxLevel]int32
	s.findPredecessors(price, &update)
	if cand := s.arena[update[0]].forward[0]; cand != nilIdx && s.arena[cand].lvl.Price == price {
		return s.arena[cand].lvl, true
	}
	return domain.PriceLevel{}, false
}

// Best returns the best level without materializing the sorted view:
// first node for ascending reads, rightmost node for descending.
func (s *SkipList) Best() (domain.PriceLevel, bool) {
	if s.length == 0 {
		return domain.PriceLevel{}, false
	}
	if !s.desc {
		return s.arena[s.arena[s.head].forward[0]].lvl, true
	}
	x := s.head
	for i := s.level - 1; i >= 0; i-- {
		for {
			next := s.arena[x].forward[i]
			if next == nilIdx {
				break
			}
			x = next
		}
	}
	return s.arena[x].lvl, true
}

// Items walks the level-0 chain ascending and reverses for a descending
// store.
func (s *SkipList) Items() []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, s.length)
	for x := s.arena[s.head].forward[0]; x != nilIdx; x = s.arena[x].forward[0] {
		out = append(out, s.arena[x].lvl)
	}
	if s.desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// TopN returns up to n best-first levels.
func (s *SkipList) TopN(n int) []domain.PriceLevel {
	if n <= 0 {
		return nil
	}
	items := s.Items()
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}

// Len is the number of resting levels.
func (s *SkipList) Len() int {
	return s.length
}

// Clear drops every level and recycles the arena.
func (s *SkipList) Clear() {
	s.reset()
}
