package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// PriceTicks is a fixed-point price: price * 1e6. Book sides are keyed by
// PriceTicks so that two near-equal floats can never alias distinct levels.
type PriceTicks int64

// Float64 returns the display price.
func (p PriceTicks) Float64() float64 {
	return float64(p) / 1e6
}

// String renders the price in decimal wire form without trailing zeros,
// e.g. PriceTicks(101500000) -> "101.5".
func (p PriceTicks) String() string {
	return decimal.New(int64(p), -6).String()
}

// TicksFromFloat converts a display price to fixed-point ticks, rounding to
// the nearest tick.
func TicksFromFloat(price float64) PriceTicks {
	return PriceTicks(math.Round(price * 1e6))
}

// ParsePrice converts a wire price string to fixed-point ticks exactly,
// without an intermediate float.
func ParsePrice(s string) (PriceTicks, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return PriceTicks(d.Shift(6).IntPart()), nil
}

// ParseQty converts a wire quantity string to a float64.
func ParseQty(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

// PriceLevel is the aggregated resting quantity at one price on one side.
type PriceLevel struct {
	Price     PriceTicks
	Qty       float64
	UpdatedAt time.Time
	Orders    int // venue-reported order count at this level, 0 if unknown
}

// BookUpdateType distinguishes full snapshots from incremental deltas.
type BookUpdateType string

const (
	BookSnapshot BookUpdateType = "snapshot"
	BookDelta    BookUpdateType = "delta"
)

// BookUpdate is one market-data message: a full snapshot or a partial delta.
// Entries are [price, qty] string pairs exactly as received; parsing and
// per-entry validation happen at apply time so a bad entry skips only itself.
// Qty "0" in a delta removes the level.
type BookUpdate struct {
	Symbol   string
	Type     BookUpdateType
	Bids     [][]string
	Asks     [][]string
	Sequence uint64
	At       time.Time
}

// BookTicker is the top-of-book view handed to decision engines each cycle.
// HasBid/HasAsk distinguish an empty side from a zero price.
type BookTicker struct {
	Symbol   string
	BestBid  PriceTicks
	BidQty   float64
	HasBid   bool
	BestAsk  PriceTicks
	AskQty   float64
	HasAsk   bool
	Sequence uint64
	At       time.Time
}

// Spread returns ask-bid in display price terms, 0 if either side is empty.
func (t BookTicker) Spread() float64 {
	if !t.HasBid || !t.HasAsk {
		return 0
	}
	return (t.BestAsk - t.BestBid).Float64()
}

// Mid returns the midpoint price, 0 if either side is empty.
func (t BookTicker) Mid() float64 {
	if !t.HasBid || !t.HasAsk {
		return 0
	}
	return (t.BestBid.Float64() + t.BestAsk.Float64()) / 2
}
