// Package strategy contains the decision engines that turn market and
// account state into order intents, plus the cycle runner that drives them.
package strategy

import (
	"context"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/indicator"
)

// Strategy defines the contract for decision engines. The feed layer pushes
// candles and top-of-book updates in as they arrive; the cycle runner calls
// Decide on a fixed interval with a consistent view of the world and hands
// whatever comes back to the executor.
type Strategy interface {
	Name() string
	// Interval is the candle interval the engine wants, in the venue's
	// notation ("1", "5", "60", "D"). Empty means the engine consumes no
	// candles and the poller stays idle.
	Interval() string
	// CandleLimit is how many historical bars to backfill before the first
	// decision cycle.
	CandleLimit() int
	Init(ctx context.Context, inst domain.Instrument) error
	OnCandle(c domain.Candle)
	OnBook(t domain.BookTicker)
	// Decide returns the order intents for one cycle, in execution order.
	// A nil or empty slice means no action. Decide must not block.
	Decide(in CycleInput) []domain.OrderIntent
	Close() error
}

// CycleInput is the snapshot of market and account state a decision engine
// sees during one cycle. It is assembled once per cycle so every check
// within the cycle works from the same numbers.
type CycleInput struct {
	Book       domain.BookTicker
	Indicator  indicator.State
	Account    domain.AccountSnapshot
	Instrument domain.Instrument
	Now        time.Time
}

// Config holds the limits and parameters shared by the decision engines.
type Config struct {
	Name        string
	Symbol      string
	Interval    string
	CandleLimit int

	// OrderSize is the quantity of each entry order in base units.
	OrderSize float64
	// MaxPositionSize caps the absolute position the engine may build.
	MaxPositionSize float64
	// MaxOpenOrdersPerSide caps resting entry quantity per side at
	// OrderSize * MaxOpenOrdersPerSide.
	MaxOpenOrdersPerSide int
	// RepriceThresholdPct is the fractional deviation from the target price
	// beyond which a resting entry is cancelled and replaced.
	RepriceThresholdPct float64
	// PositionBuffer is the tolerance above MaxPositionSize before the
	// safety valve force-reduces the position.
	PositionBuffer float64
	// Spread is the market maker's quote distance from the touch, as a
	// fraction of price. Unused by the trend engine.
	Spread float64
}
