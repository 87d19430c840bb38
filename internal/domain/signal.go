package domain

import "time"

// TradingSignal is the decision engine's persistent directional state: the
// last direction it acted on.
type TradingSignal string

const (
	SignalNone  TradingSignal = "None"
	SignalLong  TradingSignal = "Long"
	SignalShort TradingSignal = "Short"
)

// EntrySide maps a directional signal to the order side that opens it.
func (s TradingSignal) EntrySide() OrderSide {
	if s == SignalShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

// SignalEvent records one signal flip for journaling and the bus.
type SignalEvent struct {
	ID       string // UUID
	Strategy string
	Symbol   string
	Signal   TradingSignal
	Previous TradingSignal
	Price    float64 // mark price at flip time
	ATR      float64
	Line     float64
	Reason   string
	At       time.Time
}

// BotStatus is a summary of the bot's current operational state.
type BotStatus struct {
	Mode          string
	Symbol        string
	StrategyName  string
	Signal        TradingSignal
	WSConnected   bool
	Paused        bool
	UptimeSeconds int64
	LastSequence  uint64
	SequenceGaps  uint64
	OpenOrders    int
	PositionSize  float64
	PositionSide  PositionSide
}
