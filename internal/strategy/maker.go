package strategy

import (
	"context"
	"log/slog"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// NameMarketMaker is the configuration name of the market-making engine.
const NameMarketMaker = "market_maker"

// MarketMaker quotes both sides of the book at a configured distance from
// the touch. It carries no state between cycles; the resting order set on
// the venue is the only memory it has.
type MarketMaker struct {
	cfg    Config
	inst   domain.Instrument
	logger *slog.Logger
}

// NewMarketMaker creates the market-making engine.
func NewMarketMaker(cfg Config, logger *slog.Logger) (*MarketMaker, error) {
	return &MarketMaker{
		cfg:    cfg,
		logger: logger.With(slog.String("strategy", NameMarketMaker)),
	}, nil
}

// Name returns the engine identifier.
func (m *MarketMaker) Name() string { return NameMarketMaker }

// Interval is empty: the maker consumes no candles and the poller stays idle.
func (m *MarketMaker) Interval() string { return "" }

// CandleLimit is zero; no backfill is needed.
func (m *MarketMaker) CandleLimit() int { return 0 }

// Init records the instrument.
func (m *MarketMaker) Init(_ context.Context, inst domain.Instrument) error {
	m.inst = inst
	return nil
}

// OnCandle is a no-op; the maker does not consume candles.
func (m *MarketMaker) OnCandle(_ domain.Candle) {}

// OnBook is a no-op; Decide reads the ticker from its cycle input.
func (m *MarketMaker) OnBook(_ domain.BookTicker) {}

// Decide runs one quoting cycle: trim an oversized position, then keep one
// bid and one ask resting at the configured spread from the touch.
func (m *MarketMaker) Decide(in CycleInput) []domain.OrderIntent {
	var intents []domain.OrderIntent

	if iv := safetyValve(m.cfg, in); iv != nil {
		m.logger.Warn("position beyond cap, force reducing",
			slog.Float64("position", in.Account.PositionSize),
			slog.Float64("excess", iv.Qty),
		)
		intents = append(intents, *iv)
	}

	if !in.Book.HasBid || !in.Book.HasAsk {
		return intents
	}

	bid, ask := m.quotePrices(in.Book)
	intents = append(intents, manageSide(m.cfg, in, domain.OrderSideBuy, bid, "requote bid")...)
	intents = append(intents, manageSide(m.cfg, in, domain.OrderSideSell, ask, "requote ask")...)
	return intents
}

// quotePrices derives the two quote targets. When the raw targets cross, the
// spread is halved and the targets recomputed; if they still cross, the ask
// is nudged one price increment above the bid.
func (m *MarketMaker) quotePrices(t domain.BookTicker) (domain.PriceTicks, domain.PriceTicks) {
	spread := m.cfg.Spread
	bid := m.inst.RoundPrice(domain.TicksFromFloat(t.BestBid.Float64() * (1 - spread)))
	ask := m.inst.RoundPrice(domain.TicksFromFloat(t.BestAsk.Float64() * (1 + spread)))
	if bid < ask {
		return bid, ask
	}

	spread /= 2
	bid = m.inst.RoundPrice(domain.TicksFromFloat(t.BestBid.Float64() * (1 - spread)))
	ask = m.inst.RoundPrice(domain.TicksFromFloat(t.BestAsk.Float64() * (1 + spread)))
	if bid < ask {
		return bid, ask
	}

	tick := m.inst.TickSize
	if tick <= 0 {
		tick = 1
	}
	return bid, bid + tick
}

// Close releases resources. The maker has nothing to release.
func (m *MarketMaker) Close() error { return nil }
