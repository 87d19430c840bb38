package strategy

import (
	"context"
	"log/slog"
	"math"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/indicator"
)

// NameSupertrend is the configuration name of the trend-following engine.
const NameSupertrend = "supertrend"

const (
	defaultInterval    = "1"
	defaultCandleLimit = 200
)

// Supertrend is the trend-following decision engine. It follows the
// indicator's direction: on a flip it clears working orders, flattens any
// opposing position with a market order and opens a limit entry at the
// touch; between flips it keeps the entry repriced near the touch.
type Supertrend struct {
	cfg    Config
	inst   domain.Instrument
	last   domain.TradingSignal
	logger *slog.Logger
}

// NewSupertrend creates the trend-following engine.
func NewSupertrend(cfg Config, logger *slog.Logger) (*Supertrend, error) {
	if cfg.Interval == "" {
		cfg.Interval = defaultInterval
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = defaultCandleLimit
	}
	return &Supertrend{
		cfg:    cfg,
		last:   domain.SignalNone,
		logger: logger.With(slog.String("strategy", NameSupertrend)),
	}, nil
}

// Name returns the engine identifier.
func (s *Supertrend) Name() string { return NameSupertrend }

// Interval returns the candle interval the engine trades on.
func (s *Supertrend) Interval() string { return s.cfg.Interval }

// CandleLimit returns the startup backfill depth.
func (s *Supertrend) CandleLimit() int { return s.cfg.CandleLimit }

// Init records the instrument. The engine carries no other setup.
func (s *Supertrend) Init(_ context.Context, inst domain.Instrument) error {
	s.inst = inst
	return nil
}

// OnCandle is a no-op; the indicator engine owns the bar window.
func (s *Supertrend) OnCandle(_ domain.Candle) {}

// OnBook is a no-op; Decide reads the ticker from its cycle input.
func (s *Supertrend) OnBook(_ domain.BookTicker) {}

// LastSignal returns the last acted signal, for status reporting.
func (s *Supertrend) LastSignal() domain.TradingSignal { return s.last }

// Decide runs one trend-following cycle.
func (s *Supertrend) Decide(in CycleInput) []domain.OrderIntent {
	var intents []domain.OrderIntent

	// Position safety valve runs every cycle, before anything signal-driven.
	if iv := safetyValve(s.cfg, in); iv != nil {
		s.logger.Warn("position beyond cap, force reducing",
			slog.Float64("position", in.Account.PositionSize),
			slog.Float64("excess", iv.Qty),
		)
		intents = append(intents, *iv)
	}

	if !in.Indicator.Ready {
		return intents
	}

	signal := domain.SignalLong
	if in.Indicator.Direction == indicator.TrendDown {
		signal = domain.SignalShort
	}

	if signal != s.last {
		intents = append(intents, s.flip(in, signal)...)
		s.last = signal
		return intents
	}

	target, ok := s.entryTarget(in, signal)
	if !ok {
		return intents
	}
	intents = append(intents, manageSide(s.cfg, in, signal.EntrySide(), target, "reprice toward touch")...)
	return intents
}

// flip clears working orders, flattens an opposing position and opens a new
// entry on the signal side, capacity permitting.
func (s *Supertrend) flip(in CycleInput, signal domain.TradingSignal) []domain.OrderIntent {
	side := signal.EntrySide()
	out := []domain.OrderIntent{
		cancelAllIntent(s.cfg.Symbol, "signal flip", in.Now),
	}

	pos := in.Account.PositionSize
	opposing := (signal == domain.SignalLong && pos < -qtyEpsilon) ||
		(signal == domain.SignalShort && pos > qtyEpsilon)
	if opposing {
		out = append(out, placeIntent(s.cfg.Symbol, side, domain.OrderTypeMarket, 0, math.Abs(pos), true, "flatten on flip", in.Now))
	}

	s.logger.Info("signal flip",
		slog.String("from", string(s.last)),
		slog.String("to", string(signal)),
		slog.Float64("position", pos),
		slog.Float64("line", in.Indicator.Line),
	)

	openQty := in.Account.OpenQtyBySide(side)
	capQty := s.cfg.OrderSize * float64(s.cfg.MaxOpenOrdersPerSide)
	if math.Abs(pos) >= s.cfg.MaxPositionSize-qtyEpsilon || openQty >= capQty-qtyEpsilon {
		return out
	}

	target, ok := s.entryTarget(in, signal)
	if !ok {
		s.logger.Debug("no touch price for entry, skipping placement")
		return out
	}
	out = append(out, placeIntent(s.cfg.Symbol, side, domain.OrderTypeLimit, in.Instrument.RoundPrice(target), s.cfg.OrderSize, false, "entry on flip", in.Now))
	return out
}

// entryTarget is the touch price entries peg to: best bid when going long,
// best ask when going short.
func (s *Supertrend) entryTarget(in CycleInput, signal domain.TradingSignal) (domain.PriceTicks, bool) {
	if signal == domain.SignalLong {
		return in.Book.BestBid, in.Book.HasBid
	}
	return in.Book.BestAsk, in.Book.HasAsk
}

// Close releases resources. The trend engine has nothing to release.
func (s *Supertrend) Close() error { return nil }
