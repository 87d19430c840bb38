package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/indicator"
)

// recentSignalCap bounds the in-memory signal history kept for status APIs.
const recentSignalCap = 100

// BookSource provides the top of book for a decision cycle.
type BookSource interface {
	BestBidAsk() domain.BookTicker
}

// IndicatorSource provides the indicator state for a decision cycle.
type IndicatorSource interface {
	State() indicator.State
}

// AccountSource provides the account view for a decision cycle.
type AccountSource interface {
	Snapshot() domain.AccountSnapshot
}

// SignalSink receives signal events when the indicator direction flips.
// Implementations must not block for long; they run on the decision loop.
type SignalSink interface {
	PublishSignal(ctx context.Context, ev domain.SignalEvent)
}

// Engine drives one decision engine on a fixed cycle. Each cycle it
// assembles a consistent CycleInput, lets the strategy decide and forwards
// the resulting intent batch to the executor through the intents channel.
type Engine struct {
	strat    Strategy
	book     BookSource
	indic    IndicatorSource
	account  AccountSource
	inst     domain.Instrument
	interval time.Duration
	intents  chan []domain.OrderIntent
	sinks    []SignalSink
	logger   *slog.Logger

	paused  atomic.Bool
	cycles  atomic.Uint64
	dropped atomic.Uint64

	prevDir indicator.TrendDirection
	prevSet bool

	recent   []domain.SignalEvent
	recentMu sync.Mutex
}

// NewEngine wires a decision engine to its state sources. The cycle interval
// must be positive.
func NewEngine(
	strat Strategy,
	book BookSource,
	indic IndicatorSource,
	account AccountSource,
	inst domain.Instrument,
	interval time.Duration,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		strat:    strat,
		book:     book,
		indic:    indic,
		account:  account,
		inst:     inst,
		interval: interval,
		intents:  make(chan []domain.OrderIntent, 16),
		logger:   logger.With(slog.String("component", "decision"), slog.String("strategy", strat.Name())),
	}
}

// AddSignalSink registers a sink for signal events. Must be called before Run.
func (e *Engine) AddSignalSink(s SignalSink) {
	e.sinks = append(e.sinks, s)
}

// Intents returns the channel the executor consumes intent batches from.
func (e *Engine) Intents() <-chan []domain.OrderIntent {
	return e.intents
}

// Run initializes the strategy and drives the decision loop until the
// context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.strat.Init(ctx, e.inst); err != nil {
		return fmt.Errorf("init strategy %s: %w", e.strat.Name(), err)
	}

	e.logger.Info("decision loop started", slog.Duration("interval", e.interval))
	defer e.logger.Info("decision loop stopped")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.cycle(ctx)
		}
	}
}

// cycle runs one decision pass.
func (e *Engine) cycle(ctx context.Context) {
	e.cycles.Add(1)

	in := CycleInput{
		Book:       e.book.BestBidAsk(),
		Indicator:  e.indic.State(),
		Account:    e.account.Snapshot(),
		Instrument: e.inst,
		Now:        time.Now().UTC(),
	}

	// Signal events record market facts and are published even while paused.
	e.trackSignal(ctx, in)

	if e.paused.Load() {
		return
	}

	intents := e.strat.Decide(in)
	if len(intents) == 0 {
		return
	}
	e.emit(intents)
}

// trackSignal publishes a SignalEvent when the indicator direction changes
// from the previously observed one.
func (e *Engine) trackSignal(ctx context.Context, in CycleInput) {
	st := in.Indicator
	if !st.Ready {
		return
	}
	if e.prevSet && st.Direction == e.prevDir {
		return
	}

	prev := domain.SignalNone
	if e.prevSet {
		prev = signalFor(e.prevDir)
	}
	ev := domain.SignalEvent{
		ID:       uuid.New().String(),
		Strategy: e.strat.Name(),
		Symbol:   e.inst.Symbol,
		Signal:   signalFor(st.Direction),
		Previous: prev,
		Price:    st.LastClose,
		ATR:      st.ATR,
		Line:     st.Line,
		Reason:   fmt.Sprintf("close %.6f against line %.6f", st.LastClose, st.Line),
		At:       in.Now,
	}
	e.prevDir = st.Direction
	e.prevSet = true

	e.remember(ev)
	e.logger.Info("trend signal",
		slog.String("signal", string(ev.Signal)),
		slog.String("previous", string(ev.Previous)),
		slog.Float64("price", ev.Price),
		slog.Float64("line", ev.Line),
	)
	for _, s := range e.sinks {
		s.PublishSignal(ctx, ev)
	}
}

func signalFor(d indicator.TrendDirection) domain.TradingSignal {
	if d == indicator.TrendDown {
		return domain.SignalShort
	}
	return domain.SignalLong
}

// emit hands a batch to the executor without blocking the decision loop.
func (e *Engine) emit(intents []domain.OrderIntent) {
	select {
	case e.intents <- intents:
	default:
		e.dropped.Add(1)
		e.logger.Warn("intent channel full, dropping batch",
			slog.Int("count", len(intents)),
		)
	}
}

// remember appends to the bounded signal history.
func (e *Engine) remember(ev domain.SignalEvent) {
	e.recentMu.Lock()
	defer e.recentMu.Unlock()
	e.recent = append(e.recent, ev)
	if len(e.recent) > recentSignalCap {
		e.recent = e.recent[len(e.recent)-recentSignalCap:]
	}
}

// RecentSignals returns up to limit signal events, newest first.
func (e *Engine) RecentSignals(limit int) []domain.SignalEvent {
	if limit <= 0 {
		limit = 20
	}
	e.recentMu.Lock()
	defer e.recentMu.Unlock()
	n := len(e.recent)
	if limit > n {
		limit = n
	}
	out := make([]domain.SignalEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, e.recent[i])
	}
	return out
}

// Pause stops the engine from emitting intents. Signal tracking continues.
func (e *Engine) Pause() {
	if e.paused.CompareAndSwap(false, true) {
		e.logger.Info("trading paused")
	}
}

// Resume re-enables intent emission.
func (e *Engine) Resume() {
	if e.paused.CompareAndSwap(true, false) {
		e.logger.Info("trading resumed")
	}
}

// Paused reports whether intent emission is suspended.
func (e *Engine) Paused() bool {
	return e.paused.Load()
}

// Flatten emits an immediate cancel-all plus a reduce-only market order
// closing any open position, bypassing the decision cycle. It returns the
// number of intents emitted.
func (e *Engine) Flatten() int {
	snap := e.account.Snapshot()
	now := time.Now().UTC()
	batch := []domain.OrderIntent{
		cancelAllIntent(e.inst.Symbol, "manual flatten", now),
	}
	if math.Abs(snap.PositionSize) > qtyEpsilon {
		side := domain.OrderSideSell
		if snap.PositionSize < 0 {
			side = domain.OrderSideBuy
		}
		batch = append(batch, placeIntent(e.inst.Symbol, side, domain.OrderTypeMarket, 0, math.Abs(snap.PositionSize), true, "manual flatten", now))
	}
	e.emit(batch)
	return len(batch)
}

// OnCandle forwards a closed bar to the strategy.
func (e *Engine) OnCandle(c domain.Candle) {
	e.strat.OnCandle(c)
}

// OnBook forwards a top-of-book change to the strategy.
func (e *Engine) OnBook(t domain.BookTicker) {
	e.strat.OnBook(t)
}

// StrategyName returns the active engine's identifier.
func (e *Engine) StrategyName() string {
	return e.strat.Name()
}

// CandleInterval returns the interval the active engine consumes, empty when
// it consumes none.
func (e *Engine) CandleInterval() string {
	return e.strat.Interval()
}

// CandleLimit returns the startup backfill depth for the active engine.
func (e *Engine) CandleLimit() int {
	return e.strat.CandleLimit()
}

// Cycles returns the number of decision cycles run so far.
func (e *Engine) Cycles() uint64 {
	return e.cycles.Load()
}

// DroppedBatches returns the number of intent batches dropped on overflow.
func (e *Engine) DroppedBatches() uint64 {
	return e.dropped.Load()
}

// LastSignal returns the most recent signal event, if any.
func (e *Engine) LastSignal() (domain.SignalEvent, bool) {
	e.recentMu.Lock()
	defer e.recentMu.Unlock()
	if len(e.recent) == 0 {
		return domain.SignalEvent{}, false
	}
	return e.recent[len(e.recent)-1], true
}
