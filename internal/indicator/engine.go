package indicator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// State is the latest indicator output handed to decision cycles.
// Ready is false until the window holds enough bars for the recurrence.
type State struct {
	ATR       float64
	Line      float64
	Direction TrendDirection
	Ready     bool
	LastClose float64
	BarTime   time.Time
	UpdatedAt time.Time
}

// Engine holds the bounded candle window and recomputes ATR + Supertrend
// from the full window on every update. Scalar state only survives between
// updates; the series are rebuilt each time.
type Engine struct {
	mu       sync.RWMutex
	period   int
	mult     float64
	capacity int
	candles  []domain.Candle
	state    State
	logger   *slog.Logger
}

// NewEngine builds an indicator engine. capacity bounds the candle window
// and must exceed period+1 for the engine to ever become ready.
func NewEngine(period int, multiplier float64, capacity int, logger *slog.Logger) *Engine {
	return &Engine{
		period:   period,
		mult:     multiplier,
		capacity: capacity,
		candles:  make([]domain.Candle, 0, capacity),
		logger:   logger.With(slog.String("component", "indicator")),
	}
}

// Seed replaces the window with a backfilled, time-ascending bar series and
// recomputes once. Bars beyond capacity are dropped from the old end.
func (e *Engine) Seed(bars []domain.Candle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(bars) > e.capacity {
		bars = bars[len(bars)-e.capacity:]
	}
	e.candles = append(e.candles[:0], bars...)
	e.recompute()
	e.logger.Info("candle window seeded",
		slog.Int("bars", len(e.candles)),
		slog.Bool("ready", e.state.Ready),
	)
}

// Update applies one bar with ring semantics: same open time as the newest
// bar replaces it in place (still forming), a strictly newer bar appends
// and evicts the oldest at capacity, an older bar is ignored.
func (e *Engine) Update(c domain.Candle) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if n := len(e.candles); n > 0 {
		newest := e.candles[n-1]
		switch {
		case c.OpenTime.Equal(newest.OpenTime):
			e.candles[n-1] = c
		case c.OpenTime.After(newest.OpenTime):
			if n == e.capacity {
				copy(e.candles, e.candles[1:])
				e.candles[n-1] = c
			} else {
				e.candles = append(e.candles, c)
			}
		default:
			e.logger.Debug("stale candle ignored",
				slog.Time("open_time", c.OpenTime),
				slog.Time("newest", newest.OpenTime),
			)
			return e.state
		}
	} else {
		e.candles = append(e.candles, c)
	}

	e.recompute()
	return e.state
}

// recompute rebuilds the full series. Caller holds the write lock.
func (e *Engine) recompute() {
	n := len(e.candles)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, c := range e.candles {
		highs[i], lows[i], closes[i] = c.High, c.Low, c.Close
	}

	atr := ComputeATR(highs, lows, closes, e.period)
	if len(atr) == 0 {
		e.state = State{Ready: false, UpdatedAt: time.Now()}
		return
	}
	line, dir := supertrendFromATR(highs, lows, closes, atr, e.period, e.mult)
	last := len(line) - 1
	e.state = State{
		ATR:       atr[last],
		Line:      line[last],
		Direction: dir[last],
		Ready:     true,
		LastClose: closes[n-1],
		BarTime:   e.candles[n-1].OpenTime,
		UpdatedAt: time.Now(),
	}
}

// State returns the latest indicator output.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// WindowLen is the number of bars currently held.
func (e *Engine) WindowLen() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.candles)
}

// Window returns a copy of the held bars, oldest first.
func (e *Engine) Window() []domain.Candle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Candle, len(e.candles))
	copy(out, e.candles)
	return out
}
