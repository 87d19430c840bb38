package strategy

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/indicator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCfg() Config {
	return Config{
		Name:                 NameSupertrend,
		Symbol:               "BTCUSDT",
		Interval:             "1",
		CandleLimit:          50,
		OrderSize:            0.01,
		MaxPositionSize:      0.05,
		MaxOpenOrdersPerSide: 1,
		RepriceThresholdPct:  0.001,
		PositionBuffer:       0.01,
		Spread:               0.01,
	}
}

func testInstrument() domain.Instrument {
	return domain.Instrument{
		Symbol:   "BTCUSDT",
		Category: "linear",
		TickSize: domain.PriceTicks(10000), // 0.01
	}
}

func tickerAt(bid, ask float64) domain.BookTicker {
	t := domain.BookTicker{Symbol: "BTCUSDT", At: time.Now().UTC()}
	if bid > 0 {
		t.BestBid = domain.TicksFromFloat(bid)
		t.BidQty = 1
		t.HasBid = true
	}
	if ask > 0 {
		t.BestAsk = domain.TicksFromFloat(ask)
		t.AskQty = 1
		t.HasAsk = true
	}
	return t
}

func readyState(dir indicator.TrendDirection) indicator.State {
	return indicator.State{
		ATR:       1.5,
		Line:      99,
		Direction: dir,
		Ready:     true,
		LastClose: 100,
	}
}

func accountWith(pos float64, orders ...domain.OrderRecord) domain.AccountSnapshot {
	snap := domain.AccountSnapshot{
		PositionSize: pos,
		PositionSide: domain.PositionSideFlat,
		ActiveOrders: make(map[string]domain.OrderRecord),
		UpdatedAt:    time.Now().UTC(),
	}
	if pos > 0 {
		snap.PositionSide = domain.PositionSideLong
	} else if pos < 0 {
		snap.PositionSide = domain.PositionSideShort
	}
	for _, o := range orders {
		snap.ActiveOrders[o.OrderID] = o
	}
	return snap
}

func restingOrder(id string, side domain.OrderSide, price, qty float64) domain.OrderRecord {
	return domain.OrderRecord{
		OrderID:    id,
		Symbol:     "BTCUSDT",
		Side:       side,
		Type:       domain.OrderTypeLimit,
		PriceTicks: domain.TicksFromFloat(price),
		Qty:        qty,
		Status:     domain.OrderStatusNew,
	}
}

func cycleIn(st indicator.State, bid, ask float64, acct domain.AccountSnapshot) CycleInput {
	return CycleInput{
		Book:       tickerAt(bid, ask),
		Indicator:  st,
		Account:    acct,
		Instrument: testInstrument(),
		Now:        time.Now().UTC(),
	}
}

func TestSupertrendFlipFlattensAndEnters(t *testing.T) {
	s, err := NewSupertrend(testCfg(), testLogger())
	if err != nil {
		t.Fatalf("NewSupertrend: %v", err)
	}

	// First ready cycle flips None -> Short: cancel-all plus a sell entry.
	got := s.Decide(cycleIn(readyState(indicator.TrendDown), 100, 101, accountWith(0)))
	if len(got) != 2 {
		t.Fatalf("first flip: got %d intents, want 2", len(got))
	}
	if got[0].Kind != domain.IntentCancelAll {
		t.Fatalf("first flip intent kind got %s want cancel_all", got[0].Kind)
	}
	if got[1].Side != domain.OrderSideSell || got[1].PriceTicks != domain.TicksFromFloat(101) {
		t.Fatalf("sell entry got side=%s price=%d", got[1].Side, got[1].PriceTicks)
	}
	if s.LastSignal() != domain.SignalShort {
		t.Fatalf("lastSignal got %s want Short", s.LastSignal())
	}

	// Flip Short -> Long while short 0.01: cancel-all, market buy the full
	// opposing size, then one limit buy at best bid.
	acct := accountWith(-0.01, restingOrder("ord-1", domain.OrderSideSell, 101, 0.01))
	got = s.Decide(cycleIn(readyState(indicator.TrendUp), 100, 101, acct))
	if len(got) != 3 {
		t.Fatalf("flip to long: got %d intents, want 3", len(got))
	}
	if got[0].Kind != domain.IntentCancelAll {
		t.Fatalf("intent 0 kind got %s want cancel_all", got[0].Kind)
	}
	flatten := got[1]
	if flatten.Kind != domain.IntentPlace || flatten.Type != domain.OrderTypeMarket ||
		flatten.Side != domain.OrderSideBuy || !flatten.ReduceOnly {
		t.Fatalf("flatten intent got %+v", flatten)
	}
	if math.Abs(flatten.Qty-0.01) > 1e-12 {
		t.Fatalf("flatten qty got %v want 0.01", flatten.Qty)
	}
	entry := got[2]
	if entry.Type != domain.OrderTypeLimit || entry.Side != domain.OrderSideBuy || entry.ReduceOnly {
		t.Fatalf("entry intent got %+v", entry)
	}
	if entry.PriceTicks != domain.TicksFromFloat(100) {
		t.Fatalf("entry price got %d want %d", entry.PriceTicks, domain.TicksFromFloat(100))
	}
	if math.Abs(entry.Qty-0.01) > 1e-12 {
		t.Fatalf("entry qty got %v want 0.01", entry.Qty)
	}
	if s.LastSignal() != domain.SignalLong {
		t.Fatalf("lastSignal got %s want Long", s.LastSignal())
	}

	// Same direction again: no flip, so no cancel-all.
	got = s.Decide(cycleIn(readyState(indicator.TrendUp), 100, 101, accountWith(-0.01)))
	for _, iv := range got {
		if iv.Kind == domain.IntentCancelAll {
			t.Fatalf("cancel-all emitted without a flip: %+v", iv)
		}
	}
}

func TestSupertrendFlipWithEmptyBookStillFlattens(t *testing.T) {
	s, err := NewSupertrend(testCfg(), testLogger())
	if err != nil {
		t.Fatalf("NewSupertrend: %v", err)
	}

	// Flip None -> Short while long 0.01 with no quotes on either side:
	// cancel-all and the reduce-only flatten go out, the limit entry does
	// not, and the signal still advances.
	got := s.Decide(cycleIn(readyState(indicator.TrendDown), 0, 0, accountWith(0.01)))
	if len(got) != 2 {
		t.Fatalf("empty-book flip: got %d intents, want 2", len(got))
	}
	if got[0].Kind != domain.IntentCancelAll {
		t.Fatalf("intent 0 kind got %s want cancel_all", got[0].Kind)
	}
	flatten := got[1]
	if flatten.Kind != domain.IntentPlace || flatten.Type != domain.OrderTypeMarket ||
		flatten.Side != domain.OrderSideSell || !flatten.ReduceOnly {
		t.Fatalf("flatten intent got %+v", flatten)
	}
	if math.Abs(flatten.Qty-0.01) > 1e-12 {
		t.Fatalf("flatten qty got %v want 0.01", flatten.Qty)
	}
	if s.LastSignal() != domain.SignalShort {
		t.Fatalf("lastSignal got %s want Short", s.LastSignal())
	}

	// Once a quote appears the regular cycle places the deferred entry.
	got = s.Decide(cycleIn(readyState(indicator.TrendDown), 100, 101, accountWith(0)))
	if len(got) != 1 {
		t.Fatalf("entry cycle: got %d intents, want 1", len(got))
	}
	entry := got[0]
	if entry.Type != domain.OrderTypeLimit || entry.Side != domain.OrderSideSell || entry.ReduceOnly {
		t.Fatalf("entry intent got %+v", entry)
	}
	if entry.PriceTicks != domain.TicksFromFloat(101) {
		t.Fatalf("entry price got %d want %d", entry.PriceTicks, domain.TicksFromFloat(101))
	}
}

func TestSupertrendRepriceExactlyOncePerCycle(t *testing.T) {
	s, err := NewSupertrend(testCfg(), testLogger())
	if err != nil {
		t.Fatalf("NewSupertrend: %v", err)
	}
	// Establish Long.
	s.Decide(cycleIn(readyState(indicator.TrendUp), 100, 101, accountWith(0)))

	t.Run("deviating entry cancelled and replaced", func(t *testing.T) {
		acct := accountWith(0.01, restingOrder("ord-1", domain.OrderSideBuy, 99, 0.01))
		got := s.Decide(cycleIn(readyState(indicator.TrendUp), 100, 101, acct))
		if len(got) != 2 {
			t.Fatalf("got %d intents, want 2", len(got))
		}
		if got[0].Kind != domain.IntentCancel || got[0].OrderID != "ord-1" {
			t.Fatalf("cancel intent got %+v", got[0])
		}
		if got[1].Kind != domain.IntentPlace || got[1].PriceTicks != domain.TicksFromFloat(100) {
			t.Fatalf("replacement got %+v", got[1])
		}
	})

	t.Run("entry at target left alone", func(t *testing.T) {
		acct := accountWith(0.01, restingOrder("ord-2", domain.OrderSideBuy, 100, 0.01))
		got := s.Decide(cycleIn(readyState(indicator.TrendUp), 100, 101, acct))
		if len(got) != 0 {
			t.Fatalf("got %d intents, want 0: %+v", len(got), got)
		}
	})

	t.Run("two deviating entries still one cancel", func(t *testing.T) {
		acct := accountWith(0.01,
			restingOrder("ord-3", domain.OrderSideBuy, 99, 0.01),
			restingOrder("ord-4", domain.OrderSideBuy, 98.5, 0.01),
		)
		got := s.Decide(cycleIn(readyState(indicator.TrendUp), 100, 101, acct))
		cancels := 0
		for _, iv := range got {
			if iv.Kind == domain.IntentCancel {
				cancels++
				if iv.OrderID != "ord-4" {
					t.Fatalf("cancelled %s, want worst offender ord-4", iv.OrderID)
				}
			}
		}
		if cancels != 1 {
			t.Fatalf("got %d cancels, want exactly 1", cancels)
		}
		// Remaining resting quantity uses up the per-side cap, so no
		// replacement fits this cycle.
		if len(got) != 1 {
			t.Fatalf("got %d intents, want 1: %+v", len(got), got)
		}
	})
}

func TestSupertrendSafetyValve(t *testing.T) {
	tests := []struct {
		name     string
		pos      float64
		wantSide domain.OrderSide
	}{
		{"long over cap", 0.08, domain.OrderSideSell},
		{"short over cap", -0.08, domain.OrderSideBuy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSupertrend(testCfg(), testLogger())
			if err != nil {
				t.Fatalf("NewSupertrend: %v", err)
			}
			// Indicator not ready: the valve must fire anyway.
			got := s.Decide(cycleIn(indicator.State{}, 100, 101, accountWith(tt.pos)))
			if len(got) != 1 {
				t.Fatalf("got %d intents, want 1: %+v", len(got), got)
			}
			iv := got[0]
			if iv.Type != domain.OrderTypeMarket || !iv.ReduceOnly || iv.Side != tt.wantSide {
				t.Fatalf("valve intent got %+v", iv)
			}
			if math.Abs(iv.Qty-0.03) > 1e-9 {
				t.Fatalf("valve qty got %v want 0.03", iv.Qty)
			}
		})
	}
}

func TestSupertrendWithinBufferNoValve(t *testing.T) {
	s, err := NewSupertrend(testCfg(), testLogger())
	if err != nil {
		t.Fatalf("NewSupertrend: %v", err)
	}
	got := s.Decide(cycleIn(indicator.State{}, 100, 101, accountWith(0.055)))
	if len(got) != 0 {
		t.Fatalf("got %d intents, want 0: %+v", len(got), got)
	}
}

func TestSupertrendFlipAtCapSkipsEntry(t *testing.T) {
	s, err := NewSupertrend(testCfg(), testLogger())
	if err != nil {
		t.Fatalf("NewSupertrend: %v", err)
	}
	s.Decide(cycleIn(readyState(indicator.TrendDown), 100, 101, accountWith(0)))

	// Flip to Long at the position cap: no flatten (same side), no entry.
	got := s.Decide(cycleIn(readyState(indicator.TrendUp), 100, 101, accountWith(0.05)))
	if len(got) != 1 || got[0].Kind != domain.IntentCancelAll {
		t.Fatalf("got %+v, want only cancel-all", got)
	}
}
