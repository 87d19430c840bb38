package strategy

import (
	"context"
	"math"
	"testing"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/indicator"
)

func newTestMaker(t *testing.T) *MarketMaker {
	t.Helper()
	cfg := testCfg()
	cfg.Name = NameMarketMaker
	m, err := NewMarketMaker(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewMarketMaker: %v", err)
	}
	if err := m.Init(context.Background(), testInstrument()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m
}

func TestMarketMakerQuotesBothSides(t *testing.T) {
	m := newTestMaker(t)

	got := m.Decide(cycleIn(indicator.State{}, 100, 101, accountWith(0)))
	if len(got) != 2 {
		t.Fatalf("got %d intents, want 2: %+v", len(got), got)
	}
	bid, ask := got[0], got[1]
	if bid.Side != domain.OrderSideBuy || bid.Type != domain.OrderTypeLimit {
		t.Fatalf("bid intent got %+v", bid)
	}
	if bid.PriceTicks != domain.TicksFromFloat(99) {
		t.Fatalf("bid price got %d want %d", bid.PriceTicks, domain.TicksFromFloat(99))
	}
	if ask.Side != domain.OrderSideSell || ask.Type != domain.OrderTypeLimit {
		t.Fatalf("ask intent got %+v", ask)
	}
	if ask.PriceTicks != domain.TicksFromFloat(102.01) {
		t.Fatalf("ask price got %d want %d", ask.PriceTicks, domain.TicksFromFloat(102.01))
	}
	if math.Abs(bid.Qty-0.01) > 1e-12 || math.Abs(ask.Qty-0.01) > 1e-12 {
		t.Fatalf("quote quantities got %v / %v want 0.01", bid.Qty, ask.Qty)
	}
}

func TestMarketMakerNudgesAskOnCrossedBook(t *testing.T) {
	m := newTestMaker(t)
	m.cfg.Spread = 0.0004

	// Crossed book: best bid above best ask. Halving the spread cannot
	// uncross the targets, so the ask lands one increment above the bid.
	got := m.Decide(cycleIn(indicator.State{}, 100, 99.9, accountWith(0)))
	if len(got) != 2 {
		t.Fatalf("got %d intents, want 2: %+v", len(got), got)
	}
	wantBid := domain.PriceTicks(99980000) // 100 * (1 - 0.0002)
	wantAsk := wantBid + m.inst.TickSize
	if got[0].PriceTicks != wantBid {
		t.Fatalf("bid got %d want %d", got[0].PriceTicks, wantBid)
	}
	if got[1].PriceTicks != wantAsk {
		t.Fatalf("ask got %d want %d", got[1].PriceTicks, wantAsk)
	}
	if got[0].PriceTicks >= got[1].PriceTicks {
		t.Fatalf("quotes crossed: bid %d ask %d", got[0].PriceTicks, got[1].PriceTicks)
	}
}

func TestMarketMakerRepricesOnlyDriftedSide(t *testing.T) {
	m := newTestMaker(t)

	acct := accountWith(0,
		restingOrder("bid-1", domain.OrderSideBuy, 98, 0.01),
		restingOrder("ask-1", domain.OrderSideSell, 102.01, 0.01),
	)
	got := m.Decide(cycleIn(indicator.State{}, 100, 101, acct))
	if len(got) != 2 {
		t.Fatalf("got %d intents, want 2: %+v", len(got), got)
	}
	if got[0].Kind != domain.IntentCancel || got[0].OrderID != "bid-1" {
		t.Fatalf("cancel intent got %+v", got[0])
	}
	if got[1].Kind != domain.IntentPlace || got[1].Side != domain.OrderSideBuy ||
		got[1].PriceTicks != domain.TicksFromFloat(99) {
		t.Fatalf("replacement got %+v", got[1])
	}
}

func TestMarketMakerOverCapStopsQuoting(t *testing.T) {
	m := newTestMaker(t)

	got := m.Decide(cycleIn(indicator.State{}, 100, 101, accountWith(0.08)))
	if len(got) != 1 {
		t.Fatalf("got %d intents, want only the valve: %+v", len(got), got)
	}
	iv := got[0]
	if iv.Type != domain.OrderTypeMarket || !iv.ReduceOnly || iv.Side != domain.OrderSideSell {
		t.Fatalf("valve intent got %+v", iv)
	}
	if math.Abs(iv.Qty-0.03) > 1e-9 {
		t.Fatalf("valve qty got %v want 0.03", iv.Qty)
	}
}

func TestMarketMakerNeedsBothSides(t *testing.T) {
	m := newTestMaker(t)

	got := m.Decide(cycleIn(indicator.State{}, 100, 0, accountWith(0)))
	if len(got) != 0 {
		t.Fatalf("got %d intents on one-sided book, want 0: %+v", len(got), got)
	}
}

func TestMarketMakerDeclaresNoCandleFeed(t *testing.T) {
	m := newTestMaker(t)
	if m.Interval() != "" {
		t.Fatalf("interval got %q want empty", m.Interval())
	}
	if m.CandleLimit() != 0 {
		t.Fatalf("candle limit got %d want 0", m.CandleLimit())
	}
}
