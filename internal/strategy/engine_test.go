package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/indicator"
)

type fakeBook struct{ t domain.BookTicker }

func (f *fakeBook) BestBidAsk() domain.BookTicker { return f.t }

type fakeIndicator struct{ st indicator.State }

func (f *fakeIndicator) State() indicator.State { return f.st }

type fakeAccount struct{ snap domain.AccountSnapshot }

func (f *fakeAccount) Snapshot() domain.AccountSnapshot { return f.snap }

type captureSink struct{ events []domain.SignalEvent }

func (c *captureSink) PublishSignal(_ context.Context, ev domain.SignalEvent) {
	c.events = append(c.events, ev)
}

func newTestEngine(t *testing.T) (*Engine, *fakeBook, *fakeIndicator, *fakeAccount) {
	t.Helper()
	strat, err := NewSupertrend(testCfg(), testLogger())
	if err != nil {
		t.Fatalf("NewSupertrend: %v", err)
	}
	book := &fakeBook{t: tickerAt(100, 101)}
	indic := &fakeIndicator{st: readyState(indicator.TrendUp)}
	acct := &fakeAccount{snap: accountWith(0)}
	e := NewEngine(strat, book, indic, acct, testInstrument(), 10*time.Millisecond, testLogger())
	return e, book, indic, acct
}

func mustReceive(t *testing.T, e *Engine) []domain.OrderIntent {
	t.Helper()
	select {
	case batch := <-e.Intents():
		return batch
	default:
		t.Fatal("no intent batch emitted")
		return nil
	}
}

func TestEngineCycleEmitsBatch(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	e.cycle(ctx)
	batch := mustReceive(t, e)
	if len(batch) != 2 {
		t.Fatalf("got %d intents, want 2 (cancel-all plus entry): %+v", len(batch), batch)
	}
	if e.Cycles() != 1 {
		t.Fatalf("cycles got %d want 1", e.Cycles())
	}
}

func TestEnginePauseSuppressesIntents(t *testing.T) {
	e, _, indic, _ := newTestEngine(t)
	ctx := context.Background()

	e.cycle(ctx)
	mustReceive(t, e)

	e.Pause()
	if !e.Paused() {
		t.Fatal("engine should report paused")
	}
	indic.st = readyState(indicator.TrendDown)
	e.cycle(ctx)
	select {
	case batch := <-e.Intents():
		t.Fatalf("paused engine emitted %+v", batch)
	default:
	}

	// Signal tracking continued while paused.
	if ev, ok := e.LastSignal(); !ok || ev.Signal != domain.SignalShort {
		t.Fatalf("last signal got %+v ok=%v, want Short", ev, ok)
	}

	e.Resume()
	e.cycle(ctx)
	batch := mustReceive(t, e)
	if batch[0].Kind != domain.IntentCancelAll {
		t.Fatalf("flip after resume should lead with cancel-all, got %+v", batch[0])
	}
}

func TestEngineTracksSignalEvents(t *testing.T) {
	e, _, indic, _ := newTestEngine(t)
	sink := &captureSink{}
	e.AddSignalSink(sink)
	ctx := context.Background()

	e.cycle(ctx)
	e.cycle(ctx) // same direction, no new event
	indic.st = readyState(indicator.TrendDown)
	e.cycle(ctx)

	if len(sink.events) != 2 {
		t.Fatalf("sink got %d events, want 2", len(sink.events))
	}
	first, second := sink.events[0], sink.events[1]
	if first.Signal != domain.SignalLong || first.Previous != domain.SignalNone {
		t.Fatalf("first event got %+v", first)
	}
	if second.Signal != domain.SignalShort || second.Previous != domain.SignalLong {
		t.Fatalf("second event got %+v", second)
	}

	recent := e.RecentSignals(10)
	if len(recent) != 2 || recent[0].Signal != domain.SignalShort {
		t.Fatalf("recent signals got %+v, want newest first", recent)
	}
}

func TestEngineFlatten(t *testing.T) {
	e, _, _, acct := newTestEngine(t)

	acct.snap = accountWith(0.02)
	if n := e.Flatten(); n != 2 {
		t.Fatalf("Flatten got %d intents, want 2", n)
	}
	batch := mustReceive(t, e)
	if batch[0].Kind != domain.IntentCancelAll {
		t.Fatalf("intent 0 got %+v", batch[0])
	}
	closeOut := batch[1]
	if closeOut.Type != domain.OrderTypeMarket || closeOut.Side != domain.OrderSideSell || !closeOut.ReduceOnly {
		t.Fatalf("close-out intent got %+v", closeOut)
	}

	acct.snap = accountWith(0)
	if n := e.Flatten(); n != 1 {
		t.Fatalf("Flatten flat got %d intents, want 1", n)
	}
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for e.Cycles() == 0 {
		select {
		case <-deadline:
			t.Fatal("no cycle ran before deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
