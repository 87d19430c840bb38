package redis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), ClientConfig{Addr: mr.Addr(), PoolSize: 4})
	if err != nil {
		t.Fatalf("connect to test redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestLockManagerMutualExclusion(t *testing.T) {
	_, c := newTestClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, InstanceKey("BTCUSDT"), time.Minute)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := lm.Acquire(ctx, InstanceKey("BTCUSDT"), time.Minute); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("second acquire: want ErrLockHeld, got %v", err)
	}

	// A different symbol does not contend.
	unlockOther, err := lm.Acquire(ctx, InstanceKey("ETHUSDT"), time.Minute)
	if err != nil {
		t.Fatalf("acquire for other symbol: %v", err)
	}
	unlockOther()

	unlock()
	unlock() // second call is a no-op

	reacquired, err := lm.Acquire(ctx, InstanceKey("BTCUSDT"), time.Minute)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	reacquired()
}

func TestTickerCacheRoundTrip(t *testing.T) {
	_, c := newTestClient(t)
	tc := NewTickerCache(c)
	ctx := context.Background()

	in := domain.BookTicker{
		Symbol:   "BTCUSDT",
		BestBid:  domain.TicksFromFloat(50000.5),
		BidQty:   1.25,
		HasBid:   true,
		BestAsk:  domain.TicksFromFloat(50001),
		AskQty:   0.75,
		HasAsk:   true,
		Sequence: 42,
		At:       time.Unix(0, 1700000000000000000),
	}
	if err := tc.SetTicker(ctx, in); err != nil {
		t.Fatalf("set ticker: %v", err)
	}

	out, err := tc.GetTicker(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("get ticker: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestTickerCacheReplacesEmptiedSide(t *testing.T) {
	_, c := newTestClient(t)
	tc := NewTickerCache(c)
	ctx := context.Background()

	full := domain.BookTicker{
		Symbol:   "BTCUSDT",
		BestBid:  domain.TicksFromFloat(50000),
		BidQty:   1,
		HasBid:   true,
		BestAsk:  domain.TicksFromFloat(50001),
		AskQty:   1,
		HasAsk:   true,
		Sequence: 1,
		At:       time.Unix(0, 1700000000000000000),
	}
	if err := tc.SetTicker(ctx, full); err != nil {
		t.Fatalf("set full ticker: %v", err)
	}

	bidOnly := domain.BookTicker{
		Symbol:   "BTCUSDT",
		BestBid:  domain.TicksFromFloat(49999),
		BidQty:   2,
		HasBid:   true,
		Sequence: 2,
		At:       time.Unix(0, 1700000001000000000),
	}
	if err := tc.SetTicker(ctx, bidOnly); err != nil {
		t.Fatalf("set bid-only ticker: %v", err)
	}

	out, err := tc.GetTicker(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("get ticker: %v", err)
	}
	if out.HasAsk || out.BestAsk != 0 || out.AskQty != 0 {
		t.Fatalf("ask side should have been cleared, got %+v", out)
	}
	if !out.HasBid || out.BestBid != domain.TicksFromFloat(49999) {
		t.Fatalf("bid side lost, got %+v", out)
	}
}

func TestTickerCacheMissingSymbol(t *testing.T) {
	_, c := newTestClient(t)
	tc := NewTickerCache(c)

	if _, err := tc.GetTicker(context.Background(), "SOLUSDT"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestInstrumentCacheSetGetInvalidate(t *testing.T) {
	mr, c := newTestClient(t)
	ic := NewInstrumentCache(c)
	ctx := context.Background()

	in := domain.Instrument{
		Symbol:      "BTCUSDT",
		Category:    "linear",
		BaseCoin:    "BTC",
		QuoteCoin:   "USDT",
		TickSize:    domain.TicksFromFloat(0.1),
		QtyStep:     0.001,
		MinOrderQty: 0.001,
		MaxLeverage: 100,
	}
	if err := ic.Set(ctx, in); err != nil {
		t.Fatalf("set instrument: %v", err)
	}
	if ttl := mr.TTL("instrument:BTCUSDT"); ttl <= 0 {
		t.Fatalf("instrument key has no TTL, got %v", ttl)
	}

	out, err := ic.Get(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("get instrument: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}

	if err := ic.Invalidate(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := ic.Get(ctx, "BTCUSDT"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound after invalidate, got %v", err)
	}
}

func TestSignalBusStreamAppendRead(t *testing.T) {
	_, c := newTestClient(t)
	bus := NewSignalBus(c)
	ctx := context.Background()
	stream := SignalStream("BTCUSDT")

	msgs, err := bus.StreamRead(ctx, stream, "0", 10)
	if err != nil {
		t.Fatalf("read empty stream: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("empty stream returned %d messages", len(msgs))
	}

	if err := bus.StreamAppend(ctx, stream, []byte("one")); err != nil {
		t.Fatalf("append one: %v", err)
	}
	if err := bus.StreamAppend(ctx, stream, []byte("two")); err != nil {
		t.Fatalf("append two: %v", err)
	}

	msgs, err = bus.StreamRead(ctx, stream, "0", 10)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}
	if string(msgs[0].Payload) != "one" || string(msgs[1].Payload) != "two" {
		t.Fatalf("payload order wrong: %q, %q", msgs[0].Payload, msgs[1].Payload)
	}

	// Resuming from the first ID skips everything up to and including it.
	rest, err := bus.StreamRead(ctx, stream, msgs[0].ID, 10)
	if err != nil {
		t.Fatalf("resume read: %v", err)
	}
	if len(rest) != 1 || string(rest[0].Payload) != "two" {
		t.Fatalf("resume read want [two], got %v", rest)
	}
}

func TestSignalBusPublishSubscribe(t *testing.T) {
	_, c := newTestClient(t)
	bus := NewSignalBus(c)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, SignalChannel("BTCUSDT"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.Publish(ctx, SignalChannel("BTCUSDT"), []byte("flip")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-ch:
		if string(msg) != "flip" {
			t.Fatalf("want %q, got %q", "flip", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message within 2s")
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel not closed after cancel")
		}
	}
}

func TestSignalPublisherWritesChannelAndStream(t *testing.T) {
	_, c := newTestClient(t)
	bus := NewSignalBus(c)
	pub := NewSignalPublisher(bus, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := bus.Subscribe(ctx, SignalChannel("BTCUSDT"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev := domain.SignalEvent{
		ID:       "sig-1",
		Strategy: "supertrend",
		Symbol:   "BTCUSDT",
		Signal:   domain.SignalLong,
		Previous: domain.SignalShort,
		Price:    50000.5,
		ATR:      120.5,
		Line:     49500,
		Reason:   "trend flipped up",
		At:       time.Unix(1700000000, 0).UTC(),
	}
	pub.PublishSignal(ctx, ev)

	select {
	case payload := <-sub:
		var got domain.SignalEvent
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("unmarshal published event: %v", err)
		}
		if got.ID != "sig-1" || got.Signal != domain.SignalLong {
			t.Fatalf("published event mismatch: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no published event within 2s")
	}

	msgs, err := bus.StreamRead(ctx, SignalStream("BTCUSDT"), "0", 10)
	if err != nil {
		t.Fatalf("read signal stream: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("want 1 stream entry, got %d", len(msgs))
	}
	var logged domain.SignalEvent
	if err := json.Unmarshal(msgs[0].Payload, &logged); err != nil {
		t.Fatalf("unmarshal stream entry: %v", err)
	}
	if logged.ID != "sig-1" || logged.Previous != domain.SignalShort {
		t.Fatalf("stream entry mismatch: %+v", logged)
	}
}

func TestRateLimiterAllowThenDeny(t *testing.T) {
	_, c := newTestClient(t)
	rl := NewRateLimiter(c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := rl.Allow(ctx, "rest:order", 3, time.Minute)
		if err != nil {
			t.Fatalf("allow %d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("request %d should pass", i+1)
		}
	}

	allowed, err := rl.Allow(ctx, "rest:order", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if allowed {
		t.Fatal("4th request inside the window should be limited")
	}

	// Independent keys do not share a window.
	allowed, err = rl.Allow(ctx, "rest:cancel", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow other key: %v", err)
	}
	if !allowed {
		t.Fatal("different key should have its own window")
	}
}
