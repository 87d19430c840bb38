package account

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func order(id string, status domain.OrderStatus) domain.OrderRecord {
	return domain.OrderRecord{
		OrderID:   id,
		Symbol:    "BTCUSDT",
		Side:      domain.OrderSideBuy,
		Type:      domain.OrderTypeLimit,
		Qty:       0.01,
		Status:    status,
		CreatedAt: time.Now(),
	}
}

func TestApplyOrderLifecycle(t *testing.T) {
	s := NewState("BTCUSDT", testLogger())

	s.ApplyOrder(order("ord-1", domain.OrderStatusNew))
	if got := len(s.Snapshot().ActiveOrders); got != 1 {
		t.Fatalf("active orders got %d want 1", got)
	}

	s.ApplyOrder(order("ord-1", domain.OrderStatusPartiallyFilled))
	snap := s.Snapshot()
	if snap.ActiveOrders["ord-1"].Status != domain.OrderStatusPartiallyFilled {
		t.Fatalf("status got %q", snap.ActiveOrders["ord-1"].Status)
	}

	s.ApplyOrder(order("ord-1", domain.OrderStatusFilled))
	if got := len(s.Snapshot().ActiveOrders); got != 0 {
		t.Fatalf("filled order still tracked, active=%d", got)
	}
}

func TestApplyOrderIgnoresOtherSymbols(t *testing.T) {
	s := NewState("BTCUSDT", testLogger())

	rec := order("ord-1", domain.OrderStatusNew)
	rec.Symbol = "ETHUSDT"
	s.ApplyOrder(rec)

	if got := len(s.Snapshot().ActiveOrders); got != 0 {
		t.Fatalf("foreign-symbol order tracked, active=%d", got)
	}
}

func TestSeedOrdersReplacesMap(t *testing.T) {
	s := NewState("BTCUSDT", testLogger())
	s.ApplyOrder(order("stale-1", domain.OrderStatusNew))

	s.SeedOrders([]domain.OrderRecord{
		order("fresh-1", domain.OrderStatusNew),
		order("fresh-2", domain.OrderStatusCancelled), // terminal, must not seed
	})

	snap := s.Snapshot()
	if len(snap.ActiveOrders) != 1 {
		t.Fatalf("active orders got %d want 1", len(snap.ActiveOrders))
	}
	if _, ok := snap.ActiveOrders["fresh-1"]; !ok {
		t.Fatal("seeded order missing")
	}
	if _, ok := snap.ActiveOrders["stale-1"]; ok {
		t.Fatal("stale order survived reconciliation")
	}
}

func TestSnapshotSignsPosition(t *testing.T) {
	tests := []struct {
		name string
		pos  domain.PositionUpdate
		want float64
	}{
		{
			name: "long is positive",
			pos:  domain.PositionUpdate{Symbol: "BTCUSDT", Side: domain.PositionSideLong, Size: 0.02},
			want: 0.02,
		},
		{
			name: "short is negative",
			pos:  domain.PositionUpdate{Symbol: "BTCUSDT", Side: domain.PositionSideShort, Size: 0.02},
			want: -0.02,
		},
		{
			name: "flat is zero",
			pos:  domain.PositionUpdate{Symbol: "BTCUSDT", Side: domain.PositionSideFlat, Size: 0.02},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState("BTCUSDT", testLogger())
			s.ApplyPosition(tt.pos)
			if got := s.Snapshot().PositionSize; got != tt.want {
				t.Fatalf("position size got %v want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := NewState("BTCUSDT", testLogger())
	s.ApplyOrder(order("ord-1", domain.OrderStatusNew))

	snap := s.Snapshot()
	delete(snap.ActiveOrders, "ord-1")

	if got := len(s.Snapshot().ActiveOrders); got != 1 {
		t.Fatalf("mutating a snapshot reached the state, active=%d", got)
	}
}

func TestOrdersSortedOldestFirst(t *testing.T) {
	s := NewState("BTCUSDT", testLogger())

	newer := order("ord-b", domain.OrderStatusNew)
	newer.CreatedAt = time.Now()
	older := order("ord-a", domain.OrderStatusNew)
	older.CreatedAt = newer.CreatedAt.Add(-time.Minute)

	s.ApplyOrder(newer)
	s.ApplyOrder(older)

	got := s.Orders()
	if len(got) != 2 || got[0].OrderID != "ord-a" || got[1].OrderID != "ord-b" {
		t.Fatalf("order sort got %+v", got)
	}
}

func TestApplyWalletAndExecution(t *testing.T) {
	s := NewState("BTCUSDT", testLogger())

	s.ApplyWallet(domain.WalletUpdate{TotalEquity: 1000.5, WalletBalance: 990})
	snap := s.Snapshot()
	if snap.TotalEquity != 1000.5 || snap.WalletBalance != 990 {
		t.Fatalf("wallet got %v/%v", snap.TotalEquity, snap.WalletBalance)
	}

	s.ApplyExecution(domain.Execution{ExecID: "e-1", Symbol: "BTCUSDT"})
	s.ApplyExecution(domain.Execution{ExecID: "e-2", Symbol: "ETHUSDT"}) // ignored
	if got := s.FillCount(); got != 1 {
		t.Fatalf("fill count got %d want 1", got)
	}
}
