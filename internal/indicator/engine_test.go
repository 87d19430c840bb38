package indicator

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

func bar(openMin int, c float64) domain.Candle {
	return domain.Candle{
		OpenTime: time.Date(2025, 1, 1, 0, openMin, 0, 0, time.UTC),
		Open:     c,
		High:     c + 1,
		Low:      c - 1,
		Close:    c,
	}
}

func TestEngineRingSemantics(t *testing.T) {
	e := NewEngine(2, 1, 4, testLogger())

	// Append path.
	for i, c := range []float64{10, 11, 12} {
		e.Update(bar(i, c))
	}
	if e.WindowLen() != 3 {
		t.Fatalf("window=%d, want 3", e.WindowLen())
	}

	// Same open time replaces in place (still-forming bar).
	e.Update(bar(2, 99))
	if e.WindowLen() != 3 {
		t.Errorf("window=%d after replace, want 3", e.WindowLen())
	}
	if w := e.Window(); w[2].Close != 99 {
		t.Errorf("newest close=%v after replace, want 99", w[2].Close)
	}

	// Older-than-newest bars are ignored.
	e.Update(bar(0, 55))
	if w := e.Window(); w[0].Close != 10 {
		t.Errorf("oldest close=%v after stale update, want 10", w[0].Close)
	}

	// Capacity eviction drops the oldest.
	e.Update(bar(3, 13))
	e.Update(bar(4, 14))
	if e.WindowLen() != 4 {
		t.Fatalf("window=%d at capacity, want 4", e.WindowLen())
	}
	if w := e.Window(); w[0].Close != 11 {
		t.Errorf("oldest close=%v after eviction, want 11", w[0].Close)
	}
}

func TestEngineReadiness(t *testing.T) {
	e := NewEngine(3, 2, 10, testLogger())

	for i, c := range []float64{10, 11, 12} {
		if st := e.Update(bar(i, c)); st.Ready {
			t.Fatalf("ready after %d bars, want not ready", i+1)
		}
	}
	st := e.Update(bar(3, 13))
	if !st.Ready {
		t.Fatal("not ready after period+1 bars")
	}
	if st.ATR <= 0 {
		t.Errorf("ATR=%v, want > 0", st.ATR)
	}
	if st.Direction != TrendUp {
		t.Errorf("direction=%v on rising series, want Up", st.Direction)
	}
	if st.LastClose != 13 {
		t.Errorf("lastClose=%v, want 13", st.LastClose)
	}
}

func TestEngineSeed(t *testing.T) {
	e := NewEngine(2, 1, 5, testLogger())

	bars := make([]domain.Candle, 8)
	for i := range bars {
		bars[i] = bar(i, 100+float64(i))
	}
	e.Seed(bars)

	if e.WindowLen() != 5 {
		t.Fatalf("window=%d after seed beyond capacity, want 5", e.WindowLen())
	}
	if w := e.Window(); w[0].Close != 103 {
		t.Errorf("oldest close=%v, want 103 (newest bars kept)", w[0].Close)
	}
	if st := e.State(); !st.Ready {
		t.Error("not ready after seeding enough bars")
	}
}

func TestEngineStateMatchesBatchComputation(t *testing.T) {
	e := NewEngine(2, 1, 16, testLogger())
	closes := []float64{10, 11, 12, 13, 14, 7, 6, 5, 12, 13}
	highs := make([]float64, len(closes))
	lows := make([]float64, len(closes))
	for i, c := range closes {
		highs[i], lows[i] = c+1, c-1
		e.Update(bar(i, c))
	}

	line, dir := ComputeSupertrend(highs, lows, closes, 2, 1)
	st := e.State()
	if st.Line != line[len(line)-1] {
		t.Errorf("engine line=%v, batch line=%v", st.Line, line[len(line)-1])
	}
	if st.Direction != dir[len(dir)-1] {
		t.Errorf("engine dir=%v, batch dir=%v", st.Direction, dir[len(dir)-1])
	}
}
