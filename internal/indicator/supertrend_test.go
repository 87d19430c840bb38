package indicator

import (
	"math"
	"testing"
)

// Bars with high = close+1, low = close-1: ramp up, crash, recover. Hand
// tracing period=2 mult=1 gives two flips with the band ratcheting into
// each trend.
func trendReversalFixture() (highs, lows, closes []float64) {
	closes = []float64{10, 11, 12, 13, 14, 7, 6, 5, 12, 13}
	highs = make([]float64, len(closes))
	lows = make([]float64, len(closes))
	for i, c := range closes {
		highs[i] = c + 1
		lows[i] = c - 1
	}
	return highs, lows, closes
}

func TestSupertrendReversalFixture(t *testing.T) {
	highs, lows, closes := trendReversalFixture()

	line, dir := ComputeSupertrend(highs, lows, closes, 2, 1)

	if want := len(closes) - 2; len(line) != want || len(dir) != want {
		t.Fatalf("output lengths line=%d dir=%d, want %d", len(line), len(dir), want)
	}

	wantDir := []TrendDirection{TrendUp, TrendUp, TrendUp, TrendDown, TrendDown, TrendDown, TrendUp, TrendUp}
	wantLine := []float64{10, 11, 12, 12, 9.5, 7.75, 6.625, 9.3125}
	for i := range wantDir {
		if dir[i] != wantDir[i] {
			t.Errorf("dir[%d]=%v, want %v", i, dir[i], wantDir[i])
		}
		if math.Abs(line[i]-wantLine[i]) > 1e-12 {
			t.Errorf("line[%d]=%v, want %v", i, line[i], wantLine[i])
		}
	}
}

func TestSupertrendOutputLength(t *testing.T) {
	for _, tc := range []struct {
		bars   int
		period int
		want   int
	}{
		{bars: 20, period: 5, want: 15},
		{bars: 8, period: 7, want: 1},
		{bars: 7, period: 7, want: 0}, // insufficient
	} {
		h := make([]float64, tc.bars)
		l := make([]float64, tc.bars)
		c := make([]float64, tc.bars)
		for i := range h {
			v := 100 + float64(i)
			h[i], l[i], c[i] = v+1, v-1, v
		}
		line, dir := ComputeSupertrend(h, l, c, tc.period, 3)
		if len(line) != tc.want || len(dir) != tc.want {
			t.Errorf("bars=%d period=%d: lengths line=%d dir=%d, want %d",
				tc.bars, tc.period, len(line), len(dir), tc.want)
		}
	}
}

// While the trend persists the line must never move against it.
func TestSupertrendLineRatchets(t *testing.T) {
	// Uptrend with pullbacks that stay above the band.
	closes := []float64{100, 102, 104, 103, 106, 105, 108, 110, 109, 112}
	highs := make([]float64, len(closes))
	lows := make([]float64, len(closes))
	for i, c := range closes {
		highs[i] = c + 2
		lows[i] = c - 2
	}

	line, dir := ComputeSupertrend(highs, lows, closes, 3, 1)
	if len(line) == 0 {
		t.Fatal("empty output")
	}
	for i := 1; i < len(line); i++ {
		if dir[i] != dir[i-1] {
			continue
		}
		if dir[i] == TrendUp && line[i] < line[i-1] {
			t.Errorf("line dropped during uptrend at %d: %v -> %v", i, line[i-1], line[i])
		}
		if dir[i] == TrendDown && line[i] > line[i-1] {
			t.Errorf("line rose during downtrend at %d: %v -> %v", i, line[i-1], line[i])
		}
	}
}

func TestSupertrendFirstBarTieBreak(t *testing.T) {
	// Constant series: ATR 0, bands collapse onto hl2, close == hl2 == band.
	// close >= hl2 tie-breaks Up.
	h := []float64{100, 100, 100, 100}
	l := []float64{100, 100, 100, 100}
	c := []float64{100, 100, 100, 100}

	_, dir := ComputeSupertrend(h, l, c, 2, 3)
	if len(dir) != 2 {
		t.Fatalf("len=%d, want 2", len(dir))
	}
	if dir[0] != TrendUp {
		t.Errorf("dir[0]=%v, want Up on tie", dir[0])
	}
}
