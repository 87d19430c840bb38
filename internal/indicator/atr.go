// Package indicator derives volatility and trend state from candle history:
// Wilder-smoothed ATR and the Supertrend trailing band, recomputed over the
// full window on every bar.
package indicator

import "math"

// ComputeATR returns the Wilder-smoothed average true range series.
// It needs at least period+1 bars; anything less returns nil. The result
// has len(closes)-period entries, the first aligned to bar index `period`.
func ComputeATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	if period <= 0 || n < period+1 || len(highs) != n || len(lows) != n {
		return nil
	}

	tr := make([]float64, n-1)
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i-1] = math.Max(hl, math.Max(hc, lc))
	}

	atr := make([]float64, len(tr)-period+1)
	var sum float64
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	atr[0] = sum / float64(period)
	for i := period; i < len(tr); i++ {
		atr[i-period+1] = (atr[i-period]*float64(period-1) + tr[i]) / float64(period)
	}
	return atr
}
