package indicator

import "math"

// TrendDirection is the Supertrend's binary state.
type TrendDirection int8

const (
	TrendUp   TrendDirection = 1
	TrendDown TrendDirection = -1
)

func (d TrendDirection) String() string {
	if d == TrendUp {
		return "Up"
	}
	return "Down"
}

// ComputeSupertrend returns the trailing band line and direction series.
// Output starts at bar index `period` (the first bar with an ATR value), so
// both slices have len(closes)-period entries; an unusable window returns
// nil slices.
//
// While the trend persists the line ratchets with it: the final lower band
// only rises during an uptrend (max of basic lower and previous line) and
// the final upper band only falls during a downtrend (min of basic upper
// and previous line), so the stop never backs away from the trend. A close
// beyond the ratcheted band flips the direction and the line restarts from
// the flipped side's basic band.
func ComputeSupertrend(highs, lows, closes []float64, period int, multiplier float64) ([]float64, []TrendDirection) {
	atr := ComputeATR(highs, lows, closes, period)
	if len(atr) == 0 {
		return nil, nil
	}
	return supertrendFromATR(highs, lows, closes, atr, period, multiplier)
}

// supertrendFromATR runs the band recurrence over a precomputed ATR series.
func supertrendFromATR(highs, lows, closes, atr []float64, period int, multiplier float64) ([]float64, []TrendDirection) {
	offset := period
	m := len(closes) - offset
	line := make([]float64, m)
	dir := make([]TrendDirection, m)

	hl2 := (highs[offset] + lows[offset]) / 2
	upper := hl2 + multiplier*atr[0]
	lower := hl2 - multiplier*atr[0]
	switch c := closes[offset]; {
	case c > upper:
		dir[0] = TrendUp
	case c < lower:
		dir[0] = TrendDown
	case c >= hl2:
		dir[0] = TrendUp
	default:
		dir[0] = TrendDown
	}
	if dir[0] == TrendUp {
		line[0] = lower
	} else {
		line[0] = upper
	}

	for k := 1; k < m; k++ {
		i := offset + k
		hl2 := (highs[i] + lows[i]) / 2
		basicUpper := hl2 + multiplier*atr[k]
		basicLower := hl2 - multiplier*atr[k]

		finalUpper := basicUpper
		finalLower := basicLower
		if dir[k-1] == TrendUp {
			finalLower = math.Max(basicLower, line[k-1])
		} else {
			finalUpper = math.Min(basicUpper, line[k-1])
		}

		switch c := closes[i]; {
		case dir[k-1] == TrendDown && c > finalUpper:
			dir[k] = TrendUp
			line[k] = finalLower
		case dir[k-1] == TrendUp && c < finalLower:
			dir[k] = TrendDown
			line[k] = finalUpper
		default:
			dir[k] = dir[k-1]
			if dir[k] == TrendUp {
				line[k] = finalLower
			} else {
				line[k] = finalUpper
			}
		}
	}
	return line, dir
}
