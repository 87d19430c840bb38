package domain

import "time"

// Candle is one OHLCV bar. Bars arrive time-ascending; a bar with the same
// OpenTime as the newest held bar is still forming and replaces it in place.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Turnover float64
}

// HL2 is the bar midpoint used by band indicators.
func (c Candle) HL2() float64 {
	return (c.High + c.Low) / 2
}
