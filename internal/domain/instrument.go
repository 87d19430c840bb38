package domain

// Instrument carries the venue metadata the decision engines need: the
// smallest price increment and the quantity constraints for sizing.
type Instrument struct {
	Symbol      string
	Category    string // "linear", "inverse", "spot"
	BaseCoin    string
	QuoteCoin   string
	TickSize    PriceTicks
	QtyStep     float64
	MinOrderQty float64
	MaxLeverage float64
}

// RoundPrice snaps a tick price onto the instrument's price grid, toward
// zero. A zero TickSize leaves the price untouched.
func (i Instrument) RoundPrice(p PriceTicks) PriceTicks {
	if i.TickSize <= 0 {
		return p
	}
	return p - p%i.TickSize
}
