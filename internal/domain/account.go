package domain

import "time"

// PositionSide is the direction of the held position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "Long"
	PositionSideShort PositionSide = "Short"
	PositionSideFlat  PositionSide = "Flat"
)

// AccountSnapshot is the read-only account view handed to a decision cycle.
// PositionSize is signed: positive long, negative short.
type AccountSnapshot struct {
	WalletBalance float64
	TotalEquity   float64
	PositionSize  float64
	PositionSide  PositionSide
	AvgEntryPrice float64
	ActiveOrders  map[string]OrderRecord // keyed by venue order id
	UpdatedAt     time.Time
}

// OpenQtyBySide sums resting entry quantity (non-reduce-only, still active)
// for one side. Decision engines use it to enforce the per-side entry cap.
func (a AccountSnapshot) OpenQtyBySide(side OrderSide) float64 {
	var total float64
	for _, o := range a.ActiveOrders {
		if o.Side == side && !o.ReduceOnly && o.Status.Active() {
			total += o.Qty - o.FilledQty
		}
	}
	return total
}

// EntryOrdersBySide returns the resting entry orders for one side.
func (a AccountSnapshot) EntryOrdersBySide(side OrderSide) []OrderRecord {
	var out []OrderRecord
	for _, o := range a.ActiveOrders {
		if o.Side == side && !o.ReduceOnly && o.Status.Active() {
			out = append(out, o)
		}
	}
	return out
}

// PositionUpdate is a venue push event describing the current position.
type PositionUpdate struct {
	Symbol     string
	Size       float64 // unsigned venue size
	Side       PositionSide
	EntryPrice float64
	At         time.Time
}

// WalletUpdate is a venue push event describing account equity.
type WalletUpdate struct {
	AccountType   string
	TotalEquity   float64
	WalletBalance float64
	At            time.Time
}

// Execution is one fill of one order.
type Execution struct {
	ExecID  string
	OrderID string
	Symbol  string
	Side    OrderSide
	Qty     float64
	Price   float64
	Fee     float64
	IsMaker bool
	At      time.Time
}
