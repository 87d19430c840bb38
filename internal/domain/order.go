package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType is the execution style.
type OrderType string

const (
	OrderTypeLimit  OrderType = "Limit"
	OrderTypeMarket OrderType = "Market"
)

// OrderStatus tracks the venue-side order lifecycle. The string values are
// the venue's own status names as delivered on the private order stream.
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "Created"
	OrderStatusNew             OrderStatus = "New"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusUntriggered     OrderStatus = "Untriggered"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCancelled       OrderStatus = "Cancelled"
	OrderStatusRejected        OrderStatus = "Rejected"
)

// Active reports whether the order still rests on the venue.
func (s OrderStatus) Active() bool {
	switch s {
	case OrderStatusCreated, OrderStatusNew, OrderStatusPartiallyFilled, OrderStatusUntriggered:
		return true
	}
	return false
}

// OrderRecord is one tracked order in the account's active-order map.
type OrderRecord struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Type          OrderType
	PriceTicks    PriceTicks // 0 for market orders
	Qty           float64
	FilledQty     float64
	Status        OrderStatus
	ReduceOnly    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Price returns the display price from fixed-point ticks.
func (o OrderRecord) Price() float64 {
	return o.PriceTicks.Float64()
}

// IntentKind is the kind of order-management action a decision engine emits.
type IntentKind string

const (
	IntentPlace     IntentKind = "place"
	IntentCancel    IntentKind = "cancel"
	IntentCancelAll IntentKind = "cancel_all"
)

// OrderIntent is one order-management command produced by a decision cycle.
// Intents in a batch execute in order; the executor owns retry and dedup.
type OrderIntent struct {
	ID         string // UUID, doubles as the client order id for placements
	Kind       IntentKind
	Symbol     string
	Side       OrderSide
	Type       OrderType
	PriceTicks PriceTicks // 0 for market orders
	Qty        float64
	ReduceOnly bool
	OrderID    string // target for IntentCancel
	Reason     string
	CreatedAt  time.Time
}

// Price returns the display price from fixed-point ticks.
func (i OrderIntent) Price() float64 {
	return i.PriceTicks.Float64()
}

// OrderResult wraps the venue response after a placement attempt.
type OrderResult struct {
	Success     bool
	OrderID     string
	Message     string
	ShouldRetry bool
}
