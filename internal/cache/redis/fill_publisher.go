package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// FillChannel is the pub/sub channel carrying executions for a symbol.
func FillChannel(symbol string) string {
	return "fills:" + symbol
}

const fillPublishTimeout = time.Second

// fillEvent is the wire form of an execution on the bus.
type fillEvent struct {
	ExecID  string  `json:"exec_id"`
	OrderID string  `json:"order_id"`
	Symbol  string  `json:"symbol"`
	Side    string  `json:"side"`
	Qty     float64 `json:"qty"`
	Price   float64 `json:"price"`
	Fee     float64 `json:"fee"`
	IsMaker bool    `json:"is_maker"`
	At      string  `json:"at"`
}

// FillPublisher mirrors executions onto the bus so dashboards see fills the
// moment they land. Postgres stays the durable record; a publish failure is
// logged and dropped.
type FillPublisher struct {
	bus    *SignalBus
	logger *slog.Logger
}

func NewFillPublisher(bus *SignalBus, logger *slog.Logger) *FillPublisher {
	return &FillPublisher{
		bus:    bus,
		logger: logger.With(slog.String("component", "fill_publisher")),
	}
}

// PublishFill sends one execution to the symbol's fill channel.
func (p *FillPublisher) PublishFill(ctx context.Context, e domain.Execution) error {
	payload, err := json.Marshal(fillEvent{
		ExecID:  e.ExecID,
		OrderID: e.OrderID,
		Symbol:  e.Symbol,
		Side:    string(e.Side),
		Qty:     e.Qty,
		Price:   e.Price,
		Fee:     e.Fee,
		IsMaker: e.IsMaker,
		At:      time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, fillPublishTimeout)
	defer cancel()
	if err := p.bus.Publish(pubCtx, FillChannel(e.Symbol), payload); err != nil {
		p.logger.Warn("fill publish failed",
			slog.String("exec_id", e.ExecID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}
