package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// tickerPublishTimeout bounds a single fan-out so a stalled Redis connection
// cannot back up the stream reader behind the publisher.
const tickerPublishTimeout = time.Second

// TickerChannel returns the Pub/Sub channel carrying top-of-book updates for
// a symbol.
func TickerChannel(symbol string) string { return "tickers:" + symbol }

// tickerEvent is the wire shape pushed to Pub/Sub subscribers. Prices go out
// in display terms; a nil side means that side of the book is empty.
type tickerEvent struct {
	Symbol   string   `json:"symbol"`
	Bid      *float64 `json:"bid"`
	BidQty   float64  `json:"bid_qty,omitempty"`
	Ask      *float64 `json:"ask"`
	AskQty   float64  `json:"ask_qty,omitempty"`
	Spread   float64  `json:"spread"`
	Sequence uint64   `json:"sequence"`
	At       string   `json:"at"`
}

// TickerPublisher mirrors top-of-book updates into the ticker cache and the
// Pub/Sub channel consumed by WebSocket clients. It satisfies the market
// feed's sink contract, which must not block the stream reader, so failures
// are logged and swallowed.
type TickerPublisher struct {
	cache  *TickerCache
	bus    *SignalBus
	logger *slog.Logger
}

// NewTickerPublisher creates a TickerPublisher. cache or bus may be nil to
// disable that destination.
func NewTickerPublisher(cache *TickerCache, bus *SignalBus, logger *slog.Logger) *TickerPublisher {
	return &TickerPublisher{
		cache:  cache,
		bus:    bus,
		logger: logger.With(slog.String("component", "ticker_publisher")),
	}
}

// PublishTicker writes the ticker to the cache and the Pub/Sub channel.
func (p *TickerPublisher) PublishTicker(t domain.BookTicker) {
	ctx, cancel := context.WithTimeout(context.Background(), tickerPublishTimeout)
	defer cancel()

	if p.cache != nil {
		if err := p.cache.SetTicker(ctx, t); err != nil {
			p.logger.Warn("cache ticker", slog.String("error", err.Error()))
		}
	}
	if p.bus == nil {
		return
	}

	ev := tickerEvent{
		Symbol:   t.Symbol,
		Spread:   t.Spread(),
		Sequence: t.Sequence,
		At:       t.At.UTC().Format(time.RFC3339Nano),
	}
	if t.HasBid {
		bid := t.BestBid.Float64()
		ev.Bid = &bid
		ev.BidQty = t.BidQty
	}
	if t.HasAsk {
		ask := t.BestAsk.Float64()
		ev.Ask = &ask
		ev.AskQty = t.AskQty
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("marshal ticker event", slog.String("error", err.Error()))
		return
	}
	if err := p.bus.Publish(ctx, TickerChannel(t.Symbol), payload); err != nil {
		p.logger.Warn("publish ticker", slog.String("error", err.Error()))
	}
}
