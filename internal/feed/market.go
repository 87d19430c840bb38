// Package feed connects the venue streams to the in-process engines: market
// data into the book and indicator engines, account data into the account
// state. Feeds own resynchronization after sequence gaps and reconnects.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/book"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/indicator"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/platform/bybit"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/retry"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/strategy"
)

// resyncTimeout bounds the REST work done after a reconnect.
const resyncTimeout = 15 * time.Second

// Startup fetches retry before the feed gives up and halts the process.
const (
	bootstrapAttempts   = 3
	bootstrapRetryDelay = 500 * time.Millisecond
)

// MarketStream is the slice of the public stream the market feed drives.
// *bybit.PublicStream implements it.
type MarketStream interface {
	Connect(ctx context.Context) error
	SubscribeOrderbook(depth int, symbol string) error
	SubscribeKline(interval, symbol string) error
	ResubscribeOrderbook(depth int, symbol string) error
	OnBookUpdate(bybit.BookUpdateHandler)
	OnCandle(bybit.CandleHandler)
	OnReconnect(func())
	Close() error
}

// CandleSource backfills historical bars. Implemented by the REST client.
type CandleSource interface {
	Kline(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
}

// MarketFeedConfig sizes the market subscriptions. An empty Interval disables
// candles entirely; the indicator engine then never reports ready.
type MarketFeedConfig struct {
	Symbol      string
	BookDepth   int
	Interval    string
	CandleLimit int
}

// TickerSink receives the current top-of-book after each applied push, at
// most once per tickerPublishEvery. Implementations must not block.
type TickerSink interface {
	PublishTicker(t domain.BookTicker)
}

// tickerPublishEvery throttles top-of-book fan-out to external sinks; the
// in-process decision engine still sees every applied push.
const tickerPublishEvery = 250 * time.Millisecond

// MarketFeed routes orderbook pushes into the book engine and closed bars
// into the indicator engine. A sequence gap forces an orderbook resubscribe,
// which makes the venue re-send a snapshot; a transport reconnect re-seeds
// the candle window over REST.
type MarketFeed struct {
	cfg     MarketFeedConfig
	stream  MarketStream
	candles CandleSource
	book    *book.Engine
	indic   *indicator.Engine
	engine  *strategy.Engine
	logger  *slog.Logger

	tickers     TickerSink
	lastPublish time.Time

	resubscribes atomic.Uint64
}

// NewMarketFeed creates a market feed. candles may be nil when cfg.Interval
// is empty.
func NewMarketFeed(
	cfg MarketFeedConfig,
	stream MarketStream,
	candles CandleSource,
	bookEngine *book.Engine,
	indicEngine *indicator.Engine,
	stratEngine *strategy.Engine,
	logger *slog.Logger,
) *MarketFeed {
	if cfg.BookDepth <= 0 {
		cfg.BookDepth = 50
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = 200
	}
	return &MarketFeed{
		cfg:     cfg,
		stream:  stream,
		candles: candles,
		book:    bookEngine,
		indic:   indicEngine,
		engine:  stratEngine,
		logger:  logger.With(slog.String("component", "market_feed")),
	}
}

// SetTickerSink attaches an external top-of-book consumer. Must be called
// before Run.
func (f *MarketFeed) SetTickerSink(s TickerSink) {
	f.tickers = s
}

// Run wires the handlers, connects, backfills the candle window and
// subscribes, then blocks until ctx is cancelled. The stream reconnects
// itself; Run only returns on shutdown or a startup failure.
func (f *MarketFeed) Run(ctx context.Context) error {
	f.stream.OnBookUpdate(f.handleBook)
	if f.cfg.Interval != "" {
		f.stream.OnCandle(f.handleCandle)
	}
	f.stream.OnReconnect(f.resync)

	if err := f.stream.Connect(ctx); err != nil {
		return fmt.Errorf("feed: connect market stream: %w", err)
	}
	defer f.stream.Close()

	// Seed history before live bars start arriving: a bar delivered in
	// between simply replaces its seeded twin in the window.
	if err := retry.Do(ctx, bootstrapAttempts, bootstrapRetryDelay, f.backfill); err != nil {
		return fmt.Errorf("feed: candle backfill: %w", err)
	}

	if err := f.stream.SubscribeOrderbook(f.cfg.BookDepth, f.cfg.Symbol); err != nil {
		return fmt.Errorf("feed: subscribe orderbook: %w", err)
	}
	if f.cfg.Interval != "" {
		if err := f.stream.SubscribeKline(f.cfg.Interval, f.cfg.Symbol); err != nil {
			return fmt.Errorf("feed: subscribe kline: %w", err)
		}
	}
	f.logger.Info("market feed started",
		slog.String("symbol", f.cfg.Symbol),
		slog.Int("depth", f.cfg.BookDepth),
		slog.String("interval", f.cfg.Interval),
	)

	<-ctx.Done()
	return ctx.Err()
}

// handleBook applies one push to the book engine and forwards the fresh
// top-of-book to the decision engine.
func (f *MarketFeed) handleBook(u domain.BookUpdate) {
	switch u.Type {
	case domain.BookSnapshot:
		if err := f.book.ApplySnapshot(u); err != nil {
			f.logger.Warn("snapshot rejected", slog.String("error", err.Error()))
			return
		}
	case domain.BookDelta:
		res, err := f.book.ApplyDelta(u)
		if err != nil {
			f.logger.Warn("delta rejected", slog.String("error", err.Error()))
			return
		}
		if res.Gap {
			f.recoverGap()
		}
		if !res.Applied {
			return // stale duplicate, book unchanged
		}
	default:
		return
	}
	top := f.book.BestBidAsk()
	f.engine.OnBook(top)

	if f.tickers != nil {
		if now := time.Now(); now.Sub(f.lastPublish) >= tickerPublishEvery {
			f.lastPublish = now
			f.tickers.PublishTicker(top)
		}
	}
}

// handleCandle feeds closed bars into the indicator window. Forming bars are
// ignored so the trend math only ever sees bar closes.
func (f *MarketFeed) handleCandle(c domain.Candle, confirmed bool) {
	if !confirmed {
		return
	}
	st := f.indic.Update(c)
	f.engine.OnCandle(c)
	f.logger.Debug("bar closed",
		slog.Time("open_time", c.OpenTime),
		slog.Float64("close", c.Close),
		slog.Bool("indicator_ready", st.Ready),
	)
}

// recoverGap forces a fresh snapshot by resubscribing the depth topic.
func (f *MarketFeed) recoverGap() {
	f.resubscribes.Add(1)
	if err := f.stream.ResubscribeOrderbook(f.cfg.BookDepth, f.cfg.Symbol); err != nil {
		f.logger.Error("orderbook resubscribe failed", slog.String("error", err.Error()))
		return
	}
	f.logger.Info("orderbook resubscribed after gap",
		slog.Uint64("resubscribes", f.resubscribes.Load()),
	)
}

// backfill seeds the indicator window from REST history.
func (f *MarketFeed) backfill(ctx context.Context) error {
	if f.cfg.Interval == "" || f.candles == nil {
		return nil
	}
	bars, err := f.candles.Kline(ctx, f.cfg.Symbol, f.cfg.Interval, f.cfg.CandleLimit)
	if err != nil {
		return fmt.Errorf("feed: backfill klines: %w", err)
	}
	f.indic.Seed(bars)
	f.logger.Info("candles backfilled", slog.Int("bars", len(bars)))
	return nil
}

// resync runs after a transport reconnect. The orderbook heals through the
// replayed subscription's snapshot; the candle window may have holes, so it
// is re-seeded from REST.
func (f *MarketFeed) resync() {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()
	if err := f.backfill(ctx); err != nil {
		f.logger.Error("post-reconnect backfill failed", slog.String("error", err.Error()))
	}
}

// Resubscribes returns how many gap recoveries the feed has performed.
func (f *MarketFeed) Resubscribes() uint64 {
	return f.resubscribes.Load()
}
