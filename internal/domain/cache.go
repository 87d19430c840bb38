package domain

import (
	"context"
	"time"
)

// TickerCache publishes the latest top-of-book so dashboards and other
// processes can read it without holding a market-data subscription.
type TickerCache interface {
	SetTicker(ctx context.Context, t BookTicker) error
	GetTicker(ctx context.Context, symbol string) (BookTicker, error)
}

// InstrumentCache holds venue instrument metadata between restarts so startup
// can skip the REST round trip while the cached entry is fresh.
type InstrumentCache interface {
	Set(ctx context.Context, inst Instrument) error
	Get(ctx context.Context, symbol string) (Instrument, error)
	Invalidate(ctx context.Context, symbol string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
