package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// TickerCache implements domain.TickerCache using Redis hashes.
// Each symbol's top-of-book is stored as a hash at key "ticker:{symbol}" with
// fields "bid", "bid_qty", "ask", "ask_qty", "seq" and "ts" (Unix nanosecond
// timestamp). An empty side simply has no fields, so the write replaces the
// whole hash rather than merging into it.
type TickerCache struct {
	rdb *redis.Client
}

// NewTickerCache creates a TickerCache backed by the given Client.
func NewTickerCache(c *Client) *TickerCache {
	return &TickerCache{rdb: c.Underlying()}
}

func tickerKey(symbol string) string {
	return "ticker:" + symbol
}

// SetTicker stores the latest top-of-book for a symbol. DEL and HSET run in a
// transaction so a side that emptied out does not leave stale fields behind.
func (tc *TickerCache) SetTicker(ctx context.Context, t domain.BookTicker) error {
	key := tickerKey(t.Symbol)
	fields := map[string]interface{}{
		"seq": strconv.FormatUint(t.Sequence, 10),
		"ts":  strconv.FormatInt(t.At.UnixNano(), 10),
	}
	if t.HasBid {
		fields["bid"] = strconv.FormatInt(int64(t.BestBid), 10)
		fields["bid_qty"] = strconv.FormatFloat(t.BidQty, 'f', -1, 64)
	}
	if t.HasAsk {
		fields["ask"] = strconv.FormatInt(int64(t.BestAsk), 10)
		fields["ask_qty"] = strconv.FormatFloat(t.AskQty, 'f', -1, 64)
	}

	pipe := tc.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set ticker %s: %w", t.Symbol, err)
	}
	return nil
}

// GetTicker retrieves the latest top-of-book for a symbol.
// It returns domain.ErrNotFound when the key does not exist.
func (tc *TickerCache) GetTicker(ctx context.Context, symbol string) (domain.BookTicker, error) {
	key := tickerKey(symbol)
	vals, err := tc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.BookTicker{}, fmt.Errorf("redis: get ticker %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.BookTicker{}, domain.ErrNotFound
	}

	t := domain.BookTicker{Symbol: symbol}

	if seqStr, ok := vals["seq"]; ok {
		seq, err := strconv.ParseUint(seqStr, 10, 64)
		if err != nil {
			return domain.BookTicker{}, fmt.Errorf("redis: parse ticker seq %s: %w", symbol, err)
		}
		t.Sequence = seq
	}
	if tsStr, ok := vals["ts"]; ok {
		tsNano, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return domain.BookTicker{}, fmt.Errorf("redis: parse ticker ts %s: %w", symbol, err)
		}
		t.At = time.Unix(0, tsNano)
	}

	if bidStr, ok := vals["bid"]; ok {
		ticks, err := strconv.ParseInt(bidStr, 10, 64)
		if err != nil {
			return domain.BookTicker{}, fmt.Errorf("redis: parse ticker bid %s: %w", symbol, err)
		}
		t.BestBid = domain.PriceTicks(ticks)
		t.HasBid = true
		if qtyStr, ok := vals["bid_qty"]; ok {
			qty, err := strconv.ParseFloat(qtyStr, 64)
			if err != nil {
				return domain.BookTicker{}, fmt.Errorf("redis: parse ticker bid_qty %s: %w", symbol, err)
			}
			t.BidQty = qty
		}
	}
	if askStr, ok := vals["ask"]; ok {
		ticks, err := strconv.ParseInt(askStr, 10, 64)
		if err != nil {
			return domain.BookTicker{}, fmt.Errorf("redis: parse ticker ask %s: %w", symbol, err)
		}
		t.BestAsk = domain.PriceTicks(ticks)
		t.HasAsk = true
		if qtyStr, ok := vals["ask_qty"]; ok {
			qty, err := strconv.ParseFloat(qtyStr, 64)
			if err != nil {
				return domain.BookTicker{}, fmt.Errorf("redis: parse ticker ask_qty %s: %w", symbol, err)
			}
			t.AskQty = qty
		}
	}

	return t, nil
}

// Compile-time interface check.
var _ domain.TickerCache = (*TickerCache)(nil)
