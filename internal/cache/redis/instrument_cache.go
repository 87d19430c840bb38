package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// Instrument filters change rarely (exchange announcements, not ticks), so an
// hour of staleness is acceptable in exchange for skipping the REST fetch on
// most restarts.
const instrumentTTL = time.Hour

// InstrumentCache implements domain.InstrumentCache using Redis hashes with
// JSON-serialized Instrument data.
//
// Key schema:
//
//	instrument:{symbol} - hash with field "data" containing JSON
type InstrumentCache struct {
	rdb *redis.Client
}

// NewInstrumentCache creates an InstrumentCache backed by the given Client.
func NewInstrumentCache(c *Client) *InstrumentCache {
	return &InstrumentCache{rdb: c.Underlying()}
}

func instrumentKey(symbol string) string { return "instrument:" + symbol }

// Set stores an Instrument in the cache with a 1-hour TTL.
func (ic *InstrumentCache) Set(ctx context.Context, inst domain.Instrument) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("redis: marshal instrument %s: %w", inst.Symbol, err)
	}

	key := instrumentKey(inst.Symbol)

	pipe := ic.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, instrumentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set instrument %s: %w", inst.Symbol, err)
	}
	return nil
}

// Get retrieves an Instrument by symbol from the cache.
// It returns domain.ErrNotFound when the key does not exist.
func (ic *InstrumentCache) Get(ctx context.Context, symbol string) (domain.Instrument, error) {
	data, err := ic.rdb.HGet(ctx, instrumentKey(symbol), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Instrument{}, domain.ErrNotFound
		}
		return domain.Instrument{}, fmt.Errorf("redis: get instrument %s: %w", symbol, err)
	}

	var inst domain.Instrument
	if err := json.Unmarshal(data, &inst); err != nil {
		return domain.Instrument{}, fmt.Errorf("redis: unmarshal instrument %s: %w", symbol, err)
	}
	return inst, nil
}

// Invalidate removes an Instrument from the cache, forcing the next startup
// to fetch fresh filters from the venue.
func (ic *InstrumentCache) Invalidate(ctx context.Context, symbol string) error {
	if err := ic.rdb.Del(ctx, instrumentKey(symbol)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate instrument %s: %w", symbol, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.InstrumentCache = (*InstrumentCache)(nil)
