package book

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// ApplyResult reports what a delta application did. Gap means the sequence
// id jumped past lastApplied+1: the update still applied, but the feed
// should force a resubscribe to heal possibly missed deletions.
type ApplyResult struct {
	Applied bool
	Gap     bool
	Bids    int // entries applied to the bid side
	Asks    int // entries applied to the ask side
	Skipped int // entries dropped by per-entry validation
}

// Engine owns both sides of one instrument's book and reconciles the
// exchange snapshot/delta stream onto them. Every operation, read or write,
// takes the same mutex: a reader must never observe a side mid-reset or a
// heap mid-drain, and critical sections stay sub-millisecond at stream
// depth. Instantiated once per instrument.
type Engine struct {
	mu       sync.Mutex
	symbol   string
	bids     Store
	asks     Store
	lastSeq  uint64
	gapCount uint64
	updated  time.Time
	logger   *slog.Logger
}

// NewEngine builds an engine with both side stores using the named
// implementation ("skiplist" or "heap").
func NewEngine(symbol, impl string, logger *slog.Logger) (*Engine, error) {
	bids, err := NewStore(impl, true)
	if err != nil {
		return nil, err
	}
	asks, err := NewStore(impl, false)
	if err != nil {
		return nil, err
	}
	return &Engine{
		symbol: symbol,
		bids:   bids,
		asks:   asks,
		logger: logger.With(slog.String("component", "book"), slog.String("symbol", symbol)),
	}, nil
}

// parseEntry validates one [price, qty] wire pair. Returns ok=false for
// anything non-numeric, non-finite, or with price <= 0 or qty < 0.
func (e *Engine) parseEntry(entry []string) (domain.PriceTicks, float64, bool) {
	if len(entry) < 2 {
		return 0, 0, false
	}
	price, err := domain.ParsePrice(entry[0])
	if err != nil || price <= 0 {
		return 0, 0, false
	}
	qty, err := domain.ParseQty(entry[1])
	if err != nil || qty < 0 || math.IsInf(qty, 0) || math.IsNaN(qty) {
		return 0, 0, false
	}
	return price, qty, true
}

// ApplySnapshot discards both sides entirely and re-seeds them from the
// snapshot, then records its sequence id. A structurally empty message is
// rejected wholesale with prior state retained; an invalid entry skips only
// itself.
func (e *Engine) ApplySnapshot(u domain.BookUpdate) error {
	if u.Type != domain.BookSnapshot {
		return fmt.Errorf("book: apply snapshot: got %q update: %w", u.Type, domain.ErrMalformedMessage)
	}
	if u.Bids == nil && u.Asks == nil {
		return fmt.Errorf("book: apply snapshot: no sides present: %w", domain.ErrMalformedMessage)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.bids.Clear()
	e.asks.Clear()
	now := time.Now()
	e.seedSide(e.bids, u.Bids, now)
	e.seedSide(e.asks, u.Asks, now)
	e.lastSeq = u.Sequence
	e.updated = u.At
	if e.updated.IsZero() {
		e.updated = now
	}
	e.logger.Debug("snapshot applied",
		slog.Uint64("seq", u.Sequence),
		slog.Int("bids", e.bids.Len()),
		slog.Int("asks", e.asks.Len()),
	)
	return nil
}

// ApplyDelta applies an incremental update. A sequence id at or below the
// last applied one is discarded whole as a stale duplicate (idempotent
// no-op). Quantity 0 deletes the price, quantity > 0 upserts a fresh level;
// the sequence id advances unconditionally once entries are processed, even
// when individual entries were skipped.
func (e *Engine) ApplyDelta(u domain.BookUpdate) (ApplyResult, error) {
	if u.Type != domain.BookDelta {
		return ApplyResult{}, fmt.Errorf("book: apply delta: got %q update: %w", u.Type, domain.ErrMalformedMessage)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if u.Sequence <= e.lastSeq {
		e.logger.Debug("stale delta discarded",
			slog.Uint64("seq", u.Sequence),
			slog.Uint64("last_seq", e.lastSeq),
		)
		return ApplyResult{}, nil
	}

	res := ApplyResult{Applied: true}
	if e.lastSeq > 0 && u.Sequence > e.lastSeq+1 {
		res.Gap = true
		e.gapCount++
		e.logger.Warn("sequence gap",
			slog.Uint64("last_seq", e.lastSeq),
			slog.Uint64("seq", u.Sequence),
			slog.Uint64("gaps_total", e.gapCount),
		)
	}

	now := time.Now()
	res.Bids = e.applyEntries(e.bids, u.Bids, now, &res.Skipped)
	res.Asks = e.applyEntries(e.asks, u.Asks, now, &res.Skipped)

	e.lastSeq = u.Sequence
	e.updated = u.At
	if e.updated.IsZero() {
		e.updated = now
	}
	return res, nil
}

// seedSide inserts valid snapshot entries; qty 0 entries carry no level and
// are skipped like invalid ones.
func (e *Engine) seedSide(side Store, entries [][]string, now time.Time) {
	for _, entry := range entries {
		price, qty, ok := e.parseEntry(entry)
		if !ok || qty == 0 {
			e.logger.Warn("snapshot entry skipped", slog.Any("entry", entry))
			continue
		}
		side.Insert(domain.PriceLevel{Price: price, Qty: qty, UpdatedAt: now})
	}
}

func (e *Engine) applyEntries(side Store, entries [][]string, now time.Time, skipped *int) int {
	applied := 0
	for _, entry := range entries {
		price, qty, ok := e.parseEntry(entry)
		if !ok {
			e.logger.Warn("delta entry skipped", slog.Any("entry", entry))
			*skipped++
			continue
		}
		if qty == 0 {
			side.Delete(price)
		} else {
			side.Insert(domain.PriceLevel{Price: price, Qty: qty, UpdatedAt: now})
		}
		applied++
	}
	return applied
}

// BestBidAsk returns the current top of book.
func (e *Engine) BestBidAsk() domain.BookTicker {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := domain.BookTicker{
		Symbol:   e.symbol,
		Sequence: e.lastSeq,
		At:       e.updated,
	}
	if best, ok := e.bids.Best(); ok {
		t.BestBid, t.BidQty, t.HasBid = best.Price, best.Qty, true
	}
	if best, ok := e.asks.Best(); ok {
		t.BestAsk, t.AskQty, t.HasAsk = best.Price, best.Qty, true
	}
	return t
}

// Depth returns up to n levels per side, best-first.
func (e *Engine) Depth(n int) (bids, asks []domain.PriceLevel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bids.TopN(n), e.asks.TopN(n)
}

// LastSequence returns the last applied sequence id.
func (e *Engine) LastSequence() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeq
}

// GapCount returns how many sequence gaps have been observed.
func (e *Engine) GapCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gapCount
}

// Counts returns the number of resting levels per side.
func (e *Engine) Counts() (bids, asks int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bids.Len(), e.asks.Len()
}
