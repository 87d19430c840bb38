// Package executor turns decision-cycle intent batches into venue commands,
// owning deduplication, bounded retry and the post-cancel settle pause.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// VenueClient is the interface through which the executor reaches the
// exchange. It is implemented by the platform layer.
type VenueClient interface {
	PlaceOrder(ctx context.Context, intent domain.OrderIntent) (domain.OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAllOrders(ctx context.Context, symbol string) (int, error)
}

const (
	defaultDedupTTL        = 2 * time.Minute
	defaultCleanupInterval = 30 * time.Second
	defaultSettleDelay     = 300 * time.Millisecond
	defaultMaxAttempts     = 3
	defaultRetryDelay      = 500 * time.Millisecond
	drainTimeout           = 5 * time.Second
)

// Executor reads intent batches from a channel and executes each batch in
// order against the venue. Placements are retried with increasing delay up
// to a bounded attempt count; exhaustion is logged, never fatal. A cancel-all
// followed by more work in the same batch is separated by the settle delay,
// giving the venue time to release the cancelled orders.
type Executor struct {
	batches <-chan []domain.OrderIntent
	venue   VenueClient
	dedup   *Dedup
	journal domain.OrderJournal
	logger  *slog.Logger

	settleDelay     time.Duration
	maxAttempts     int
	retryDelay      time.Duration
	cleanupInterval time.Duration

	placed    atomic.Uint64
	cancelled atomic.Uint64
	failed    atomic.Uint64
}

// NewExecutor creates an Executor that reads intent batches from batches and
// executes them through venue.
func NewExecutor(batches <-chan []domain.OrderIntent, venue VenueClient, logger *slog.Logger) *Executor {
	return &Executor{
		batches:         batches,
		venue:           venue,
		dedup:           NewDedup(defaultDedupTTL),
		logger:          logger.With(slog.String("component", "executor")),
		settleDelay:     defaultSettleDelay,
		maxAttempts:     defaultMaxAttempts,
		retryDelay:      defaultRetryDelay,
		cleanupInterval: defaultCleanupInterval,
	}
}

// Run starts the executor's main loop. It processes batches until the
// context is cancelled, at which point it drains any batches already
// buffered in the channel and returns.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("executor started")
	defer e.logger.Info("executor stopped")

	cleanupTicker := time.NewTicker(e.cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.drain()
			return ctx.Err()

		case batch, ok := <-e.batches:
			if !ok {
				// Channel closed; shut down.
				return nil
			}
			e.runBatch(ctx, batch)

		case <-cleanupTicker.C:
			e.dedup.Cleanup()
		}
	}
}

// runBatch executes one decision cycle's intents in order.
func (e *Executor) runBatch(ctx context.Context, batch []domain.OrderIntent) {
	for i, intent := range batch {
		e.process(ctx, intent)

		// Give the venue time to release cancelled orders before the batch
		// continues with replacements.
		if intent.Kind == domain.IntentCancelAll && i < len(batch)-1 && e.settleDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.settleDelay):
			}
		}
	}
}

// process handles a single intent through dedup and venue execution.
func (e *Executor) process(ctx context.Context, intent domain.OrderIntent) {
	log := e.logger.With(
		slog.String("intent_id", intent.ID),
		slog.String("kind", string(intent.Kind)),
		slog.String("symbol", intent.Symbol),
		slog.String("reason", intent.Reason),
	)

	// 1. Deduplication.
	if e.dedup.IsDuplicate(intent.ID) {
		log.Debug("intent deduplicated, skipping")
		return
	}

	// 2. Execute by kind.
	switch intent.Kind {
	case domain.IntentCancelAll:
		e.cancelAll(ctx, intent.Symbol, log)

	case domain.IntentCancel:
		e.cancel(ctx, intent, log)

	case domain.IntentPlace:
		e.place(ctx, intent, log)

	default:
		log.Warn("unknown intent kind, skipping")
	}
}

// place submits an order with bounded retry and increasing delay.
func (e *Executor) place(ctx context.Context, intent domain.OrderIntent, log *slog.Logger) {
	log = log.With(
		slog.String("side", string(intent.Side)),
		slog.String("type", string(intent.Type)),
		slog.Float64("qty", intent.Qty),
		slog.Float64("price", intent.Price()),
	)

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		result, err := e.venue.PlaceOrder(ctx, intent)
		if err == nil && result.Success {
			e.placed.Add(1)
			log.Info("order placed",
				slog.String("order_id", result.OrderID),
				slog.Int("attempt", attempt),
			)
			e.journalPlacement(ctx, intent, result.OrderID, log)
			return
		}

		retryable := err != nil || result.ShouldRetry
		if err != nil {
			log.Error("order placement failed",
				slog.String("error", err.Error()),
				slog.Int("attempt", attempt),
			)
		} else {
			log.Warn("order rejected",
				slog.String("message", result.Message),
				slog.Bool("should_retry", result.ShouldRetry),
				slog.Int("attempt", attempt),
			)
		}

		if !retryable || attempt == e.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * e.retryDelay):
		}
	}

	e.failed.Add(1)
	log.Error("order abandoned after retries")
}

// cancel revokes one resting order with bounded retry.
func (e *Executor) cancel(ctx context.Context, intent domain.OrderIntent, log *slog.Logger) {
	log = log.With(slog.String("order_id", intent.OrderID))

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err := e.venue.CancelOrder(ctx, intent.Symbol, intent.OrderID)
		if err == nil {
			e.cancelled.Add(1)
			log.Info("order cancelled", slog.Int("attempt", attempt))
			e.journalCancel(ctx, intent.OrderID, log)
			return
		}
		if errors.Is(err, domain.ErrNotFound) {
			// Already filled or cancelled; the goal state is reached.
			log.Debug("cancel target already gone", slog.Int("attempt", attempt))
			return
		}
		log.Warn("cancel failed",
			slog.String("error", err.Error()),
			slog.Int("attempt", attempt),
		)
		if attempt == e.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * e.retryDelay):
		}
	}

	e.failed.Add(1)
	log.Error("cancel abandoned after retries")
}

// cancelAll revokes every working order for the symbol with bounded retry.
func (e *Executor) cancelAll(ctx context.Context, symbol string, log *slog.Logger) {
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		n, err := e.venue.CancelAllOrders(ctx, symbol)
		if err == nil {
			e.cancelled.Add(uint64(n))
			log.Info("cancelled all working orders",
				slog.Int("count", n),
				slog.Int("attempt", attempt),
			)
			e.journalCancelAll(ctx, symbol, log)
			return
		}
		log.Warn("cancel-all failed",
			slog.String("error", err.Error()),
			slog.Int("attempt", attempt),
		)
		if attempt == e.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * e.retryDelay):
		}
	}

	e.failed.Add(1)
	log.Error("cancel-all abandoned after retries")
}

// CancelAll revokes every working order for the symbol outside the batch
// flow. The shutdown sequence calls it after the decision loop has stopped.
func (e *Executor) CancelAll(ctx context.Context, symbol string) error {
	n, err := e.venue.CancelAllOrders(ctx, symbol)
	if err != nil {
		e.logger.Error("shutdown cancel-all failed", slog.String("error", err.Error()))
		return err
	}
	e.cancelled.Add(uint64(n))
	e.logger.Info("shutdown cancel-all", slog.Int("count", n))
	e.journalCancelAll(ctx, symbol, e.logger)
	return nil
}

// journalPlacement records a confirmed placement. Journal failures never fail
// the intent; the venue already accepted the order.
func (e *Executor) journalPlacement(ctx context.Context, intent domain.OrderIntent, orderID string, log *slog.Logger) {
	if e.journal == nil {
		return
	}
	rec := domain.OrderRecord{
		OrderID:       orderID,
		ClientOrderID: intent.ID,
		Symbol:        intent.Symbol,
		Side:          intent.Side,
		Type:          intent.Type,
		PriceTicks:    intent.PriceTicks,
		Qty:           intent.Qty,
		Status:        domain.OrderStatusNew,
		ReduceOnly:    intent.ReduceOnly,
		CreatedAt:     intent.CreatedAt,
	}
	if err := e.journal.Create(ctx, rec, intent.Reason); err != nil {
		log.Error("journal placement failed", slog.String("error", err.Error()))
	}
}

func (e *Executor) journalCancel(ctx context.Context, orderID string, log *slog.Logger) {
	if e.journal == nil {
		return
	}
	err := e.journal.UpdateStatus(ctx, orderID, domain.OrderStatusCancelled)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Error("journal cancel failed", slog.String("error", err.Error()))
	}
}

func (e *Executor) journalCancelAll(ctx context.Context, symbol string, log *slog.Logger) {
	if e.journal == nil {
		return
	}
	if _, err := e.journal.MarkOpenCancelled(ctx, symbol); err != nil {
		log.Error("journal cancel-all failed", slog.String("error", err.Error()))
	}
}

// drain processes any batches already buffered in the channel after context
// cancellation. This ensures in-flight decisions are not silently dropped.
func (e *Executor) drain() {
	for {
		select {
		case batch, ok := <-e.batches:
			if !ok {
				return
			}
			e.logger.Warn("draining intent batch after shutdown",
				slog.Int("count", len(batch)),
			)
			// We use a short-lived context for draining so we don't hang
			// indefinitely on external calls during shutdown.
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			e.runBatch(drainCtx, batch)
			cancel()
		default:
			return
		}
	}
}

// Stats returns cumulative placed, cancelled and failed command counts.
func (e *Executor) Stats() (placed, cancelled, failed uint64) {
	return e.placed.Load(), e.cancelled.Load(), e.failed.Load()
}

// SetSettleDelay changes the pause inserted after an in-batch cancel-all.
// Zero disables the pause. Must be called before Run.
func (e *Executor) SetSettleDelay(d time.Duration) {
	e.settleDelay = d
}

// SetRetryPolicy changes the bounded retry parameters. Must be called before
// Run.
func (e *Executor) SetRetryPolicy(maxAttempts int, delay time.Duration) {
	if maxAttempts > 0 {
		e.maxAttempts = maxAttempts
	}
	if delay > 0 {
		e.retryDelay = delay
	}
}

// SetDedupTTL replaces the dedup instance with a new one using the given TTL.
// This is useful for testing or runtime reconfiguration.
func (e *Executor) SetDedupTTL(ttl time.Duration) {
	e.dedup = NewDedup(ttl)
}

// SetCleanupInterval changes how often the dedup map is garbage-collected.
// Must be called before Run.
func (e *Executor) SetCleanupInterval(d time.Duration) {
	e.cleanupInterval = d
}

// SetJournal attaches an order journal. Nil (the default) disables
// journaling. Must be called before Run.
func (e *Executor) SetJournal(j domain.OrderJournal) {
	e.journal = j
}
