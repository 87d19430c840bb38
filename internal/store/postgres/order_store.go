package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// OrderStore implements domain.OrderJournal using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create records a placed order. Replays of the same venue order id update
// the row instead of erroring, so a retried journal write stays idempotent.
func (s *OrderStore) Create(ctx context.Context, rec domain.OrderRecord, reason string) error {
	const query = `
		INSERT INTO orders (
			order_id, client_order_id, symbol, side, order_type,
			price_ticks, price, qty, filled_qty, reduce_only,
			status, reason, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, NOW()
		) ON CONFLICT (order_id) DO UPDATE SET
			status = EXCLUDED.status,
			filled_qty = EXCLUDED.filled_qty,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		rec.OrderID, rec.ClientOrderID, rec.Symbol,
		string(rec.Side), string(rec.Type),
		int64(rec.PriceTicks), rec.Price(),
		rec.Qty, rec.FilledQty, rec.ReduceOnly,
		string(rec.Status), reason, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", rec.OrderID, err)
	}
	return nil
}

// UpdateStatus changes the status of a journaled order.
// It returns domain.ErrNotFound when no row matches the venue order id.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE order_id = $2`,
		string(status), orderID)
	if err != nil {
		return fmt.Errorf("postgres: update order status %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkOpenCancelled flips every still-working order for the symbol to
// Cancelled. It backs the cancel-all path, where the venue does not return
// the ids it revoked.
func (s *OrderStore) MarkOpenCancelled(ctx context.Context, symbol string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = 'Cancelled', updated_at = NOW()
		 WHERE symbol = $1 AND status IN ('Created', 'New', 'PartiallyFilled', 'Untriggered')`,
		symbol)
	if err != nil {
		return 0, fmt.Errorf("postgres: mark open orders cancelled %s: %w", symbol, err)
	}
	return tag.RowsAffected(), nil
}

const orderSelectCols = `order_id, client_order_id, symbol, side, order_type,
	price_ticks, qty, filled_qty, reduce_only, status, created_at, updated_at`

func scanOrderRows(rows pgx.Rows) ([]domain.OrderRecord, error) {
	var orders []domain.OrderRecord
	for rows.Next() {
		var rec domain.OrderRecord
		var side, orderType, status string
		var ticks int64
		if err := rows.Scan(
			&rec.OrderID, &rec.ClientOrderID, &rec.Symbol, &side, &orderType,
			&ticks, &rec.Qty, &rec.FilledQty, &rec.ReduceOnly, &status,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rec.Side = domain.OrderSide(side)
		rec.Type = domain.OrderType(orderType)
		rec.Status = domain.OrderStatus(status)
		rec.PriceTicks = domain.PriceTicks(ticks)
		orders = append(orders, rec)
	}
	return orders, rows.Err()
}

// ListRecent returns the newest journaled orders for a symbol.
func (s *OrderStore) ListRecent(ctx context.Context, symbol string, limit int) ([]domain.OrderRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE symbol = $1 ORDER BY created_at DESC LIMIT $2`,
		symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent orders: %w", err)
	}
	return orders, nil
}

// ListBefore returns all orders created strictly before the given time
// (for archiving), oldest first.
func (s *OrderStore) ListBefore(ctx context.Context, before time.Time) ([]domain.OrderRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE created_at < $1 ORDER BY created_at ASC`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders before: %w", err)
	}
	defer rows.Close()
	return scanOrderRows(rows)
}

// DeleteBefore deletes all orders created before the given time. Returns the
// number deleted.
func (s *OrderStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete orders before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.OrderJournal = (*OrderStore)(nil)
