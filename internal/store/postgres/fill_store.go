package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// FillStore persists executions reported by the venue. It backs the fill
// processor's journal; the exec id is the primary key, so stream replays
// after a reconnect insert each fill exactly once.
type FillStore struct {
	pool *pgxpool.Pool
}

// NewFillStore creates a new FillStore backed by the given connection pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

// InsertFill records one execution. Duplicate exec ids are silently skipped
// via ON CONFLICT DO NOTHING.
func (s *FillStore) InsertFill(ctx context.Context, e domain.Execution) error {
	const query = `
		INSERT INTO fills (
			exec_id, order_id, symbol, side,
			qty, price, fee, is_maker, executed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9
		) ON CONFLICT (exec_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		e.ExecID, e.OrderID, e.Symbol, string(e.Side),
		e.Qty, e.Price, e.Fee, e.IsMaker, e.At,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert fill %s: %w", e.ExecID, err)
	}
	return nil
}

const fillSelectCols = `exec_id, order_id, symbol, side,
	qty, price, fee, is_maker, executed_at`

func scanFillRows(rows pgx.Rows) ([]domain.Execution, error) {
	var fills []domain.Execution
	for rows.Next() {
		var e domain.Execution
		var side string
		if err := rows.Scan(
			&e.ExecID, &e.OrderID, &e.Symbol, &side,
			&e.Qty, &e.Price, &e.Fee, &e.IsMaker, &e.At,
		); err != nil {
			return nil, err
		}
		e.Side = domain.OrderSide(side)
		fills = append(fills, e)
	}
	return fills, rows.Err()
}

// ListByOrder returns every fill of one order, oldest first.
func (s *FillStore) ListByOrder(ctx context.Context, orderID string) ([]domain.Execution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+fillSelectCols+` FROM fills
		 WHERE order_id = $1 ORDER BY executed_at ASC`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills by order: %w", err)
	}
	defer rows.Close()

	fills, err := scanFillRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan fills by order: %w", err)
	}
	return fills, nil
}

// GetLastTimestamp returns the most recent execution time, or the zero time
// if no fills exist.
func (s *FillStore) GetLastTimestamp(ctx context.Context) (time.Time, error) {
	var ts *time.Time
	err := s.pool.QueryRow(ctx,
		"SELECT MAX(executed_at) FROM fills").Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: get last fill timestamp: %w", err)
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return *ts, nil
}

// ListBefore returns all fills executed strictly before the given time
// (for archiving), oldest first.
func (s *FillStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Execution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+fillSelectCols+` FROM fills
		 WHERE executed_at < $1 ORDER BY executed_at ASC`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills before: %w", err)
	}
	defer rows.Close()
	return scanFillRows(rows)
}

// DeleteBefore deletes all fills executed before the given time. Returns the
// number deleted.
func (s *FillStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fills WHERE executed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete fills before: %w", err)
	}
	return tag.RowsAffected(), nil
}
