package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// SignalStore implements domain.SignalJournal using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a new SignalStore backed by the given connection pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Insert records one signal flip. Duplicate ids are silently skipped so a
// replayed event cannot double-journal.
func (s *SignalStore) Insert(ctx context.Context, ev domain.SignalEvent) error {
	const query = `
		INSERT INTO signals (
			id, strategy, symbol, signal, previous,
			price, atr, line, reason, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		ev.ID, ev.Strategy, ev.Symbol,
		string(ev.Signal), string(ev.Previous),
		ev.Price, ev.ATR, ev.Line, ev.Reason, ev.At,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert signal %s: %w", ev.ID, err)
	}
	return nil
}

const signalSelectCols = `id, strategy, symbol, signal, previous,
	price, atr, line, reason, created_at`

func scanSignalRows(rows pgx.Rows) ([]domain.SignalEvent, error) {
	var events []domain.SignalEvent
	for rows.Next() {
		var ev domain.SignalEvent
		var signal, previous string
		if err := rows.Scan(
			&ev.ID, &ev.Strategy, &ev.Symbol, &signal, &previous,
			&ev.Price, &ev.ATR, &ev.Line, &ev.Reason, &ev.At,
		); err != nil {
			return nil, err
		}
		ev.Signal = domain.TradingSignal(signal)
		ev.Previous = domain.TradingSignal(previous)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListRecent returns the newest signal flips for a symbol.
func (s *SignalStore) ListRecent(ctx context.Context, symbol string, limit int) ([]domain.SignalEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+signalSelectCols+` FROM signals
		 WHERE symbol = $1 ORDER BY created_at DESC LIMIT $2`,
		symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent signals: %w", err)
	}
	defer rows.Close()

	events, err := scanSignalRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent signals: %w", err)
	}
	return events, nil
}

// ListBefore returns all signals recorded strictly before the given time
// (for archiving), oldest first.
func (s *SignalStore) ListBefore(ctx context.Context, before time.Time) ([]domain.SignalEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+signalSelectCols+` FROM signals
		 WHERE created_at < $1 ORDER BY created_at ASC`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals before: %w", err)
	}
	defer rows.Close()
	return scanSignalRows(rows)
}

// DeleteBefore deletes all signals recorded before the given time. Returns
// the number deleted.
func (s *SignalStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM signals WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete signals before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.SignalJournal = (*SignalStore)(nil)

// SignalRecorder adapts the store to the decision engine's sink contract,
// which returns no error, so journal failures are logged and swallowed.
type SignalRecorder struct {
	store  *SignalStore
	logger *slog.Logger
}

// NewSignalRecorder creates a SignalRecorder over the given store.
func NewSignalRecorder(store *SignalStore, logger *slog.Logger) *SignalRecorder {
	return &SignalRecorder{
		store:  store,
		logger: logger.With(slog.String("component", "signal_recorder")),
	}
}

// PublishSignal journals the event.
func (r *SignalRecorder) PublishSignal(ctx context.Context, ev domain.SignalEvent) {
	if err := r.store.Insert(ctx, ev); err != nil {
		r.logger.Error("journal signal failed",
			slog.String("signal_id", ev.ID),
			slog.String("error", err.Error()),
		)
	}
}
