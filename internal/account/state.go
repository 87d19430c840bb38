// Package account maintains the live trading-account view: wallet, position
// and working orders, written by the private feed and read by decision
// cycles through immutable snapshots.
package account

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// State is the single-writer account store for one symbol. The private feed
// applies venue pushes; everyone else reads through Snapshot, which copies,
// so no caller can observe a half-applied update.
type State struct {
	symbol string
	logger *slog.Logger

	mu        sync.RWMutex
	wallet    domain.WalletUpdate
	position  domain.PositionUpdate
	orders    map[string]domain.OrderRecord
	fillCount uint64
	updated   time.Time
}

// NewState creates an empty account state for the symbol.
func NewState(symbol string, logger *slog.Logger) *State {
	return &State{
		symbol:   symbol,
		logger:   logger.With(slog.String("component", "account")),
		position: domain.PositionUpdate{Symbol: symbol, Side: domain.PositionSideFlat},
		orders:   make(map[string]domain.OrderRecord),
	}
}

// ApplyOrder upserts one order record. Terminal statuses drop the order from
// the active map; pushes for other symbols are ignored.
func (s *State) ApplyOrder(rec domain.OrderRecord) {
	if rec.Symbol != s.symbol {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Status.Active() {
		s.orders[rec.OrderID] = rec
	} else {
		delete(s.orders, rec.OrderID)
	}
	s.updated = time.Now().UTC()

	s.logger.Debug("order applied",
		slog.String("order_id", rec.OrderID),
		slog.String("status", string(rec.Status)),
		slog.Int("active", len(s.orders)),
	)
}

// SeedOrders replaces the whole active-order map, dropping anything the venue
// no longer reports. Startup and reconnect reconciliation use it.
func (s *State) SeedOrders(orders []domain.OrderRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = make(map[string]domain.OrderRecord, len(orders))
	for _, rec := range orders {
		if rec.Symbol != s.symbol || !rec.Status.Active() {
			continue
		}
		s.orders[rec.OrderID] = rec
	}
	s.updated = time.Now().UTC()

	s.logger.Info("orders reconciled", slog.Int("active", len(s.orders)))
}

// ApplyPosition replaces the held position.
func (s *State) ApplyPosition(p domain.PositionUpdate) {
	if p.Symbol != s.symbol {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.position = p
	s.updated = time.Now().UTC()

	s.logger.Debug("position applied",
		slog.String("side", string(p.Side)),
		slog.Float64("size", p.Size),
		slog.Float64("entry", p.EntryPrice),
	)
}

// ApplyWallet replaces the wallet view.
func (s *State) ApplyWallet(w domain.WalletUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wallet = w
	s.updated = time.Now().UTC()
}

// ApplyExecution records that a fill happened. Order quantities and the
// position itself arrive authoritatively on their own streams; the state only
// keeps the running count.
func (s *State) ApplyExecution(e domain.Execution) {
	if e.Symbol != s.symbol {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fillCount++
	s.updated = time.Now().UTC()
}

// Snapshot returns a deep copy of the current account view. PositionSize is
// signed: positive long, negative short.
func (s *State) Snapshot() domain.AccountSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make(map[string]domain.OrderRecord, len(s.orders))
	for id, rec := range s.orders {
		orders[id] = rec
	}

	signed := s.position.Size
	switch s.position.Side {
	case domain.PositionSideShort:
		signed = -signed
	case domain.PositionSideFlat:
		signed = 0
	}

	return domain.AccountSnapshot{
		WalletBalance: s.wallet.WalletBalance,
		TotalEquity:   s.wallet.TotalEquity,
		PositionSize:  signed,
		PositionSide:  s.position.Side,
		AvgEntryPrice: s.position.EntryPrice,
		ActiveOrders:  orders,
		UpdatedAt:     s.updated,
	}
}

// Orders returns the active orders sorted oldest first.
func (s *State) Orders() []domain.OrderRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.OrderRecord, 0, len(s.orders))
	for _, rec := range s.orders {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// FillCount returns how many executions have been recorded.
func (s *State) FillCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fillCount
}
