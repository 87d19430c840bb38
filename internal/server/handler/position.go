package handler

import (
	"net/http"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// AccountSource provides the account view. Implemented by the account state.
type AccountSource interface {
	Snapshot() domain.AccountSnapshot
}

// PositionHandler serves the current position and wallet view.
type PositionHandler struct {
	account AccountSource
}

// NewPositionHandler creates a PositionHandler over the given account source.
func NewPositionHandler(account AccountSource) *PositionHandler {
	return &PositionHandler{account: account}
}

// positionResponse renders the account snapshot.
type positionResponse struct {
	PositionSize  float64   `json:"position_size"`
	PositionSide  string    `json:"position_side"`
	AvgEntryPrice float64   `json:"avg_entry_price"`
	WalletBalance float64   `json:"wallet_balance"`
	TotalEquity   float64   `json:"total_equity"`
	ActiveOrders  int       `json:"active_orders"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GetPosition returns the current signed position and wallet balances.
// GET /api/v1/position
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	snap := h.account.Snapshot()
	writeJSON(w, http.StatusOK, positionResponse{
		PositionSize:  snap.PositionSize,
		PositionSide:  string(snap.PositionSide),
		AvgEntryPrice: snap.AvgEntryPrice,
		WalletBalance: snap.WalletBalance,
		TotalEquity:   snap.TotalEquity,
		ActiveOrders:  len(snap.ActiveOrders),
		UpdatedAt:     snap.UpdatedAt,
	})
}
