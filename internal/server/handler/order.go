package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// OrderSource provides the set of orders currently resting on the venue.
// Implemented by the account state.
type OrderSource interface {
	Orders() []domain.OrderRecord
}

// OrderHandler serves order inspection endpoints. Order placement is owned
// by the decision engine; the API only reads.
type OrderHandler struct {
	live    OrderSource
	journal domain.OrderJournal // optional, for history queries
	symbol  string
	logger  *slog.Logger
}

// NewOrderHandler creates an OrderHandler. journal may be nil, in which case
// history queries return 404.
func NewOrderHandler(live OrderSource, journal domain.OrderJournal, symbol string, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		live:    live,
		journal: journal,
		symbol:  symbol,
		logger:  logHandler(logger, "orders"),
	}
}

// orderDTO renders one order in display units.
type orderDTO struct {
	OrderID       string    `json:"order_id"`
	ClientOrderID string    `json:"client_order_id,omitempty"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Type          string    `json:"type"`
	Price         float64   `json:"price"`
	Qty           float64   `json:"qty"`
	FilledQty     float64   `json:"filled_qty"`
	Status        string    `json:"status"`
	ReduceOnly    bool      `json:"reduce_only"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// listOrdersResponse wraps the list orders response.
type listOrdersResponse struct {
	Orders []orderDTO `json:"orders"`
}

// ListOrders returns the orders currently resting on the venue, or the
// recent journal history when history=1 is passed.
// GET /api/v1/orders?history=1&limit=50
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("history") != "" {
		h.listHistory(w, r)
		return
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: toOrderDTOs(h.live.Orders())})
}

// listHistory serves the journaled order trail.
func (h *OrderHandler) listHistory(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "order journal not enabled in this mode")
		return
	}
	limit := queryInt(r, "limit", 50, 500)
	orders, err := h.journal.ListRecent(r.Context(), h.symbol, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list order history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: toOrderDTOs(orders)})
}

func toOrderDTOs(orders []domain.OrderRecord) []orderDTO {
	out := make([]orderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderDTO{
			OrderID:       o.OrderID,
			ClientOrderID: o.ClientOrderID,
			Symbol:        o.Symbol,
			Side:          string(o.Side),
			Type:          string(o.Type),
			Price:         o.Price(),
			Qty:           o.Qty,
			FilledQty:     o.FilledQty,
			Status:        string(o.Status),
			ReduceOnly:    o.ReduceOnly,
			CreatedAt:     o.CreatedAt,
			UpdatedAt:     o.UpdatedAt,
		})
	}
	return out
}
