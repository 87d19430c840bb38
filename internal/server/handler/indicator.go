package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/indicator"
)

// IndicatorReader defines the queries the indicator handler requires.
type IndicatorReader interface {
	State() indicator.State
	WindowLen() int
}

// IndicatorHandler serves the trend indicator's current state.
type IndicatorHandler struct {
	indic  IndicatorReader
	logger *slog.Logger
}

// NewIndicatorHandler creates an IndicatorHandler over the given engine.
func NewIndicatorHandler(indic IndicatorReader, logger *slog.Logger) *IndicatorHandler {
	return &IndicatorHandler{indic: indic, logger: logHandler(logger, "indicator")}
}

// indicatorResponse renders the indicator state in display units.
type indicatorResponse struct {
	Ready      bool      `json:"ready"`
	ATR        float64   `json:"atr"`
	Line       float64   `json:"supertrend_line"`
	Direction  string    `json:"direction"`
	LastClose  float64   `json:"last_close"`
	BarTime    time.Time `json:"bar_time"`
	UpdatedAt  time.Time `json:"updated_at"`
	WindowBars int       `json:"window_bars"`
}

// GetIndicator returns the latest ATR/Supertrend values.
// GET /api/v1/indicator
func (h *IndicatorHandler) GetIndicator(w http.ResponseWriter, r *http.Request) {
	st := h.indic.State()
	writeJSON(w, http.StatusOK, indicatorResponse{
		Ready:      st.Ready,
		ATR:        st.ATR,
		Line:       st.Line,
		Direction:  st.Direction.String(),
		LastClose:  st.LastClose,
		BarTime:    st.BarTime,
		UpdatedAt:  st.UpdatedAt,
		WindowBars: h.indic.WindowLen(),
	})
}
