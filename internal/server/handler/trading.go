package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// TradingController defines the runtime controls the trading endpoints drive.
// Implemented by the decision engine.
type TradingController interface {
	Pause()
	Resume()
	Paused() bool
	// Flatten enqueues a cancel-all plus reduce-only market intents and
	// returns how many intents were enqueued.
	Flatten() int
	RecentSignals(limit int) []domain.SignalEvent
}

// TradingHandler serves the trading control endpoints. Routes are mounted
// behind the auth middleware; the handler itself does no token checks.
type TradingHandler struct {
	ctrl   TradingController
	logger *slog.Logger
}

// NewTradingHandler creates a TradingHandler over the given controller.
func NewTradingHandler(ctrl TradingController, logger *slog.Logger) *TradingHandler {
	return &TradingHandler{ctrl: ctrl, logger: logHandler(logger, "trading")}
}

// Pause stops the decision loop from emitting new intents. Resting orders
// are left untouched.
// POST /api/v1/trading/pause
func (h *TradingHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Pause()
	h.logger.InfoContext(r.Context(), "trading paused via API")
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "paused",
		"at":     time.Now().UTC().Format(time.RFC3339),
	})
}

// Resume re-enables the decision loop.
// POST /api/v1/trading/resume
func (h *TradingHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Resume()
	h.logger.InfoContext(r.Context(), "trading resumed via API")
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "running",
		"at":     time.Now().UTC().Format(time.RFC3339),
	})
}

// Flatten cancels all working orders and closes the position with
// reduce-only market orders. The decision loop stays paused afterwards so
// the next cycle does not immediately re-enter.
// POST /api/v1/trading/flatten
func (h *TradingHandler) Flatten(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Pause()
	n := h.ctrl.Flatten()
	h.logger.WarnContext(r.Context(), "flatten requested via API", slog.Int("intents", n))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "flattening",
		"intents": n,
		"paused":  true,
	})
}

// ListSignals returns the most recent signal flips, newest first.
// GET /api/v1/signals?limit=20
func (h *TradingHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20, 100)
	signals := h.ctrl.RecentSignals(limit)
	if signals == nil {
		signals = []domain.SignalEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"signals": signals})
}
