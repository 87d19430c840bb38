package handler

import (
	"net/http"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// StatusProvider assembles the live bot status for dashboards. The app wires
// a closure over the running engines.
type StatusProvider func() domain.BotStatus

// StatusHandler serves the bot's operational status.
type StatusHandler struct {
	status StatusProvider
}

// NewStatusHandler creates a StatusHandler over the given provider.
func NewStatusHandler(status StatusProvider) *StatusHandler {
	return &StatusHandler{status: status}
}

// GetStatus responds with the current mode, strategy, signal and book state.
// GET /api/v1/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}
