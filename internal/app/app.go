// Package app assembles the bot: it wires the infrastructure, builds the
// engines for the configured mode and runs them under one errgroup until
// shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/config"
)

// App is the top-level application. Construct with New, then call Run once.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	deps    *Dependencies
	started time.Time
}

// New creates an App. Nothing is dialled until Run.
func New(cfg config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the infrastructure and runs the configured mode until the
// context is cancelled. It returns context.Canceled on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	a.started = time.Now()

	deps, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	a.deps = deps

	switch strings.ToLower(a.cfg.Mode) {
	case "monitor":
		return a.runMonitor(ctx)
	case "trade", "full":
		return a.runTrading(ctx)
	default:
		return fmt.Errorf("app: unknown mode %q", a.cfg.Mode)
	}
}

// Close releases the wired infrastructure. Safe to call even if Run failed
// before wiring completed.
func (a *App) Close() {
	if a.deps != nil {
		a.deps.Close()
	}
}

// uptimeSeconds reports how long Run has been going.
func (a *App) uptimeSeconds() int64 {
	if a.started.IsZero() {
		return 0
	}
	return int64(time.Since(a.started).Seconds())
}
