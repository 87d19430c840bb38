// Package server exposes the bot's HTTP + WebSocket API: health, status,
// book and indicator inspection, order views, trading controls, and the
// Prometheus scrape endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/server/handler"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/server/middleware"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/server/ws"
)

// shutdownTimeout bounds how long in-flight requests may run during shutdown.
const shutdownTimeout = 10 * time.Second

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// AuthToken protects the mutating trading-control routes. Empty
	// disables authentication on them.
	AuthToken string
}

// Handlers aggregates everything the server can register. Nil fields skip
// their routes, so monitor mode serves a reduced API without stubs.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Book      *handler.BookHandler
	Indicator *handler.IndicatorHandler
	Orders    *handler.OrderHandler
	Position  *handler.PositionHandler
	Trading   *handler.TradingHandler
	Metrics   http.Handler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all available routes registered. Control routes
// sit behind bearer-token auth and a per-client rate limit when a limiter is
// provided; read routes are open.
func New(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check, always available and never authenticated.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	if handlers.Status != nil {
		mux.HandleFunc("GET /api/v1/status", handlers.Status.GetStatus)
	}
	if handlers.Book != nil {
		mux.HandleFunc("GET /api/v1/book", handlers.Book.GetBook)
	}
	if handlers.Indicator != nil {
		mux.HandleFunc("GET /api/v1/indicator", handlers.Indicator.GetIndicator)
	}
	if handlers.Orders != nil {
		mux.HandleFunc("GET /api/v1/orders", handlers.Orders.ListOrders)
	}
	if handlers.Position != nil {
		mux.HandleFunc("GET /api/v1/position", handlers.Position.GetPosition)
	}

	// Trading controls mutate state: auth + rate limit.
	if handlers.Trading != nil {
		guard := controlChain(cfg.AuthToken, limiter)
		mux.Handle("POST /api/v1/trading/pause", guard(http.HandlerFunc(handlers.Trading.Pause)))
		mux.Handle("POST /api/v1/trading/resume", guard(http.HandlerFunc(handlers.Trading.Resume)))
		mux.Handle("POST /api/v1/trading/flatten", guard(http.HandlerFunc(handlers.Trading.Flatten)))
		mux.HandleFunc("GET /api/v1/signals", handlers.Trading.ListSignals)
	}

	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Middleware chain: CORS outermost, then request logging.
	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// controlChain builds the middleware stack for mutating routes.
func controlChain(authToken string, limiter domain.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := next
		if limiter != nil {
			h = middleware.RateLimit(limiter, 10, time.Minute)(h)
		}
		h = middleware.Auth(authToken)(h)
		return h
	}
}

// Run listens until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server: listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return ctx.Err()
}
