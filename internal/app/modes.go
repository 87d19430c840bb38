package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/account"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/book"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/cache/redis"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/crypto"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/executor"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/feed"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/indicator"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/metrics"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/notify"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/platform/bybit"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/retry"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/server"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/server/handler"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/server/ws"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/strategy"
)

const (
	// instanceLockTTL bounds how long a crashed instance blocks its symbol.
	// The lock is refreshed while the process lives.
	instanceLockTTL = 2 * time.Minute

	// shutdownGrace bounds the post-run cleanup: cancelling open orders and
	// writing the final audit entry.
	shutdownGrace = 10 * time.Second

	// Startup REST fetches retry before the process gives up.
	bootstrapAttempts   = 3
	bootstrapRetryDelay = 500 * time.Millisecond
)

// core is the mode-independent market half of the bot: the instrument, the
// book and indicator engines, the decision engine and the market feed
// driving them.
type core struct {
	inst   domain.Instrument
	book   *book.Engine
	indic  *indicator.Engine
	engine *strategy.Engine
	acct   *account.State
	market *feed.MarketFeed
	public *bybit.PublicStream
}

// buildCore assembles the market half. rest must at least serve the public
// endpoints (instrument info, klines).
func (a *App) buildCore(ctx context.Context, rest *bybit.Client) (*core, error) {
	cfg := a.cfg
	symbol := cfg.Instrument.Symbol

	inst, err := a.loadInstrument(ctx, rest)
	if err != nil {
		return nil, err
	}

	bookEngine, err := book.NewEngine(symbol, cfg.Book.Store, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: book engine: %w", err)
	}
	indicEngine := indicator.NewEngine(cfg.Indicator.AtrPeriod, cfg.Indicator.Multiplier, cfg.Strategy.CandleLimit, a.logger)

	strat, err := strategy.DefaultRegistry().New(cfg.Strategy.Name, strategy.Config{
		Name:                 cfg.Strategy.Name,
		Symbol:               symbol,
		Interval:             cfg.Strategy.Interval,
		CandleLimit:          cfg.Strategy.CandleLimit,
		OrderSize:            cfg.Strategy.OrderSize,
		MaxPositionSize:      cfg.Strategy.MaxPositionSize,
		MaxOpenOrdersPerSide: cfg.Strategy.MaxOpenOrdersPerSide,
		RepriceThresholdPct:  cfg.Strategy.RepriceThresholdPct,
		PositionBuffer:       cfg.Strategy.PositionBuffer,
		Spread:               cfg.Strategy.Spread,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: strategy: %w", err)
	}

	acct := account.NewState(symbol, a.logger)
	engine := strategy.NewEngine(strat, bookEngine, indicEngine, acct, inst, cfg.Strategy.CycleInterval.Duration, a.logger)

	engine.AddSignalSink(a.deps.SignalFanout)
	if a.deps.SignalLog != nil {
		engine.AddSignalSink(a.deps.SignalLog)
	}
	if a.deps.Notifier != nil {
		engine.AddSignalSink(signalAnnouncer{n: a.deps.Notifier})
	}

	public := bybit.NewPublicStream(cfg.Exchange.PublicWsURL, a.logger)
	market := feed.NewMarketFeed(feed.MarketFeedConfig{
		Symbol:      symbol,
		BookDepth:   cfg.Book.Depth,
		Interval:    engine.CandleInterval(),
		CandleLimit: engine.CandleLimit(),
	}, public, rest, bookEngine, indicEngine, engine, a.logger)
	market.SetTickerSink(a.deps.Tickers)

	return &core{
		inst:   inst,
		book:   bookEngine,
		indic:  indicEngine,
		engine: engine,
		acct:   acct,
		market: market,
		public: public,
	}, nil
}

// loadInstrument prefers fresh REST metadata and falls back to the cache so a
// venue outage does not block a restart.
func (a *App) loadInstrument(ctx context.Context, rest *bybit.Client) (domain.Instrument, error) {
	symbol := a.cfg.Instrument.Symbol

	var inst domain.Instrument
	err := retry.Do(ctx, bootstrapAttempts, bootstrapRetryDelay, func(ctx context.Context) error {
		var ierr error
		inst, ierr = rest.InstrumentInfo(ctx, symbol)
		return ierr
	})
	if err == nil {
		if cerr := a.deps.Instruments.Set(ctx, inst); cerr != nil {
			a.logger.Warn("cache instrument", slog.String("error", cerr.Error()))
		}
		return inst, nil
	}
	a.logger.Warn("instrument info fetch failed, trying cache", slog.String("error", err.Error()))

	cached, cerr := a.deps.Instruments.Get(ctx, symbol)
	if cerr != nil {
		return domain.Instrument{}, fmt.Errorf("app: instrument info %s: %w", symbol, err)
	}
	return cached, nil
}

// statusFunc builds the snapshot closure behind GET /api/v1/status and the
// WebSocket hello frame. acct may be nil in monitor mode.
func (a *App) statusFunc(c *core) func() domain.BotStatus {
	return func() domain.BotStatus {
		st := domain.BotStatus{
			Mode:          a.cfg.Mode,
			Symbol:        a.cfg.Instrument.Symbol,
			StrategyName:  c.engine.StrategyName(),
			Signal:        domain.SignalNone,
			WSConnected:   c.public.IsConnected(),
			Paused:        c.engine.Paused(),
			UptimeSeconds: a.uptimeSeconds(),
			LastSequence:  c.book.LastSequence(),
			SequenceGaps:  c.book.GapCount(),
		}
		if ev, ok := c.engine.LastSignal(); ok {
			st.Signal = ev.Signal
		}
		if c.acct != nil {
			snap := c.acct.Snapshot()
			st.OpenOrders = len(snap.ActiveOrders)
			st.PositionSize = snap.PositionSize
			st.PositionSide = snap.PositionSide
		}
		return st
	}
}

// runTrading is the trade and full mode runner: live keys, the private
// stream, the executor and, in full mode, the journals and archiver.
func (a *App) runTrading(ctx context.Context) error {
	cfg := a.cfg
	d := a.deps
	symbol := cfg.Instrument.Symbol

	// One live instance per symbol. Two processes working the same account
	// would fight over order state.
	unlock, err := d.Locks.AcquireKeepAlive(ctx, redis.InstanceKey(symbol), instanceLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return fmt.Errorf("app: another instance is already trading %s: %w", symbol, err)
		}
		return fmt.Errorf("app: instance lock: %w", err)
	}
	defer unlock()

	secret, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:           cfg.Exchange.ApiSecret,
		EncryptedSecretPath: cfg.Exchange.EncryptedSecretPath,
		SecretPassword:      cfg.Exchange.SecretPassword,
	})
	if err != nil {
		return fmt.Errorf("app: load api secret: %w", err)
	}
	auth := &crypto.HMACAuth{Key: cfg.Exchange.ApiKey, Secret: secret}

	rest := bybit.NewClient(cfg.Exchange.RestURL, cfg.Exchange.Category, auth)
	rest.SetRecvWindow(cfg.Exchange.RecvWindowMs)

	c, err := a.buildCore(ctx, rest)
	if err != nil {
		return err
	}

	// A no-op leverage change already reads as success at the client layer,
	// so a persistent error here means the venue really refused it. Trading
	// with the wrong leverage is worse than not starting.
	err = retry.Do(ctx, bootstrapAttempts, bootstrapRetryDelay, func(ctx context.Context) error {
		return rest.SetLeverage(ctx, symbol, float64(cfg.Instrument.Leverage))
	})
	if err != nil {
		return fmt.Errorf("app: set leverage %dx on %s: %w", cfg.Instrument.Leverage, symbol, err)
	}

	var fillJournal account.FillJournal
	if d.Fills != nil {
		fillJournal = d.Fills
	}
	var fillNotify account.FillNotifier
	if d.Notifier != nil {
		fillNotify = fillAnnouncer{n: d.Notifier}
	}
	fills := account.NewFillProcessor(c.acct, fillJournal, fillNotify, a.logger)
	fills.SetPublisher(redis.NewFillPublisher(d.Bus, a.logger))

	private := bybit.NewPrivateStream(cfg.Exchange.PrivateWsURL, auth, a.logger)
	accountFeed := feed.NewAccountFeed(symbol, private, rest, c.acct, fills, a.logger)

	exec := executor.NewExecutor(c.engine.Intents(), rest, a.logger)
	exec.SetRetryPolicy(cfg.Executor.MaxAttempts, cfg.Executor.RetryDelay.Duration)
	exec.SetSettleDelay(cfg.Executor.SettleDelay.Duration)
	exec.SetDedupTTL(cfg.Executor.DedupTTL.Duration)
	if d.Orders != nil {
		exec.SetJournal(d.Orders)
	}

	if d.Audit != nil {
		_ = d.Audit.Log(ctx, "startup", map[string]any{
			"mode":     cfg.Mode,
			"symbol":   symbol,
			"strategy": cfg.Strategy.Name,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.market.Run(gctx) })
	g.Go(func() error { return accountFeed.Run(gctx) })
	g.Go(func() error { return fills.Run(gctx) })
	g.Go(func() error { return c.engine.Run(gctx) })
	g.Go(func() error { return exec.Run(gctx) })

	if cfg.Server.Enabled {
		reg := metrics.New(metrics.Sources{
			Book:        c.book,
			Indicator:   c.indic,
			Strategy:    c.engine,
			Executor:    exec,
			Account:     c.acct,
			Fills:       fills,
			MarketFeed:  c.market,
			AccountFeed: accountFeed,
			PublicWS:    c.public,
			PrivateWS:   private,
		}, a.logger)

		status := a.statusFunc(c)
		hub := ws.NewHub(d.Bus, ws.StatusFunc(status), a.logger)

		var orderJournal domain.OrderJournal
		if d.Orders != nil {
			orderJournal = d.Orders
		}
		srv := server.New(server.Config{
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
			AuthToken:   cfg.Server.AuthToken,
		}, server.Handlers{
			Health:    handler.NewHealthHandler(a.logger),
			Status:    handler.NewStatusHandler(handler.StatusProvider(status)),
			Book:      handler.NewBookHandler(c.book, a.logger),
			Indicator: handler.NewIndicatorHandler(c.indic, a.logger),
			Orders:    handler.NewOrderHandler(c.acct, orderJournal, symbol, a.logger),
			Position:  handler.NewPositionHandler(c.acct),
			Trading:   handler.NewTradingHandler(c.engine, a.logger),
			Metrics:   metrics.Handler(reg),
		}, hub, d.Limiter, a.logger)

		g.Go(func() error { return hub.Run(gctx) })
		g.Go(func() error { return srv.Run(gctx) })
	}

	if d.Archiver != nil {
		g.Go(func() error { return d.Archiver.RunEvery(gctx, cfg.Archive.Interval.Duration) })
	}

	a.logger.Info("trading started", slog.String("symbol", symbol), slog.String("strategy", c.engine.StrategyName()))
	runErr := g.Wait()

	// Leave nothing resting on the venue. The shutdown context is fresh
	// because ctx is already cancelled here.
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := exec.CancelAll(shutCtx, symbol); err != nil {
		a.logger.Error("shutdown cancel-all failed", slog.String("error", err.Error()))
	}
	if d.Audit != nil {
		_ = d.Audit.Log(shutCtx, "shutdown", map[string]any{"symbol": symbol})
	}

	return runErr
}

// runMonitor runs the market half only: no keys, no executor, no private
// stream. Decision cycles still run and their intents are logged, so a
// strategy can be watched dry before it is given money.
func (a *App) runMonitor(ctx context.Context) error {
	cfg := a.cfg
	d := a.deps

	// The REST client signs every request; with empty credentials the
	// public endpoints still work and the private ones are never called.
	rest := bybit.NewClient(cfg.Exchange.RestURL, cfg.Exchange.Category, &crypto.HMACAuth{})
	rest.SetRecvWindow(cfg.Exchange.RecvWindowMs)

	c, err := a.buildCore(ctx, rest)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.market.Run(gctx) })
	g.Go(func() error { return c.engine.Run(gctx) })

	// Drain the intent channel so the decision loop never blocks, and log
	// what would have been sent.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case batch := <-c.engine.Intents():
				for _, intent := range batch {
					a.logger.Info("dry-run intent",
						slog.String("kind", string(intent.Kind)),
						slog.String("side", string(intent.Side)),
						slog.Float64("qty", intent.Qty),
						slog.Float64("price", intent.Price()),
						slog.String("reason", intent.Reason),
					)
				}
			}
		}
	})

	if cfg.Server.Enabled {
		reg := metrics.New(metrics.Sources{
			Book:       c.book,
			Indicator:  c.indic,
			Strategy:   c.engine,
			MarketFeed: c.market,
			PublicWS:   c.public,
		}, a.logger)

		status := a.statusFunc(c)
		hub := ws.NewHub(d.Bus, ws.StatusFunc(status), a.logger)

		srv := server.New(server.Config{
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
			AuthToken:   cfg.Server.AuthToken,
		}, server.Handlers{
			Health:    handler.NewHealthHandler(a.logger),
			Status:    handler.NewStatusHandler(handler.StatusProvider(status)),
			Book:      handler.NewBookHandler(c.book, a.logger),
			Indicator: handler.NewIndicatorHandler(c.indic, a.logger),
			Metrics:   metrics.Handler(reg),
		}, hub, d.Limiter, a.logger)

		g.Go(func() error { return hub.Run(gctx) })
		g.Go(func() error { return srv.Run(gctx) })
	}

	a.logger.Info("monitor started", slog.String("symbol", cfg.Instrument.Symbol))
	return g.Wait()
}

// signalAnnouncer adapts the notifier to the decision engine's sink
// contract. Webhook latency must not stall the cycle, so delivery happens on
// its own goroutine with its own deadline.
type signalAnnouncer struct {
	n *notify.Notifier
}

func (s signalAnnouncer) PublishSignal(_ context.Context, ev domain.SignalEvent) {
	title := fmt.Sprintf("Signal: %s %s", ev.Symbol, ev.Signal)
	body := fmt.Sprintf("%s -> %s at %.2f (%s)", ev.Previous, ev.Signal, ev.Price, ev.Reason)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.n.Notify(ctx, "signal", title, body)
	}()
}

// fillAnnouncer adapts the notifier to the fill processor, which already
// runs off the stream's hot path.
type fillAnnouncer struct {
	n *notify.Notifier
}

func (f fillAnnouncer) Notify(ctx context.Context, title, body string) error {
	return f.n.Notify(ctx, "fill", title, body)
}
