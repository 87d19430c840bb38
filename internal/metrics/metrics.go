// Package metrics exposes the bot's runtime state as a Prometheus registry.
// Every instrument is a ValueFunc bound to an engine accessor, so scrapes
// read the live counters instead of a second set of push points.
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/account"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/book"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/executor"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/feed"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/indicator"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/strategy"
)

// ReconnectCounter is the slice of a websocket stream the registry samples.
type ReconnectCounter interface {
	Reconnects() uint64
}

// Sources collects the components whose state is exported. Nil fields are
// skipped, so monitor mode can build a registry without an executor or
// account state.
type Sources struct {
	Book        *book.Engine
	Indicator   *indicator.Engine
	Strategy    *strategy.Engine
	Executor    *executor.Executor
	Account     *account.State
	Fills       *account.FillProcessor
	MarketFeed  *feed.MarketFeed
	AccountFeed *feed.AccountFeed
	PublicWS    ReconnectCounter
	PrivateWS   ReconnectCounter
}

// New builds a registry over src plus the standard Go and process collectors.
func New(src Sources, logger *slog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	registered := 2

	if b := src.Book; b != nil {
		registered += register(reg,
			gaugeFunc("book_last_sequence", "Sequence of the last applied orderbook update", func() float64 {
				return float64(b.LastSequence())
			}),
			counterFunc("book_gaps_total", "Orderbook delta sequence gaps detected", func() float64 {
				return float64(b.GapCount())
			}),
			gaugeFunc("book_bid_levels", "Price levels on the bid side", func() float64 {
				bids, _ := b.Counts()
				return float64(bids)
			}),
			gaugeFunc("book_ask_levels", "Price levels on the ask side", func() float64 {
				_, asks := b.Counts()
				return float64(asks)
			}),
			gaugeFunc("book_best_bid", "Best bid price", func() float64 {
				return b.BestBidAsk().BestBid.Float64()
			}),
			gaugeFunc("book_best_ask", "Best ask price", func() float64 {
				return b.BestBidAsk().BestAsk.Float64()
			}),
		)
	}

	if ind := src.Indicator; ind != nil {
		registered += register(reg,
			gaugeFunc("indicator_ready", "1 once the candle window covers the ATR period", func() float64 {
				if ind.State().Ready {
					return 1
				}
				return 0
			}),
			gaugeFunc("indicator_atr", "Current ATR value", func() float64 {
				return ind.State().ATR
			}),
			gaugeFunc("indicator_line", "Current Supertrend line", func() float64 {
				return ind.State().Line
			}),
			gaugeFunc("indicator_trend", "Trend direction: 1 up, -1 down, 0 not ready", func() float64 {
				return float64(ind.State().Direction)
			}),
			gaugeFunc("indicator_window_bars", "Bars held in the candle window", func() float64 {
				return float64(ind.WindowLen())
			}),
		)
	}

	if eng := src.Strategy; eng != nil {
		registered += register(reg,
			counterFunc("decision_cycles_total", "Decision cycles run", func() float64 {
				return float64(eng.Cycles())
			}),
			counterFunc("intent_batches_dropped_total", "Intent batches dropped on a full executor channel", func() float64 {
				return float64(eng.DroppedBatches())
			}),
			gaugeFunc("strategy_paused", "1 while intent emission is paused", func() float64 {
				if eng.Paused() {
					return 1
				}
				return 0
			}),
		)
	}

	if ex := src.Executor; ex != nil {
		registered += register(reg,
			counterFunc("orders_placed_total", "Orders accepted by the venue", func() float64 {
				placed, _, _ := ex.Stats()
				return float64(placed)
			}),
			counterFunc("orders_cancelled_total", "Cancel commands acknowledged", func() float64 {
				_, cancelled, _ := ex.Stats()
				return float64(cancelled)
			}),
			counterFunc("orders_failed_total", "Commands exhausted or rejected", func() float64 {
				_, _, failed := ex.Stats()
				return float64(failed)
			}),
		)
	}

	if st := src.Account; st != nil {
		registered += register(reg,
			gaugeFunc("position_size", "Signed position size in base units", func() float64 {
				return st.Snapshot().PositionSize
			}),
			gaugeFunc("wallet_balance", "Wallet balance in quote units", func() float64 {
				return st.Snapshot().WalletBalance
			}),
			gaugeFunc("total_equity", "Total account equity in quote units", func() float64 {
				return st.Snapshot().TotalEquity
			}),
			gaugeFunc("account_active_orders", "Orders currently resting on the venue", func() float64 {
				return float64(len(st.Snapshot().ActiveOrders))
			}),
		)
	}

	if fp := src.Fills; fp != nil {
		registered += register(reg,
			counterFunc("fills_processed_total", "Executions applied, journaled and notified", func() float64 {
				processed, _ := fp.Stats()
				return float64(processed)
			}),
			counterFunc("fills_dropped_total", "Executions dropped on a full fill queue", func() float64 {
				_, dropped := fp.Stats()
				return float64(dropped)
			}),
		)
	}

	if mf := src.MarketFeed; mf != nil {
		registered += register(reg,
			counterFunc("book_resubscribes_total", "Orderbook resubscribes forced by sequence gaps", func() float64 {
				return float64(mf.Resubscribes())
			}),
		)
	}
	if af := src.AccountFeed; af != nil {
		registered += register(reg,
			counterFunc("account_reconciles_total", "REST reconciliations of the account state", func() float64 {
				return float64(af.Reconciles())
			}),
		)
	}

	if ws := src.PublicWS; ws != nil {
		registered += register(reg, streamReconnects("public", ws))
	}
	if ws := src.PrivateWS; ws != nil {
		registered += register(reg, streamReconnects("private", ws))
	}

	logger.Info("metrics registry initialized", slog.Int("collectors", registered))
	return reg
}

// Handler serves the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func register(reg *prometheus.Registry, cs ...prometheus.Collector) int {
	for _, c := range cs {
		reg.MustRegister(c)
	}
	return len(cs)
}

func gaugeFunc(name, help string, fn func() float64) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn)
}

func counterFunc(name, help string, fn func() float64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, fn)
}

func streamReconnects(stream string, ws ReconnectCounter) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name:        "ws_reconnects_total",
		Help:        "Websocket reconnects by stream",
		ConstLabels: prometheus.Labels{"stream": stream},
	}, func() float64 {
		return float64(ws.Reconnects())
	})
}
