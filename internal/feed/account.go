package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/account"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/platform/bybit"
	"github.com/Mentallyspammed1/Algobots-sub004/internal/retry"
)

// AccountStream is the slice of the private stream the account feed drives.
// *bybit.PrivateStream implements it.
type AccountStream interface {
	Connect(ctx context.Context) error
	SubscribeAccount() error
	OnOrder(bybit.OrderHandler)
	OnExecution(bybit.ExecutionHandler)
	OnPosition(bybit.PositionHandler)
	OnWallet(bybit.WalletHandler)
	OnReconnect(func())
	Close() error
}

// AccountReconciler re-reads the authoritative account state over REST.
// Implemented by the REST client.
type AccountReconciler interface {
	OpenOrders(ctx context.Context, symbol string) ([]domain.OrderRecord, error)
	Position(ctx context.Context, symbol string) (domain.PositionUpdate, error)
	WalletBalance(ctx context.Context) (domain.WalletUpdate, error)
}

// AccountFeed routes private pushes into the account state and executions
// into the fill processor. It reconciles over REST at startup and after every
// reconnect, since pushes during an outage are gone for good.
type AccountFeed struct {
	symbol string
	stream AccountStream
	rest   AccountReconciler
	state  *account.State
	fills  *account.FillProcessor
	logger *slog.Logger

	reconciles atomic.Uint64
}

// NewAccountFeed creates an account feed for one symbol.
func NewAccountFeed(
	symbol string,
	stream AccountStream,
	rest AccountReconciler,
	state *account.State,
	fills *account.FillProcessor,
	logger *slog.Logger,
) *AccountFeed {
	return &AccountFeed{
		symbol: symbol,
		stream: stream,
		rest:   rest,
		state:  state,
		fills:  fills,
		logger: logger.With(slog.String("component", "account_feed")),
	}
}

// Run wires the handlers, connects, subscribes and reconciles, then blocks
// until ctx is cancelled. Subscribing before the reconciliation read means
// any change racing the read arrives on the stream and reapplies on top.
func (f *AccountFeed) Run(ctx context.Context) error {
	f.stream.OnOrder(f.state.ApplyOrder)
	f.stream.OnPosition(f.state.ApplyPosition)
	f.stream.OnWallet(f.state.ApplyWallet)
	f.stream.OnExecution(f.fills.Submit)
	f.stream.OnReconnect(f.resync)

	if err := f.stream.Connect(ctx); err != nil {
		return fmt.Errorf("feed: connect account stream: %w", err)
	}
	defer f.stream.Close()

	if err := f.stream.SubscribeAccount(); err != nil {
		return fmt.Errorf("feed: subscribe account topics: %w", err)
	}
	if err := retry.Do(ctx, bootstrapAttempts, bootstrapRetryDelay, f.reconcile); err != nil {
		return fmt.Errorf("feed: initial account reconciliation: %w", err)
	}
	f.logger.Info("account feed started", slog.String("symbol", f.symbol))

	<-ctx.Done()
	return ctx.Err()
}

// reconcile replaces the tracked orders, position and wallet with the venue's
// current answers.
func (f *AccountFeed) reconcile(ctx context.Context) error {
	orders, err := f.rest.OpenOrders(ctx, f.symbol)
	if err != nil {
		return fmt.Errorf("open orders: %w", err)
	}
	pos, err := f.rest.Position(ctx, f.symbol)
	if err != nil {
		return fmt.Errorf("position: %w", err)
	}
	wallet, err := f.rest.WalletBalance(ctx)
	if err != nil {
		return fmt.Errorf("wallet balance: %w", err)
	}

	f.state.SeedOrders(orders)
	f.state.ApplyPosition(pos)
	f.state.ApplyWallet(wallet)
	f.reconciles.Add(1)

	f.logger.Info("account reconciled",
		slog.Int("open_orders", len(orders)),
		slog.String("position_side", string(pos.Side)),
		slog.Float64("position_size", pos.Size),
	)
	return nil
}

// resync runs after a transport reconnect.
func (f *AccountFeed) resync() {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()
	if err := f.reconcile(ctx); err != nil {
		f.logger.Error("post-reconnect reconciliation failed",
			slog.String("error", err.Error()),
		)
	}
}

// Reconciles returns how many reconciliation passes have completed.
func (f *AccountFeed) Reconciles() uint64 {
	return f.reconciles.Load()
}
