package account

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// fillQueueCap bounds the fill backlog. The stream reader must never block on
// slow persistence or webhooks.
const fillQueueCap = 256

// FillJournal persists executions durably. Implemented by the postgres store.
type FillJournal interface {
	InsertFill(ctx context.Context, fill domain.Execution) error
}

// FillNotifier announces fills out of band. Implemented by the notify layer.
type FillNotifier interface {
	Notify(ctx context.Context, title, body string) error
}

// FillPublisher mirrors fills onto the live bus. Implemented by the redis
// layer.
type FillPublisher interface {
	PublishFill(ctx context.Context, e domain.Execution) error
}

// FillProcessor takes executions off the stream's hot path: it updates the
// account state, journals each fill and announces it. journal and notifier
// may be nil; those steps are then skipped.
type FillProcessor struct {
	state     *State
	journal   FillJournal
	notifier  FillNotifier
	publisher FillPublisher
	logger    *slog.Logger
	queue     chan domain.Execution

	processed atomic.Uint64
	dropped   atomic.Uint64
}

// NewFillProcessor creates a processor writing into state.
func NewFillProcessor(state *State, journal FillJournal, notifier FillNotifier, logger *slog.Logger) *FillProcessor {
	return &FillProcessor{
		state:    state,
		journal:  journal,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "fills")),
		queue:    make(chan domain.Execution, fillQueueCap),
	}
}

// SetPublisher attaches a bus publisher for live fill mirroring. Call before
// Run.
func (p *FillProcessor) SetPublisher(pub FillPublisher) {
	p.publisher = pub
}

// Submit enqueues one execution without blocking. When the queue is full the
// fill is dropped with a warning; the order stream still carries the
// authoritative quantities.
func (p *FillProcessor) Submit(e domain.Execution) {
	select {
	case p.queue <- e:
	default:
		p.dropped.Add(1)
		p.logger.Warn("fill queue full, dropping execution",
			slog.String("exec_id", e.ExecID),
			slog.Uint64("dropped_total", p.dropped.Load()),
		)
	}
}

// Run consumes the queue until ctx is cancelled.
func (p *FillProcessor) Run(ctx context.Context) error {
	p.logger.Info("fill processor started")
	defer p.logger.Info("fill processor stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-p.queue:
			p.process(ctx, e)
		}
	}
}

func (p *FillProcessor) process(ctx context.Context, e domain.Execution) {
	p.state.ApplyExecution(e)
	p.processed.Add(1)

	p.logger.Info("fill",
		slog.String("exec_id", e.ExecID),
		slog.String("order_id", e.OrderID),
		slog.String("side", string(e.Side)),
		slog.Float64("qty", e.Qty),
		slog.Float64("price", e.Price),
		slog.Float64("fee", e.Fee),
		slog.Bool("maker", e.IsMaker),
	)

	if p.journal != nil {
		if err := p.journal.InsertFill(ctx, e); err != nil {
			p.logger.Error("journal fill failed",
				slog.String("exec_id", e.ExecID),
				slog.String("error", err.Error()),
			)
		}
	}
	if p.publisher != nil {
		// Failure already logged by the publisher; the journal row is the
		// durable record.
		_ = p.publisher.PublishFill(ctx, e)
	}
	if p.notifier != nil {
		title := fmt.Sprintf("Fill: %s %s", e.Side, e.Symbol)
		body := fmt.Sprintf("%s %v %s @ %v (fee %v, maker %v)",
			e.Side, e.Qty, e.Symbol, e.Price, e.Fee, e.IsMaker)
		if err := p.notifier.Notify(ctx, title, body); err != nil {
			p.logger.Warn("fill notification failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// Stats returns how many fills were processed and dropped.
func (p *FillProcessor) Stats() (processed, dropped uint64) {
	return p.processed.Load(), p.dropped.Load()
}
