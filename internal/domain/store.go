package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for journal reads.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OrderJournal is the durable audit trail of every order action the bot
// takes. The in-memory account state answers "what is resting now"; the
// journal answers "what did the bot do and why".
type OrderJournal interface {
	Create(ctx context.Context, rec OrderRecord, reason string) error
	UpdateStatus(ctx context.Context, orderID string, status OrderStatus) error
	MarkOpenCancelled(ctx context.Context, symbol string) (int64, error)
	ListRecent(ctx context.Context, symbol string, limit int) ([]OrderRecord, error)
}

// SignalJournal keeps the signal flip history across restarts.
type SignalJournal interface {
	Insert(ctx context.Context, ev SignalEvent) error
	ListRecent(ctx context.Context, symbol string, limit int) ([]SignalEvent, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
