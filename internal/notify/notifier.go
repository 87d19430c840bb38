// Package notify announces trading events out of band. A Notifier fans one
// message out to every configured channel (Telegram, Discord) and filters by
// event type so operators only hear about what they asked for.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel in logs ("telegram", "discord").
	Name() string
}

// Notifier fans messages out to its senders. Notify drops events not in the
// allowed set; NotifyAll bypasses the filter for things that must always get
// through, like a crash on the way down.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders. events lists the
// event types Notify lets through; an empty list allows everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers to every sender if the event type is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allowed) > 0 && !n.allowed[event] {
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll delivers to every sender regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch sends to all channels concurrently. One slow or failing channel
// must not delay or suppress the others; failures are joined into one error.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	results := make([]error, len(n.senders))
	for i, s := range n.senders {
		wg.Add(1)
		go func(i int, s Sender) {
			defer wg.Done()
			if err := s.Send(ctx, title, message); err != nil {
				n.logger.Error("sender failed",
					slog.String("sender", s.Name()),
					slog.String("error", err.Error()),
				)
				results[i] = fmt.Errorf("%s: %w", s.Name(), err)
			}
		}(i, s)
	}
	wg.Wait()

	return errors.Join(results...)
}
