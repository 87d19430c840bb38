// Package archive schedules cold-storage runs that move old journal rows
// out of PostgreSQL and into S3.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// Pruner deletes journal rows older than a cutoff. The Postgres stores
// satisfy this through their DeleteBefore methods.
type Pruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Archiver moves old fills, orders and signals from the database to S3 cold
// storage, then prunes the archived rows from the primary store.
type Archiver struct {
	blobArchiver  domain.Archiver
	fills         Pruner
	orders        Pruner
	signals       Pruner
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates a new Archiver. Any of the pruners may be nil, in
// which case the corresponding rows are uploaded but kept in the database.
func NewArchiver(
	blobArchiver domain.Archiver,
	fills, orders, signals Pruner,
	retentionDays int,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		fills:         fills,
		orders:        orders,
		signals:       signals,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Run executes a single archive run. It calculates the cutoff time based on
// retentionDays and archives fills, orders, and signals older than the
// cutoff. Rows are pruned only for kinds whose upload succeeded.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	fillsArchived, err := a.step(ctx, "fills", cutoff, a.blobArchiver.ArchiveFills, a.fills)
	if err != nil {
		return err
	}
	ordersArchived, err := a.step(ctx, "orders", cutoff, a.blobArchiver.ArchiveOrders, a.orders)
	if err != nil {
		return err
	}
	signalsArchived, err := a.step(ctx, "signals", cutoff, a.blobArchiver.ArchiveSignals, a.signals)
	if err != nil {
		return err
	}

	a.logger.Info("archive run complete",
		slog.Int64("fills_archived", fillsArchived),
		slog.Int64("orders_archived", ordersArchived),
		slog.Int64("signals_archived", signalsArchived),
	)

	return nil
}

// step archives one kind of row and prunes it afterwards. Pruning happens
// only when the upload succeeded and actually covered rows, so a failed run
// never loses data that has not reached S3.
func (a *Archiver) step(
	ctx context.Context,
	kind string,
	cutoff time.Time,
	archiveFn func(context.Context, time.Time) (int64, error),
	pruner Pruner,
) (int64, error) {
	archived, err := archiveFn(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archiving %s before %v: %w", kind, cutoff, err)
	}
	a.logger.Info("archived "+kind, slog.Int64("count", archived))

	if archived == 0 || pruner == nil {
		return archived, nil
	}

	pruned, err := pruner.DeleteBefore(ctx, cutoff)
	if err != nil {
		return archived, fmt.Errorf("pruning %s before %v: %w", kind, cutoff, err)
	}
	a.logger.Info("pruned "+kind, slog.Int64("count", pruned))

	return archived, nil
}

// RunEvery runs the archiver at a fixed interval until the context is
// cancelled. A failed run is logged and retried at the next tick.
func (a *Archiver) RunEvery(ctx context.Context, interval time.Duration) error {
	a.logger.Info("archiver started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunCron runs the archiver on a cron schedule until the context is cancelled.
// It supports cron expressions in the standard 5-field format:
// "minute hour day-of-month month day-of-week"
//
// Example: "0 3 1 * *" runs at 3:00 AM on the 1st of every month.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
		}

		waitDuration := time.Until(next)
		a.logger.Info("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ValidateCron checks that expr is a well-formed 5-field cron expression.
func ValidateCron(expr string) error {
	_, err := parseCron(expr)
	return err
}

// cronField represents a parsed cron field that can match against a value.
type cronField struct {
	wildcard bool
	values   []int
}

// matches returns true if the given value matches this cron field.
func (f cronField) matches(val int) bool {
	if f.wildcard {
		return true
	}
	for _, v := range f.values {
		if v == val {
			return true
		}
	}
	return false
}

// parseCronField parses a single cron field (e.g. "0", "*", "1,15").
func parseCronField(field string) (cronField, error) {
	if field == "*" {
		return cronField{wildcard: true}, nil
	}

	parts := strings.Split(field, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.Atoi(p)
		if err != nil {
			return cronField{}, fmt.Errorf("invalid cron field value %q: %w", p, err)
		}
		values = append(values, v)
	}
	return cronField{values: values}, nil
}

// parsedCron holds five parsed cron fields.
type parsedCron struct {
	minute     cronField
	hour       cronField
	dayOfMonth cronField
	month      cronField
	dayOfWeek  cronField
}

// matchesTime returns true if the given time matches all five cron fields.
func (c parsedCron) matchesTime(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfMonth.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

// parseCron parses a 5-field cron expression into a parsedCron struct.
func parseCron(expr string) (parsedCron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return parsedCron{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	minute, err := parseCronField(fields[0])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing minute field: %w", err)
	}
	hour, err := parseCronField(fields[1])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing hour field: %w", err)
	}
	dayOfMonth, err := parseCronField(fields[2])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing day-of-month field: %w", err)
	}
	month, err := parseCronField(fields[3])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing month field: %w", err)
	}
	dayOfWeek, err := parseCronField(fields[4])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing day-of-week field: %w", err)
	}

	return parsedCron{
		minute:     minute,
		hour:       hour,
		dayOfMonth: dayOfMonth,
		month:      month,
		dayOfWeek:  dayOfWeek,
	}, nil
}

// nextCronTime calculates the next time after 'after' that matches the given
// cron expression. It searches minute-by-minute up to one year ahead.
func nextCronTime(cronExpr string, after time.Time) (time.Time, error) {
	cron, err := parseCron(cronExpr)
	if err != nil {
		return time.Time{}, err
	}

	// Start from the next minute boundary.
	candidate := after.Truncate(time.Minute).Add(time.Minute)

	// Search up to one year ahead to avoid infinite loops.
	limit := after.Add(366 * 24 * time.Hour)

	for candidate.Before(limit) {
		if cron.matchesTime(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}

	return time.Time{}, fmt.Errorf("no matching cron time found within one year for %q", cronExpr)
}
