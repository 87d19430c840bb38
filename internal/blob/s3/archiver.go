package s3blob

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mentallyspammed1/Algobots-sub004/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only needs the time-ranged read each journal already has, not
// the full journal interfaces. The Postgres stores satisfy these implicitly
// through their ListBefore methods.
// ---------------------------------------------------------------------------

// FillArchiveSource provides read access to fills for archival purposes.
type FillArchiveSource interface {
	// ListBefore returns all fills executed strictly before the cutoff.
	ListBefore(ctx context.Context, before time.Time) ([]domain.Execution, error)
}

// OrderArchiveSource provides read access to journaled orders for archival
// purposes.
type OrderArchiveSource interface {
	// ListBefore returns all orders created strictly before the cutoff.
	ListBefore(ctx context.Context, before time.Time) ([]domain.OrderRecord, error)
}

// SignalArchiveSource provides read access to journaled signals for archival
// purposes.
type SignalArchiveSource interface {
	// ListBefore returns all signals recorded strictly before the cutoff.
	ListBefore(ctx context.Context, before time.Time) ([]domain.SignalEvent, error)
}

// ObjectStat checks whether an object already exists at a path. Satisfied by
// Reader.
type ObjectStat interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// ---------------------------------------------------------------------------
// ArchiveImpl
// ---------------------------------------------------------------------------

// ArchiveImpl implements domain.Archiver by querying the journals for old
// rows, serializing them to gzipped JSONL, and uploading the result to S3.
//
// Deleting the archived rows from the primary store is not performed here;
// the archive scheduler prunes only after the upload has succeeded.
type ArchiveImpl struct {
	writer  domain.BlobWriter
	stat    ObjectStat
	fills   FillArchiveSource
	orders  OrderArchiveSource
	signals SignalArchiveSource
	audit   domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl. stat may be nil, in which case
// uploads always target the monthly key (and a rerun within the same month
// overwrites the earlier object).
func NewArchiver(
	writer domain.BlobWriter,
	stat ObjectStat,
	fills FillArchiveSource,
	orders OrderArchiveSource,
	signals SignalArchiveSource,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		stat:    stat,
		fills:   fills,
		orders:  orders,
		signals: signals,
		audit:   audit,
	}
}

// ArchiveFills queries all fills before the cutoff, serializes them to
// gzipped JSONL, and uploads the file to S3 at
// archive/fills/YYYY-MM.jsonl.gz. The archival event is recorded in the
// audit log and the count of archived rows is returned.
func (a *ArchiveImpl) ArchiveFills(ctx context.Context, before time.Time) (int64, error) {
	fills, err := a.fills.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills query: %w", err)
	}
	return a.upload(ctx, "fills", before, len(fills), func() ([]byte, error) {
		return marshalJSONL(fills)
	})
}

// ArchiveOrders queries all journaled orders before the cutoff, serializes
// them to gzipped JSONL, and uploads the file to S3 at
// archive/orders/YYYY-MM.jsonl.gz.
func (a *ArchiveImpl) ArchiveOrders(ctx context.Context, before time.Time) (int64, error) {
	orders, err := a.orders.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	return a.upload(ctx, "orders", before, len(orders), func() ([]byte, error) {
		return marshalJSONL(orders)
	})
}

// ArchiveSignals queries all journaled signals before the cutoff, serializes
// them to gzipped JSONL, and uploads the file to S3 at
// archive/signals/YYYY-MM.jsonl.gz.
func (a *ArchiveImpl) ArchiveSignals(ctx context.Context, before time.Time) (int64, error) {
	signals, err := a.signals.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive signals query: %w", err)
	}
	return a.upload(ctx, "signals", before, len(signals), func() ([]byte, error) {
		return marshalJSONL(signals)
	})
}

// upload runs the shared marshal-compress-put-audit tail of an archive call.
// A zero count short-circuits without touching S3.
func (a *ArchiveImpl) upload(ctx context.Context, kind string, before time.Time, count int, marshal func() ([]byte, error)) (int64, error) {
	if count == 0 {
		return 0, nil
	}

	raw, err := marshal()
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}
	buf, err := gzipBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s compress: %w", kind, err)
	}

	path := archivePath(kind, before)
	if a.stat != nil {
		taken, err := a.stat.Exists(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive %s stat: %w", kind, err)
		}
		if taken {
			// An earlier run this month already archived (and pruned) rows;
			// overwriting the monthly object would lose them.
			path = runPath(kind, before)
		}
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/gzip"); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	n := int64(count)
	if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
		"path":   path,
		"count":  n,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return n, fmt.Errorf("s3blob: archive %s audit log: %w", kind, err)
	}
	return n, nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/fills/2026-01.jsonl.gz
//	archive/orders/2026-01.jsonl.gz
//	archive/signals/2026-01.jsonl.gz
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl.gz", kind, before.Format("2006-01"))
}

// runPath builds a run-suffixed key for follow-up runs within an already
// archived month.
//
//	archive/fills/2026-01.20260126T153000.jsonl.gz
func runPath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.%s.jsonl.gz",
		kind, before.Format("2006-01"), time.Now().UTC().Format("20060102T150405"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// gzipBytes compresses data at the default level.
func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
