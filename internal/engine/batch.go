package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

//go:generate mockgen -source=batch.go -destination=mocks/container.go -package=mocks

// Container abstracts one destination playlist or collection being filled.
// The batch writer is the only caller; adapters in the reconcilers bind a
// Writer and a container key behind this interface.
type Container interface {
	// Create makes the container seeded with exactly one item.
	Create(ctx context.Context, seed MediaItem) error
	// CreateManual retries creation with the alternate, more explicit item
	// reference encoding.
	CreateManual(ctx context.Context, seed MediaItem) error
	// Add submits one bulk-add call for the given items.
	Add(ctx context.Context, items []MediaItem) error
}

// DefaultBatchSize is the chunk size for bulk adds when none is configured.
const DefaultBatchSize = 100

// AddFailure records one item the destination refused even on the
// single-item path.
type AddFailure struct {
	Title  string
	Reason string
}

// AddReport summarizes one container fill: how many items went in via the
// bulk path, how many needed the single-item fallback, and which failed
// entirely.
type AddReport struct {
	Bulk     int
	Fallback int
	Failures []AddFailure
}

// Failed returns the number of items that could not be added at all.
func (r AddReport) Failed() int { return len(r.Failures) }

// BatchWriter hides the destination's inconsistent acceptance of bulk adds
// behind one primitive. The degradation order is fixed: seed create (with a
// manual-URI retry), then ordered chunks, and a chunk the server rejects is
// resubmitted one item at a time. A chunk that degraded never re-escalates
// to the bulk path, and later chunks are always attempted regardless of
// earlier degradation.
type BatchWriter struct {
	size int
	log  *slog.Logger
}

// NewBatchWriter creates a batch writer with the given chunk size.
// Non-positive sizes fall back to DefaultBatchSize.
func NewBatchWriter(size int, log *slog.Logger) *BatchWriter {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &BatchWriter{size: size, log: log.With("component", "batch")}
}

// Fill creates the container seeded with the first item, then appends the
// rest. A non-nil error means creation failed both ways and the container
// does not exist; item-level failures are reported, not returned.
func (w *BatchWriter) Fill(ctx context.Context, c Container, items []MediaItem) (AddReport, error) {
	var report AddReport
	if len(items) == 0 {
		return report, ErrNoItems
	}
	if err := w.CreateSeeded(ctx, c, items[0]); err != nil {
		return report, err
	}
	report.Bulk++
	w.append(ctx, c, items[1:], &report)
	return report, nil
}

// CreateSeeded creates the container with exactly one seed item. A
// "rejected as empty" response triggers one retry with the manual item
// reference encoding; any other failure, or a failed retry, is terminal for
// this container.
func (w *BatchWriter) CreateSeeded(ctx context.Context, c Container, seed MediaItem) error {
	err := c.Create(ctx, seed)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrBulkRejected) {
		return fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	w.log.Warn("create rejected as empty, retrying with manual uri", "seed", seed.DisplayTitle())
	if err := c.CreateManual(ctx, seed); err != nil {
		return fmt.Errorf("%w: manual create: %v", ErrCreateFailed, err)
	}
	return nil
}

// Append adds items to a container that already exists, with the same
// chunking and degradation behavior as Fill.
func (w *BatchWriter) Append(ctx context.Context, c Container, items []MediaItem) AddReport {
	var report AddReport
	w.append(ctx, c, items, &report)
	return report
}

func (w *BatchWriter) append(ctx context.Context, c Container, items []MediaItem, report *AddReport) {
	for start := 0; start < len(items); start += w.size {
		end := min(start+w.size, len(items))
		chunk := items[start:end]

		err := c.Add(ctx, chunk)
		if err == nil {
			report.Bulk += len(chunk)
			continue
		}
		if ctx.Err() != nil {
			w.recordChunk(report, chunk, ctx.Err())
			continue
		}
		w.log.Warn("bulk add rejected, falling back to single item adds",
			"chunk", len(chunk), "error", err)

		// Degrade this chunk only. Remaining chunks still go through the
		// bulk path first.
		for _, it := range chunk {
			if err := c.Add(ctx, []MediaItem{it}); err != nil {
				w.log.Warn("single add failed", "item", it.DisplayTitle(), "error", err)
				report.Failures = append(report.Failures, AddFailure{
					Title:  it.DisplayTitle(),
					Reason: err.Error(),
				})
				continue
			}
			report.Fallback++
		}
	}
}

func (w *BatchWriter) recordChunk(report *AddReport, chunk []MediaItem, err error) {
	for _, it := range chunk {
		report.Failures = append(report.Failures, AddFailure{
			Title:  it.DisplayTitle(),
			Reason: err.Error(),
		})
	}
}
