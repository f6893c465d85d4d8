package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/storage"
)

// WriteStage applies transformed rows to the destination in idempotent
// batches, retrying transient write failures with backoff.
type WriteStage struct {
	destination storage.DestinationWriter
	maxRetries  int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// NewWriteStage creates a write stage.
func NewWriteStage(destination storage.DestinationWriter, maxRetries int, retryDelay time.Duration) (*WriteStage, error) {
	if destination == nil {
		return nil, ErrDestinationRequired
	}
	return &WriteStage{
		destination: destination,
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
		logger:      slog.Default().With("component", "writer"),
	}, nil
}

// WriteBatch upserts rows under a fresh batch ID. The upsert is idempotent,
// so a retry after a transient failure cannot double-apply a row. Returns
// the per-record result, or an error once retries are exhausted.
func (w *WriteStage) WriteBatch(ctx context.Context, rows []*core.DestinationRow) (*core.BatchResult, error) {
	batchID := uuid.NewString()
	if len(rows) == 0 {
		return core.NewBatchResult(batchID), nil
	}

	var result *core.BatchResult
	err := RetryWithBackoff(ctx, func() error {
		var writeErr error
		result, writeErr = w.destination.UpsertBatch(ctx, batchID, rows)
		return writeErr
	}, w.maxRetries, w.retryDelay)
	if err != nil {
		w.logger.Error("batch write failed", "batch", batchID, "rows", len(rows), "err", err)
		return nil, err
	}

	return result, nil
}
