package pipeline

import (
	"context"
	"time"

	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/storage"
)

// Range is a half-open interval (Since, UpTo] of the source change stream.
// The zero Since scans from the beginning. UpTo is fixed when the run starts
// so records edited mid-run land in the next run instead of reappearing in
// this one.
type Range struct {
	Since core.Cursor
	UpTo  core.Cursor
}

// BatchReader pages changed records out of the source one batch at a time.
type BatchReader struct {
	source     storage.SourceReader
	batchSize  int
	maxRetries int
	retryDelay time.Duration
}

// NewBatchReader creates a batch reader.
func NewBatchReader(source storage.SourceReader, batchSize, maxRetries int, retryDelay time.Duration) *BatchReader {
	return &BatchReader{
		source:     source,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// ForEachBatch calls fn for each batch of changed records in the range, in
// cursor order. Only one batch is held in memory at a time. A failed page
// read is retried with backoff from the last confirmed page token, so a
// transient source error never skips records. If fn returns an error,
// iteration stops and that error is returned.
func (r *BatchReader) ForEachBatch(ctx context.Context, scan Range, fn func(records []*core.SourceRecord) error) error {
	pageToken := ""

	for {
		// Check context between batches
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var (
			records []*core.SourceRecord
			next    string
		)
		err := RetryWithBackoff(ctx, func() error {
			var queryErr error
			records, next, queryErr = r.source.QueryChanged(ctx, scan.Since, scan.UpTo, pageToken, r.batchSize)
			return queryErr
		}, r.maxRetries, r.retryDelay)
		if err != nil {
			return err
		}

		if len(records) > 0 {
			if err := fn(records); err != nil {
				return err
			}
		}

		if next == "" {
			return nil
		}
		pageToken = next
	}
}
