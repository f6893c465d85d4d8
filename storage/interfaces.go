package storage

import (
	"context"
	"time"

	"github.com/poiesic/vecsync/core"
)

// Repository provides common storage operations shared across all backends.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close closes the storage backend and releases resources.
	Close() error
}

// SourceReader reads changed records from the mutable source store.
type SourceReader interface {
	// QueryChanged returns records whose change cursor lies in (since, upTo],
	// ordered by cursor. An empty pageToken starts at the beginning of the
	// range; the returned token resumes the scan after the last returned
	// record and is empty once the range is exhausted. limit bounds the page
	// size and must be positive.
	//
	// Tokens stay valid across calls as long as the range bounds do not
	// change. Records edited after a page was served reappear under their
	// new cursor on a later scan; a single scan never yields the same
	// record twice.
	QueryChanged(ctx context.Context, since, upTo core.Cursor, pageToken string, limit int) ([]*core.SourceRecord, string, error)
}

// SourceRepository provides full access to the source store: the reader
// used by pipelines plus the mutation operations used by seeding and tests.
type SourceRepository interface {
	Repository
	SourceReader

	// AddSourceRecords adds one or more records to the source store.
	// Sets CreatedAt if not already set. Returns the stored records.
	AddSourceRecords(ctx context.Context, records ...*core.SourceRecord) ([]*core.SourceRecord, error)

	// UpdateSourceRecords overwrites existing records and stamps UpdatedAt,
	// moving them to the head of the change stream.
	// Returns ErrNotFound if any record doesn't exist.
	UpdateSourceRecords(ctx context.Context, records ...*core.SourceRecord) ([]*core.SourceRecord, error)

	// GetSourceRecord retrieves a single record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetSourceRecord(ctx context.Context, id string) (*core.SourceRecord, error)

	// CountSourceRecords returns the number of records in the source store.
	CountSourceRecords(ctx context.Context) (int, error)
}

// DestinationWriter applies transformed records to the destination store.
type DestinationWriter interface {
	// UpsertBatch writes rows to the destination under the given batch ID.
	// The write is idempotent per row: a row strictly newer than the stored
	// version replaces it, an equal or older row is skipped as stale, and a
	// missing row is inserted. Re-running a batch therefore converges on the
	// same destination state.
	//
	// Rows are applied in ID order regardless of input order. Per-row
	// failures are reported in the result, not as an error; the error return
	// is reserved for whole-batch failures such as an unavailable store.
	UpsertBatch(ctx context.Context, batchID string, rows []*core.DestinationRow) (*core.BatchResult, error)
}

// DestinationRepository provides full access to the destination store: the
// writer used by pipelines plus the read operations used by search and
// verification.
type DestinationRepository interface {
	Repository
	DestinationWriter

	// GetDestinationRow retrieves a single row by ID.
	// Returns ErrNotFound if the row doesn't exist.
	GetDestinationRow(ctx context.Context, id string) (*core.DestinationRow, error)

	// CountDestinationRows returns the number of rows in the destination.
	CountDestinationRows(ctx context.Context) (int, error)

	// FindSimilar finds destination rows similar to the given vector.
	// Returns rows with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// MatchKeyword returns rows whose derived search text contains the
	// keyword token, up to limit results.
	MatchKeyword(ctx context.Context, keyword string, limit int) ([]*core.DestinationRow, error)
}

// WatermarkStore persists pipeline progress and coordinates exclusive runs.
type WatermarkStore interface {
	Repository

	// Get retrieves the committed watermark for a pipeline.
	// Returns nil, nil if no watermark has ever been committed.
	Get(ctx context.Context, pipeline string) (*core.Watermark, error)

	// CompareAndAdvance commits a new watermark cursor, but only if the
	// currently committed watermark still matches expected (nil meaning
	// none committed yet) and the new cursor does not move backwards.
	// Returns the committed watermark on success and ErrWatermarkConflict
	// if another runner advanced the watermark in between.
	CompareAndAdvance(ctx context.Context, pipeline string, expected *core.Watermark, cursor core.Cursor) (*core.Watermark, error)

	// GetLease returns the live lease on a pipeline.
	// Returns nil, nil when no lease is held or the lease has expired.
	GetLease(ctx context.Context, pipeline string) (*core.Lease, error)

	// AcquireLease claims exclusive ownership of a pipeline for ttl.
	// Returns ErrLeaseConflict while another owner holds a live lease.
	// Re-acquiring by the current owner extends the lease.
	AcquireLease(ctx context.Context, pipeline, owner string, ttl time.Duration) error

	// ReleaseLease releases the pipeline lease held by owner.
	// Returns ErrLeaseConflict if the lease is held by someone else;
	// releasing an expired or missing lease is not an error.
	ReleaseLease(ctx context.Context, pipeline, owner string) error
}
