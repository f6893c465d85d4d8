package core

//go:generate go run ../cmd/musgen

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// MaxContentLength is the largest content size, in bytes, a source record
// may carry and still be eligible for transformation.
const MaxContentLength = 1000

// IDFromContent generates a deterministic record ID from text content using
// BLAKE2b hashing. Identical content always produces the same ID, which
// keeps seeded fixtures and re-runs stable.
func IDFromContent(text string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// SourceRecord is a row in the mutable source store. Records are created
// once and may be edited any number of times afterwards.
type SourceRecord struct {
	ID        string
	OwnerID   string
	Content   string
	CreatedAt time.Time // When the record was first written
	UpdatedAt time.Time // When the record was last edited; zero if never edited
}

// EffectiveUpdatedAt returns the timestamp that positions the record in
// change order: UpdatedAt when the record has been edited, CreatedAt
// otherwise.
func (r *SourceRecord) EffectiveUpdatedAt() time.Time {
	if r.UpdatedAt.IsZero() {
		return r.CreatedAt
	}
	return r.UpdatedAt
}

// Cursor returns the record's position in the change stream.
func (r *SourceRecord) Cursor() Cursor {
	return Cursor{UpdatedAt: r.EffectiveUpdatedAt(), ID: r.ID}
}

// Cursor is a position in the source change stream. Records are ordered by
// effective update time with the record ID breaking ties, so a cursor names
// an exact point between two records.
type Cursor struct {
	UpdatedAt time.Time
	ID        string
}

// UpperBound returns the cursor just past every record whose effective
// update time is strictly before t. The empty ID sorts before any real
// record ID at the same instant.
func UpperBound(t time.Time) Cursor {
	return Cursor{UpdatedAt: t, ID: ""}
}

// IsZero reports whether the cursor is the start of the change stream.
func (c Cursor) IsZero() bool {
	return c.UpdatedAt.IsZero() && c.ID == ""
}

// Compare orders cursors by update time at microsecond precision, then by
// ID. Microsecond precision matches what survives serialization, so a
// cursor compares equal to its own round trip.
func (c Cursor) Compare(other Cursor) int {
	a, b := c.UpdatedAt.UnixMicro(), other.UpdatedAt.UnixMicro()
	if a != b {
		if a < b {
			return -1
		}
		return 1
	}
	return strings.Compare(c.ID, other.ID)
}

// Before reports whether c is strictly earlier in the change stream than
// other.
func (c Cursor) Before(other Cursor) bool {
	return c.Compare(other) < 0
}

// String renders the cursor in its canonical sortable form,
// "<20-digit unix micros>:<id>". Lexicographic order of the rendered form
// matches Compare for all timestamps after the epoch.
func (c Cursor) String() string {
	return fmt.Sprintf("%020d:%s", c.UpdatedAt.UnixMicro(), c.ID)
}

// ParseCursor parses the canonical form produced by String.
func ParseCursor(s string) (Cursor, error) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return Cursor{}, fmt.Errorf("%w: missing separator in %q", ErrInvalidCursor, s)
	}
	micros, err := strconv.ParseInt(s[:idx], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: bad timestamp in %q", ErrInvalidCursor, s)
	}
	return Cursor{UpdatedAt: time.UnixMicro(micros).UTC(), ID: s[idx+1:]}, nil
}

// Watermark records how far a pipeline has durably progressed through the
// change stream. Every record at or before the cursor has been transformed
// and written to the destination.
type Watermark struct {
	Pipeline    string
	Cursor      Cursor
	CommittedAt time.Time
}

// Lease is an advisory claim on a pipeline. While a live lease is held by
// one owner, no other runner may process that pipeline.
type Lease struct {
	Pipeline  string
	Owner     string
	ExpiresAt time.Time
}

// Expired reports whether the lease has lapsed as of now.
func (l *Lease) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// TransformedRecord is a source record after normalization and embedding,
// ready to be written to the destination.
type TransformedRecord struct {
	ID            string
	OwnerID       string
	Content       string
	ContentVector []float32
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SourceCursor  Cursor // Position of the source version this row was derived from
}

// DestinationRow is the destination-side shape of a transformed record,
// with the derived search text the destination indexes on.
type DestinationRow struct {
	ID            string
	OwnerID       string
	Content       string
	ContentVector []float32
	SearchText    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SourceCursor  Cursor
}

// NewDestinationRow builds the destination row for a transformed record.
func NewDestinationRow(rec *TransformedRecord, searchText string) *DestinationRow {
	return &DestinationRow{
		ID:            rec.ID,
		OwnerID:       rec.OwnerID,
		Content:       rec.Content,
		ContentVector: rec.ContentVector,
		SearchText:    searchText,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
		SourceCursor:  rec.SourceCursor,
	}
}

// ErrorKind classifies why a record failed during a run. Kinds are stable
// strings so they can be reported, aggregated, and used as metric labels.
type ErrorKind string

const (
	// KindInvalidRecord marks records rejected by validation.
	KindInvalidRecord ErrorKind = "invalid_record"
	// KindEmbeddingUnavailable marks records whose embedding call failed.
	KindEmbeddingUnavailable ErrorKind = "embedding_unavailable"
	// KindWriteUnavailable marks records the destination refused.
	KindWriteUnavailable ErrorKind = "write_unavailable"
	// KindSourceUnavailable marks records lost to a source read failure.
	KindSourceUnavailable ErrorKind = "source_unavailable"
	// KindInternal marks failures that fit no other kind.
	KindInternal ErrorKind = "internal"
)

// BatchResult is the per-record outcome of one destination write. Every
// attempted record lands in exactly one of the outcome sets.
type BatchResult struct {
	BatchID      string
	Attempted    int
	Inserted     []string
	Updated      []string
	SkippedStale []string // Destination already held an equal or newer version
	Failed       map[string]ErrorKind
}

// NewBatchResult returns an empty result for the given batch.
func NewBatchResult(batchID string) *BatchResult {
	return &BatchResult{
		BatchID: batchID,
		Failed:  make(map[string]ErrorKind),
	}
}

// SucceededIDs returns the IDs that reached the destination in effect:
// inserted, updated, or skipped because the destination was already as new.
func (r *BatchResult) SucceededIDs() []string {
	ids := make([]string, 0, len(r.Inserted)+len(r.Updated)+len(r.SkippedStale))
	ids = append(ids, r.Inserted...)
	ids = append(ids, r.Updated...)
	ids = append(ids, r.SkippedStale...)
	return ids
}

// SucceededCount returns the number of records that reached the destination
// in effect.
func (r *BatchResult) SucceededCount() int {
	return len(r.Inserted) + len(r.Updated) + len(r.SkippedStale)
}

// FailedCount returns the number of records that did not reach the
// destination.
func (r *BatchResult) FailedCount() int {
	return len(r.Failed)
}

// SimilarityMatch is a destination row matched by vector similarity search.
type SimilarityMatch struct {
	RowID string
	Score float32
}

// SearchResult pairs a destination row with its relevance score.
type SearchResult struct {
	Row   *DestinationRow
	Score float32
}
