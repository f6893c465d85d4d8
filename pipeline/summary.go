package pipeline

import (
	"log/slog"
	"time"

	"github.com/poiesic/vecsync/core"
)

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	// StatusSucceeded means the whole range was processed and the watermark
	// advanced to the run's upper bound.
	StatusSucceeded RunStatus = "succeeded"

	// StatusPartial means the range was processed but some records failed.
	// The watermark advanced only to the last point with nothing failed at
	// or below it, so the failed records come back on the next run.
	StatusPartial RunStatus = "partial"

	// StatusAborted means the run stopped without finishing its range: lease
	// contention, a watermark conflict, or cancellation.
	StatusAborted RunStatus = "aborted"

	// StatusError means the run gave up after exhausting retries against a
	// dependency.
	StatusError RunStatus = "error"
)

// RecordError describes one record's failure during a run.
type RecordError struct {
	RecordID string
	Kind     core.ErrorKind
	Message  string
}

// RunSummary reports what a single pipeline run did.
type RunSummary struct {
	Pipeline   string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time

	// RecordsRead is how many changed records the scan returned.
	RecordsRead int

	// Transformed is how many records passed normalization and embedding.
	Transformed int

	// Inserted, Updated, and SkippedStale classify the rows the destination
	// accepted. A skipped row means the destination already held an equal or
	// newer version, which still counts as success.
	Inserted     int
	Updated      int
	SkippedStale int

	// Failed is how many records failed in any stage.
	Failed int

	// Watermark is the pipeline watermark after the run: the newly committed
	// one when the run advanced it, otherwise the watermark the run started
	// from. Nil when nothing has ever been committed.
	Watermark *core.Watermark

	// Errors holds per-record failure details, capped at the configured
	// maximum. Failed always carries the full count.
	Errors []RecordError
}

// Duration returns how long the run took.
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// LogValue renders the summary as a structured log value.
func (s *RunSummary) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("pipeline", s.Pipeline),
		slog.String("status", string(s.Status)),
		slog.Duration("duration", s.Duration()),
		slog.Int("read", s.RecordsRead),
		slog.Int("transformed", s.Transformed),
		slog.Int("inserted", s.Inserted),
		slog.Int("updated", s.Updated),
		slog.Int("skipped_stale", s.SkippedStale),
		slog.Int("failed", s.Failed),
	}
	if s.Watermark != nil {
		attrs = append(attrs, slog.String("watermark", s.Watermark.Cursor.String()))
	}
	return slog.GroupValue(attrs...)
}
