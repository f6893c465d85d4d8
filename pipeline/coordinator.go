// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/embed"
	"github.com/poiesic/vecsync/storage"
)

// RunState is the coordinator's position in the run lifecycle. The state is
// observational: reading, transforming, and writing overlap once batches
// start flowing, so it reports the most recently entered stage.
type RunState int32

const (
	StateIdle RunState = iota
	StateReadingRange
	StateTransforming
	StateWriting
	StateCommitting
	StateError
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReadingRange:
		return "reading_range"
	case StateTransforming:
		return "transforming"
	case StateWriting:
		return "writing"
	case StateCommitting:
		return "committing"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Coordinator drives pipeline runs end to end: it takes the pipeline lease,
// scans the change stream from the committed watermark, pushes batches
// through the transform and write stages, and commits the new watermark.
//
// Exactly-once is achieved in effect, not in transport. Reads are at least
// once, the destination upsert is idempotent, and the watermark only ever
// advances past records that are durably written. The lease keeps concurrent
// runners from duplicating work; the compare-and-advance commit keeps even a
// runner whose lease lapsed from overwriting another runner's progress.
type Coordinator struct {
	source      storage.SourceReader
	watermarks  storage.WatermarkStore
	transformer *TransformStage
	writer      *WriteStage
	config      *Config
	owner       string
	monitor     RunMonitor
	logger      *slog.Logger
	state       atomic.Int32
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator) error

// WithMonitor attaches a run monitor. Use MultiMonitor to attach several.
func WithMonitor(monitor RunMonitor) CoordinatorOption {
	return func(c *Coordinator) error {
		if monitor == nil {
			monitor = noopMonitor{}
		}
		c.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithOwner overrides the generated lease owner ID. Two coordinators with
// the same owner share leases, so the default random owner is what keeps
// separate runners mutually exclusive.
func WithOwner(owner string) CoordinatorOption {
	return func(c *Coordinator) error {
		if owner == "" {
			return errors.New("pipeline: owner must not be empty")
		}
		c.owner = owner
		return nil
	}
}

// NewCoordinator creates a run coordinator. A nil config uses DefaultConfig.
func NewCoordinator(
	source storage.SourceReader,
	destination storage.DestinationWriter,
	watermarks storage.WatermarkStore,
	embedder embed.Embedder,
	config *Config,
	opts ...CoordinatorOption,
) (*Coordinator, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if destination == nil {
		return nil, ErrDestinationRequired
	}
	if watermarks == nil {
		return nil, ErrWatermarksRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	transformer, err := NewTransformStage(embedder, config.Workers, config.EmbedTimeout)
	if err != nil {
		return nil, err
	}

	writer, err := NewWriteStage(destination, config.MaxRetries, config.RetryDelay)
	if err != nil {
		transformer.Release()
		return nil, err
	}

	c := &Coordinator{
		source:      source,
		watermarks:  watermarks,
		transformer: transformer,
		writer:      writer,
		config:      config,
		owner:       uuid.NewString(),
		monitor:     noopMonitor{},
		logger:      slog.Default().With("component", "coordinator"),
	}

	for _, opt := range opts {
		if optErr := opt(c); optErr != nil {
			c.Release()
			return nil, optErr
		}
	}

	return c, nil
}

// Owner returns the lease owner ID this coordinator runs under.
func (c *Coordinator) Owner() string {
	return c.owner
}

// State returns the coordinator's current run state.
func (c *Coordinator) State() RunState {
	return RunState(c.state.Load())
}

func (c *Coordinator) setState(s RunState) {
	c.state.Store(int32(s))
}

// Release frees the coordinator's worker pool. The coordinator must not be
// used after calling Release.
func (c *Coordinator) Release() {
	c.transformer.Release()
}

// RunOnce executes one incremental run of the named pipeline and reports
// what it did. The error return is for runs that could not do their work:
// lease contention (storage.ErrLeaseConflict), a watermark conflict,
// cancellation, or exhausted retries against a dependency. Per-record
// failures are not an error; they are counted in the summary and those
// records come back on the next run.
func (c *Coordinator) RunOnce(ctx context.Context, pipeline string) (*RunSummary, error) {
	summary := &RunSummary{
		Pipeline:  pipeline,
		Status:    StatusAborted,
		StartedAt: time.Now().UTC(),
	}

	c.monitor.RunStarted(pipeline)
	defer func() {
		summary.FinishedAt = time.Now().UTC()
		c.setState(StateIdle)
		c.monitor.RunFinished(summary)
	}()

	if err := c.watermarks.AcquireLease(ctx, pipeline, c.owner, c.config.LeaseTTL); err != nil {
		c.logger.Info("pipeline lease not acquired", "pipeline", pipeline, "err", err)
		return summary, err
	}
	defer func() {
		// Release must happen even when ctx is already canceled.
		if err := c.watermarks.ReleaseLease(context.WithoutCancel(ctx), pipeline, c.owner); err != nil {
			c.logger.Warn("failed to release pipeline lease", "pipeline", pipeline, "err", err)
		}
	}()

	c.setState(StateReadingRange)

	current, err := c.watermarks.Get(ctx, pipeline)
	if err != nil {
		c.setState(StateError)
		summary.Status = StatusError
		return summary, err
	}
	summary.Watermark = current

	since := core.Cursor{}
	if current != nil {
		since = current.Cursor
	}
	upTo := core.UpperBound(time.Now().UTC())

	c.logger.Info("run starting",
		"pipeline", pipeline, "since", since.String(), "upTo", upTo.String())

	acc := newRunAccumulator(c.config.MaxReportedErrors)
	runErr := c.process(ctx, Range{Since: since, UpTo: upTo}, acc)
	acc.fill(summary)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			summary.Status = StatusAborted
			c.logger.Info("run canceled", "pipeline", pipeline, "read", summary.RecordsRead)
			return summary, runErr
		}
		c.setState(StateError)
		summary.Status = StatusError
		c.logger.Error("run failed", "pipeline", pipeline, "err", runErr)
		return summary, runErr
	}

	if summary.Failed > 0 {
		summary.Status = StatusPartial
	} else {
		summary.Status = StatusSucceeded
	}

	// A clean run advances the watermark to the scan's upper bound. A run
	// with per-record failures advances only to the last point with nothing
	// failed at or below it, so failed records stay inside the next scan.
	commitCursor := acc.commitCursor(upTo)
	if !commitCursor.IsZero() && (current == nil || current.Cursor.Before(commitCursor)) {
		c.setState(StateCommitting)

		committed, commitErr := c.watermarks.CompareAndAdvance(ctx, pipeline, current, commitCursor)
		if commitErr != nil {
			if errors.Is(commitErr, storage.ErrWatermarkConflict) {
				summary.Status = StatusAborted
				c.logger.Warn("watermark conflict, another runner advanced this pipeline",
					"pipeline", pipeline)
				return summary, commitErr
			}
			c.setState(StateError)
			summary.Status = StatusError
			return summary, commitErr
		}

		summary.Watermark = committed
		c.monitor.WatermarkCommitted(pipeline, committed.Cursor)
	}

	c.logger.Info("run complete", "summary", summary)
	return summary, nil
}

// transformedBatch carries one batch's transform output to the write stage
// along with the source cursors needed for commit accounting.
type transformedBatch struct {
	cursors         map[string]core.Cursor
	rows            []*core.DestinationRow
	transformFailed map[string]error
}

// process runs the read-transform-write pipeline over the scan range. The
// producer goroutine reads and transforms batches; the consumer writes them
// in order. The one-deep channel lets the next batch transform while the
// previous one writes without letting batches pile up in memory.
func (c *Coordinator) process(ctx context.Context, scan Range, acc *runAccumulator) error {
	batches := make(chan *transformedBatch, 1)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)

		reader := NewBatchReader(c.source, c.config.BatchSize, c.config.MaxRetries, c.config.RetryDelay)
		return reader.ForEachBatch(gctx, scan, func(records []*core.SourceRecord) error {
			c.setState(StateTransforming)
			acc.addRead(len(records))
			c.monitor.BatchRead(len(records))

			rows, failed := c.transformer.TransformBatch(gctx, records)

			cursors := make(map[string]core.Cursor, len(records))
			for _, record := range records {
				cursors[record.ID] = record.Cursor()
			}

			select {
			case batches <- &transformedBatch{cursors: cursors, rows: rows, transformFailed: failed}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	g.Go(func() error {
		for batch := range batches {
			c.setState(StateWriting)

			result, err := c.writer.WriteBatch(gctx, batch.rows)
			if err != nil {
				return err
			}

			acc.recordBatch(batch, result)

			for id, failErr := range batch.transformFailed {
				c.monitor.RecordFailed(id, KindOf(failErr))
			}
			for id, kind := range result.Failed {
				c.monitor.RecordFailed(id, kind)
			}
			c.monitor.BatchWritten(result)
		}
		return nil
	})

	return g.Wait()
}

// runAccumulator folds per-batch outcomes into run totals and tracks how far
// the watermark may advance. Batches arrive in cursor order, so once any
// failure is seen no later batch can extend the commit point and only
// cursors, never whole batches, need retaining.
type runAccumulator struct {
	mu        sync.Mutex
	maxErrors int

	read         int
	transformed  int
	inserted     int
	updated      int
	skippedStale int
	failed       int
	errors       []RecordError

	commitPoint core.Cursor // highest succeeded cursor strictly below every failure
	minFailed   core.Cursor // lowest failed cursor seen; zero until a failure
}

func newRunAccumulator(maxErrors int) *runAccumulator {
	return &runAccumulator{maxErrors: maxErrors}
}

func (a *runAccumulator) addRead(count int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.read += count
}

func (a *runAccumulator) recordBatch(batch *transformedBatch, result *core.BatchResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.transformed += len(batch.rows)
	a.inserted += len(result.Inserted)
	a.updated += len(result.Updated)
	a.skippedStale += len(result.SkippedStale)

	// The lowest failed cursor in this batch bounds how far the commit
	// point may extend.
	var batchMinFailed core.Cursor
	note := func(id string, kind core.ErrorKind, message string) {
		a.failed++
		if len(a.errors) < a.maxErrors {
			a.errors = append(a.errors, RecordError{RecordID: id, Kind: kind, Message: message})
		}
		cursor := batch.cursors[id]
		if batchMinFailed.IsZero() || cursor.Before(batchMinFailed) {
			batchMinFailed = cursor
		}
	}
	for id, err := range batch.transformFailed {
		note(id, KindOf(err), err.Error())
	}
	for id, kind := range result.Failed {
		note(id, kind, string(kind))
	}

	// Once an earlier batch failed, every later success sits above that
	// failure and can never extend the commit point.
	if a.minFailed.IsZero() {
		for _, id := range result.SucceededIDs() {
			cursor := batch.cursors[id]
			if !batchMinFailed.IsZero() && !cursor.Before(batchMinFailed) {
				continue
			}
			if a.commitPoint.Before(cursor) {
				a.commitPoint = cursor
			}
		}
	}

	if !batchMinFailed.IsZero() && (a.minFailed.IsZero() || batchMinFailed.Before(a.minFailed)) {
		a.minFailed = batchMinFailed
	}
}

// commitCursor returns how far the watermark may safely advance: the scan's
// upper bound when nothing failed, otherwise the highest succeeded cursor
// strictly below every failure. Zero means nothing is safe to commit.
func (a *runAccumulator) commitCursor(upTo core.Cursor) core.Cursor {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failed == 0 {
		return upTo
	}
	return a.commitPoint
}

func (a *runAccumulator) fill(summary *RunSummary) {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary.RecordsRead = a.read
	summary.Transformed = a.transformed
	summary.Inserted = a.inserted
	summary.Updated = a.updated
	summary.SkippedStale = a.skippedStale
	summary.Failed = a.failed
	summary.Errors = a.errors
}
