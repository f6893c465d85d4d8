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
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/embed"
	"github.com/poiesic/vecsync/search"
)

// TransformStage turns source records into destination rows: content is
// normalized and validated, embedded, and paired with the derived search
// text. Records within a batch are embedded concurrently on a worker pool.
type TransformStage struct {
	embedder     embed.Embedder
	pool         *ants.Pool
	embedTimeout time.Duration
	logger       *slog.Logger
}

// NewTransformStage creates a transform stage with the given number of
// concurrent embedding workers. embedTimeout bounds each embedding call;
// zero means no per-record timeout.
func NewTransformStage(embedder embed.Embedder, workers int, embedTimeout time.Duration) (*TransformStage, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if workers < 1 {
		workers = 1
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}

	return &TransformStage{
		embedder:     embedder,
		pool:         pool,
		embedTimeout: embedTimeout,
		logger:       slog.Default().With("component", "transform"),
	}, nil
}

// TransformBatch transforms every record in the batch, fanning the embedding
// calls out across the worker pool. Failures are isolated per record: rows
// covers each record that transformed cleanly and failed maps each record
// that did not to its error. Row order follows completion, not input; the
// destination writer applies rows in ID order anyway.
func (t *TransformStage) TransformBatch(ctx context.Context, records []*core.SourceRecord) (rows []*core.DestinationRow, failed map[string]error) {
	rows = make([]*core.DestinationRow, 0, len(records))
	failed = make(map[string]error)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, record := range records {
		wg.Add(1)
		submitErr := t.pool.Submit(func() {
			defer wg.Done()

			row, err := t.transformOne(ctx, record)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[record.ID] = err
				return
			}
			rows = append(rows, row)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			failed[record.ID] = submitErr
			mu.Unlock()
		}
	}

	wg.Wait()
	return rows, failed
}

func (t *TransformStage) transformOne(ctx context.Context, record *core.SourceRecord) (*core.DestinationRow, error) {
	cleaned := *record
	cleaned.Content = core.NormalizeContent(record.Content)

	if err := core.ValidateSourceRecord(&cleaned); err != nil {
		return nil, err
	}

	embedCtx := ctx
	if t.embedTimeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, t.embedTimeout)
		defer cancel()
	}

	vector, err := t.embedder.EmbedText(embedCtx, cleaned.Content)
	if err != nil {
		// Fold timeouts and unwrapped provider errors into the embedding kind.
		if !errors.Is(err, embed.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %w", embed.ErrEmbeddingUnavailable, err)
		}
		t.logger.Debug("embedding failed", "record", record.ID, "err", err)
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", embed.ErrEmbeddingUnavailable)
	}

	transformed := &core.TransformedRecord{
		ID:            cleaned.ID,
		OwnerID:       cleaned.OwnerID,
		Content:       cleaned.Content,
		ContentVector: embed.NormalizeVector(vector),
		CreatedAt:     cleaned.CreatedAt,
		UpdatedAt:     cleaned.UpdatedAt,
		SourceCursor:  cleaned.Cursor(),
	}

	return core.NewDestinationRow(transformed, search.BuildSearchText(cleaned.Content)), nil
}

// Release shuts down the worker pool. The stage must not be used after
// calling Release.
func (t *TransformStage) Release() {
	t.pool.Release()
}
