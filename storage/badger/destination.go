package badger

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/storage"
)

// DestinationRepository implements storage.DestinationRepository for BadgerDB.
type DestinationRepository struct {
	backend *Backend
}

var _ storage.DestinationRepository = (*DestinationRepository)(nil)

// NewDestinationRepository creates a new DestinationRepository.
func NewDestinationRepository(backend *Backend) *DestinationRepository {
	return &DestinationRepository{
		backend: backend,
	}
}

// Close releases repository resources. The backend is closed separately.
func (r *DestinationRepository) Close() error {
	return nil
}

// UpsertBatch writes rows to the destination, newest version wins.
//
// Rows are applied in ID order so two batches touching the same rows
// conflict deterministically. A row is skipped as stale when the stored
// version is at least as new, which is what makes re-running a batch after
// a crashed commit converge instead of double-applying.
func (r *DestinationRepository) UpsertBatch(ctx context.Context, batchID string, rows []*core.DestinationRow) (*core.BatchResult, error) {
	result := core.NewBatchResult(batchID)
	result.Attempted = len(rows)
	if len(rows) == 0 {
		return result, nil
	}

	ordered := make([]*core.DestinationRow, len(rows))
	copy(ordered, rows)
	slices.SortFunc(ordered, func(a, b *core.DestinationRow) int {
		return strings.Compare(a.ID, b.ID)
	})

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, row := range ordered {
			key := makeDestinationKey(row.ID)

			old, err := r.readDestinationRow(tx, key)
			if err != nil {
				return err
			}

			if old != nil && !old.SourceCursor.Before(row.SourceCursor) {
				result.SkippedStale = append(result.SkippedStale, row.ID)
				continue
			}

			if err := tx.Set(key, storage.MarshalDestinationRow(row)); err != nil {
				return err
			}
			if old == nil {
				result.Inserted = append(result.Inserted, row.ID)
			} else {
				result.Updated = append(result.Updated, row.ID)
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrWriteUnavailable, err)
	}
	return result, nil
}

// GetDestinationRow retrieves a single row by ID.
func (r *DestinationRepository) GetDestinationRow(ctx context.Context, id string) (*core.DestinationRow, error) {
	var result *core.DestinationRow
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readDestinationRow(tx, makeDestinationKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// CountDestinationRows returns the number of rows in the destination.
func (r *DestinationRepository) CountDestinationRows(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(destinationPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// FindSimilar finds destination rows similar to the given vector.
func (r *DestinationRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	var results []*core.SearchResult

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(destinationPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var row *core.DestinationRow
			err := iter.Item().Value(func(val []byte) error {
				var err error
				row, err = storage.UnmarshalDestinationRow(val)
				return err
			})
			if err != nil {
				return err
			}
			if row == nil || len(row.ContentVector) == 0 {
				continue
			}

			// Cosine similarity (dot product for normalized vectors)
			similarity := dotProduct(vector, row.ContentVector)

			if similarity >= minSimilarity {
				results = append(results, &core.SearchResult{
					Row:   row,
					Score: similarity,
				})
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// MatchKeyword returns rows whose derived search text contains the keyword
// token.
func (r *DestinationRepository) MatchKeyword(ctx context.Context, keyword string, limit int) ([]*core.DestinationRow, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return nil, fmt.Errorf("%w: empty keyword", storage.ErrInvalidQuery)
	}

	var results []*core.DestinationRow
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(destinationPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid() && len(results) < limit; iter.Next() {
			var row *core.DestinationRow
			err := iter.Item().Value(func(val []byte) error {
				var err error
				row, err = storage.UnmarshalDestinationRow(val)
				return err
			})
			if err != nil {
				return err
			}
			if row == nil {
				continue
			}
			if slices.Contains(strings.Fields(row.SearchText), keyword) {
				results = append(results, row)
			}
		}
		return nil
	}, false)

	return results, err
}

// readDestinationRow reads a destination row from the transaction.
// Returns nil, nil if the key does not exist.
func (r *DestinationRepository) readDestinationRow(tx *badger.Txn, key []byte) (*core.DestinationRow, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var row *core.DestinationRow
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		row, unmarshalErr = storage.UnmarshalDestinationRow(val)
		return unmarshalErr
	})
	return row, err
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
