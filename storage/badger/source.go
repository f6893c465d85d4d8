package badger

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/storage"
)

// SourceRepository implements storage.SourceRepository for BadgerDB.
//
// Records are stored twice: the full record under its ID, and a change
// stream index entry keyed by (effective update time, ID) whose value is
// the record ID. Edits delete the old index entry and write a new one, so
// each record appears in the stream exactly once, at its latest position.
type SourceRepository struct {
	backend *Backend
}

var _ storage.SourceRepository = (*SourceRepository)(nil)

// NewSourceRepository creates a new SourceRepository.
func NewSourceRepository(backend *Backend) *SourceRepository {
	return &SourceRepository{
		backend: backend,
	}
}

// Close releases repository resources. The backend is closed separately.
func (r *SourceRepository) Close() error {
	return nil
}

// AddSourceRecords adds one or more records to the source store.
func (r *SourceRepository) AddSourceRecords(ctx context.Context, records ...*core.SourceRecord) ([]*core.SourceRecord, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			if record.CreatedAt.IsZero() {
				record.CreatedAt = time.Now().UTC()
			}
			if err := r.putRecord(tx, record); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return records, err
}

// UpdateSourceRecords overwrites existing records and stamps UpdatedAt,
// which moves them to the head of the change stream.
func (r *SourceRepository) UpdateSourceRecords(ctx context.Context, records ...*core.SourceRecord) ([]*core.SourceRecord, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			old, err := r.readSourceRecord(tx, makeSourceRecordKey(record.ID))
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			record.CreatedAt = old.CreatedAt
			record.UpdatedAt = time.Now().UTC()

			if err := r.putRecord(tx, record); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return records, err
}

// GetSourceRecord retrieves a single record by ID.
func (r *SourceRepository) GetSourceRecord(ctx context.Context, id string) (*core.SourceRecord, error) {
	var result *core.SourceRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readSourceRecord(tx, makeSourceRecordKey(id))
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

// CountSourceRecords returns the number of records in the source store.
func (r *SourceRepository) CountSourceRecords(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sourceRecordPrefix + ":")
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

// QueryChanged returns records whose cursor lies in (since, upTo], in
// cursor order, one page at a time.
func (r *SourceRepository) QueryChanged(ctx context.Context, since, upTo core.Cursor, pageToken string, limit int) ([]*core.SourceRecord, string, error) {
	if limit <= 0 {
		return nil, "", fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if !since.Before(upTo) {
		return nil, "", nil
	}

	// Resume after the page token when it is past the range start. The
	// lower bound stays exclusive either way.
	low := since
	if pageToken != "" {
		tokenCursor, err := core.ParseCursor(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("%w: bad page token: %w", storage.ErrInvalidQuery, err)
		}
		if low.Before(tokenCursor) {
			low = tokenCursor
		}
	}

	var records []*core.SourceRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		prefix := []byte(sourceCursorPrefix + ":")
		startKey := prefix
		if !low.IsZero() {
			startKey = makeSourceCursorKey(low)
		}
		endKey := makeSourceCursorKey(upTo)

		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if !bytes.HasPrefix(key, prefix) {
				break
			}
			// The lower bound is exclusive
			if !low.IsZero() && bytes.Equal(key, startKey) {
				continue
			}
			if bytes.Compare(key, endKey) > 0 {
				break
			}

			var id string
			if err := iter.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}

			record, err := r.readSourceRecord(tx, makeSourceRecordKey(id))
			if err != nil {
				return err
			}
			if record == nil {
				continue
			}

			records = append(records, record)
			if len(records) >= limit {
				break
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", storage.ErrSourceUnavailable, err)
	}

	nextToken := ""
	if len(records) == limit {
		nextToken = records[len(records)-1].Cursor().String()
	}
	return records, nextToken, nil
}

// putRecord writes the record and its change stream index entry, removing
// the index entry for any previous version.
func (r *SourceRepository) putRecord(tx *badger.Txn, record *core.SourceRecord) error {
	key := makeSourceRecordKey(record.ID)

	old, err := r.readSourceRecord(tx, key)
	if err != nil {
		return err
	}
	if old != nil {
		if err := tx.Delete(makeSourceCursorKey(old.Cursor())); err != nil {
			return err
		}
	}

	if err := tx.Set(key, storage.MarshalSourceRecord(record)); err != nil {
		return err
	}
	return tx.Set(makeSourceCursorKey(record.Cursor()), []byte(record.ID))
}

// readSourceRecord reads a source record from the transaction.
// Returns nil, nil if the key does not exist.
func (r *SourceRepository) readSourceRecord(tx *badger.Txn, key []byte) (*core.SourceRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.SourceRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalSourceRecord(val)
		return unmarshalErr
	})
	return record, err
}
