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


package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/storage"
)

// WatermarkRepository implements storage.WatermarkStore for BadgerDB.
//
// Compare-and-advance relies on Badger's transaction conflict detection:
// two runners racing on the same pipeline both read the watermark key, and
// the second commit fails with ErrConflict. Leases carry their expiry in
// the value; the TTL on the entry is a backstop that clears leases of
// crashed runners.
type WatermarkRepository struct {
	backend *Backend
}

var _ storage.WatermarkStore = (*WatermarkRepository)(nil)

// NewWatermarkRepository creates a new WatermarkRepository.
func NewWatermarkRepository(backend *Backend) *WatermarkRepository {
	return &WatermarkRepository{
		backend: backend,
	}
}

// Close releases repository resources. The backend is closed separately.
func (r *WatermarkRepository) Close() error {
	return nil
}

// Get retrieves the committed watermark for a pipeline.
// Returns nil, nil if no watermark has ever been committed.
func (r *WatermarkRepository) Get(ctx context.Context, pipeline string) (*core.Watermark, error) {
	var watermark *core.Watermark
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		watermark, err = r.readWatermark(tx, makeWatermarkKey(pipeline))
		return err
	}, false)
	return watermark, err
}

// CompareAndAdvance commits a new watermark cursor if the current one still
// matches expected and the cursor does not move backwards.
func (r *WatermarkRepository) CompareAndAdvance(ctx context.Context, pipeline string, expected *core.Watermark, cursor core.Cursor) (*core.Watermark, error) {
	var committed *core.Watermark
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeWatermarkKey(pipeline)

		current, err := r.readWatermark(tx, key)
		if err != nil {
			return err
		}
		if (current == nil) != (expected == nil) {
			return storage.ErrWatermarkConflict
		}
		if current != nil && current.Cursor.Compare(expected.Cursor) != 0 {
			return storage.ErrWatermarkConflict
		}
		if current != nil && cursor.Before(current.Cursor) {
			return fmt.Errorf("%w: cursor moves backwards", storage.ErrWatermarkConflict)
		}

		watermark := &core.Watermark{
			Pipeline:    pipeline,
			Cursor:      cursor,
			CommittedAt: time.Now().UTC(),
		}
		if err := tx.Set(key, storage.MarshalWatermark(watermark)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			if errors.Is(err, badger.ErrConflict) {
				return storage.ErrWatermarkConflict
			}
			return err
		}
		committed = watermark
		return nil
	}, true)

	if err != nil {
		return nil, err
	}
	return committed, nil
}

// GetLease returns the live lease on a pipeline.
// Returns nil, nil when no lease is held or the lease has expired.
func (r *WatermarkRepository) GetLease(ctx context.Context, pipeline string) (*core.Lease, error) {
	var lease *core.Lease
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		lease, err = r.readLease(tx, makeLeaseKey(pipeline))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if lease != nil && lease.Expired(time.Now()) {
		return nil, nil
	}
	return lease, nil
}

// AcquireLease claims exclusive ownership of a pipeline for ttl.
// Re-acquiring by the current owner extends the lease.
func (r *WatermarkRepository) AcquireLease(ctx context.Context, pipeline, owner string, ttl time.Duration) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeLeaseKey(pipeline)

		current, err := r.readLease(tx, key)
		if err != nil {
			return err
		}
		if current != nil && current.Owner != owner && !current.Expired(time.Now()) {
			return fmt.Errorf("%w: pipeline %q leased by %q", storage.ErrLeaseConflict, pipeline, current.Owner)
		}

		lease := &core.Lease{
			Pipeline:  pipeline,
			Owner:     owner,
			ExpiresAt: time.Now().UTC().Add(ttl),
		}
		entry := badger.NewEntry(key, storage.MarshalLease(lease)).WithTTL(ttl)
		if err := tx.SetEntry(entry); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			if errors.Is(err, badger.ErrConflict) {
				return fmt.Errorf("%w: concurrent acquisition on %q", storage.ErrLeaseConflict, pipeline)
			}
			return err
		}
		return nil
	}, true)
}

// ReleaseLease releases the pipeline lease held by owner. Releasing an
// expired or missing lease is not an error.
func (r *WatermarkRepository) ReleaseLease(ctx context.Context, pipeline, owner string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeLeaseKey(pipeline)

		current, err := r.readLease(tx, key)
		if err != nil {
			return err
		}
		if current == nil {
			return nil
		}
		if current.Owner != owner {
			if current.Expired(time.Now()) {
				return nil
			}
			return fmt.Errorf("%w: pipeline %q leased by %q", storage.ErrLeaseConflict, pipeline, current.Owner)
		}

		if err := tx.Delete(key); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			if errors.Is(err, badger.ErrConflict) {
				return fmt.Errorf("%w: concurrent release on %q", storage.ErrLeaseConflict, pipeline)
			}
			return err
		}
		return nil
	}, true)
}

// readWatermark reads a watermark from the transaction.
// Returns nil, nil if the key does not exist.
func (r *WatermarkRepository) readWatermark(tx *badger.Txn, key []byte) (*core.Watermark, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var watermark *core.Watermark
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		watermark, unmarshalErr = storage.UnmarshalWatermark(val)
		return unmarshalErr
	})
	return watermark, err
}

// readLease reads a lease from the transaction.
// Returns nil, nil if the key does not exist or the entry has expired.
func (r *WatermarkRepository) readLease(tx *badger.Txn, key []byte) (*core.Lease, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var lease *core.Lease
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		lease, unmarshalErr = storage.UnmarshalLease(val)
		return unmarshalErr
	})
	return lease, err
}
