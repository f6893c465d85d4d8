package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/storage"
	"github.com/poiesic/vecsync/storage/badger"
)

func setupTestStores(t *testing.T) (storage.SourceRepository, storage.DestinationRepository, storage.WatermarkStore, func()) {
	source, destination, watermarks, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)

	cleanup := func() {
		watermarks.Close()
		destination.Close()
		source.Close()
		backend.Close()
	}

	return source, destination, watermarks, cleanup
}

// seedSourceRecords adds n records spaced one second apart starting at base,
// so their cursors are deterministic and strictly ordered.
func seedSourceRecords(t *testing.T, source storage.SourceRepository, base time.Time, n int) []*core.SourceRecord {
	records := make([]*core.SourceRecord, n)
	for i := range records {
		records[i] = &core.SourceRecord{
			ID:        fmt.Sprintf("rec-%03d", i),
			OwnerID:   "owner-1",
			Content:   fmt.Sprintf("changed record number %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
	}
	added, err := source.AddSourceRecords(context.Background(), records...)
	require.NoError(t, err)
	return added
}

// fullRange scans everything written before the test started.
func fullRange() Range {
	return Range{UpTo: core.UpperBound(time.Now().UTC().Add(time.Hour))}
}

// flakySource fails the first failCount calls with a transient error, then
// delegates to the wrapped reader.
type flakySource struct {
	inner     storage.SourceReader
	failCount int
	calls     int
}

func (f *flakySource) QueryChanged(ctx context.Context, since, upTo core.Cursor, pageToken string, limit int) ([]*core.SourceRecord, string, error) {
	f.calls++
	if f.calls <= f.failCount {
		return nil, "", fmt.Errorf("%w: connection reset", storage.ErrSourceUnavailable)
	}
	return f.inner.QueryChanged(ctx, since, upTo, pageToken, limit)
}

// failNthSource fails exactly one call, the nth, with a transient error.
type failNthSource struct {
	inner  storage.SourceReader
	failOn int
	calls  int
}

func (f *failNthSource) QueryChanged(ctx context.Context, since, upTo core.Cursor, pageToken string, limit int) ([]*core.SourceRecord, string, error) {
	f.calls++
	if f.calls == f.failOn {
		return nil, "", fmt.Errorf("%w: connection reset", storage.ErrSourceUnavailable)
	}
	return f.inner.QueryChanged(ctx, since, upTo, pageToken, limit)
}

func TestBatchReader_Basic(t *testing.T) {
	source, _, _, cleanup := setupTestStores(t)
	defer cleanup()

	base := time.Now().UTC().Add(-time.Hour)
	seedSourceRecords(t, source, base, 5)

	reader := NewBatchReader(source, 2, 3, 10*time.Millisecond)

	var batchSizes []int
	var ids []string
	err := reader.ForEachBatch(context.Background(), fullRange(), func(records []*core.SourceRecord) error {
		batchSizes = append(batchSizes, len(records))
		for _, record := range records {
			ids = append(ids, record.ID)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, batchSizes)
	assert.Equal(t, []string{"rec-000", "rec-001", "rec-002", "rec-003", "rec-004"}, ids,
		"records should arrive in cursor order")
}

func TestBatchReader_BatchSizes(t *testing.T) {
	source, _, _, cleanup := setupTestStores(t)
	defer cleanup()

	base := time.Now().UTC().Add(-time.Hour)
	seedSourceRecords(t, source, base, 10)

	tests := []struct {
		name          string
		batchSize     int
		expectedBatch int
	}{
		{"batch size 1", 1, 10},
		{"batch size 3", 3, 4}, // 3+3+3+1
		{"batch size 5", 5, 2}, // 5+5
		{"batch size 100", 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewBatchReader(source, tt.batchSize, 3, 10*time.Millisecond)
			batchCount := 0
			totalRecords := 0

			err := reader.ForEachBatch(context.Background(), fullRange(), func(records []*core.SourceRecord) error {
				batchCount++
				totalRecords += len(records)
				assert.LessOrEqual(t, len(records), tt.batchSize, "batch should not exceed batchSize")
				return nil
			})

			require.NoError(t, err)
			assert.Equal(t, tt.expectedBatch, batchCount, "batch count")
			assert.Equal(t, 10, totalRecords, "total records")
		})
	}
}

func TestBatchReader_EmptyRange(t *testing.T) {
	source, _, _, cleanup := setupTestStores(t)
	defer cleanup()

	reader := NewBatchReader(source, 10, 3, 10*time.Millisecond)

	called := false
	err := reader.ForEachBatch(context.Background(), fullRange(), func([]*core.SourceRecord) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.False(t, called, "callback should not run for an empty range")
}

func TestBatchReader_RespectsRange(t *testing.T) {
	source, _, _, cleanup := setupTestStores(t)
	defer cleanup()

	base := time.Now().UTC().Add(-time.Hour)
	records := seedSourceRecords(t, source, base, 5)

	// (cursor of rec-001, cursor of rec-003]: exclusive below, inclusive above.
	scan := Range{Since: records[1].Cursor(), UpTo: records[3].Cursor()}

	reader := NewBatchReader(source, 10, 3, 10*time.Millisecond)

	var ids []string
	err := reader.ForEachBatch(context.Background(), scan, func(records []*core.SourceRecord) error {
		for _, record := range records {
			ids = append(ids, record.ID)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"rec-002", "rec-003"}, ids)
}

func TestBatchReader_RetriesTransientReads(t *testing.T) {
	source, _, _, cleanup := setupTestStores(t)
	defer cleanup()

	base := time.Now().UTC().Add(-time.Hour)
	seedSourceRecords(t, source, base, 3)

	flaky := &flakySource{inner: source, failCount: 2}
	reader := NewBatchReader(flaky, 10, 3, 5*time.Millisecond)

	total := 0
	err := reader.ForEachBatch(context.Background(), fullRange(), func(records []*core.SourceRecord) error {
		total += len(records)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, total, "all records should arrive after retries")
	assert.Equal(t, 3, flaky.calls, "two failures plus one success")
}

func TestBatchReader_RetriesExhausted(t *testing.T) {
	source, _, _, cleanup := setupTestStores(t)
	defer cleanup()

	base := time.Now().UTC().Add(-time.Hour)
	seedSourceRecords(t, source, base, 3)

	flaky := &flakySource{inner: source, failCount: 100}
	reader := NewBatchReader(flaky, 10, 3, 5*time.Millisecond)

	err := reader.ForEachBatch(context.Background(), fullRange(), func([]*core.SourceRecord) error {
		t.Fatal("callback should not run")
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrSourceUnavailable)
	assert.Equal(t, 3, flaky.calls, "should stop after maxRetries attempts")
}

func TestBatchReader_ResumesFromPageToken(t *testing.T) {
	source, _, _, cleanup := setupTestStores(t)
	defer cleanup()

	base := time.Now().UTC().Add(-time.Hour)
	seedSourceRecords(t, source, base, 5)

	// Fail the second page request once; the retry must resume from the
	// same page token without skipping or repeating records.
	failing := &failNthSource{inner: source, failOn: 2}
	reader := NewBatchReader(failing, 2, 3, 5*time.Millisecond)

	var ids []string
	err := reader.ForEachBatch(context.Background(), fullRange(), func(records []*core.SourceRecord) error {
		for _, record := range records {
			ids = append(ids, record.ID)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"rec-000", "rec-001", "rec-002", "rec-003", "rec-004"}, ids,
		"no record should be skipped or duplicated across the retry")
}

func TestBatchReader_CallbackError(t *testing.T) {
	source, _, _, cleanup := setupTestStores(t)
	defer cleanup()

	base := time.Now().UTC().Add(-time.Hour)
	seedSourceRecords(t, source, base, 5)

	reader := NewBatchReader(source, 2, 3, 10*time.Millisecond)

	expectedErr := fmt.Errorf("downstream full")
	batches := 0
	err := reader.ForEachBatch(context.Background(), fullRange(), func([]*core.SourceRecord) error {
		batches++
		return expectedErr
	})

	require.Error(t, err)
	assert.Equal(t, expectedErr, err)
	assert.Equal(t, 1, batches, "iteration should stop on the first callback error")
}

func TestBatchReader_ContextCanceled(t *testing.T) {
	source, _, _, cleanup := setupTestStores(t)
	defer cleanup()

	base := time.Now().UTC().Add(-time.Hour)
	seedSourceRecords(t, source, base, 6)

	ctx, cancel := context.WithCancel(context.Background())

	reader := NewBatchReader(source, 2, 3, 10*time.Millisecond)

	batches := 0
	err := reader.ForEachBatch(ctx, fullRange(), func([]*core.SourceRecord) error {
		batches++
		cancel()
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, batches, "cancellation should be honored at the batch boundary")
}
