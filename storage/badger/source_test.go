package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/storage"
)

func TestSourceRecordBasics(t *testing.T) {
	source, destination, watermarks, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() {
		watermarks.Close()
		destination.Close()
		source.Close()
		backend.Close()
	}()

	ctx := context.Background()

	record := &core.SourceRecord{
		ID:        "rec-1",
		OwnerID:   "owner-1",
		Content:   "Hello, world!",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}

	added, err := source.AddSourceRecords(ctx, record)
	if err != nil {
		t.Fatalf("Failed to add source record: %v", err)
	}
	if len(added) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(added))
	}

	retrieved, err := source.GetSourceRecord(ctx, "rec-1")
	if err != nil {
		t.Fatalf("Failed to get source record: %v", err)
	}
	if retrieved.Content != "Hello, world!" {
		t.Fatalf("Expected 'Hello, world!', got '%s'", retrieved.Content)
	}
	if !retrieved.UpdatedAt.IsZero() {
		t.Fatal("Expected zero UpdatedAt for a never-edited record")
	}

	count, err := source.CountSourceRecords(ctx)
	if err != nil {
		t.Fatalf("Failed to count source records: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 record, got %d", count)
	}

	_, err = source.GetSourceRecord(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSourceRecords(t *testing.T) {
	source, _, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { source.Close(); backend.Close() }()

	ctx := context.Background()

	record := &core.SourceRecord{
		ID:        "rec-1",
		OwnerID:   "owner-1",
		Content:   "Original",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	if _, err := source.AddSourceRecords(ctx, record); err != nil {
		t.Fatalf("Failed to add source record: %v", err)
	}

	edited := &core.SourceRecord{
		ID:      "rec-1",
		OwnerID: "owner-1",
		Content: "Edited",
	}
	updated, err := source.UpdateSourceRecords(ctx, edited)
	if err != nil {
		t.Fatalf("Failed to update source record: %v", err)
	}
	if updated[0].UpdatedAt.IsZero() {
		t.Fatal("Expected UpdatedAt to be stamped on update")
	}
	if !updated[0].CreatedAt.Equal(record.CreatedAt) {
		t.Fatal("Expected CreatedAt to be preserved on update")
	}

	retrieved, err := source.GetSourceRecord(ctx, "rec-1")
	if err != nil {
		t.Fatalf("Failed to get source record: %v", err)
	}
	if retrieved.Content != "Edited" {
		t.Fatalf("Expected 'Edited', got '%s'", retrieved.Content)
	}

	_, err = source.UpdateSourceRecords(ctx, &core.SourceRecord{ID: "missing", OwnerID: "o", Content: "x"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestQueryChanged_Ordering(t *testing.T) {
	source, _, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { source.Close(); backend.Close() }()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	// Insert out of order; the change stream must come back in cursor order.
	records := []*core.SourceRecord{
		{ID: "rec-c", OwnerID: "o", Content: "third", CreatedAt: now.Add(-1 * time.Hour)},
		{ID: "rec-a", OwnerID: "o", Content: "first", CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "rec-b", OwnerID: "o", Content: "second", CreatedAt: now.Add(-2 * time.Hour)},
	}
	if _, err := source.AddSourceRecords(ctx, records...); err != nil {
		t.Fatalf("Failed to add source records: %v", err)
	}

	results, token, err := source.QueryChanged(ctx, core.Cursor{}, core.UpperBound(now), "", 10)
	if err != nil {
		t.Fatalf("QueryChanged failed: %v", err)
	}
	if token != "" {
		t.Fatalf("Expected no continuation token, got %q", token)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(results))
	}
	for i, wantID := range []string{"rec-a", "rec-b", "rec-c"} {
		if results[i].ID != wantID {
			t.Errorf("Position %d: expected %s, got %s", i, wantID, results[i].ID)
		}
	}
}

func TestQueryChanged_Pagination(t *testing.T) {
	source, _, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { source.Close(); backend.Close() }()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	records := make([]*core.SourceRecord, 5)
	for i := range records {
		records[i] = &core.SourceRecord{
			ID:        core.IDFromContent(string(rune('a' + i))),
			OwnerID:   "o",
			Content:   "record",
			CreatedAt: now.Add(time.Duration(i-6) * time.Hour),
		}
	}
	if _, err := source.AddSourceRecords(ctx, records...); err != nil {
		t.Fatalf("Failed to add source records: %v", err)
	}

	var collected []*core.SourceRecord
	token := ""
	pages := 0
	for {
		page, next, err := source.QueryChanged(ctx, core.Cursor{}, core.UpperBound(now), token, 2)
		if err != nil {
			t.Fatalf("QueryChanged failed: %v", err)
		}
		collected = append(collected, page...)
		pages++
		if next == "" {
			break
		}
		token = next
		if pages > 10 {
			t.Fatal("Pagination did not terminate")
		}
	}

	if len(collected) != 5 {
		t.Fatalf("Expected 5 records across pages, got %d", len(collected))
	}
	seen := make(map[string]bool)
	for _, record := range collected {
		if seen[record.ID] {
			t.Fatalf("Record %s returned twice", record.ID)
		}
		seen[record.ID] = true
	}
	for i := 1; i < len(collected); i++ {
		if !collected[i-1].Cursor().Before(collected[i].Cursor()) {
			t.Fatalf("Records out of cursor order at position %d", i)
		}
	}
}

func TestQueryChanged_Bounds(t *testing.T) {
	source, _, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { source.Close(); backend.Close() }()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	r1 := &core.SourceRecord{ID: "rec-1", OwnerID: "o", Content: "one", CreatedAt: now.Add(-3 * time.Hour)}
	r2 := &core.SourceRecord{ID: "rec-2", OwnerID: "o", Content: "two", CreatedAt: now.Add(-2 * time.Hour)}
	r3 := &core.SourceRecord{ID: "rec-3", OwnerID: "o", Content: "three", CreatedAt: now.Add(-1 * time.Hour)}
	if _, err := source.AddSourceRecords(ctx, r1, r2, r3); err != nil {
		t.Fatalf("Failed to add source records: %v", err)
	}

	// Lower bound is exclusive: a scan since r1's own cursor skips r1.
	results, _, err := source.QueryChanged(ctx, r1.Cursor(), core.UpperBound(now), "", 10)
	if err != nil {
		t.Fatalf("QueryChanged failed: %v", err)
	}
	if len(results) != 2 || results[0].ID != "rec-2" {
		t.Fatalf("Expected [rec-2 rec-3], got %d records", len(results))
	}

	// Upper bound is inclusive: a range ending exactly at r2's cursor includes r2.
	results, _, err = source.QueryChanged(ctx, core.Cursor{}, r2.Cursor(), "", 10)
	if err != nil {
		t.Fatalf("QueryChanged failed: %v", err)
	}
	if len(results) != 2 || results[1].ID != "rec-2" {
		t.Fatalf("Expected [rec-1 rec-2], got %d records", len(results))
	}

	// Records stamped at the bound instant sort past an empty-ID upper bound.
	results, _, err = source.QueryChanged(ctx, core.Cursor{}, core.UpperBound(r3.CreatedAt), "", 10)
	if err != nil {
		t.Fatalf("QueryChanged failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected rec-3 deferred past the bound, got %d records", len(results))
	}

	// Empty range
	results, _, err = source.QueryChanged(ctx, r3.Cursor(), r3.Cursor(), "", 10)
	if err != nil {
		t.Fatalf("QueryChanged failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Expected empty range, got %d records", len(results))
	}
}

func TestQueryChanged_EditMovesRecord(t *testing.T) {
	source, _, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { source.Close(); backend.Close() }()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	r1 := &core.SourceRecord{ID: "rec-1", OwnerID: "o", Content: "one", CreatedAt: now.Add(-3 * time.Hour)}
	r2 := &core.SourceRecord{ID: "rec-2", OwnerID: "o", Content: "two", CreatedAt: now.Add(-2 * time.Hour)}
	if _, err := source.AddSourceRecords(ctx, r1, r2); err != nil {
		t.Fatalf("Failed to add source records: %v", err)
	}

	// Consume the stream up to r2, as a pipeline run would.
	watermark := r2.Cursor()

	// Edit r1: it must reappear exactly once, past the watermark.
	if _, err := source.UpdateSourceRecords(ctx, &core.SourceRecord{ID: "rec-1", OwnerID: "o", Content: "one, edited"}); err != nil {
		t.Fatalf("Failed to update source record: %v", err)
	}

	upTo := core.UpperBound(time.Now().UTC().Add(time.Second))
	results, _, err := source.QueryChanged(ctx, watermark, upTo, "", 10)
	if err != nil {
		t.Fatalf("QueryChanged failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "rec-1" {
		t.Fatalf("Expected only edited rec-1 past the watermark, got %d records", len(results))
	}
	if results[0].Content != "one, edited" {
		t.Fatalf("Expected edited content, got %q", results[0].Content)
	}

	// The full stream still yields each record exactly once.
	all, _, err := source.QueryChanged(ctx, core.Cursor{}, upTo, "", 10)
	if err != nil {
		t.Fatalf("QueryChanged failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 records in full stream, got %d", len(all))
	}
	if all[0].ID != "rec-2" || all[1].ID != "rec-1" {
		t.Fatalf("Expected [rec-2 rec-1], got [%s %s]", all[0].ID, all[1].ID)
	}
}

func TestQueryChanged_InvalidInput(t *testing.T) {
	source, _, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { source.Close(); backend.Close() }()

	ctx := context.Background()
	upTo := core.UpperBound(time.Now().UTC())

	_, _, err = source.QueryChanged(ctx, core.Cursor{}, upTo, "", 0)
	if !errors.Is(err, storage.ErrInvalidQuery) {
		t.Fatalf("Expected ErrInvalidQuery for zero limit, got %v", err)
	}

	_, _, err = source.QueryChanged(ctx, core.Cursor{}, upTo, "not-a-cursor", 10)
	if !errors.Is(err, storage.ErrInvalidQuery) {
		t.Fatalf("Expected ErrInvalidQuery for bad token, got %v", err)
	}
}
