package storage

import (
	"testing"
	"time"

	"github.com/poiesic/vecsync/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalCursor(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name   string
		cursor core.Cursor
	}{
		{"zero cursor", core.Cursor{}},
		{"plain cursor", core.Cursor{UpdatedAt: now, ID: "rec-1"}},
		{"upper bound", core.UpperBound(now)},
		{"content-based ID", core.Cursor{UpdatedAt: now, ID: core.IDFromContent("test content")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalCursor(tt.cursor)
			require.NotNil(t, data)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalCursor(data)
			require.NoError(t, err)
			assert.Equal(t, 0, decoded.Compare(tt.cursor))
			assert.Equal(t, tt.cursor.ID, decoded.ID)
		})
	}
}

func TestUnmarshalCursor_Invalid(t *testing.T) {
	_, err := UnmarshalCursor([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalSourceRecord(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name   string
		record *core.SourceRecord
	}{
		{
			name: "never edited record",
			record: &core.SourceRecord{
				ID:        "rec-1",
				OwnerID:   "owner-1",
				Content:   "Hello",
				CreatedAt: now,
			},
		},
		{
			name: "edited record",
			record: &core.SourceRecord{
				ID:        "rec-2",
				OwnerID:   "owner-1",
				Content:   "Edited since",
				CreatedAt: now.Add(-time.Hour),
				UpdatedAt: now,
			},
		},
		{
			name: "unicode content",
			record: &core.SourceRecord{
				ID:        "rec-3",
				OwnerID:   "owner-2",
				Content:   "Hello 世界 🌍 émojis",
				CreatedAt: now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalSourceRecord(tt.record)
			require.NotNil(t, data)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalSourceRecord(data)
			require.NoError(t, err)
			require.NotNil(t, decoded)

			assert.Equal(t, tt.record.ID, decoded.ID)
			assert.Equal(t, tt.record.OwnerID, decoded.OwnerID)
			assert.Equal(t, tt.record.Content, decoded.Content)
			assert.True(t, tt.record.CreatedAt.Equal(decoded.CreatedAt))
			assert.Equal(t, tt.record.UpdatedAt.IsZero(), decoded.UpdatedAt.IsZero())
			if !tt.record.UpdatedAt.IsZero() {
				assert.True(t, tt.record.UpdatedAt.Equal(decoded.UpdatedAt))
			}
		})
	}
}

func TestUnmarshalSourceRecord_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"invalid data", []byte{0xFF, 0xFF, 0xFF}},
		{"partial data", []byte{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalSourceRecord(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestMarshalUnmarshalDestinationRow(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name string
		row  *core.DestinationRow
	}{
		{
			name: "minimal row",
			row: &core.DestinationRow{
				ID:           "rec-1",
				OwnerID:      "owner-1",
				Content:      "Hello",
				SearchText:   "hello",
				CreatedAt:    now,
				SourceCursor: core.Cursor{UpdatedAt: now, ID: "rec-1"},
			},
		},
		{
			name: "row with vector",
			row: &core.DestinationRow{
				ID:            "rec-2",
				OwnerID:       "owner-1",
				Content:       "Test with embedding",
				ContentVector: []float32{0.1, 0.2, 0.3, 0.4, 0.5},
				SearchText:    "test embedding",
				CreatedAt:     now.Add(-time.Hour),
				UpdatedAt:     now,
				SourceCursor:  core.Cursor{UpdatedAt: now, ID: "rec-2"},
			},
		},
		{
			name: "row with long vector",
			row: &core.DestinationRow{
				ID:            "rec-3",
				OwnerID:       "owner-2",
				Content:       "Long vector",
				ContentVector: make([]float32, 1536), // typical OpenAI embedding size
				SearchText:    "long vector",
				CreatedAt:     now,
				SourceCursor:  core.Cursor{UpdatedAt: now, ID: "rec-3"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalDestinationRow(tt.row)
			require.NotNil(t, data)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalDestinationRow(data)
			require.NoError(t, err)
			require.NotNil(t, decoded)

			assert.Equal(t, tt.row.ID, decoded.ID)
			assert.Equal(t, tt.row.OwnerID, decoded.OwnerID)
			assert.Equal(t, tt.row.Content, decoded.Content)
			assert.Equal(t, tt.row.SearchText, decoded.SearchText)
			assert.True(t, tt.row.CreatedAt.Equal(decoded.CreatedAt))
			assert.Equal(t, 0, tt.row.SourceCursor.Compare(decoded.SourceCursor))
			if len(tt.row.ContentVector) == 0 {
				assert.Empty(t, decoded.ContentVector)
			} else {
				assert.Equal(t, tt.row.ContentVector, decoded.ContentVector)
			}
		})
	}
}

func TestUnmarshalDestinationRow_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"invalid data", []byte{0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalDestinationRow(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestMarshalUnmarshalWatermark(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	watermark := &core.Watermark{
		Pipeline:    "records",
		Cursor:      core.Cursor{UpdatedAt: now.Add(-time.Minute), ID: "rec-99"},
		CommittedAt: now,
	}

	data := MarshalWatermark(watermark)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalWatermark(data)
	require.NoError(t, err)
	require.NotNil(t, decoded)

	assert.Equal(t, watermark.Pipeline, decoded.Pipeline)
	assert.Equal(t, 0, watermark.Cursor.Compare(decoded.Cursor))
	assert.True(t, watermark.CommittedAt.Equal(decoded.CommittedAt))
}

func TestMarshalUnmarshalLease(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	lease := &core.Lease{
		Pipeline:  "records",
		Owner:     "runner-1",
		ExpiresAt: now.Add(30 * time.Second),
	}

	data := MarshalLease(lease)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalLease(data)
	require.NoError(t, err)
	require.NotNil(t, decoded)

	assert.Equal(t, lease.Pipeline, decoded.Pipeline)
	assert.Equal(t, lease.Owner, decoded.Owner)
	assert.True(t, lease.ExpiresAt.Equal(decoded.ExpiresAt))
}

func TestRoundTripConsistency(t *testing.T) {
	t.Run("multiple marshal-unmarshal cycles", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		original := &core.DestinationRow{
			ID:            "rec-999",
			OwnerID:       "owner-1",
			Content:       "Testing consistency",
			ContentVector: []float32{0.1, 0.2, 0.3},
			SearchText:    "testing consistency",
			CreatedAt:     now,
			UpdatedAt:     now,
			SourceCursor:  core.Cursor{UpdatedAt: now, ID: "rec-999"},
		}

		// Perform 3 marshal-unmarshal cycles
		current := original
		for i := 0; i < 3; i++ {
			data := MarshalDestinationRow(current)
			decoded, err := UnmarshalDestinationRow(data)
			require.NoError(t, err)
			current = decoded
		}

		assert.Equal(t, original.ID, current.ID)
		assert.Equal(t, original.Content, current.Content)
		assert.Equal(t, original.ContentVector, current.ContentVector)
		assert.Equal(t, original.SearchText, current.SearchText)
		assert.Equal(t, 0, original.SourceCursor.Compare(current.SourceCursor))
	})
}
