package vecsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/embed/mock"
)

func TestNewEngine(t *testing.T) {
	t.Run("create new engine", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		engine, err := NewEngine(tmpDir)
		require.NoError(t, err)
		require.NotNil(t, engine)
		defer engine.Close()

		// Verify components are initialized
		assert.NotNil(t, engine.SourceRepository())
		assert.NotNil(t, engine.DestinationRepository())
		assert.NotNil(t, engine.WatermarkStore())
		assert.NotNil(t, engine.Embedder())
		assert.NotNil(t, engine.backend)
		assert.NotNil(t, engine.logger)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create an engine at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		engine, err := NewEngine(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, engine)
	})

	t.Run("in-memory storage", func(t *testing.T) {
		engine, err := NewEngine("", WithInMemoryStorage())
		require.NoError(t, err)
		require.NotNil(t, engine)
		assert.NoError(t, engine.Close())
	})
}

func TestEngine_Close(t *testing.T) {
	tmpDir := t.TempDir()
	engine, err := NewEngine(tmpDir)
	require.NoError(t, err)
	require.NotNil(t, engine)

	err = engine.Close()
	assert.NoError(t, err)
}

func TestEngine_FactoryMethods(t *testing.T) {
	engine, err := NewEngine("", WithInMemoryStorage())
	require.NoError(t, err)
	require.NotNil(t, engine)
	defer engine.Close()

	t.Run("can create coordinator", func(t *testing.T) {
		coordinator, err := engine.NewCoordinator(nil)
		require.NoError(t, err)
		require.NotNil(t, coordinator)
		coordinator.Release()
	})

	t.Run("can create searcher", func(t *testing.T) {
		searcher, err := engine.NewSearcher()
		require.NoError(t, err)
		require.NotNil(t, searcher)
	})
}

func TestEngine_SyncRoundTrip(t *testing.T) {
	engine, err := NewEngine("", WithInMemoryStorage(), WithEmbedder(mock.NewMockEmbedder()))
	require.NoError(t, err)
	defer engine.Close()

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	records := []*core.SourceRecord{
		{ID: "r1", OwnerID: "owner-1", Content: "the cat sat on the mat", CreatedAt: base},
		{ID: "r2", OwnerID: "owner-1", Content: "a dog barked at the moon", CreatedAt: base.Add(time.Second)},
	}
	_, err = engine.SourceRepository().AddSourceRecords(ctx, records...)
	require.NoError(t, err)

	coordinator, err := engine.NewCoordinator(nil)
	require.NoError(t, err)
	defer coordinator.Release()

	summary, err := coordinator.RunOnce(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)

	searcher, err := engine.NewSearcher()
	require.NoError(t, err)

	hits, err := searcher.FindSimilar(ctx, "the cat sat on the mat", 1)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "r1", hits[0].Row.ID)
}

func TestEngine_PersistsAcrossReopen(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "engine_db")
	ctx := context.Background()

	engine, err := NewEngine(tmpDir, WithEmbedder(mock.NewMockEmbedder()))
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour)
	record := &core.SourceRecord{ID: "keep", OwnerID: "owner-1", Content: "durable content", CreatedAt: base}
	_, err = engine.SourceRepository().AddSourceRecords(ctx, record)
	require.NoError(t, err)

	coordinator, err := engine.NewCoordinator(nil)
	require.NoError(t, err)
	summary, err := coordinator.RunOnce(ctx, "notes")
	require.NoError(t, err)
	require.Equal(t, 1, summary.Inserted)
	coordinator.Release()

	require.NoError(t, engine.Close())

	// Reopen: rows, watermark, and source records all survive.
	engine, err = NewEngine(tmpDir, WithEmbedder(mock.NewMockEmbedder()))
	require.NoError(t, err)
	defer engine.Close()

	row, err := engine.DestinationRepository().GetDestinationRow(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "durable content", row.Content)

	wm, err := engine.WatermarkStore().Get(ctx, "notes")
	require.NoError(t, err)
	require.NotNil(t, wm)

	coordinator, err = engine.NewCoordinator(nil)
	require.NoError(t, err)
	defer coordinator.Release()

	second, err := coordinator.RunOnce(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, 0, second.RecordsRead, "nothing changed while closed")
}
