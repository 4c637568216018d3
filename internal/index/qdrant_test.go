//go:build integration
// +build integration

package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupQdrant connects to a local qdrant or skips.
func setupQdrant(t *testing.T) *QdrantStore {
	store, err := NewQdrantStore("localhost", 6334)
	if err != nil {
		t.Skipf("qdrant not available: %v", err)
	}
	return store
}

func TestQdrantStore_PersistSearchDelete(t *testing.T) {
	store := setupQdrant(t)
	defer store.Close()

	ctx := context.Background()
	model := wordModel{dim: 32}
	sessionID := "it_persist_search"

	built, err := Build(ctx, model, testChunks())
	require.NoError(t, err)
	require.NoError(t, store.Persist(ctx, sessionID, built))
	defer store.Delete(ctx, sessionID)

	query, _ := model.Embed(ctx, []string{"alpha beta"})
	results, err := store.Search(ctx, sessionID, query[0], 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.NotEmpty(t, results[0].Chunk.Source)

	// Delete twice: second must succeed silently.
	require.NoError(t, store.Delete(ctx, sessionID))
	require.NoError(t, store.Delete(ctx, sessionID))

	_, err = store.Search(ctx, sessionID, query[0], 2)
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestQdrantStore_LoadReconstructsEntries(t *testing.T) {
	store := setupQdrant(t)
	defer store.Close()

	ctx := context.Background()
	model := wordModel{dim: 32}
	sessionID := "it_load"

	built, err := Build(ctx, model, testChunks())
	require.NoError(t, err)
	require.NoError(t, store.Persist(ctx, sessionID, built))
	defer store.Delete(ctx, sessionID)

	loaded, err := store.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, built.Dimension, loaded.Dimension)
	assert.Len(t, loaded.Entries, len(built.Entries))
}

func TestQdrantStore_SearchMissingSession(t *testing.T) {
	store := setupQdrant(t)
	defer store.Close()

	_, err := store.Search(context.Background(), "it_never_ingested", make([]float32, 32), 4)
	assert.ErrorIs(t, err, ErrIndexNotFound)
}
