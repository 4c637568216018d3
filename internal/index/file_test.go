package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlewan/docquery/internal/document"
)

func TestFileStore_RoundTrip(t *testing.T) {
	model := wordModel{dim: 32}
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	built, err := Build(ctx, model, testChunks())
	require.NoError(t, err)
	require.NoError(t, store.Persist(ctx, "session-1", built))

	loaded, err := store.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, built.Dimension, loaded.Dimension)
	require.Len(t, loaded.Entries, len(built.Entries))

	// Search behavior must be identical between the just-built index and
	// the reloaded one.
	query, _ := model.Embed(ctx, []string{"alpha beta"})
	fresh, err := built.Search(query[0], 3)
	require.NoError(t, err)
	reloaded, err := loaded.Search(query[0], 3)
	require.NoError(t, err)

	require.Len(t, reloaded, len(fresh))
	for i := range fresh {
		assert.Equal(t, fresh[i].Chunk, reloaded[i].Chunk)
		assert.InDelta(t, fresh[i].Score, reloaded[i].Score, 1e-9)
	}
}

func TestFileStore_LoadNotFound(t *testing.T) {
	store := NewFileStore(t.TempDir())
	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bad"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad", indexFileName), []byte("not json"), 0o644))

	_, err := store.Load(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrIndexCorrupt)
}

func TestFileStore_LoadDimensionMismatchIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bad"), 0o755))
	payload := `{"dimension":4,"entries":[{"id":"x","chunk":{"text":"t"},"vector":[1,2]}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad", indexFileName), []byte(payload), 0o644))

	_, err := store.Load(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrIndexCorrupt)
}

func TestFileStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	built, err := Build(ctx, wordModel{dim: 8}, testChunks())
	require.NoError(t, err)
	require.NoError(t, store.Persist(ctx, "gone", built))

	require.NoError(t, store.Delete(ctx, "gone"))
	require.NoError(t, store.Delete(ctx, "gone"))
	require.NoError(t, store.Delete(ctx, "never-existed"))

	_, err = store.Load(ctx, "gone")
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestFileStore_Exists(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	ok, err := store.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	built, err := Build(ctx, wordModel{dim: 8}, testChunks())
	require.NoError(t, err)
	require.NoError(t, store.Persist(ctx, "yes", built))

	ok, err = store.Exists(ctx, "yes")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStore_RejectsUnsafeSessionID(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	for _, id := range []string{"", "../escape", "a/b", "a b"} {
		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, document.ErrInvalidInput, "session id %q", id)
	}
}
