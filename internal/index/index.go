// Package index builds, persists, and searches per-collection vector
// indexes over chunk embeddings.
//
// Relevance convention: Result.Score is cosine similarity, higher is more
// relevant, and search results are ordered best-first (descending).
package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/mlewan/docquery/internal/document"
	"github.com/mlewan/docquery/internal/embedding"
)

// Entry pairs one chunk with its embedding vector.
type Entry struct {
	ID     string         `json:"id"`
	Chunk  document.Chunk `json:"chunk"`
	Vector []float32      `json:"vector"`
}

// Index is an immutable in-memory vector index for one collection. It is
// built once at ingestion, persisted, and loaded read-only at query time.
type Index struct {
	Dimension int     `json:"dimension"`
	Entries   []Entry `json:"entries"`
}

// Result is one search hit. Score is cosine similarity (higher is better).
type Result struct {
	Chunk document.Chunk
	Score float64
}

// Store persists indexes under locations derived solely from a session id.
// One session owns exactly one index; Delete is idempotent.
type Store interface {
	Persist(ctx context.Context, sessionID string, idx *Index) error
	Load(ctx context.Context, sessionID string) (*Index, error)
	Search(ctx context.Context, sessionID string, vector []float32, k int) ([]Result, error)
	Delete(ctx context.Context, sessionID string) error
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// Build embeds every chunk with the given model and assembles an index.
// Chunk order is preserved in the entries.
func Build(ctx context.Context, model embedding.Model, chunks []document.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to index", document.ErrInvalidInput)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := model.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vectors), len(chunks))
	}

	idx := &Index{Dimension: model.Dimension(), Entries: make([]Entry, len(chunks))}
	for i, chunk := range chunks {
		if len(vectors[i]) != idx.Dimension {
			return nil, fmt.Errorf("chunk %d has %d dimensions, expected %d", i, len(vectors[i]), idx.Dimension)
		}
		idx.Entries[i] = Entry{
			ID:     uuid.New().String(),
			Chunk:  chunk,
			Vector: vectors[i],
		}
	}
	return idx, nil
}

// Search returns the k nearest entries by cosine similarity, best-first.
// If the index holds fewer than k entries all of them are returned.
func (idx *Index) Search(vector []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", document.ErrInvalidInput, k)
	}
	if len(vector) != idx.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", document.ErrInvalidInput, len(vector), idx.Dimension)
	}

	results := make([]Result, len(idx.Entries))
	for i, entry := range idx.Entries {
		results[i] = Result{Chunk: entry.Chunk, Score: cosine(vector, entry.Vector)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// cosine computes cosine similarity; zero-norm vectors score 0.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
