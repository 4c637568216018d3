package index

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlewan/docquery/internal/document"
)

// wordModel is a deterministic bag-of-words embedding for tests.
type wordModel struct{ dim int }

func (m wordModel) Dimension() int { return m.dim }

func (m wordModel) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, m.dim)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(word))
			v[int(h.Sum32())%m.dim]++
		}
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		if norm > 0 {
			scale := float32(1 / math.Sqrt(norm))
			for j := range v {
				v[j] *= scale
			}
		}
		vectors[i] = v
	}
	return vectors, nil
}

func testChunks() []document.Chunk {
	return []document.Chunk{
		{Text: "alpha beta gamma", Source: "a.pdf", Page: 1, TotalPages: 2},
		{Text: "delta epsilon zeta", Source: "a.pdf", Page: 2, TotalPages: 2},
		{Text: "alpha alpha beta", Source: "b.pdf", Page: 1, TotalPages: 1},
	}
}

func TestBuild(t *testing.T) {
	model := wordModel{dim: 32}
	idx, err := Build(context.Background(), model, testChunks())
	require.NoError(t, err)

	assert.Equal(t, 32, idx.Dimension)
	require.Len(t, idx.Entries, 3)
	assert.Equal(t, "alpha beta gamma", idx.Entries[0].Chunk.Text)
	assert.NotEmpty(t, idx.Entries[0].ID)
	assert.NotEqual(t, idx.Entries[0].ID, idx.Entries[1].ID)
}

func TestBuild_NoChunks(t *testing.T) {
	_, err := Build(context.Background(), wordModel{dim: 8}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrInvalidInput)
}

func TestSearch_OrderedBestFirst(t *testing.T) {
	model := wordModel{dim: 32}
	ctx := context.Background()
	idx, err := Build(ctx, model, testChunks())
	require.NoError(t, err)

	query, err := model.Embed(ctx, []string{"alpha beta"})
	require.NoError(t, err)

	results, err := idx.Search(query[0], 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.Contains(t, []string{"alpha beta gamma", "alpha alpha beta"}, results[0].Chunk.Text)
}

func TestSearch_KExceedsIndexSize(t *testing.T) {
	model := wordModel{dim: 32}
	ctx := context.Background()
	idx, err := Build(ctx, model, testChunks())
	require.NoError(t, err)

	query, _ := model.Embed(ctx, []string{"alpha"})
	results, err := idx.Search(query[0], 50)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearch_InvalidK(t *testing.T) {
	idx := &Index{Dimension: 4, Entries: []Entry{{Vector: []float32{1, 0, 0, 0}}}}
	_, err := idx.Search([]float32{1, 0, 0, 0}, 0)
	assert.ErrorIs(t, err, document.ErrInvalidInput)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	idx := &Index{Dimension: 4, Entries: []Entry{{Vector: []float32{1, 0, 0, 0}}}}
	_, err := idx.Search([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, document.ErrInvalidInput)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 3}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 1}))
}
