package indexer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlewan/docquery/internal/artifacts"
	"github.com/mlewan/docquery/internal/chunker"
	"github.com/mlewan/docquery/internal/completion"
	"github.com/mlewan/docquery/internal/document"
	"github.com/mlewan/docquery/internal/extract"
	"github.com/mlewan/docquery/internal/index"
	"github.com/mlewan/docquery/internal/insights"
)

// fakeExtractor serves canned extraction results keyed by path.
type fakeExtractor struct {
	results map[string]*extract.Result
}

func (f *fakeExtractor) Extract(path string) (*extract.Result, error) {
	result, ok := f.results[path]
	if !ok {
		return nil, fmt.Errorf("open pdf %s: no such file", path)
	}
	return result, nil
}

// hashModel is a deterministic bag-of-words embedding.
type hashModel struct {
	dim int
	err error
}

func (m hashModel) Dimension() int { return m.dim }

func (m hashModel) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, m.dim)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(word))
			v[int(h.Sum32())%m.dim]++
		}
		vectors[i] = v
	}
	return vectors, nil
}

// okGateway returns a fixed reply for every prompt.
type okGateway struct{ err error }

func (g okGateway) Complete(_ context.Context, prompt string, _ float64) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if strings.Contains(prompt, "Summary:") {
		return "A three page report.", nil
	}
	return "- item one\n- item two", nil
}

func threePageDoc(path string) *extract.Result {
	name := path[strings.LastIndex(path, "/")+1:]
	result := &extract.Result{Document: document.Document{Name: name, Path: path}}
	for i := 1; i <= 3; i++ {
		result.Document.Pages = append(result.Document.Pages, document.Page{
			Source:     name,
			FilePath:   path,
			Number:     i,
			TotalPages: 3,
			Text:       fmt.Sprintf("Page %d of %s talks about topic number %d in detail.", i, name, i),
			Blocks:     []document.TextBlock{{Text: "line", BBox: [4]float64{1, 2, 3, 4}}},
		})
	}
	return result
}

type fixture struct {
	pipeline  *Pipeline
	store     *index.FileStore
	artifacts *artifacts.Store
}

func newFixture(t *testing.T, extractor Extractor, gw completion.Gateway, model hashModel) fixture {
	t.Helper()
	dir := t.TempDir()
	store := index.NewFileStore(dir)
	artifactStore := artifacts.NewStore(dir)
	c, err := chunker.New(120, 20)
	require.NoError(t, err)

	return fixture{
		pipeline:  NewPipeline(extractor, c, model, store, artifactStore, insights.New(gw, 0, 0, nil), nil),
		store:     store,
		artifacts: artifactStore,
	}
}

func TestIngest_ThreePagePDFWithoutTables(t *testing.T) {
	extractor := &fakeExtractor{results: map[string]*extract.Result{
		"/in/report.pdf": threePageDoc("/in/report.pdf"),
	}}
	fx := newFixture(t, extractor, okGateway{}, hashModel{dim: 32})

	result, err := fx.pipeline.Ingest(context.Background(), "sess1", []string{"/in/report.pdf"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Greater(t, result.ChunksCreated, 0)
	assert.Equal(t, 0, result.TablesExtracted)
	assert.GreaterOrEqual(t, result.ImagesFound, 0)
	assert.Empty(t, result.FailedDocs)
	require.NotNil(t, result.Insights)
	assert.Equal(t, "A three page report.", result.Insights.Summary)
	assert.Equal(t, document.Stats{TotalDocuments: 1, TotalPages: 3}, result.Insights.Stats)

	ok, err := fx.store.Exists(context.Background(), "sess1")
	require.NoError(t, err)
	assert.True(t, ok)

	tables, err := fx.artifacts.LoadTables("sess1")
	require.NoError(t, err)
	assert.Empty(t, tables)

	saved, err := fx.artifacts.LoadInsights("sess1")
	require.NoError(t, err)
	assert.Equal(t, result.Insights, saved)
}

func TestIngest_CompletionFailureStillCompletes(t *testing.T) {
	extractor := &fakeExtractor{results: map[string]*extract.Result{
		"/in/report.pdf": threePageDoc("/in/report.pdf"),
	}}
	fx := newFixture(t, extractor, okGateway{err: completion.ErrBackend}, hashModel{dim: 32})

	result, err := fx.pipeline.Ingest(context.Background(), "sess2", []string{"/in/report.pdf"})
	require.NoError(t, err)

	assert.Equal(t, insights.FallbackSummary, result.Insights.Summary)
	assert.Empty(t, result.Insights.KeyConcepts)
	assert.Empty(t, result.Insights.SuggestedQuestions)
	assert.Equal(t, document.Stats{TotalDocuments: 1, TotalPages: 3}, result.Insights.Stats)

	ok, err := fx.store.Exists(context.Background(), "sess2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIngest_PerDocumentFailureIsAbsorbed(t *testing.T) {
	extractor := &fakeExtractor{results: map[string]*extract.Result{
		"/in/good.pdf": threePageDoc("/in/good.pdf"),
	}}
	fx := newFixture(t, extractor, okGateway{}, hashModel{dim: 32})

	result, err := fx.pipeline.Ingest(context.Background(), "sess3", []string{"/in/good.pdf", "/in/broken.pdf"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.DocumentsProcessed)
	require.Len(t, result.FailedDocs, 1)
	assert.Equal(t, "/in/broken.pdf", result.FailedDocs[0].Path)
}

func TestIngest_EmptyInputSet(t *testing.T) {
	fx := newFixture(t, &fakeExtractor{}, okGateway{}, hashModel{dim: 32})

	_, err := fx.pipeline.Ingest(context.Background(), "sess4", nil)
	assert.ErrorIs(t, err, document.ErrInvalidInput)
}

func TestIngest_AllDocumentsFail(t *testing.T) {
	fx := newFixture(t, &fakeExtractor{}, okGateway{}, hashModel{dim: 32})

	_, err := fx.pipeline.Ingest(context.Background(), "sess5", []string{"/in/a.pdf", "/in/b.pdf"})
	assert.ErrorIs(t, err, document.ErrInvalidInput)
}

// A fatal indexing failure must leave no partial bundle behind.
func TestIngest_FatalFailureCleansUp(t *testing.T) {
	extractor := &fakeExtractor{results: map[string]*extract.Result{
		"/in/report.pdf": threePageDoc("/in/report.pdf"),
	}}
	fx := newFixture(t, extractor, okGateway{}, hashModel{dim: 32, err: errors.New("embedding backend down")})

	_, err := fx.pipeline.Ingest(context.Background(), "sess6", []string{"/in/report.pdf"})
	require.Error(t, err)

	ok, statErr := fx.store.Exists(context.Background(), "sess6")
	require.NoError(t, statErr)
	assert.False(t, ok)

	_, err = fx.artifacts.LoadInsights("sess6")
	assert.ErrorIs(t, err, artifacts.ErrInsightsNotFound)
}
