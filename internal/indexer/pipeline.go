// Package indexer orchestrates the ingestion pipeline: extract, chunk,
// embed, persist, and derive insights for one collection.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mlewan/docquery/internal/artifacts"
	"github.com/mlewan/docquery/internal/chunker"
	"github.com/mlewan/docquery/internal/document"
	"github.com/mlewan/docquery/internal/embedding"
	"github.com/mlewan/docquery/internal/extract"
	"github.com/mlewan/docquery/internal/index"
)

// stage names the ingestion state machine steps for logging.
type stage string

const (
	stageReceived   stage = "received"
	stageExtracting stage = "extracting"
	stageChunking   stage = "chunking"
	stageIndexing   stage = "indexing"
	stagePersisting stage = "persisting"
	stageInsights   stage = "generating_insights"
	stageComplete   stage = "complete"
)

// Extractor turns one document path into pages, tables, and images.
type Extractor interface {
	Extract(path string) (*extract.Result, error)
}

// InsightsGenerator derives collection insights from sampled pages. It
// must degrade internally instead of failing.
type InsightsGenerator interface {
	Generate(ctx context.Context, pages []document.Page) *document.Insights
}

// FailedDoc records a document whose extraction failed. Such failures are
// absorbed: the rest of the collection still ingests.
type FailedDoc struct {
	Path   string
	Reason string
}

// Result contains statistics about one ingestion run.
type Result struct {
	DocumentsProcessed int
	ChunksCreated      int
	TablesExtracted    int
	ImagesFound        int
	FailedDocs         []FailedDoc
	Insights           *document.Insights
	Duration           time.Duration
}

// Pipeline runs the full ingestion for one collection. A collection is
// ingested by at most one pipeline run at a time; concurrent runs for
// different session ids are independent.
type Pipeline struct {
	extractor Extractor
	chunker   *chunker.Chunker
	model     embedding.Model
	store     index.Store
	artifacts *artifacts.Store
	insights  InsightsGenerator
	logger    *slog.Logger
}

// NewPipeline creates an ingestion pipeline from its components.
func NewPipeline(
	extractor Extractor,
	chunks *chunker.Chunker,
	model embedding.Model,
	store index.Store,
	artifactStore *artifacts.Store,
	insights InsightsGenerator,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		chunker:   chunks,
		model:     model,
		store:     store,
		artifacts: artifactStore,
		insights:  insights,
		logger:    logger,
	}
}

// Ingest processes the documents in order and persists the collection
// bundle under sessionID. On any fatal error every partially written
// artifact for the session is removed before the error is returned: the
// caller sees either a complete bundle or none.
func (p *Pipeline) Ingest(ctx context.Context, sessionID string, paths []string) (*Result, error) {
	start := time.Now()
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no input documents", document.ErrInvalidInput)
	}
	p.logStage(sessionID, stageReceived, "documents", len(paths))

	result := &Result{}

	p.logStage(sessionID, stageExtracting)
	var pages []document.Page
	var tables []document.Table
	var images []document.ImageRef
	for _, path := range paths {
		extracted, err := p.extractor.Extract(path)
		if err != nil {
			p.logger.Warn("document extraction failed", "session", sessionID, "path", path, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{Path: path, Reason: err.Error()})
			continue
		}
		for _, diag := range extracted.Diagnostics {
			p.logger.Warn("extraction diagnostic", "session", sessionID, "detail", diag)
		}
		pages = append(pages, extracted.Document.Pages...)
		tables = append(tables, extracted.Tables...)
		images = append(images, extracted.Images...)
		result.DocumentsProcessed++
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no readable pages in any input document", document.ErrInvalidInput)
	}

	p.logStage(sessionID, stageChunking, "pages", len(pages))
	chunks := p.chunker.Split(pages)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: chunking produced no output", document.ErrInvalidInput)
	}
	result.ChunksCreated = len(chunks)
	result.TablesExtracted = len(tables)
	result.ImagesFound = len(images)

	p.logStage(sessionID, stageIndexing, "chunks", len(chunks))
	idx, err := index.Build(ctx, p.model, chunks)
	if err != nil {
		return nil, p.fail(ctx, sessionID, stageIndexing, err)
	}

	p.logStage(sessionID, stagePersisting)
	if err := p.store.Persist(ctx, sessionID, idx); err != nil {
		return nil, p.fail(ctx, sessionID, stagePersisting, err)
	}

	// Insights degrade internally and never abort the run.
	p.logStage(sessionID, stageInsights)
	result.Insights = p.insights.Generate(ctx, pages)

	if err := p.artifacts.Save(sessionID, tables, images, result.Insights); err != nil {
		return nil, p.fail(ctx, sessionID, stagePersisting, err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("ingestion complete",
		"session", sessionID,
		"stage", string(stageComplete),
		"documents", result.DocumentsProcessed,
		"failed", len(result.FailedDocs),
		"chunks", result.ChunksCreated,
		"tables", result.TablesExtracted,
		"images", result.ImagesFound,
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) logStage(sessionID string, s stage, args ...any) {
	kv := append([]any{"session", sessionID, "stage", string(s)}, args...)
	p.logger.Info("ingestion stage", kv...)
}

// fail removes every artifact written for the session so no partial
// bundle survives, then wraps the causing error with its stage.
func (p *Pipeline) fail(ctx context.Context, sessionID string, s stage, cause error) error {
	if err := p.store.Delete(ctx, sessionID); err != nil {
		p.logger.Warn("index cleanup failed", "session", sessionID, "error", err)
	}
	if err := p.artifacts.Delete(sessionID); err != nil {
		p.logger.Warn("artifact cleanup failed", "session", sessionID, "error", err)
	}
	p.logger.Error("ingestion failed", "session", sessionID, "stage", string(s), "error", cause)
	return fmt.Errorf("%s: %w", s, cause)
}
