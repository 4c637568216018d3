// Package query answers questions against a previously ingested
// session. Each question is routed to one of two modes: questions that
// look tabular are answered from the session's extracted tables, all
// others through vector retrieval over the indexed chunks.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mlewan/docquery/internal/answer"
	"github.com/mlewan/docquery/internal/artifacts"
	"github.com/mlewan/docquery/internal/document"
	"github.com/mlewan/docquery/internal/embedding"
	"github.com/mlewan/docquery/internal/index"
	"github.com/mlewan/docquery/internal/router"
)

const (
	// DefaultK is the number of chunks retrieved per question.
	DefaultK = 4
	// MaxK caps the retrieval depth a caller may request.
	MaxK = 20
)

// Answer is the response to a single question.
type Answer struct {
	Answer      string          `json:"answer"`
	Type        router.Kind     `json:"query_type"`
	Sources     []answer.Source `json:"sources,omitempty"`
	ContextUsed int             `json:"context_used,omitempty"`
}

// Service resolves questions for ingested sessions.
type Service struct {
	model     embedding.Model
	store     index.Store
	artifacts *artifacts.Store
	router    *router.Router
	synth     *answer.Synthesizer
	logger    *slog.Logger
}

// NewService creates a query service over the given index and artifact
// stores.
func NewService(
	model embedding.Model,
	store index.Store,
	artifactStore *artifacts.Store,
	rt *router.Router,
	synth *answer.Synthesizer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		model:     model,
		store:     store,
		artifacts: artifactStore,
		router:    rt,
		synth:     synth,
		logger:    logger,
	}
}

// Ask answers a question against a session. k controls retrieval depth
// for the document path; zero selects DefaultK. A table-flavored
// question falls back to document retrieval when the session holds no
// tables.
func (s *Service) Ask(ctx context.Context, sessionID, question string, k int) (*Answer, error) {
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", document.ErrInvalidInput)
	}
	if k <= 0 {
		k = DefaultK
	}
	if k > MaxK {
		k = MaxK
	}

	exists, err := s.store.Exists(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("session %s: %w", sessionID, index.ErrIndexNotFound)
	}

	kind := s.router.Route(question)
	if kind == router.TableQuery {
		tables, err := s.artifacts.LoadTables(sessionID)
		if err != nil {
			return nil, fmt.Errorf("load tables: %w", err)
		}
		if len(tables) > 0 {
			return s.askTables(ctx, question, tables)
		}
		s.logger.Debug("no tables in session, using document retrieval",
			"session", sessionID)
	}
	return s.askDocuments(ctx, sessionID, question, k)
}

func (s *Service) askTables(ctx context.Context, question string, tables []document.Table) (*Answer, error) {
	text, err := s.synth.FromTables(ctx, question, tables)
	if err != nil {
		return nil, err
	}
	return &Answer{Answer: text, Type: router.TableQuery}, nil
}

func (s *Service) askDocuments(ctx context.Context, sessionID, question string, k int) (*Answer, error) {
	vectors, err := s.model.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	retrieved, err := s.store.Search(ctx, sessionID, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("search session %s: %w", sessionID, err)
	}
	doc, err := s.synth.FromChunks(ctx, question, retrieved)
	if err != nil {
		return nil, err
	}
	return &Answer{
		Answer:      doc.Answer,
		Type:        router.DocumentQuery,
		Sources:     doc.Sources,
		ContextUsed: doc.ContextUsed,
	}, nil
}

// Insights returns the stored insights for a session.
func (s *Service) Insights(sessionID string) (*document.Insights, error) {
	return s.artifacts.LoadInsights(sessionID)
}

// Delete removes the session's index and artifacts. Deleting a session
// that does not exist is not an error.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	return errors.Join(
		s.store.Delete(ctx, sessionID),
		s.artifacts.Delete(sessionID),
	)
}
