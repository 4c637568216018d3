// Package answer composes grounded prompts from retrieved context and
// produces final answers with provenance.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/mlewan/docquery/internal/completion"
	"github.com/mlewan/docquery/internal/document"
	"github.com/mlewan/docquery/internal/index"
)

const (
	// DefaultTableBudget bounds the concatenated table text in a prompt.
	DefaultTableBudget = 3000

	// previewLen bounds the text preview carried on each source.
	previewLen = 200

	// DefaultTemperature keeps answers close to the supplied context.
	DefaultTemperature = 0.3
)

// Source describes one retrieved piece of evidence. Score follows the
// index convention: cosine similarity, higher is more relevant. Blocks
// locate the evidence on the page for highlighting.
type Source struct {
	Source      string               `json:"source"`
	Page        int                  `json:"page"`
	FilePath    string               `json:"file_path"`
	Score       float64              `json:"relevance_score"`
	TextPreview string               `json:"text_preview"`
	Blocks      []document.TextBlock `json:"text_blocks"`
}

// DocumentAnswer is the result of a semantic-retrieval answer.
type DocumentAnswer struct {
	Answer      string
	Sources     []Source
	ContextUsed int
}

// Synthesizer delegates grounded prompts to a completion gateway.
type Synthesizer struct {
	gateway     completion.Gateway
	tableBudget int
	temperature float64
}

// New creates a Synthesizer. A zero table budget or temperature selects
// the respective default.
func New(gateway completion.Gateway, tableBudget int, temperature float64) *Synthesizer {
	if tableBudget <= 0 {
		tableBudget = DefaultTableBudget
	}
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	return &Synthesizer{gateway: gateway, tableBudget: tableBudget, temperature: temperature}
}

// FromTables answers strictly from the delimited form of the given tables.
// The rendered table text is truncated to the configured budget.
func (s *Synthesizer) FromTables(ctx context.Context, question string, tables []document.Table) (string, error) {
	rendered := make([]string, len(tables))
	for i, t := range tables {
		rendered[i] = fmt.Sprintf("Table from %s:\n%s", t.Source, t.CSV)
	}
	tablesText := truncate(strings.Join(rendered, "\n\n"), s.tableBudget)

	prompt := fmt.Sprintf(`Based on the following tables, answer this question: %s

Tables:
%s

Answer using only the data above. If the tables do not contain the answer, say so.

Answer:`, question, tablesText)

	reply, err := s.gateway.Complete(ctx, prompt, s.temperature)
	if err != nil {
		return "", fmt.Errorf("table answer: %w", err)
	}
	return reply, nil
}

// FromChunks answers from retrieved chunk texts, in retrieval order, and
// returns the ordered sources plus the count of context pieces used.
func (s *Synthesizer) FromChunks(ctx context.Context, question string, retrieved []index.Result) (*DocumentAnswer, error) {
	contextParts := make([]string, len(retrieved))
	sources := make([]Source, len(retrieved))
	for i, r := range retrieved {
		contextParts[i] = r.Chunk.Text
		sources[i] = Source{
			Source:      r.Chunk.Source,
			Page:        r.Chunk.Page,
			FilePath:    r.Chunk.FilePath,
			Score:       r.Score,
			TextPreview: preview(r.Chunk.Text),
			Blocks:      r.Chunk.Blocks,
		}
	}

	prompt := fmt.Sprintf(`You are a helpful assistant analyzing documents. Answer the question based on the provided context.
If the context doesn't contain the answer, say so clearly.

Context from multiple documents:
%s

Question: %s

Provide a clear, detailed answer citing specific sources when possible:`,
		strings.Join(contextParts, "\n\n"), question)

	reply, err := s.gateway.Complete(ctx, prompt, s.temperature)
	if err != nil {
		return nil, fmt.Errorf("document answer: %w", err)
	}

	return &DocumentAnswer{
		Answer:      reply,
		Sources:     sources,
		ContextUsed: len(contextParts),
	}, nil
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}

func preview(text string) string {
	if len(text) <= previewLen {
		return text
	}
	return text[:previewLen] + "..."
}
