// Package insights derives a summary, key concepts, and suggested
// questions from a sample of a collection's pages at ingestion time.
package insights

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mlewan/docquery/internal/completion"
	"github.com/mlewan/docquery/internal/document"
)

const (
	// DefaultSummaryBudget caps the text handed to the summary prompt.
	DefaultSummaryBudget = 4000

	// DefaultMaxQuestions caps the suggested-question list.
	DefaultMaxQuestions = 5

	// maxConcepts caps the key-concept list.
	maxConcepts = 7

	// samplePages bounds how many early pages feed the statistics sample.
	samplePages = 10

	// summaryPages bounds how many early pages feed the prompts.
	summaryPages = 5

	// insightsTemperature keeps derived insights close to the source text.
	insightsTemperature = 0.3

	// FallbackSummary is returned when the completion backend fails.
	FallbackSummary = "Unable to generate summary due to API error"
)

// Generator produces collection insights. Completion failures degrade the
// output; they never fail ingestion.
type Generator struct {
	gateway       completion.Gateway
	summaryBudget int
	maxQuestions  int
	logger        *slog.Logger
}

// New creates a Generator. Zero budgets select the defaults; a nil logger
// falls back to slog.Default().
func New(gateway completion.Gateway, summaryBudget, maxQuestions int, logger *slog.Logger) *Generator {
	if summaryBudget <= 0 {
		summaryBudget = DefaultSummaryBudget
	}
	if maxQuestions <= 0 {
		maxQuestions = DefaultMaxQuestions
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		gateway:       gateway,
		summaryBudget: summaryBudget,
		maxQuestions:  maxQuestions,
		logger:        logger,
	}
}

// Generate analyzes a bounded sample of early pages. Document statistics
// are computed locally and are always accurate, even when every model call
// fails.
func (g *Generator) Generate(ctx context.Context, pages []document.Page) *document.Insights {
	sample := pages
	if len(sample) > samplePages {
		sample = sample[:samplePages]
	}

	result := &document.Insights{
		KeyConcepts:        []string{},
		SuggestedQuestions: []string{},
		Stats:              computeStats(sample),
	}

	text := combineText(sample, summaryPages, g.summaryBudget)
	if text == "" {
		result.Summary = FallbackSummary
		return result
	}

	summary, err := g.summarize(ctx, text)
	if err != nil {
		g.logger.Warn("summary generation degraded", "error", err)
		result.Summary = FallbackSummary
		return result
	}
	result.Summary = summary

	concepts, err := g.keyConcepts(ctx, text)
	if err != nil {
		g.logger.Warn("key-concept generation degraded", "error", err)
		return result
	}
	result.KeyConcepts = concepts

	questions, err := g.suggestedQuestions(ctx, text)
	if err != nil {
		g.logger.Warn("question generation degraded", "error", err)
		return result
	}
	result.SuggestedQuestions = questions

	return result
}

func (g *Generator) summarize(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(`Provide a concise summary of the following text.
Focus on the main points and key takeaways:

%s

Summary:`, text)
	return g.gateway.Complete(ctx, prompt, insightsTemperature)
}

func (g *Generator) keyConcepts(ctx context.Context, text string) ([]string, error) {
	prompt := fmt.Sprintf(`Analyze the following text and extract the top 5-7 key concepts, topics, or themes.
Return them as a simple bulleted list:

%s

Key Concepts:`, text)
	response, err := g.gateway.Complete(ctx, prompt, insightsTemperature)
	if err != nil {
		return nil, err
	}
	return ParseList(response, maxConcepts), nil
}

func (g *Generator) suggestedQuestions(ctx context.Context, text string) ([]string, error) {
	prompt := fmt.Sprintf(`Based on the following text, generate %d interesting and relevant questions
that a reader might want to ask. Make them specific and actionable.

%s

Questions (one per line):`, g.maxQuestions, text)
	response, err := g.gateway.Complete(ctx, prompt, insightsTemperature)
	if err != nil {
		return nil, err
	}
	return ParseList(response, g.maxQuestions), nil
}

// computeStats needs no model call: distinct sources and page count over
// the sample.
func computeStats(pages []document.Page) document.Stats {
	sources := map[string]struct{}{}
	for _, page := range pages {
		sources[page.Source] = struct{}{}
	}
	return document.Stats{
		TotalDocuments: len(sources),
		TotalPages:     len(pages),
	}
}

// combineText concatenates the first n page texts, truncated to budget.
func combineText(pages []document.Page, n, budget int) string {
	if len(pages) > n {
		pages = pages[:n]
	}
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		if strings.TrimSpace(page.Text) != "" {
			parts = append(parts, page.Text)
		}
	}
	text := strings.Join(parts, "\n\n")
	if len(text) > budget {
		text = text[:budget]
	}
	return text
}
