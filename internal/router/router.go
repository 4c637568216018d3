// Package router decides whether a question is answered from tabular data
// or from the semantic index.
package router

import "strings"

// Kind tags the two answer-generation modes.
type Kind string

const (
	TableQuery    Kind = "table_query"
	DocumentQuery Kind = "document_query"
)

// DefaultKeywords are the table-indicative terms. The keyword match is a
// cheap pre-filter, not a guarantee: the query service falls back to a
// document query when the collection has no tables.
var DefaultKeywords = []string{"table", "data", "row", "column", "value", "sales", "revenue"}

// Router routes questions by case-insensitive substring match against a
// configured vocabulary.
type Router struct {
	keywords []string
}

// New creates a Router. An empty vocabulary selects DefaultKeywords.
func New(keywords []string) *Router {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return &Router{keywords: lowered}
}

// Route classifies one question.
func (r *Router) Route(question string) Kind {
	q := strings.ToLower(question)
	for _, kw := range r.keywords {
		if strings.Contains(q, kw) {
			return TableQuery
		}
	}
	return DocumentQuery
}
