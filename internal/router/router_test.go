package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoute(t *testing.T) {
	r := New(nil)

	cases := []struct {
		question string
		want     Kind
	}{
		{"What was the total revenue last year?", TableQuery},
		{"Show me the values in the first ROW", TableQuery},
		{"Which Table lists regional sales?", TableQuery},
		{"Summarize the introduction chapter", DocumentQuery},
		{"Who wrote this report?", DocumentQuery},
		{"", DocumentQuery},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, r.Route(tc.question), "question: %q", tc.question)
	}
}

func TestRoute_CustomVocabulary(t *testing.T) {
	r := New([]string{"headcount"})

	assert.Equal(t, TableQuery, r.Route("What is the HEADCOUNT per office?"))
	// Default terms are replaced, not merged.
	assert.Equal(t, DocumentQuery, r.Route("What was the revenue?"))
}
