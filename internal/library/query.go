package library

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/textproc"
)

type QueryType int

const (
	QueryOR QueryType = iota
	QueryAND
)

// QueryPlan is a parsed boolean query over normalized terms.
type QueryPlan struct {
	Terms        []string
	ExcludeTerms []string
	Type         QueryType
	RawQuery     string
}

// Parse reads free text with optional AND, OR and NOT operators. Plain
// queries match any term. Each word is normalized the same way documents
// are; words that normalize to nothing are dropped and a pending NOT carries
// over to the next word.
func Parse(query string, normalizer *textproc.Normalizer) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		Type:         QueryOR,
		RawQuery:     query,
	}
	excludeNext := false
	for _, word := range strings.Fields(query) {
		switch word {
		case "AND":
			plan.Type = QueryAND
			continue
		case "OR":
			plan.Type = QueryOR
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		terms := normalizer.Normalize(word)
		if len(terms) == 0 {
			continue
		}
		if excludeNext {
			plan.ExcludeTerms = append(plan.ExcludeTerms, terms...)
			excludeNext = false
		} else {
			plan.Terms = append(plan.Terms, terms...)
		}
	}
	return plan
}
