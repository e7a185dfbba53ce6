package textproc

import (
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
)

var irregularNouns = map[string]string{
	"children":   "child",
	"men":        "man",
	"women":      "woman",
	"feet":       "foot",
	"teeth":      "tooth",
	"geese":      "goose",
	"mice":       "mouse",
	"people":     "person",
	"criteria":   "criterion",
	"phenomena":  "phenomenon",
	"indices":    "index",
	"matrices":   "matrix",
	"vertices":   "vertex",
	"analyses":   "analysis",
	"hypotheses": "hypothesis",
	"series":     "series",
	"species":    "species",
	"caches":     "cache",
	"niches":     "niche",
}

// Words ending in s that are already singular.
var invariantSuffixes = []string{"ss", "us", "is", "ous", "ics"}

var pluralRules = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ies", "y", 2},
	{"sses", "ss", 2},
	{"xes", "x", 2},
	{"ches", "ch", 2},
	{"shes", "sh", 2},
	{"s", "", 3},
}

// Lemmatizer reduces plural nouns to their singular form. It is a
// dictionary-free approximation: irregular forms come from a fixed table and
// regular plurals from suffix rules.
type Lemmatizer struct{}

// NewLemmatizer returns a Lemmatizer token filter.
func NewLemmatizer() *Lemmatizer { return &Lemmatizer{} }

// Filter rewrites every token term in place.
func (l *Lemmatizer) Filter(input analysis.TokenStream) analysis.TokenStream {
	for _, tok := range input {
		if tok.KeyWord {
			continue
		}
		lemma := Lemmatize(string(tok.Term))
		if lemma != string(tok.Term) {
			tok.Term = []byte(lemma)
		}
	}
	return input
}

// Lemmatize returns the singular form of word.
func Lemmatize(word string) string {
	if lemma, ok := irregularNouns[word]; ok {
		return lemma
	}
	for _, suffix := range invariantSuffixes {
		if strings.HasSuffix(word, suffix) {
			return word
		}
	}
	for _, rule := range pluralRules {
		if !strings.HasSuffix(word, rule.suffix) {
			continue
		}
		stem := word[:len(word)-len(rule.suffix)]
		if len(stem) < rule.minLen {
			return word
		}
		return stem + rule.replacement
	}
	return word
}
