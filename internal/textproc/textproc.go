// Package textproc turns raw titles and abstracts into the normalized token
// sequences consumed by the proximity pipeline. It lower-cases input, strips
// markup and punctuation, removes stop-words, and optionally lemmatizes and
// stems each token.
package textproc

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

const minTokenRunes = 2

// Options configures a Normalizer. Every flag is explicit; nothing is read
// from process-wide state.
type Options struct {
	// StopWords are removed in addition to the default list.
	StopWords []string
	// DefaultStopWords enables the built-in English stop-word list.
	DefaultStopWords bool
	Lemmatize        bool
	Stem             bool
}

// Normalizer is an immutable token pipeline. It is safe for concurrent use.
type Normalizer struct {
	opts      Options
	tokenizer analysis.Tokenizer
	filters   []analysis.TokenFilter
}

// New builds a Normalizer for opts.
func New(opts Options) (*Normalizer, error) {
	stopWords := analysis.NewTokenMap()
	if opts.DefaultStopWords {
		if err := stopWords.LoadBytes(en.EnglishStopWords); err != nil {
			return nil, err
		}
	}
	for _, w := range opts.StopWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			stopWords.AddToken(w)
		}
	}

	filters := []analysis.TokenFilter{
		lowercase.NewLowerCaseFilter(),
		alphanumericFilter{},
	}
	if len(stopWords) > 0 {
		filters = append(filters, stop.NewStopTokensFilter(stopWords))
	}
	if opts.Lemmatize {
		filters = append(filters, NewLemmatizer())
	}
	if opts.Stem {
		filters = append(filters, porter.NewPorterStemmer())
	}
	filters = append(filters, minLengthFilter{min: minTokenRunes})

	return &Normalizer{
		opts:      opts,
		tokenizer: unicodetok.NewUnicodeTokenizer(),
		filters:   filters,
	}, nil
}

// Options returns the options the Normalizer was built with.
func (n *Normalizer) Options() Options { return n.opts }

// Normalize returns the ordered token sequence for text.
func (n *Normalizer) Normalize(text string) []string {
	stream := n.tokenizer.Tokenize([]byte(StripMarkup(text)))
	for _, f := range n.filters {
		stream = f.Filter(stream)
	}
	out := make([]string, 0, len(stream))
	for _, tok := range stream {
		out = append(out, string(tok.Term))
	}
	return out
}

// NormalizeAll normalizes each text independently, preserving order.
func (n *Normalizer) NormalizeAll(texts []string) [][]string {
	out := make([][]string, len(texts))
	for i, t := range texts {
		out[i] = n.Normalize(t)
	}
	return out
}

// alphanumericFilter drops tokens containing anything other than letters and
// digits, such as punctuation runs or contractions.
type alphanumericFilter struct{}

func (alphanumericFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := input[:0]
	for _, tok := range input {
		if isAlphanumeric(tok.Term) {
			out = append(out, tok)
		}
	}
	return out
}

func isAlphanumeric(term []byte) bool {
	if len(term) == 0 {
		return false
	}
	for _, r := range string(term) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

type minLengthFilter struct {
	min int
}

func (f minLengthFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := input[:0]
	for _, tok := range input {
		if utf8.RuneCount(tok.Term) >= f.min {
			out = append(out, tok)
		}
	}
	return out
}
