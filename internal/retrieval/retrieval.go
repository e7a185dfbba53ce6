// Package retrieval defines the ranked-document source the network service
// reads from, and a guard that rate-limits, retries and circuit-breaks calls
// to it.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/errors"
)

// Document is one ranked search result.
type Document struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}

// Text joins title and abstract as two sentences, so that the title forms
// its own unit when the text is split on sentence delimiters.
func (d Document) Text() string {
	switch {
	case d.Title == "":
		return d.Abstract
	case d.Abstract == "":
		return d.Title
	}
	return d.Title + ". " + d.Abstract
}

// Retriever returns up to max documents for query, most relevant first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, max int) ([]Document, error)
}

// RetrieverFunc adapts a function to Retriever.
type RetrieverFunc func(ctx context.Context, query string, max int) ([]Document, error)

func (f RetrieverFunc) Retrieve(ctx context.Context, query string, max int) ([]Document, error) {
	return f(ctx, query, max)
}

// ErrNoResults is returned when the source has no document for the query.
var ErrNoResults = errors.New("no documents found")

// Error is a retrieval failure. It matches apperrors.ErrRetrieval, and also
// ErrNoResults when the source returned nothing.
type Error struct {
	Source string
	Query  string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retrieval from %s for %q: %v", e.Source, e.Query, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{apperrors.ErrRetrieval, e.Err}
}

// IsNoResults reports whether err means the source found nothing.
func IsNoResults(err error) bool {
	return errors.Is(err, ErrNoResults)
}
