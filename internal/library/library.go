// Package library is the local ranked-document source. Titles and abstracts
// are held in an in-memory inverted index and queries are answered with
// BM25-ranked results, so the network service can run without an external
// search API.
package library

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/textproc"
	apperrors "github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/errors"
)

type posting struct {
	docID     string
	frequency int
}

type entry struct {
	doc    retrieval.Document
	length int
}

// Library indexes documents for BM25 retrieval. It is safe for concurrent
// use.
type Library struct {
	mu         sync.RWMutex
	docs       map[string]*entry
	index      map[string]map[string]*posting
	totalLen   int
	normalizer *textproc.Normalizer
	logger     *slog.Logger
}

// New creates an empty Library that tokenizes with normalizer.
func New(normalizer *textproc.Normalizer) *Library {
	return &Library{
		docs:       make(map[string]*entry),
		index:      make(map[string]map[string]*posting),
		normalizer: normalizer,
		logger:     slog.Default().With("component", "library"),
	}
}

// NewDefault creates an empty Library with the index analyzer: English stop
// words removed and Porter stemming applied.
func NewDefault() (*Library, error) {
	n, err := textproc.New(textproc.Options{DefaultStopWords: true, Stem: true})
	if err != nil {
		return nil, err
	}
	return New(n), nil
}

// ContentID derives a stable document ID from its content.
func ContentID(title, abstract string) string {
	sum := sha256.Sum256([]byte(title + "\x00" + abstract))
	return hex.EncodeToString(sum[:8])
}

// Add indexes doc. A missing ID is derived from the content. Adding an ID
// that is already present fails with apperrors.ErrDocumentExists.
func (l *Library) Add(doc retrieval.Document) (retrieval.Document, error) {
	doc.Title = strings.TrimSpace(doc.Title)
	doc.Abstract = strings.TrimSpace(doc.Abstract)
	if doc.Title == "" && doc.Abstract == "" {
		return doc, apperrors.New(apperrors.ErrInvalidInput, 400, "document has no text")
	}
	if doc.ID == "" {
		doc.ID = ContentID(doc.Title, doc.Abstract)
	}

	tokens := l.normalizer.Normalize(doc.Title + " " + doc.Abstract)
	freqs := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freqs[tok]++
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.docs[doc.ID]; exists {
		return doc, fmt.Errorf("document %s: %w", doc.ID, apperrors.ErrDocumentExists)
	}
	for term, f := range freqs {
		postings, ok := l.index[term]
		if !ok {
			postings = make(map[string]*posting)
			l.index[term] = postings
		}
		postings[doc.ID] = &posting{docID: doc.ID, frequency: f}
	}
	l.docs[doc.ID] = &entry{doc: doc, length: len(tokens)}
	l.totalLen += len(tokens)
	return doc, nil
}

// AddAll adds docs, skipping duplicates, and returns how many were added.
func (l *Library) AddAll(docs []retrieval.Document) int {
	added := 0
	for _, d := range docs {
		if _, err := l.Add(d); err != nil {
			l.logger.Debug("skipping document", "doc_id", d.ID, "error", err)
			continue
		}
		added++
	}
	return added
}

// Get returns the document stored under id.
func (l *Library) Get(id string) (retrieval.Document, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.docs[id]
	if !ok {
		return retrieval.Document{}, false
	}
	return e.doc, true
}

// Len returns the number of documents.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.docs)
}

// Ping reports an error when the library is empty; used as a health probe.
func (l *Library) Ping(context.Context) error {
	if l.Len() == 0 {
		return fmt.Errorf("library is empty")
	}
	return nil
}

// Retrieve implements retrieval.Retriever.
func (l *Library) Retrieve(ctx context.Context, query string, max int) ([]retrieval.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plan := Parse(query, l.normalizer)
	if len(plan.Terms) == 0 {
		return nil, fmt.Errorf("%w: query %q has no searchable terms", apperrors.ErrInvalidInput, query)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	candidates := l.candidates(plan)
	if len(candidates) == 0 {
		return []retrieval.Document{}, nil
	}
	scored := l.score(plan.Terms, candidates)
	if max > 0 && len(scored) > max {
		scored = scored[:max]
	}
	out := make([]retrieval.Document, 0, len(scored))
	for _, s := range scored {
		out = append(out, l.docs[s.docID].doc)
	}
	return out, nil
}

// candidates applies the boolean plan. Must be called with the read lock.
func (l *Library) candidates(plan *QueryPlan) map[string]bool {
	var set map[string]bool
	for _, term := range plan.Terms {
		postings := l.index[term]
		switch {
		case set == nil:
			set = make(map[string]bool, len(postings))
			for id := range postings {
				set[id] = true
			}
		case plan.Type == QueryAND:
			for id := range set {
				if _, ok := postings[id]; !ok {
					delete(set, id)
				}
			}
		default:
			for id := range postings {
				set[id] = true
			}
		}
	}
	for _, term := range plan.ExcludeTerms {
		for id := range l.index[term] {
			delete(set, id)
		}
	}
	return set
}
