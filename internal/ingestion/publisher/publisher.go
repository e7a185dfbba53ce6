// Package publisher adds documents to the local library, persists them in the
// configured store and announces them on Kafka.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/library"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/retrieval"
	apperrors "github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/metrics"
)

// Invalidator drops cached networks that a new document may change.
type Invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// Publisher coordinates persistence, indexing and event production. The store,
// producer, cache and metrics are optional.
type Publisher struct {
	lib      *library.Library
	store    library.Store
	producer kafka.Publisher
	cache    Invalidator
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

func WithStore(s library.Store) Option { return func(p *Publisher) { p.store = s } }

func WithProducer(k kafka.Publisher) Option { return func(p *Publisher) { p.producer = k } }

func WithCache(c Invalidator) Option { return func(p *Publisher) { p.cache = c } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Publisher) { p.metrics = m } }

func New(lib *library.Library, opts ...Option) *Publisher {
	p := &Publisher{
		lib:    lib,
		now:    time.Now,
		logger: slog.Default().With("component", "publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Add persists the document, then indexes it. A document whose ID is already
// indexed is rejected before anything is written.
func (p *Publisher) Add(ctx context.Context, req *ingestion.AddDocumentRequest) (*ingestion.AddDocumentResponse, error) {
	doc := retrieval.Document{
		ID:       strings.TrimSpace(req.ID),
		Title:    strings.TrimSpace(req.Title),
		Abstract: strings.TrimSpace(req.Abstract),
	}
	if doc.ID == "" {
		doc.ID = library.ContentID(doc.Title, doc.Abstract)
	}
	if _, exists := p.lib.Get(doc.ID); exists {
		return nil, apperrors.Newf(apperrors.ErrDocumentExists, 409, "document %s already exists", doc.ID)
	}

	if p.store != nil {
		if err := p.store.Put(ctx, doc); err != nil {
			return nil, fmt.Errorf("persisting document: %w", err)
		}
	}
	doc, err := p.lib.Add(doc)
	if err != nil {
		return nil, fmt.Errorf("indexing document: %w", err)
	}
	total := p.lib.Len()
	if p.metrics != nil {
		p.metrics.LibraryDocuments.Set(float64(total))
	}

	if p.cache != nil {
		if _, err := p.cache.Invalidate(ctx); err != nil {
			p.logger.Warn("failed to invalidate network cache",
				"doc_id", doc.ID,
				"error", err,
			)
		}
	}

	if p.producer != nil {
		event := kafka.Event{
			Key: doc.ID,
			Value: analytics.DocumentEvent{
				Type:       analytics.EventDocumentAdded,
				DocumentID: doc.ID,
				Title:      doc.Title,
				AddedAt:    p.now().UTC(),
			},
		}
		if err := p.producer.Publish(ctx, event); err != nil {
			p.logger.Error("failed to publish document event",
				"doc_id", doc.ID,
				"error", err,
			)
		}
	}
	return &ingestion.AddDocumentResponse{
		DocumentID:       doc.ID,
		Status:           "INDEXED",
		LibraryDocuments: total,
	}, nil
}
