package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/library"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/textproc"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/metrics"
)

type fakeProducer struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (f *fakeProducer) Publish(_ context.Context, e kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

func (f *fakeProducer) Close() error { return nil }

type memStore struct {
	docs []retrieval.Document
	err  error
}

func (m *memStore) Put(_ context.Context, d retrieval.Document) error {
	if m.err != nil {
		return m.err
	}
	m.docs = append(m.docs, d)
	return nil
}

func (m *memStore) All(context.Context) ([]retrieval.Document, error) { return m.docs, nil }
func (m *memStore) Close() error                                       { return nil }

type fakeCache struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *fakeCache) Invalidate(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 1, c.err
}

func (c *fakeCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fixture struct {
	mux      *http.ServeMux
	lib      *library.Library
	store    *memStore
	producer *fakeProducer
	cache    *fakeCache
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	n, err := textproc.New(textproc.Options{DefaultStopWords: true})
	require.NoError(t, err)
	f := &fixture{
		lib:      library.New(n),
		store:    &memStore{},
		producer: &fakeProducer{},
		cache:    &fakeCache{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	pub := publisher.New(f.lib,
		publisher.WithStore(f.store),
		publisher.WithProducer(f.producer),
		publisher.WithCache(f.cache),
		publisher.WithMetrics(f.metrics),
	)
	f.mux = http.NewServeMux()
	New(pub).Register(f.mux)
	return f
}

func (f *fixture) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestAddDocument(t *testing.T) {
	f := newFixture(t)

	rec := f.post(`{"title":"IoT sensor networks","abstract":"Sensors talk to gateways."}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ingestion.AddDocumentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, library.ContentID("IoT sensor networks", "Sensors talk to gateways."), resp.DocumentID)
	assert.Equal(t, "INDEXED", resp.Status)
	assert.Equal(t, 1, resp.LibraryDocuments)

	assert.Equal(t, 1, f.lib.Len())
	assert.Len(t, f.store.docs, 1)
	require.Len(t, f.producer.events, 1)
	assert.Equal(t, resp.DocumentID, f.producer.events[0].Key)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LibraryDocuments))
}

func TestAddDocumentDuplicate(t *testing.T) {
	f := newFixture(t)
	body := `{"id":"paper-1","title":"Graphs","abstract":"Edges and vertices."}`

	require.Equal(t, http.StatusCreated, f.post(body).Code)
	rec := f.post(body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
	assert.Len(t, f.store.docs, 1)
	assert.Equal(t, 1, f.cache.count())
}

func TestAddDocumentValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.post(`{"title":"  ","abstract":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Error)
	assert.Contains(t, body.Fields, "title")
	assert.Contains(t, body.Fields, "abstract")

	assert.Equal(t, http.StatusBadRequest, f.post(`{not json`).Code)
	assert.Equal(t, 0, f.lib.Len())
}

func TestAddDocumentStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("disk full")

	rec := f.post(`{"title":"Graphs","abstract":"Edges."}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, f.lib.Len())
}

func TestAddDocumentProducerFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.producer.err = errors.New("broker down")

	rec := f.post(`{"title":"Graphs","abstract":"Edges."}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, f.lib.Len())
}

func TestAddDocumentInvalidatesNetworkCache(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusCreated, f.post(`{"title":"Graphs","abstract":"Edges."}`).Code)
	assert.Equal(t, 1, f.cache.count())

	f.post(`{"title":"  ","abstract":""}`)
	assert.Equal(t, 1, f.cache.count())
}

func TestAddDocumentCacheFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.cache.err = errors.New("redis down")

	rec := f.post(`{"title":"Graphs","abstract":"Edges."}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, f.lib.Len())
}
