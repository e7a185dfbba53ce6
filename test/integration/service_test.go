//go:build integration

// Package integration verifies the proximity service wired against a real
// PostgreSQL database: documents added over HTTP are persisted, restored into
// a fresh library and answer network requests; analytics snapshots round-trip
// through the snapshot table. Kafka and Redis are replaced by their
// in-process counterparts.
//
// Run with:
//
//	go test -v -tags=integration ./test/integration/...
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/library"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/network"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/textproc"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/postgres"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "proximity_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "proximity"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

type testStack struct {
	server *httptest.Server
	agg    *analytics.Aggregator
	store  *library.PostgresStore
}

// newStack wires the library, ingestion, network and analytics handlers the
// way proximityd does, with the library persisted in PostgreSQL.
func newStack(t *testing.T, db *postgres.Client) *testStack {
	t.Helper()
	ctx := context.Background()

	store, err := library.NewPostgresStore(ctx, db)
	require.NoError(t, err)
	lib, err := library.NewDefault()
	require.NoError(t, err)
	_, err = lib.Restore(ctx, store)
	require.NoError(t, err)

	m := metrics.New(nil)
	cfg := config.Default()
	cfg.Proximity.Lemmatize = false

	agg := analytics.NewAggregator(cfg.Analytics, m)
	collector := analytics.NewCollector(agg.Publisher(), 100, m)
	runCtx, cancel := context.WithCancel(ctx)
	collector.Start(runCtx)
	t.Cleanup(func() {
		collector.Close()
		cancel()
	})

	normalizer, err := textproc.New(textproc.Options{DefaultStopWords: true})
	require.NoError(t, err)
	retriever := retrieval.NewGuarded("library", lib, cfg.Retrieval)
	svc, err := network.NewService(retriever, normalizer, cfg.Proximity,
		network.WithMetrics(m), network.WithTracker(collector))
	require.NoError(t, err)

	mux := http.NewServeMux()
	network.NewHandler(svc).Register(mux)
	handler.New(publisher.New(lib,
		publisher.WithStore(store),
		publisher.WithProducer(collector),
		publisher.WithMetrics(m),
	)).Register(mux)
	analytics.NewHandler(agg, nil).Register(mux)

	srv := httptest.NewServer(middleware.Chain(mux, middleware.RequestID, middleware.Timeout(10*time.Second)))
	t.Cleanup(srv.Close)
	return &testStack{server: srv, agg: agg, store: store}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func deleteDocument(t *testing.T, db *postgres.Client, id string) {
	t.Helper()
	t.Cleanup(func() {
		_, _ = db.DB.ExecContext(context.Background(), `DELETE FROM documents WHERE id = $1`, id)
	})
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestAddDocumentThenNeighbourTerms(t *testing.T) {
	db := skipIfNoPostgres(t)
	stack := newStack(t, db)

	word := fmt.Sprintf("zeta%d", time.Now().UnixNano())
	id := "it-" + word
	deleteDocument(t, db, id)

	body := fmt.Sprintf(`{"id":%q,"title":"%s sensor network","abstract":"the %s gateway forwards sensor readings"}`, id, word, word)
	resp := postJSON(t, stack.server.URL+"/api/v1/documents", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, stack.server.URL+"/api/v1/documents", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, stack.server.URL+"/get-neighbour-terms", fmt.Sprintf(`{"query":%q}`, word))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out network.NeighbourTermsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	terms := make([]string, len(out.NeighbourTerms))
	for i, nt := range out.NeighbourTerms {
		terms[i] = nt.Term
	}
	assert.Contains(t, terms, "sensor")
	assert.Contains(t, terms, "gateway")

	require.Eventually(t, func() bool {
		stats := stack.agg.Stats()
		return stats.DocumentsAdded >= 1 && stats.TotalRequests >= 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestLibraryRestoresFromPostgres(t *testing.T) {
	db := skipIfNoPostgres(t)
	stack := newStack(t, db)
	ctx := context.Background()

	id := fmt.Sprintf("it-restore-%d", time.Now().UnixNano())
	deleteDocument(t, db, id)
	require.NoError(t, stack.store.Put(ctx, retrieval.Document{ID: id, Title: "restored title", Abstract: "restored abstract"}))

	lib, err := library.NewDefault()
	require.NoError(t, err)
	_, err = lib.Restore(ctx, stack.store)
	require.NoError(t, err)

	doc, ok := lib.Get(id)
	require.True(t, ok)
	assert.Equal(t, "restored title", doc.Title)
}

func TestUnknownQueryReturnsNotFound(t *testing.T) {
	db := skipIfNoPostgres(t)
	stack := newStack(t, db)

	resp := postJSON(t, stack.server.URL+"/get-neighbour-terms",
		fmt.Sprintf(`{"query":"unseen%d"}`, time.Now().UnixNano()))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalyticsSnapshotRoundTrip(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	store, err := aggregator.NewStore(ctx, db)
	require.NoError(t, err)

	captured := time.Now().UTC().Truncate(time.Millisecond)
	stats := analytics.AggregatedStats{
		TotalRequests: 7,
		EmptyNetworks: 2,
		TopReferences: []analytics.TermCount{{Term: "network", Count: 5}},
		CapturedAt:    captured,
	}
	require.NoError(t, store.SaveSnapshot(ctx, stats))

	latest, err := store.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(7), latest.TotalRequests)
	assert.Equal(t, stats.TopReferences, latest.TopReferences)

	list, err := store.ListSnapshots(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].CapturedAt.Equal(captured))
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
