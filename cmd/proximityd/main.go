// Command proximityd serves term-proximity networks over HTTP.
//
// It loads the local document library, wires retrieval guards, the Redis
// response cache and the analytics pipeline, and exposes:
//
//	POST /get-neighbour-terms
//	POST /api/v1/network
//	POST /api/v1/documents
//	GET  /api/v1/cache/stats, POST /api/v1/cache/invalidate
//	GET  /api/v1/analytics (when Kafka is disabled)
//	GET  /health/live, /health/ready
//
// Usage:
//
//	go run ./cmd/proximityd [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/library"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/network"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/textproc"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting proximity service", "port", cfg.Server.Port, "library_source", cfg.Library.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	normalizer, err := textproc.New(textproc.Options{
		StopWords:        cfg.Proximity.StopWords,
		DefaultStopWords: cfg.Proximity.DefaultStopWords,
		Lemmatize:        cfg.Proximity.Lemmatize,
		Stem:             cfg.Proximity.Stem,
	})
	if err != nil {
		slog.Error("failed to build normalizer", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()

	var pg *postgres.Client
	if cfg.Postgres.Enabled {
		pg, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		checker.Register("postgres", health.PingCheck(pg.Ping, false))
	}

	lib, store, err := openLibrary(ctx, cfg, pg)
	if err != nil {
		slog.Error("failed to load library", "error", err)
		os.Exit(1)
	}
	if store != nil && cfg.Library.Source == "bolt" {
		defer store.Close()
	}
	m.LibraryDocuments.Set(float64(lib.Len()))
	checker.Register("library", health.PingCheck(lib.Ping, false))
	slog.Info("library loaded", "documents", lib.Len())

	retriever := retrieval.NewGuarded("library", lib, cfg.Retrieval,
		retrieval.WithStateChange(func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}),
	)

	var cache network.Cache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis, "tpn:")
		if err != nil {
			slog.Warn("redis unavailable, network caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cache = network.NewRedisCache(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.PingCheck(redisClient.Ping, true))
			slog.Info("network cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	mux := http.NewServeMux()

	var sink kafka.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.NetworkEvents)
		defer producer.Close()
		sink = producer
		slog.Info("analytics events published to kafka", "topic", cfg.Kafka.Topics.NetworkEvents)
	} else {
		agg := analytics.NewAggregator(cfg.Analytics, m)
		sink = agg.Publisher()
		var snapshots analytics.SnapshotLister
		if pg != nil {
			snapStore, err := aggregator.NewStore(ctx, pg)
			if err != nil {
				slog.Error("failed to prepare analytics store", "error", err)
				os.Exit(1)
			}
			snapshots = snapStore
			done := aggregator.RunPeriodic(ctx, snapStore, agg, cfg.Analytics.SnapshotInterval)
			defer func() { <-done }()
		}
		analytics.NewHandler(agg, snapshots).Register(mux)
		slog.Info("analytics aggregated in process")
	}
	collector := analytics.NewCollector(sink, cfg.Analytics.BufferSize, m)
	collector.Start(ctx)
	defer collector.Close()

	opts := []network.Option{
		network.WithMetrics(m),
		network.WithTracer(tracing.NewTracer(cfg.Tracing.Enabled, cfg.Tracing.SampleRate)),
		network.WithTracker(collector),
	}
	if cache != nil {
		opts = append(opts, network.WithCache(cache))
	}
	svc, err := network.NewService(retriever, normalizer, cfg.Proximity, opts...)
	if err != nil {
		slog.Error("invalid proximity configuration", "error", err)
		os.Exit(1)
	}
	network.NewHandler(svc).Register(mux)

	pubOpts := []publisher.Option{publisher.WithProducer(collector), publisher.WithMetrics(m)}
	if store != nil {
		pubOpts = append(pubOpts, publisher.WithStore(store))
	}
	if cache != nil {
		pubOpts = append(pubOpts, publisher.WithCache(cache))
	}
	handler.New(publisher.New(lib, pubOpts...)).Register(mux)

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var limiter *middleware.ClientLimiter
	if cfg.Server.ClientRatePerSecond > 0 {
		limiter = middleware.NewClientLimiter(cfg.Server.ClientRatePerSecond, cfg.Server.ClientBurst, 10*time.Minute)
		go limiter.RunSweeper(ctx, 5*time.Minute)
		slog.Info("client rate limiting enabled", "per_second", cfg.Server.ClientRatePerSecond, "burst", cfg.Server.ClientBurst)
	}

	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.CORS(middleware.PermissiveCORS()),
		middleware.RateLimit(limiter),
		middleware.Metrics(m,
			"/get-neighbour-terms", "/api/v1/network", "/api/v1/documents",
			"/api/v1/cache/stats", "/api/v1/cache/invalidate",
			"/api/v1/analytics", "/api/v1/analytics/snapshots",
			"/health/live", "/health/ready",
		),
		middleware.Timeout(cfg.Server.RequestTimeout),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("proximity service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		stop()
	}

	slog.Info("proximity service stopped")
}

// openLibrary builds the library from the configured source. The returned
// store is nil for file sources; new documents are then kept in memory only.
func openLibrary(ctx context.Context, cfg *config.Config, pg *postgres.Client) (*library.Library, library.Store, error) {
	lib, err := library.NewDefault()
	if err != nil {
		return nil, nil, err
	}

	var store library.Store
	switch cfg.Library.Source {
	case "file":
		if _, err := lib.LoadGlob(cfg.Library.CorpusPath); err != nil {
			return nil, nil, err
		}
		return lib, nil, nil
	case "bolt":
		store, err = library.NewBoltStore(cfg.Library.BoltPath)
	case "postgres":
		store, err = library.NewPostgresStore(ctx, pg)
	default:
		err = fmt.Errorf("unknown library source %q", cfg.Library.Source)
	}
	if err != nil {
		return nil, nil, err
	}
	if _, err := lib.Restore(ctx, store); err != nil {
		if cfg.Library.Source == "bolt" {
			store.Close()
		}
		return nil, nil, err
	}
	return lib, store, nil
}
